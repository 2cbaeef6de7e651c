// Package command is the command line interface of the deployer.
//
// Every subcommand is a pipeline. The pipelines share the data only through the files
// in the output directory:
//
//	authdeploy compile   writes AuthContract_abi.json and AuthContract_bytecode.txt
//	authdeploy deploy    reads them, writes contract_address.txt
//	authdeploy status    reads contract_address.txt
package command

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/blocklords/authdeploy/blockchain/evm/client"
	"github.com/blocklords/authdeploy/blockchain/network"
	"github.com/blocklords/authdeploy/config"
	"github.com/blocklords/authdeploy/log"
	"github.com/urfave/cli"
)

// Version of the application, set at the build time with -ldflags.
var Version = "dev"

var envFlag = cli.StringSliceFlag{
	Name:  "env, e",
	Usage: "path to the .env file, could be given multiple times (by default ./.env, if it exists)",
}

var debugFlag = cli.BoolFlag{
	Name:  "debug, d",
	Usage: "enable debug logging",
}

func versionPrinter(c *cli.Context) {
	_, _ = fmt.Fprintf(c.App.Writer, "authdeploy\nVersion: %s\nGoVersion: %s\n",
		Version,
		runtime.Version(),
	)
}

// New creates the instance of [cli.App] with all commands included.
func New() *cli.App {
	cli.VersionPrinter = versionPrinter
	ctl := cli.NewApp()
	ctl.Name = "authdeploy"
	ctl.Version = Version
	ctl.Usage = "compile and deploy the AuthContract smartcontract"
	ctl.ErrWriter = os.Stderr
	ctl.Flags = []cli.Flag{envFlag, debugFlag}

	ctl.Commands = []cli.Command{
		newCompileCommand(),
		newDeployCommand(),
		newStatusCommand(),
	}
	return ctl
}

// setup the logger and the configuration of the command.
// The configuration is loaded from the .env files given by the global --env flag.
func setup(ctx *cli.Context, name string, defaults ...config.DefaultConfig) (*log.Logger, *config.Config, error) {
	logger, err := log.New("authdeploy", true)
	if err != nil {
		return nil, nil, fmt.Errorf("log.New: %w", err)
	}
	logger.SetDebug(ctx.GlobalBool("debug"))
	logger = logger.Child(name)

	appConfig, err := config.New(logger, ctx.GlobalStringSlice("env")...)
	if err != nil {
		return nil, nil, fmt.Errorf("config.New: %w", err)
	}
	for _, defaultConfig := range defaults {
		appConfig.SetDefaults(defaultConfig)
	}

	return logger, appConfig, nil
}

// overwriteString sets the configuration parameter if the flag was given.
func overwriteString(ctx *cli.Context, appConfig *config.Config, flag string, name string) {
	if ctx.IsSet(flag) {
		appConfig.Set(name, ctx.String(flag))
	}
}

func overwriteUint64(ctx *cli.Context, appConfig *config.Config, flag string, name string) {
	if ctx.IsSet(flag) {
		appConfig.Set(name, ctx.Uint64(flag))
	}
}

var networkFlag = cli.StringFlag{
	Name:  "network, n",
	Usage: "id of the known network, like amoy or localhost; the node must be on its chain (DEPLOYER_NETWORK)",
}

var rpcFlag = cli.StringFlag{
	Name:  "rpc, r",
	Usage: "JSON-RPC endpoint of the blockchain node, overrides the network provider (DEPLOYER_RPC_URL)",
}

// selectNetwork sets the rpc url of the chosen network, unless the --rpc flag is given.
// Returns nil if no network was chosen.
func selectNetwork(ctx *cli.Context, appConfig *config.Config) (*network.Network, error) {
	overwriteString(ctx, appConfig, "network", "DEPLOYER_NETWORK")
	overwriteString(ctx, appConfig, "rpc", "DEPLOYER_RPC_URL")

	selected, err := network.Selected(appConfig)
	if err != nil || selected == nil {
		return nil, err
	}
	if !ctx.IsSet("rpc") {
		url, err := selected.GetFirstProviderUrl()
		if err != nil {
			return nil, fmt.Errorf("network '%s': %w", selected.Id, err)
		}
		appConfig.Set("DEPLOYER_RPC_URL", url)
	}
	return selected, nil
}

// connect to the blockchain node. If the network was chosen, then its chain id is checked.
func connect(ctx context.Context, appConfig *config.Config, logger *log.Logger, selected *network.Network) (*client.Client, error) {
	c, err := dial(ctx, appConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("client.Dial: %w", err)
	}
	if selected == nil {
		return c, nil
	}

	chainId, err := c.ChainID(ctx)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("client.ChainID: %w", err)
	}
	if err := selected.Check(chainId); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
