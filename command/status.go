package command

import (
	"errors"
	"fmt"

	"github.com/blocklords/authdeploy/artifact"
	"github.com/blocklords/authdeploy/blockchain/evm/client"
	"github.com/blocklords/authdeploy/blockchain/evm/compiler"
	"github.com/blocklords/authdeploy/blockchain/network"
	"github.com/blocklords/authdeploy/deployer"
	"github.com/blocklords/authdeploy/registry"
	"github.com/urfave/cli"
)

func newStatusCommand() cli.Command {
	return cli.Command{
		Name:      "status",
		Usage:     "check the deployed contract on the blockchain",
		UsageText: "authdeploy status [--network amoy] [--rpc url] [--contract AuthContract] [--out .]",
		Action:    statusAction,
		Flags: []cli.Flag{
			networkFlag,
			rpcFlag,
			contractFlag,
			outFlag,
		},
	}
}

func statusAction(ctx *cli.Context) error {
	logger, appConfig, err := setup(ctx, "status",
		compiler.CompilerConfigurations,
		client.ClientConfigurations,
		registry.DatabaseConfigurations,
		network.NetworkConfigurations,
	)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	selected, err := selectNetwork(ctx, appConfig)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("selectNetwork: %w", err), 1)
	}
	overwriteString(ctx, appConfig, "contract", "DEPLOYER_CONTRACT")
	overwriteString(ctx, appConfig, "out", "DEPLOYER_OUT_DIR")

	signalCtx, cancel := signalContext()
	defer cancel()

	store, err := artifact.NewStore(appConfig.GetString("DEPLOYER_OUT_DIR"))
	if err != nil {
		return cli.NewExitError(fmt.Errorf("artifact.NewStore: %w", err), 1)
	}
	address, err := store.ReadAddress()
	if err != nil {
		return cli.NewExitError(fmt.Errorf("store.ReadAddress: %w", err), 1)
	}
	compiled, err := store.Read(appConfig.GetString("DEPLOYER_CONTRACT"))
	if err != nil {
		return cli.NewExitError(fmt.Errorf("store.Read: %w", err), 1)
	}
	methods, err := compiled.Methods()
	if err != nil {
		return cli.NewExitError(fmt.Errorf("artifact.Methods: %w", err), 1)
	}

	c, err := connect(signalCtx, appConfig, logger, selected)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer c.Close()

	chainId, err := c.ChainID(signalCtx)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("client.ChainID: %w", err), 1)
	}
	code, err := c.Code(signalCtx, address)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("client.Code: %w", err), 1)
	}
	if len(code) == 0 {
		return cli.NewExitError(fmt.Errorf("%w: %s on chain %d", deployer.ErrNoCode, address.Hex(), chainId), 1)
	}

	out := ctx.App.Writer
	fmt.Fprintf(out, "contract: %s\n", compiled.Name)
	fmt.Fprintf(out, "address: %s\n", address.Hex())
	fmt.Fprintf(out, "chain_id: %d\n", chainId)
	fmt.Fprintf(out, "code_size: %d\n", len(code))

	if appConfig.GetBool("DEPLOYER_DATABASE_ENABLED") {
		deployments, closeDb, err := openRegistry(signalCtx, appConfig, logger)
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		defer closeDb()

		latest, err := deployments.Latest(signalCtx, chainId.Uint64(), compiled.Name)
		if err != nil && !errors.Is(err, registry.ErrNotFound) {
			return cli.NewExitError(fmt.Errorf("registry.Latest: %w", err), 1)
		}
		if latest != nil {
			fmt.Fprintf(out, "tx_hash: %s\n", latest.TxHash.Hex())
			fmt.Fprintf(out, "block_number: %d\n", latest.BlockNumber)
			fmt.Fprintf(out, "deployed_at: %s\n", latest.DeployedAt.Format("2006-01-02 15:04:05"))
			if latest.Address != address {
				logger.Warn("the registry has another address", "registry", latest.Address.Hex(), "file", address.Hex())
			}
		}
	}

	fmt.Fprintln(out, "methods:")
	for _, method := range methods {
		fmt.Fprintf(out, "  %s\n", method)
	}

	return nil
}
