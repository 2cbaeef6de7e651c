package command

import (
	"context"
	"fmt"
	"math/big"

	"github.com/blocklords/authdeploy/artifact"
	"github.com/blocklords/authdeploy/blockchain/evm/client"
	"github.com/blocklords/authdeploy/blockchain/evm/compiler"
	"github.com/blocklords/authdeploy/blockchain/evm/simulated"
	"github.com/blocklords/authdeploy/blockchain/evm/util"
	"github.com/blocklords/authdeploy/blockchain/network"
	"github.com/blocklords/authdeploy/config"
	"github.com/blocklords/authdeploy/deployer"
	"github.com/blocklords/authdeploy/log"
	"github.com/blocklords/authdeploy/registry"
	"github.com/blocklords/authdeploy/security"
	eth_common "github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli"
)

// dial the blockchain node defined in the configuration
var dial = client.Dial

// DryRunConfigurations are the parameters of the deployment on the in-memory blockchain
var DryRunConfigurations = config.DefaultConfig{
	Title: "Dry run",
	Parameters: map[string]interface{}{
		// balance of the deployer in the native coin
		"DEPLOYER_DRY_RUN_BALANCE": "100",
	},
}

func newDeployCommand() cli.Command {
	return cli.Command{
		Name:      "deploy",
		Usage:     "deploy the compiled contract and save its address",
		UsageText: "authdeploy deploy [--network amoy] [--rpc url] [--contract AuthContract] [--out .] [--gas-limit 2000000] [--gas-price 50] [--dry-run]",
		Action:    deployAction,
		Flags: []cli.Flag{
			networkFlag,
			rpcFlag,
			contractFlag,
			outFlag,
			cli.Uint64Flag{
				Name:  "gas-limit",
				Usage: "gas limit of the transaction, 0 to estimate (DEPLOYER_GAS_LIMIT)",
			},
			cli.Uint64Flag{
				Name:  "gas-price",
				Usage: "gas price in gwei, 0 to use the price suggested by the node (DEPLOYER_GAS_PRICE_GWEI)",
			},
			cli.BoolFlag{
				Name:  "dry-run",
				Usage: "deploy on the in-memory blockchain, nothing is saved",
			},
		},
	}
}

func deployAction(ctx *cli.Context) error {
	logger, appConfig, err := setup(ctx, "deploy",
		compiler.CompilerConfigurations,
		client.ClientConfigurations,
		deployer.DeployerConfigurations,
		registry.DatabaseConfigurations,
		network.NetworkConfigurations,
		DryRunConfigurations,
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
	overwriteUint64(ctx, appConfig, "gas-limit", "DEPLOYER_GAS_LIMIT")
	overwriteUint64(ctx, appConfig, "gas-price", "DEPLOYER_GAS_PRICE_GWEI")
	dryRun := ctx.Bool("dry-run")

	signalCtx, cancel := signalContext()
	defer cancel()

	store, err := artifact.NewStore(appConfig.GetString("DEPLOYER_OUT_DIR"))
	if err != nil {
		return cli.NewExitError(fmt.Errorf("artifact.NewStore: %w", err), 1)
	}
	compiled, err := store.Read(appConfig.GetString("DEPLOYER_CONTRACT"))
	if err != nil {
		return cli.NewExitError(fmt.Errorf("store.Read: %w", err), 1)
	}
	logger.Info("artifacts loaded", "abi", store.AbiPath(compiled.Name), "bytecode", store.BytecodePath(compiled.Name))

	source, err := security.New(appConfig, logger)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("security.New: %w", err), 1)
	}
	deployerAccount, err := security.Account(signalCtx, source)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("security.Account: %w", err), 1)
	}
	logger.Info("deployer account", "address", deployerAccount.Address().Hex())

	var c *client.Client
	if dryRun {
		balance, err := util.ParseEther(appConfig.GetString("DEPLOYER_DRY_RUN_BALANCE"))
		if err != nil {
			return cli.NewExitError(fmt.Errorf("'DEPLOYER_DRY_RUN_BALANCE': %w", err), 1)
		}
		backend := simulated.New(map[eth_common.Address]*big.Int{deployerAccount.Address(): balance})
		defer func() {
			_ = backend.Close()
		}()
		c = client.New(backend, logger.Child("simulated"))
		logger.Warn("dry run on the in-memory blockchain")
	} else {
		c, err = connect(signalCtx, appConfig, logger, selected)
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		defer c.Close()
	}

	parameters, err := deployer.NewParameters(appConfig)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("deployer.NewParameters: %w", err), 1)
	}

	deployment, err := deployer.New(c, deployerAccount, parameters, logger).Deploy(signalCtx, compiled)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("deployment failed: %w", err), 1)
	}

	if dryRun {
		logger.Info("the contract would be deployed", "address", deployment.Address.Hex(), "gas_used", deployment.GasUsed)
		return nil
	}

	if err := store.WriteAddress(deployment.Address); err != nil {
		return cli.NewExitError(fmt.Errorf("store.WriteAddress: %w", err), 1)
	}
	logger.Info("contract address saved", "path", store.AddressPath(), "address", deployment.Address.Hex())

	if appConfig.GetBool("DEPLOYER_DATABASE_ENABLED") {
		if err := saveDeployment(signalCtx, appConfig, logger, deployment); err != nil {
			logger.Error("the deployment is not registered", "address", deployment.Address.Hex(), "error", err)
			return cli.NewExitError(fmt.Errorf("saveDeployment: %w", err), 1)
		}
	}

	return nil
}

func openRegistry(ctx context.Context, appConfig *config.Config, logger *log.Logger) (*registry.Registry, func(), error) {
	parameters, err := registry.GetParameters(appConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("registry.GetParameters: %w", err)
	}
	db, err := registry.Connect(ctx, parameters, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("registry.Connect: %w", err)
	}
	closeDb := func() {
		if err := db.Close(); err != nil {
			logger.Warn("failed to close the database", "error", err)
		}
	}

	deployments, err := registry.New(ctx, db)
	if err != nil {
		closeDb()
		return nil, nil, fmt.Errorf("registry.New: %w", err)
	}
	return deployments, closeDb, nil
}

func saveDeployment(ctx context.Context, appConfig *config.Config, logger *log.Logger, deployment *deployer.Deployment) error {
	deployments, closeDb, err := openRegistry(ctx, appConfig, logger)
	if err != nil {
		return err
	}
	defer closeDb()

	if err := deployments.Save(ctx, deployment); err != nil {
		return fmt.Errorf("registry.Save: %w", err)
	}
	logger.Info("deployment registered", "chain_id", deployment.ChainId, "tx_hash", deployment.TxHash.Hex())
	return nil
}
