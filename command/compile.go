package command

import (
	"fmt"

	"github.com/blocklords/authdeploy/artifact"
	"github.com/blocklords/authdeploy/blockchain/evm/compiler"
	"github.com/urfave/cli"
)

// newRunner of the solidity compiler at the path
var newRunner = func(path string) compiler.Runner {
	return compiler.ExecRunner{Path: path}
}

var contractFlag = cli.StringFlag{
	Name:  "contract, c",
	Usage: "name of the contract in the source file (DEPLOYER_CONTRACT)",
}

var outFlag = cli.StringFlag{
	Name:  "out, o",
	Usage: "directory of the abi, bytecode and address files (DEPLOYER_OUT_DIR)",
}

func newCompileCommand() cli.Command {
	return cli.Command{
		Name:      "compile",
		Usage:     "compile the solidity source into the abi and bytecode files",
		UsageText: "authdeploy compile [--source AuthContract.sol] [--contract AuthContract] [--out .]",
		Action:    compileAction,
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "source, s",
				Usage: "solidity source file (DEPLOYER_SOURCE)",
			},
			contractFlag,
			outFlag,
			cli.StringFlag{
				Name:  "solc",
				Usage: "path to the solc binary (DEPLOYER_SOLC_PATH)",
			},
			cli.StringFlag{
				Name:  "solc-version",
				Usage: "required version or constraint of solc (DEPLOYER_SOLC_VERSION)",
			},
		},
	}
}

func compileAction(ctx *cli.Context) error {
	logger, appConfig, err := setup(ctx, "compile", compiler.CompilerConfigurations)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	overwriteString(ctx, appConfig, "source", "DEPLOYER_SOURCE")
	overwriteString(ctx, appConfig, "contract", "DEPLOYER_CONTRACT")
	overwriteString(ctx, appConfig, "out", "DEPLOYER_OUT_DIR")
	overwriteString(ctx, appConfig, "solc", "DEPLOYER_SOLC_PATH")
	overwriteString(ctx, appConfig, "solc-version", "DEPLOYER_SOLC_VERSION")

	signalCtx, cancel := signalContext()
	defer cancel()

	runner := newRunner(appConfig.GetString("DEPLOYER_SOLC_PATH"))
	solc, err := compiler.New(signalCtx, runner, appConfig.GetString("DEPLOYER_SOLC_VERSION"), logger)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("compiler.New: %w", err), 1)
	}

	compiled, err := solc.CompileArtifact(signalCtx, appConfig.GetString("DEPLOYER_SOURCE"), appConfig.GetString("DEPLOYER_CONTRACT"))
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	store, err := artifact.NewStore(appConfig.GetString("DEPLOYER_OUT_DIR"))
	if err != nil {
		return cli.NewExitError(fmt.Errorf("artifact.NewStore: %w", err), 1)
	}
	if err := store.Write(compiled); err != nil {
		return cli.NewExitError(fmt.Errorf("store.Write: %w", err), 1)
	}

	logger.Info("artifacts saved", "dir", store.Dir(), "contract", compiled.Name)
	logger.Info("ABI saved", "path", store.AbiPath(compiled.Name))
	logger.Info("bytecode saved", "path", store.BytecodePath(compiled.Name))

	return nil
}
