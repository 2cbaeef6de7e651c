package command

import (
	"bytes"
	"context"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/blocklords/authdeploy/artifact"
	"github.com/blocklords/authdeploy/blockchain/evm/client"
	"github.com/blocklords/authdeploy/blockchain/evm/compiler"
	"github.com/blocklords/authdeploy/blockchain/evm/simulated"
	"github.com/blocklords/authdeploy/config"
	"github.com/blocklords/authdeploy/config/env"
	"github.com/blocklords/authdeploy/log"
	"github.com/blocklords/authdeploy/security/account"
	eth_common "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/suite"
	"github.com/urfave/cli"
)

const combinedJson = `{
	"contracts": {
		"<stdin>:AuthContract": {
			"abi": [
				{"inputs":[{"internalType":"address","name":"user","type":"address"}],"name":"isAuthenticated","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"view","type":"function"},
				{"inputs":[{"internalType":"string","name":"appName","type":"string"}],"name":"registerApp","outputs":[],"stateMutability":"nonpayable","type":"function"}
			],
			"bin": "6001600c60003960016000f300",
			"bin-runtime": "00"
		}
	},
	"version": "0.8.20+commit.a1b79de6.Linux.g++"
}`

const versionOutput = "solc, the solidity compiler commandline interface\nVersion: 0.8.20+commit.a1b79de6.Linux.g++\n"

const testKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

type fakeRunner struct{}

func (fakeRunner) Run(_ context.Context, _ []byte, args ...string) ([]byte, error) {
	if len(args) == 1 && args[0] == "--version" {
		return []byte(versionOutput), nil
	}
	return []byte(combinedJson), nil
}

type TestCommandSuite struct {
	suite.Suite
	dir        string
	sourcePath string
	account    *account.Account
	backend    *simulated.Backend
	out        *bytes.Buffer
}

func (suite *TestCommandSuite) SetupTest() {
	cli.OsExiter = func(int) {}

	suite.dir = suite.T().TempDir()
	suite.sourcePath = filepath.Join(suite.dir, "AuthContract.sol")
	suite.Require().NoError(os.WriteFile(suite.sourcePath, []byte("pragma solidity 0.8.20;\ncontract AuthContract {}\n"), 0644))

	deployerAccount, err := account.FromHex(testKey)
	suite.Require().NoError(err)
	suite.account = deployerAccount

	suite.backend = simulated.New(map[eth_common.Address]*big.Int{
		deployerAccount.Address(): new(big.Int).Mul(big.NewInt(10), big.NewInt(params.Ether)),
	})

	previousRunner, previousDial := newRunner, dial
	newRunner = func(string) compiler.Runner { return fakeRunner{} }
	dial = func(_ context.Context, _ *config.Config, logger *log.Logger) (*client.Client, error) {
		return client.New(suite.backend, logger), nil
	}

	suite.T().Setenv("DEPLOYER_PRIVATE_KEY", testKey)
	suite.T().Setenv("DEPLOYER_SECRET_SOURCE", "env")
	suite.T().Setenv("DEPLOYER_DATABASE_ENABLED", "false")

	suite.T().Cleanup(func() {
		newRunner, dial = previousRunner, previousDial
		_ = suite.backend.Close()
	})
}

func (suite *TestCommandSuite) run(args ...string) error {
	suite.out = bytes.NewBuffer(nil)
	app := New()
	app.Writer = suite.out
	app.ErrWriter = bytes.NewBuffer(nil)
	return app.Run(append([]string{"authdeploy"}, args...))
}

func (suite *TestCommandSuite) compile() {
	err := suite.run("compile", "--source", suite.sourcePath, "--out", suite.dir)
	suite.Require().NoError(err)
}

func (suite *TestCommandSuite) TestCompile() {
	suite.compile()

	store, err := artifact.NewStore(suite.dir)
	suite.Require().NoError(err)
	suite.Require().FileExists(filepath.Join(suite.dir, "AuthContract_abi.json"))
	suite.Require().FileExists(filepath.Join(suite.dir, "AuthContract_bytecode.txt"))

	compiled, err := store.Read("AuthContract")
	suite.Require().NoError(err)
	suite.Require().Equal("6001600c60003960016000f300", compiled.Bytecode)

	// the contract is not in the source
	err = suite.run("compile", "--source", suite.sourcePath, "--out", suite.dir, "--contract", "Missing")
	suite.Require().ErrorContains(err, "available contracts")

	err = suite.run("compile", "--source", filepath.Join(suite.dir, "Missing.sol"), "--out", suite.dir)
	suite.Require().ErrorContains(err, "source file not found")

	err = suite.run("compile", "--source", suite.sourcePath, "--out", suite.dir, "--solc-version", "0.8.19")
	suite.Require().ErrorContains(err, "version mismatch")
}

func (suite *TestCommandSuite) TestDeployStatus() {
	// nothing to deploy
	err := suite.run("deploy", "--out", suite.dir)
	suite.Require().ErrorContains(err, "not found")

	suite.compile()

	err = suite.run("--debug", "deploy", "--out", suite.dir)
	suite.Require().NoError(err)

	store, err := artifact.NewStore(suite.dir)
	suite.Require().NoError(err)
	address, err := store.ReadAddress()
	suite.Require().NoError(err)

	code, err := suite.backend.CodeAt(context.Background(), address, nil)
	suite.Require().NoError(err)
	suite.Require().NotEmpty(code)

	err = suite.run("status", "--out", suite.dir)
	suite.Require().NoError(err)
	output := suite.out.String()
	suite.Require().Contains(output, "address: "+address.Hex())
	suite.Require().Contains(output, "chain_id: 1337")
	suite.Require().Contains(output, "isAuthenticated(address)")
	suite.Require().Contains(output, "registerApp(string)")

	// no code at the saved address
	suite.Require().NoError(store.WriteAddress(eth_common.HexToAddress("0x000000000000000000000000000000000000dEaD")))
	err = suite.run("status", "--out", suite.dir)
	suite.Require().ErrorContains(err, "no code")
}

func (suite *TestCommandSuite) TestNetwork() {
	suite.compile()

	// the simulated chain id is 1337
	err := suite.run("deploy", "--out", suite.dir, "--network", "localhost")
	suite.Require().ErrorContains(err, "another chain")
	suite.Require().NoFileExists(filepath.Join(suite.dir, artifact.AddressFile))

	err = suite.run("deploy", "--out", suite.dir, "--network", "unknown")
	suite.Require().ErrorContains(err, "not found")

	suite.T().Setenv("DEPLOYER_NETWORKS", `[{"id": "simulated", "chain_id": 1337, "providers": [{"url": "http://127.0.0.1:8545"}]}]`)
	err = suite.run("deploy", "--out", suite.dir, "--network", "simulated")
	suite.Require().NoError(err)

	err = suite.run("status", "--out", suite.dir, "--network", "simulated")
	suite.Require().NoError(err)
	suite.Require().Contains(suite.out.String(), "chain_id: 1337")
}

func (suite *TestCommandSuite) TestDryRun() {
	suite.compile()

	// the node is never dialed
	dial = func(context.Context, *config.Config, *log.Logger) (*client.Client, error) {
		suite.T().Fatal("dry run dialed the node")
		return nil, nil
	}

	err := suite.run("deploy", "--out", suite.dir, "--dry-run", "--gas-limit", "0", "--gas-price", "0")
	suite.Require().NoError(err)
	suite.Require().NoFileExists(filepath.Join(suite.dir, artifact.AddressFile))
}

func (suite *TestCommandSuite) TestPrivateKey() {
	suite.compile()

	// the key is not set
	suite.T().Setenv("DEPLOYER_PRIVATE_KEY", "")
	err := suite.run("deploy", "--out", suite.dir)
	suite.Require().ErrorContains(err, "DEPLOYER_PRIVATE_KEY")

	// the key from the .env file
	suite.Require().NoError(os.Unsetenv("DEPLOYER_PRIVATE_KEY"))
	envPath := filepath.Join(suite.dir, "deployer.env")
	suite.Require().NoError(env.WriteEnv(map[string]string{"DEPLOYER_PRIVATE_KEY": testKey}, envPath))

	err = suite.run("--env", envPath, "deploy", "--out", suite.dir)
	suite.Require().NoError(err)
	suite.Require().FileExists(filepath.Join(suite.dir, artifact.AddressFile))
}

func TestCommand(t *testing.T) {
	suite.Run(t, new(TestCommandSuite))
}
