package compiler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blocklords/authdeploy/log"
	"github.com/stretchr/testify/suite"
)

const combinedJson = `{
	"contracts": {
		"<stdin>:AuthContract": {
			"abi": [{"inputs":[{"internalType":"string","name":"appName","type":"string"}],"name":"registerApp","outputs":[],"stateMutability":"nonpayable","type":"function"}],
			"bin": "6001600c60003960016000f300",
			"bin-runtime": "00"
		},
		"<stdin>:IAuth": {
			"abi": [],
			"bin": "",
			"bin-runtime": ""
		}
	},
	"version": "0.8.20+commit.a1b79de6.Linux.g++"
}`

const versionOutput = "solc, the solidity compiler commandline interface\nVersion: 0.8.20+commit.a1b79de6.Linux.g++\n"

// fakeRunner replies as solc would
type fakeRunner struct {
	version  string
	output   string
	err      error
	lastArgs []string
	stdin    []byte
}

func (runner *fakeRunner) Run(_ context.Context, stdin []byte, args ...string) ([]byte, error) {
	runner.lastArgs = args
	runner.stdin = stdin
	if len(args) == 1 && args[0] == "--version" {
		return []byte(runner.version), nil
	}
	if runner.err != nil {
		return nil, runner.err
	}
	return []byte(runner.output), nil
}

// Define the suite, and absorb the built-in basic suite
// functionality from testify - including a T() method which
// returns the current testing context
type TestCompilerSuite struct {
	suite.Suite
	logger     *log.Logger
	runner     *fakeRunner
	sourcePath string
}

func (suite *TestCompilerSuite) SetupTest() {
	logger, err := log.New("compiler_suite", false)
	suite.Require().NoError(err)
	suite.logger = logger

	suite.runner = &fakeRunner{version: versionOutput, output: combinedJson}

	source, err := os.ReadFile(filepath.Join("testdata", "AuthContract.sol"))
	suite.Require().NoError(err)
	suite.sourcePath = filepath.Join(suite.T().TempDir(), "AuthContract.sol")
	suite.Require().NoError(os.WriteFile(suite.sourcePath, source, 0644))
}

func (suite *TestCompilerSuite) TestVersion() {
	solc, err := New(context.Background(), suite.runner, "0.8.20", suite.logger)
	suite.Require().NoError(err)
	suite.Require().Equal("0.8.20", solc.version.String())

	// constraints are supported
	_, err = New(context.Background(), suite.runner, ">= 0.8.0, < 0.9.0", suite.logger)
	suite.Require().NoError(err)

	_, err = New(context.Background(), suite.runner, "0.8.19", suite.logger)
	suite.Require().ErrorIs(err, ErrVersionMismatch)

	_, err = New(context.Background(), suite.runner, "", suite.logger)
	suite.Require().Error(err)

	_, err = New(context.Background(), suite.runner, "latest", suite.logger)
	suite.Require().Error(err)

	// not a solc binary
	suite.runner.version = "GNU bash, version 5.2.15(1)-release"
	_, err = New(context.Background(), suite.runner, "0.8.20", suite.logger)
	suite.Require().Error(err)
}

func (suite *TestCompilerSuite) TestCompile() {
	solc, err := New(context.Background(), suite.runner, "0.8.20", suite.logger)
	suite.Require().NoError(err)

	contracts, err := solc.Compile(context.Background(), suite.sourcePath)
	suite.Require().NoError(err)
	suite.Require().Equal([]string{"<stdin>:AuthContract", "<stdin>:IAuth"}, Names(contracts))

	// the source goes over stdin
	suite.Require().Equal([]string{"--combined-json", "abi,bin,bin-runtime", "-"}, suite.runner.lastArgs)
	suite.Require().True(strings.Contains(string(suite.runner.stdin), "contract AuthContract"))

	contract, err := Lookup(contracts, "AuthContract")
	suite.Require().NoError(err)
	suite.Require().Equal("0x6001600c60003960016000f300", contract.Code)
	suite.Require().Equal("0.8.20", contract.Info.CompilerVersion)

	// the full name is accepted too
	_, err = Lookup(contracts, "<stdin>:AuthContract")
	suite.Require().NoError(err)

	_, err = Lookup(contracts, "Missing")
	suite.Require().ErrorIs(err, ErrContractNotFound)
	suite.Require().Contains(err.Error(), "<stdin>:AuthContract")
	suite.Require().Contains(err.Error(), "<stdin>:IAuth")
}

func (suite *TestCompilerSuite) TestCompileArtifact() {
	solc, err := New(context.Background(), suite.runner, "0.8.20", suite.logger)
	suite.Require().NoError(err)

	compiled, err := solc.CompileArtifact(context.Background(), suite.sourcePath, "AuthContract")
	suite.Require().NoError(err)
	suite.Require().Equal("AuthContract", compiled.Name)
	suite.Require().Equal("6001600c60003960016000f300", compiled.Bytecode)
	suite.Require().NotEmpty(compiled.Abi)

	methods, err := compiled.Methods()
	suite.Require().NoError(err)
	suite.Require().Equal([]string{"registerApp(string)"}, methods)

	// interfaces have no bytecode to deploy
	_, err = solc.CompileArtifact(context.Background(), suite.sourcePath, "IAuth")
	suite.Require().Error(err)
}

func (suite *TestCompilerSuite) TestFailures() {
	solc, err := New(context.Background(), suite.runner, "0.8.20", suite.logger)
	suite.Require().NoError(err)

	_, err = solc.Compile(context.Background(), filepath.Join(suite.T().TempDir(), "Missing.sol"))
	suite.Require().ErrorIs(err, ErrSourceNotFound)

	suite.runner.err = errors.New("ParserError: Expected ';' but got '}'")
	_, err = solc.Compile(context.Background(), suite.sourcePath)
	suite.Require().Error(err)
	suite.Require().Contains(err.Error(), "ParserError")

	suite.runner.err = nil
	suite.runner.output = "not a json"
	_, err = solc.Compile(context.Background(), suite.sourcePath)
	suite.Require().Error(err)
}

// In order for 'go test' to run this suite, we need to create
func (suite *TestCompilerSuite) writeScript(body string) string {
	path := filepath.Join(suite.T().TempDir(), "solc.sh")
	suite.Require().NoError(os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return path
}

func (suite *TestCompilerSuite) TestExecRunner() {
	ctx := context.Background()

	// echoes the arguments and the standard input
	runner := ExecRunner{Path: suite.writeScript(`echo "$@"; cat`)}
	output, err := runner.Run(ctx, []byte("contract AuthContract {}"), "--combined-json", "abi")
	suite.Require().NoError(err)
	suite.Require().Equal("--combined-json abi\ncontract AuthContract {}", string(output))

	runner = ExecRunner{Path: suite.writeScript(`echo "Error: Source file requires different compiler version" >&2; exit 1`)}
	_, err = runner.Run(ctx, nil, "-")
	suite.Require().ErrorContains(err, "exit status 1")
	suite.Require().ErrorContains(err, "requires different compiler version")

	runner = ExecRunner{Path: filepath.Join(suite.T().TempDir(), "missing")}
	_, err = runner.Run(ctx, nil, "--version")
	suite.Require().Error(err)
}

// a normal test function and pass our suite to suite.Run
func TestCompiler(t *testing.T) {
	suite.Run(t, new(TestCompilerSuite))
}
