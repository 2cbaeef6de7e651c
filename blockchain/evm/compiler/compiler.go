// Package compiler turns the solidity source into the artifact.
//
// The compilation is done by the solc binary. The source is passed over stdin,
// therefore the contracts in the output are named as "<stdin>:ContractName".
// The combined json output of solc is parsed by the go-ethereum compiler package.
package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"sort"
	"strings"

	"github.com/blocklords/authdeploy/artifact"
	"github.com/blocklords/authdeploy/config"
	"github.com/blocklords/authdeploy/log"
	eth_compiler "github.com/ethereum/go-ethereum/common/compiler"
	"github.com/hashicorp/go-version"
)

// StdinPrefix is the prefix of the contract names in the solc output
const StdinPrefix = "<stdin>:"

var (
	ErrSourceNotFound   = errors.New("source file not found")
	ErrContractNotFound = errors.New("contract not found in compiled output")
	ErrVersionMismatch  = errors.New("solc version mismatch")
)

// The output values of solc.
var combinedOutputs = []string{"abi", "bin", "bin-runtime"}

var versionRegexp = regexp.MustCompile(`Version:\s*([0-9]+\.[0-9]+\.[0-9]+)`)

// CompilerConfigurations are the default parameters of the compile pipeline.
var CompilerConfigurations = config.DefaultConfig{
	Title: "Compiler",
	Parameters: map[string]interface{}{
		"DEPLOYER_SOURCE":       "AuthContract.sol",
		"DEPLOYER_CONTRACT":     "AuthContract",
		"DEPLOYER_OUT_DIR":      ".",
		"DEPLOYER_SOLC_PATH":    "solc",
		"DEPLOYER_SOLC_VERSION": "0.8.20",
	},
}

// Runner executes the compiler with the arguments.
// The stdin is passed as the standard input of the process.
type Runner interface {
	Run(ctx context.Context, stdin []byte, args ...string) ([]byte, error)
}

// ExecRunner runs the binary found at the Path
type ExecRunner struct {
	Path string
}

// Run the binary. On failure, the standard error output is included into the error.
func (runner ExecRunner) Run(ctx context.Context, stdin []byte, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, runner.Path, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s %s: %w: %s", runner.Path, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}

	return stdout.Bytes(), nil
}

// Solc is the solidity compiler of the exact version
type Solc struct {
	runner  Runner
	version *version.Version
	logger  *log.Logger
}

// New compiler. It checks that the compiler version matches the required one.
// The required version is either the exact version "0.8.20",
// or the constraint like ">= 0.8.0, < 0.9.0".
func New(ctx context.Context, runner Runner, required string, parent *log.Logger) (*Solc, error) {
	logger := parent.Child("compiler")

	solc := &Solc{
		runner: runner,
		logger: logger,
	}

	current, err := solc.Version(ctx)
	if err != nil {
		return nil, fmt.Errorf("solc.Version: %w", err)
	}

	constraint, err := requiredConstraint(required)
	if err != nil {
		return nil, fmt.Errorf("requiredConstraint('%s'): %w", required, err)
	}
	if !constraint.Check(current) {
		return nil, fmt.Errorf("%w: installed %s, required %s", ErrVersionMismatch, current, constraint)
	}

	solc.version = current
	logger.Info("solidity compiler", "version", current.String())

	return solc, nil
}

// requiredConstraint converts the version to the "= version" constraint.
func requiredConstraint(required string) (version.Constraints, error) {
	required = strings.TrimSpace(required)
	if len(required) == 0 {
		return nil, errors.New("empty version")
	}
	if exact, err := version.NewVersion(required); err == nil {
		return version.NewConstraint("= " + exact.String())
	}
	return version.NewConstraint(required)
}

// Version of the installed compiler
func (solc *Solc) Version(ctx context.Context) (*version.Version, error) {
	output, err := solc.runner.Run(ctx, nil, "--version")
	if err != nil {
		return nil, fmt.Errorf("runner.Run: %w", err)
	}

	matches := versionRegexp.FindSubmatch(output)
	if len(matches) != 2 {
		return nil, fmt.Errorf("no version in the output: %s", strings.TrimSpace(string(output)))
	}

	current, err := version.NewVersion(string(matches[1]))
	if err != nil {
		return nil, fmt.Errorf("version.NewVersion('%s'): %w", matches[1], err)
	}
	return current, nil
}

// Compile the source file. Returns the contracts by their name in the solc output.
func (solc *Solc) Compile(ctx context.Context, sourcePath string) (map[string]*eth_compiler.Contract, error) {
	source, err := os.ReadFile(sourcePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: '%s'", ErrSourceNotFound, sourcePath)
		}
		return nil, fmt.Errorf("os.ReadFile('%s'): %w", sourcePath, err)
	}

	solc.logger.Info("compiling", "source", sourcePath)

	options := []string{"--combined-json", strings.Join(combinedOutputs, ","), "-"}
	output, err := solc.runner.Run(ctx, source, options...)
	if err != nil {
		return nil, fmt.Errorf("compilation error: %w", err)
	}

	versionStr := ""
	if solc.version != nil {
		versionStr = solc.version.String()
	}
	contracts, err := eth_compiler.ParseCombinedJSON(output, string(source), versionStr, versionStr, strings.Join(options, " "))
	if err != nil {
		return nil, fmt.Errorf("compiler.ParseCombinedJSON: %w", err)
	}

	return contracts, nil
}

// Lookup the contract by its name in the compiled output.
// If the contract is missing, then the error lists the available contracts.
func Lookup(contracts map[string]*eth_compiler.Contract, name string) (*eth_compiler.Contract, error) {
	key := name
	if !strings.HasPrefix(key, StdinPrefix) {
		key = StdinPrefix + name
	}

	contract, ok := contracts[key]
	if !ok {
		return nil, fmt.Errorf("%w: '%s', available contracts: %v", ErrContractNotFound, key, Names(contracts))
	}

	return contract, nil
}

// Names of the contracts sorted alphabetically
func Names(contracts map[string]*eth_compiler.Contract) []string {
	names := make([]string, 0, len(contracts))
	for name := range contracts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Artifact of the compiled contract.
func Artifact(contract *eth_compiler.Contract, name string) (*artifact.Artifact, error) {
	name = strings.TrimPrefix(name, StdinPrefix)

	compiled, err := artifact.New(name, contract.Info.AbiDefinition, contract.Code)
	if err != nil {
		return nil, fmt.Errorf("artifact.New: %w", err)
	}
	return compiled, nil
}

// CompileArtifact is the compile pipeline: compile the source, find the contract,
// and return it as an artifact.
func (solc *Solc) CompileArtifact(ctx context.Context, sourcePath string, name string) (*artifact.Artifact, error) {
	contracts, err := solc.Compile(ctx, sourcePath)
	if err != nil {
		return nil, err
	}

	contract, err := Lookup(contracts, name)
	if err != nil {
		return nil, err
	}

	compiled, err := Artifact(contract, name)
	if err != nil {
		return nil, err
	}
	solc.logger.Info("compiled", "contract", compiled.Name, "bytecode_size", len(compiled.Bytecode)/2)

	return compiled, nil
}
