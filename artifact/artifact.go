// Package artifact keeps the compiled smartcontract: its abi and bytecode.
//
// The artifact is the only link between the compile and deploy pipelines.
// It is stored as two files in the output directory:
//
//	<Name>_abi.json      the abi as a json array
//	<Name>_bytecode.txt  the creation bytecode in hex without 0x prefix
package artifact

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var (
	ErrEmptyAbi      = errors.New("empty abi")
	ErrEmptyBytecode = errors.New("empty bytecode")
)

// Artifact is the compiled smartcontract
type Artifact struct {
	Name     string          `json:"name"`
	Abi      json.RawMessage `json:"abi"`
	Bytecode string          `json:"bytecode"` // hex without 0x prefix
}

// New artifact from the abi definition and the bytecode.
// The bytecode may have a 0x prefix, it is removed.
func New(name string, abiDefinition interface{}, bytecode string) (*Artifact, error) {
	if abiDefinition == nil {
		return nil, fmt.Errorf("%w for %s", ErrEmptyAbi, name)
	}
	rawAbi, err := json.MarshalIndent(abiDefinition, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("json.MarshalIndent(abi): %w", err)
	}

	artifact := &Artifact{
		Name:     name,
		Abi:      rawAbi,
		Bytecode: trimHexPrefix(bytecode),
	}
	if err := artifact.Validate(); err != nil {
		return nil, err
	}

	return artifact, nil
}

// Validate checks that the abi is a valid json abi and the bytecode is a non-empty hex.
func (artifact *Artifact) Validate() error {
	if len(strings.TrimSpace(artifact.Name)) == 0 {
		return errors.New("missing contract name")
	}
	if len(bytes.TrimSpace(artifact.Abi)) == 0 {
		return fmt.Errorf("%w for %s", ErrEmptyAbi, artifact.Name)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(artifact.Abi, &items); err != nil {
		return fmt.Errorf("the abi of %s is not a json array: %w", artifact.Name, err)
	}
	if _, err := artifact.Parse(); err != nil {
		return err
	}
	if _, err := artifact.Code(); err != nil {
		return err
	}

	return nil
}

// Parse the abi with the geth abi parser
func (artifact *Artifact) Parse() (abi.ABI, error) {
	parsed, err := abi.JSON(bytes.NewReader(artifact.Abi))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("abi.JSON for %s: %w", artifact.Name, err)
	}
	return parsed, nil
}

// Code returns the bytecode as bytes
func (artifact *Artifact) Code() ([]byte, error) {
	bytecode := trimHexPrefix(artifact.Bytecode)
	if len(bytecode) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrEmptyBytecode, artifact.Name)
	}

	code, err := hexutil.Decode("0x" + bytecode)
	if err != nil {
		return nil, fmt.Errorf("hexutil.Decode(%s bytecode): %w", artifact.Name, err)
	}
	return code, nil
}

// Methods returns the sorted signatures of the abi methods.
func (artifact *Artifact) Methods() ([]string, error) {
	parsed, err := artifact.Parse()
	if err != nil {
		return nil, err
	}

	methods := make([]string, 0, len(parsed.Methods))
	for _, method := range parsed.Methods {
		methods = append(methods, method.Sig)
	}
	sort.Strings(methods)

	return methods, nil
}

func trimHexPrefix(str string) string {
	str = strings.TrimSpace(str)
	if strings.HasPrefix(str, "0x") || strings.HasPrefix(str, "0X") {
		return str[2:]
	}
	return str
}
