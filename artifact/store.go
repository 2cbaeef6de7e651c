package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	eth_common "github.com/ethereum/go-ethereum/common"
)

// AddressFile keeps the address of the deployed smartcontract
const AddressFile = "contract_address.txt"

// ErrArtifactNotFound is returned if the artifact files are missing.
// Run the compile command first.
var ErrArtifactNotFound = errors.New("artifact not found")

// Store reads and writes the artifacts in the directory
type Store struct {
	dir string
}

// NewStore creates the directory if it doesn't exist.
func NewStore(dir string) (*Store, error) {
	if len(dir) == 0 {
		dir = "."
	}
	if err := makeDir(dir); err != nil {
		return nil, fmt.Errorf("makeDir: %w", err)
	}

	return &Store{dir: dir}, nil
}

// Dir of the store
func (store *Store) Dir() string {
	return store.dir
}

// AbiPath is the path of the abi file of the contract
func (store *Store) AbiPath(name string) string {
	return filepath.Join(store.dir, name+"_abi.json")
}

// BytecodePath is the path of the bytecode file of the contract
func (store *Store) BytecodePath(name string) string {
	return filepath.Join(store.dir, name+"_bytecode.txt")
}

// AddressPath is the path of the deployed contract address
func (store *Store) AddressPath() string {
	return filepath.Join(store.dir, AddressFile)
}

// Write the abi and the bytecode files. Existing files are truncated.
func (store *Store) Write(artifact *Artifact) error {
	if err := artifact.Validate(); err != nil {
		return fmt.Errorf("artifact.Validate: %w", err)
	}

	if err := os.WriteFile(store.AbiPath(artifact.Name), artifact.Abi, 0644); err != nil {
		return fmt.Errorf("os.WriteFile('%s'): %w", store.AbiPath(artifact.Name), err)
	}
	if err := os.WriteFile(store.BytecodePath(artifact.Name), []byte(trimHexPrefix(artifact.Bytecode)), 0644); err != nil {
		return fmt.Errorf("os.WriteFile('%s'): %w", store.BytecodePath(artifact.Name), err)
	}

	return nil
}

// Read the artifact of the contract by its name
func (store *Store) Read(name string) (*Artifact, error) {
	rawAbi, err := readFile(store.AbiPath(name))
	if err != nil {
		return nil, err
	}
	bytecode, err := readFile(store.BytecodePath(name))
	if err != nil {
		return nil, err
	}

	artifact := &Artifact{
		Name:     name,
		Abi:      rawAbi,
		Bytecode: trimHexPrefix(string(bytecode)),
	}
	if err := artifact.Validate(); err != nil {
		return nil, fmt.Errorf("artifact.Validate: %w", err)
	}

	return artifact, nil
}

// WriteAddress writes the deployed contract address as a plain string
func (store *Store) WriteAddress(address eth_common.Address) error {
	if err := os.WriteFile(store.AddressPath(), []byte(address.Hex()), 0644); err != nil {
		return fmt.Errorf("os.WriteFile('%s'): %w", store.AddressPath(), err)
	}
	return nil
}

// ReadAddress returns the deployed contract address
func (store *Store) ReadAddress() (eth_common.Address, error) {
	raw, err := readFile(store.AddressPath())
	if err != nil {
		return eth_common.Address{}, err
	}

	address := strings.TrimSpace(string(raw))
	if !eth_common.IsHexAddress(address) {
		return eth_common.Address{}, fmt.Errorf("'%s' in %s is not an address", address, store.AddressPath())
	}
	return eth_common.HexToAddress(address), nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: '%s'", ErrArtifactNotFound, path)
		}
		return nil, fmt.Errorf("os.ReadFile('%s'): %w", path, err)
	}
	return data, nil
}

// makeDir creates all the directories, including the nested ones.
// If the directories exist, it will skip it.
// If the path is a file, it will throw an error.
func makeDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(path, 0755); err != nil {
				return fmt.Errorf("failed to create a directory at '%s' path: %w", path, err)
			}
			return nil
		}
		return fmt.Errorf("failed to read '%s': %w", path, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("the path '%s' is not a directory", path)
	}

	return nil
}
