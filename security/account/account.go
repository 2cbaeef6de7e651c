// Package account handles the signing identity of the deployer.
//
// The identity is an ECDSA key pair. The address is derived from it the same way
// as in Ethereum and other EVM based blockchains.
package account

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	eth_common "github.com/ethereum/go-ethereum/common"
	eth_types "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrMissingKey is returned if the private key is empty
var ErrMissingKey = errors.New("missing private key")

// Account keeps the private key and the address derived from it.
type Account struct {
	address    eth_common.Address
	privateKey *ecdsa.PrivateKey
}

// FromHex creates an account from the hex encoded private key.
// The key may have the 0x prefix.
func FromHex(key string) (*Account, error) {
	key = strings.TrimSpace(key)
	key = strings.TrimPrefix(strings.TrimPrefix(key, "0x"), "0X")
	if len(key) == 0 {
		return nil, ErrMissingKey
	}

	privateKey, err := crypto.HexToECDSA(key)
	if err != nil {
		return nil, fmt.Errorf("crypto.HexToECDSA: %w", err)
	}

	return New(privateKey), nil
}

// New account from the private key
func New(privateKey *ecdsa.PrivateKey) *Account {
	return &Account{
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		privateKey: privateKey,
	}
}

// Address of the account
func (account *Account) Address() eth_common.Address {
	return account.address
}

// SignTx signs the transaction for the given chain.
// The signer accepts every transaction type of the latest fork, with EIP-155 replay protection.
func (account *Account) SignTx(tx *eth_types.Transaction, chainId *big.Int) (*eth_types.Transaction, error) {
	if chainId == nil || chainId.Sign() <= 0 {
		return nil, fmt.Errorf("invalid chain id %v", chainId)
	}

	signer := eth_types.LatestSignerForChainID(chainId)
	signed, err := eth_types.SignTx(tx, signer, account.privateKey)
	if err != nil {
		return nil, fmt.Errorf("types.SignTx: %w", err)
	}

	return signed, nil
}
