// Package simulated is the in-memory blockchain for the dry run deployment.
//
// The chain mines a block right after every transaction.
package simulated

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind/backends"
	eth_common "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	eth_types "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
)

// GasLimit of the simulated blocks
const GasLimit uint64 = 30_000_000

// Backend is the simulated chain that implements client.Backend
type Backend struct {
	*backends.SimulatedBackend
	chainId *big.Int
}

// New chain where the accounts are funded with the given balances in wei.
func New(balances map[eth_common.Address]*big.Int) *Backend {
	alloc := core.GenesisAlloc{}
	for address, balance := range balances {
		alloc[address] = core.GenesisAccount{Balance: balance}
	}

	return &Backend{
		SimulatedBackend: backends.NewSimulatedBackend(alloc, GasLimit),
		chainId:          params.AllEthashProtocolChanges.ChainID,
	}
}

// ChainID of the simulated chain
func (b *Backend) ChainID(_ context.Context) (*big.Int, error) {
	return new(big.Int).Set(b.chainId), nil
}

// SendTransaction adds the transaction to the pending block, then mines it.
func (b *Backend) SendTransaction(ctx context.Context, tx *eth_types.Transaction) error {
	if err := b.SimulatedBackend.SendTransaction(ctx, tx); err != nil {
		return err
	}
	b.Commit()
	return nil
}
