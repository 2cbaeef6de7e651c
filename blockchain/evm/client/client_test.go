package client

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/blocklords/authdeploy/log"
	"github.com/ethereum/go-ethereum"
	eth_common "github.com/ethereum/go-ethereum/common"
	eth_types "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/suite"
)

// flakyBackend fails the given number of times before replying
type flakyBackend struct {
	failures int
	calls    int
	sent     int
	receipt  *eth_types.Receipt
}

func (b *flakyBackend) fail() error {
	b.calls++
	if b.calls <= b.failures {
		return errors.New("503 service unavailable")
	}
	return nil
}

func (b *flakyBackend) ChainID(_ context.Context) (*big.Int, error) {
	if err := b.fail(); err != nil {
		return nil, err
	}
	return big.NewInt(80002), nil
}

func (b *flakyBackend) BalanceAt(_ context.Context, _ eth_common.Address, _ *big.Int) (*big.Int, error) {
	if err := b.fail(); err != nil {
		return nil, err
	}
	return big.NewInt(1_000), nil
}

func (b *flakyBackend) PendingNonceAt(_ context.Context, _ eth_common.Address) (uint64, error) {
	if err := b.fail(); err != nil {
		return 0, err
	}
	return 7, nil
}

func (b *flakyBackend) SuggestGasPrice(_ context.Context) (*big.Int, error) {
	if err := b.fail(); err != nil {
		return nil, err
	}
	return big.NewInt(30_000_000_000), nil
}

func (b *flakyBackend) EstimateGas(_ context.Context, _ ethereum.CallMsg) (uint64, error) {
	if err := b.fail(); err != nil {
		return 0, err
	}
	return 100_000, nil
}

func (b *flakyBackend) SendTransaction(_ context.Context, _ *eth_types.Transaction) error {
	b.sent++
	return b.fail()
}

func (b *flakyBackend) TransactionReceipt(_ context.Context, _ eth_common.Hash) (*eth_types.Receipt, error) {
	if b.receipt == nil {
		return nil, ethereum.NotFound
	}
	return b.receipt, nil
}

func (b *flakyBackend) CodeAt(_ context.Context, _ eth_common.Address, _ *big.Int) ([]byte, error) {
	if err := b.fail(); err != nil {
		return nil, err
	}
	return []byte{0x00}, nil
}

type TestClientSuite struct {
	suite.Suite
	logger *log.Logger
}

func (suite *TestClientSuite) SetupTest() {
	logger, err := log.New("client_suite", false)
	suite.Require().NoError(err)
	suite.logger = logger
}

func (suite *TestClientSuite) newClient(backend Backend) *Client {
	client := New(backend, suite.logger)
	client.SetRetry(DefaultAttempts, time.Millisecond)
	return client
}

func (suite *TestClientSuite) TestRetry() {
	backend := &flakyBackend{failures: 2}
	client := suite.newClient(backend)

	chainId, err := client.ChainID(context.Background())
	suite.Require().NoError(err)
	suite.Require().Equal(int64(80002), chainId.Int64())
	suite.Require().Equal(3, backend.calls)

	// too many failures
	backend = &flakyBackend{failures: DefaultAttempts}
	client = suite.newClient(backend)
	_, err = client.Balance(context.Background(), eth_common.Address{})
	suite.Require().Error(err)
	suite.Require().Equal(DefaultAttempts, backend.calls)

	backend = &flakyBackend{}
	client = suite.newClient(backend)
	nonce, err := client.Nonce(context.Background(), eth_common.Address{})
	suite.Require().NoError(err)
	suite.Require().Equal(uint64(7), nonce)

	gasPrice, err := client.GasPrice(context.Background())
	suite.Require().NoError(err)
	suite.Require().Equal(int64(30_000_000_000), gasPrice.Int64())

	code, err := client.Code(context.Background(), eth_common.Address{})
	suite.Require().NoError(err)
	suite.Require().Len(code, 1)
}

func (suite *TestClientSuite) TestNoRetry() {
	// the transaction is sent once, even if it failed
	backend := &flakyBackend{failures: 1}
	client := suite.newClient(backend)

	tx := eth_types.NewContractCreation(0, big.NewInt(0), 21_000, big.NewInt(1), nil)
	err := client.Send(context.Background(), tx)
	suite.Require().Error(err)
	suite.Require().Equal(1, backend.sent)

	// the failed estimation means the execution reverts
	backend = &flakyBackend{failures: 1}
	client = suite.newClient(backend)
	_, err = client.EstimateGas(context.Background(), ethereum.CallMsg{})
	suite.Require().Error(err)
	suite.Require().Equal(1, backend.calls)
}

func (suite *TestClientSuite) TestCancel() {
	backend := &flakyBackend{failures: 10}
	client := New(backend, suite.logger)
	client.SetRetry(5, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.ChainID(ctx)
	suite.Require().ErrorIs(err, context.Canceled)
}

func (suite *TestClientSuite) TestWaitMined() {
	backend := &flakyBackend{}
	client := suite.newClient(backend)
	client.SetReceiptTimeout(50 * time.Millisecond)

	tx := eth_types.NewContractCreation(0, big.NewInt(0), 21_000, big.NewInt(1), nil)

	// never mined
	_, err := client.WaitMined(context.Background(), tx)
	suite.Require().ErrorIs(err, context.DeadlineExceeded)

	backend.receipt = &eth_types.Receipt{Status: eth_types.ReceiptStatusSuccessful, TxHash: tx.Hash()}
	receipt, err := client.WaitMined(context.Background(), tx)
	suite.Require().NoError(err)
	suite.Require().Equal(tx.Hash(), receipt.TxHash)
}

func TestClient(t *testing.T) {
	suite.Run(t, new(TestClientSuite))
}
