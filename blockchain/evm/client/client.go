// Package client is the EVM blockchain client of the deployer.
//
// Any read from the blockchain is bounded by a timeout and repeated a few times on failure.
// The transaction submission is never repeated.
package client

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/blocklords/authdeploy/config"
	"github.com/blocklords/authdeploy/log"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	eth_common "github.com/ethereum/go-ethereum/common"
	eth_types "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// DefaultAttempts is the number of tries for the reading requests
const DefaultAttempts = 3

// Backend is the subset of the ethclient.Client used by the deployer.
// The simulated backends are plugged in with it.
type Backend interface {
	bind.DeployBackend

	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account eth_common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account eth_common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *eth_types.Transaction) error
}

// ClientConfigurations are the default parameters of the client.
var ClientConfigurations = config.DefaultConfig{
	Title: "Client",
	Parameters: map[string]interface{}{
		// Polygon Amoy testnet
		"DEPLOYER_RPC_URL":         "https://rpc-amoy.polygon.technology",
		"DEPLOYER_RPC_TIMEOUT":     30,
		"DEPLOYER_RECEIPT_TIMEOUT": 120,
	},
}

// Client wraps the backend with the timeouts and repetitions
type Client struct {
	backend        Backend
	logger         *log.Logger
	timeout        time.Duration // per reading request
	receiptTimeout time.Duration
	attempts       int
	retryDelay     time.Duration
}

// Dial the JSON-RPC endpoint defined in the configuration
func Dial(ctx context.Context, appConfig *config.Config, parent *log.Logger) (*Client, error) {
	url := appConfig.GetString("DEPLOYER_RPC_URL")
	if len(url) == 0 {
		return nil, errors.New("missing 'DEPLOYER_RPC_URL'")
	}
	timeout := appConfig.GetDuration("DEPLOYER_RPC_TIMEOUT")
	if timeout == 0 {
		return nil, errors.New("the 'DEPLOYER_RPC_TIMEOUT' can not be zero")
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	backend, err := ethclient.DialContext(dialCtx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to blockchain at %s: %w", url, err)
	}

	client := New(backend, parent.Child("client", "url", url))
	client.timeout = timeout
	if receiptTimeout := appConfig.GetDuration("DEPLOYER_RECEIPT_TIMEOUT"); receiptTimeout > 0 {
		client.receiptTimeout = receiptTimeout
	}

	// dialing over http doesn't connect, the first request does
	if _, err := client.ChainID(ctx); err != nil {
		backend.Close()
		return nil, fmt.Errorf("failed to connect to blockchain at %s: %w", url, err)
	}

	return client, nil
}

// New client over the backend with the default timeouts
func New(backend Backend, logger *log.Logger) *Client {
	return &Client{
		backend:        backend,
		logger:         logger,
		timeout:        30 * time.Second,
		receiptTimeout: 120 * time.Second,
		attempts:       DefaultAttempts,
		retryDelay:     time.Second,
	}
}

// SetRetry overwrites the number of attempts and the delay between them
func (c *Client) SetRetry(attempts int, delay time.Duration) {
	if attempts < 1 {
		attempts = 1
	}
	c.attempts = attempts
	c.retryDelay = delay
}

// SetReceiptTimeout overwrites the duration of awaiting for the transaction to be mined
func (c *Client) SetReceiptTimeout(timeout time.Duration) {
	c.receiptTimeout = timeout
}

// Close the connection if the backend is the ethclient
func (c *Client) Close() {
	if eth, ok := c.backend.(*ethclient.Client); ok {
		eth.Close()
	}
}

// retry calls the request until it succeeds or attempts are over.
// The not found errors are returned immediately.
func (c *Client) retry(ctx context.Context, title string, request func(ctx context.Context) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err = request(requestCtx)
		cancel()
		if err == nil || errors.Is(err, ethereum.NotFound) {
			return err
		}
		if attempt >= c.attempts {
			return fmt.Errorf("%s after %d attempts: %w", title, attempt, err)
		}

		c.logger.Warn(title, "attempts left", c.attempts-attempt, "error", err)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", title, ctx.Err())
		case <-time.After(c.retryDelay):
		}
	}
}

// ChainID returns the chain id of the network for the transaction signing
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	var chainId *big.Int
	err := c.retry(ctx, "chain id", func(ctx context.Context) error {
		var err error
		chainId, err = c.backend.ChainID(ctx)
		return err
	})
	return chainId, err
}

// Balance of the account at the latest block
func (c *Client) Balance(ctx context.Context, account eth_common.Address) (*big.Int, error) {
	var balance *big.Int
	err := c.retry(ctx, "balance", func(ctx context.Context) error {
		var err error
		balance, err = c.backend.BalanceAt(ctx, account, nil)
		return err
	})
	return balance, err
}

// Nonce returns the next nonce of the account including the pending transactions
func (c *Client) Nonce(ctx context.Context, account eth_common.Address) (uint64, error) {
	var nonce uint64
	err := c.retry(ctx, "pending nonce", func(ctx context.Context) error {
		var err error
		nonce, err = c.backend.PendingNonceAt(ctx, account)
		return err
	})
	return nonce, err
}

// GasPrice suggested by the node
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	var gasPrice *big.Int
	err := c.retry(ctx, "gas price", func(ctx context.Context) error {
		var err error
		gasPrice, err = c.backend.SuggestGasPrice(ctx)
		return err
	})
	return gasPrice, err
}

// EstimateGas of the message.
// Estimation is not repeated, since the failure means the execution reverts.
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	gas, err := c.backend.EstimateGas(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("backend.EstimateGas: %w", err)
	}
	return gas, nil
}

// Code at the address at the latest block
func (c *Client) Code(ctx context.Context, address eth_common.Address) ([]byte, error) {
	var code []byte
	err := c.retry(ctx, "code", func(ctx context.Context) error {
		var err error
		code, err = c.backend.CodeAt(ctx, address, nil)
		return err
	})
	return code, err
}

// Send the signed transaction. It is called once.
func (c *Client) Send(ctx context.Context, tx *eth_types.Transaction) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.backend.SendTransaction(ctx, tx); err != nil {
		return fmt.Errorf("backend.SendTransaction: %w", err)
	}
	return nil
}

// WaitMined blocks until the transaction is mined or the receipt timeout expires.
func (c *Client) WaitMined(ctx context.Context, tx *eth_types.Transaction) (*eth_types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.receiptTimeout)
	defer cancel()

	c.logger.Info("waiting for the transaction to be mined", "hash", tx.Hash().Hex(), "timeout", c.receiptTimeout)
	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("bind.WaitMined(%s): %w", tx.Hash().Hex(), err)
	}
	return receipt, nil
}
