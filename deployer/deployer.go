// Package deployer deploys the compiled smartcontract.
//
// The deployment is a single contract creation transaction:
//
//	balance check -> constructor data -> nonce -> gas -> sign -> send -> receipt -> code check
//
// The failed deployment is never repeated, neither the gas price is bumped.
package deployer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/blocklords/authdeploy/artifact"
	"github.com/blocklords/authdeploy/blockchain/evm/client"
	"github.com/blocklords/authdeploy/blockchain/evm/util"
	"github.com/blocklords/authdeploy/config"
	"github.com/blocklords/authdeploy/log"
	"github.com/blocklords/authdeploy/security/account"
	"github.com/ethereum/go-ethereum"
	eth_common "github.com/ethereum/go-ethereum/common"
	eth_types "github.com/ethereum/go-ethereum/core/types"
)

var (
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrConstructorArguments = errors.New("constructor arguments are not supported")
	ErrDeploymentReverted   = errors.New("deployment transaction reverted")
	ErrNoCode               = errors.New("no code at the contract address")
)

// DeployerConfigurations are the default parameters of the deployment transaction.
var DeployerConfigurations = config.DefaultConfig{
	Title: "Deployer",
	Parameters: map[string]interface{}{
		"DEPLOYER_GAS_LIMIT":       uint64(2_000_000),
		"DEPLOYER_GAS_PRICE_GWEI":  uint64(50),
		"DEPLOYER_MIN_BALANCE_WEI": "100000000000000000", // 0.1 of the native coin
	},
}

// Parameters of the deployment transaction
type Parameters struct {
	GasLimit   uint64   // if 0, then the gas is estimated
	GasPrice   *big.Int // in wei, if nil, then the gas price is suggested by the node
	MinBalance *big.Int // in wei
}

// Deployment is the result of the successful deployment
type Deployment struct {
	Contract    string             `json:"contract"`
	Address     eth_common.Address `json:"address"`
	TxHash      eth_common.Hash    `json:"tx_hash"`
	BlockNumber uint64             `json:"block_number"`
	GasUsed     uint64             `json:"gas_used"`
	Deployer    eth_common.Address `json:"deployer"`
	ChainId     uint64             `json:"chain_id"`
	DeployedAt  time.Time          `json:"deployed_at"`
}

// Deployer sends the contract creation transaction from the account
type Deployer struct {
	client     *client.Client
	account    *account.Account
	parameters Parameters
	logger     *log.Logger
}

// NewParameters reads the transaction parameters from the configuration.
// Call it after setting DeployerConfigurations as the default parameters.
func NewParameters(appConfig *config.Config) (Parameters, error) {
	parameters := Parameters{
		GasLimit: appConfig.GetUint64("DEPLOYER_GAS_LIMIT"),
	}

	if gwei := appConfig.GetUint64("DEPLOYER_GAS_PRICE_GWEI"); gwei > 0 {
		parameters.GasPrice = util.GweiToWei(gwei)
	}

	minBalance, ok := new(big.Int).SetString(strings.TrimSpace(appConfig.GetString("DEPLOYER_MIN_BALANCE_WEI")), 10)
	if !ok || minBalance.Sign() < 0 {
		return Parameters{}, fmt.Errorf("the 'DEPLOYER_MIN_BALANCE_WEI' is not a positive number: '%s'", appConfig.GetString("DEPLOYER_MIN_BALANCE_WEI"))
	}
	parameters.MinBalance = minBalance

	return parameters, nil
}

// New deployer
func New(c *client.Client, deployerAccount *account.Account, parameters Parameters, parent *log.Logger) *Deployer {
	if parameters.MinBalance == nil {
		parameters.MinBalance = big.NewInt(0)
	}

	return &Deployer{
		client:     c,
		account:    deployerAccount,
		parameters: parameters,
		logger:     parent.Child("deployer", "deployer", deployerAccount.Address().Hex()),
	}
}

// Deploy the artifact and wait until its code appears on the blockchain.
func (d *Deployer) Deploy(ctx context.Context, compiled *artifact.Artifact) (*Deployment, error) {
	from := d.account.Address()
	d.logger.Info("deploying", "contract", compiled.Name)

	chainId, err := d.client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("client.ChainID: %w", err)
	}

	balance, err := d.client.Balance(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("client.Balance: %w", err)
	}
	d.logger.Info("account balance", "balance", util.FormatEther(balance), "chain_id", chainId)
	if balance.Cmp(d.parameters.MinBalance) < 0 {
		return nil, fmt.Errorf("%w: %s, need at least %s", ErrInsufficientBalance, util.FormatEther(balance), util.FormatEther(d.parameters.MinBalance))
	}

	data, err := CreationData(compiled)
	if err != nil {
		return nil, fmt.Errorf("CreationData: %w", err)
	}

	nonce, err := d.client.Nonce(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("client.Nonce: %w", err)
	}

	gasPrice := d.parameters.GasPrice
	if gasPrice == nil {
		gasPrice, err = d.client.GasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("client.GasPrice: %w", err)
		}
	}

	gasLimit := d.parameters.GasLimit
	if gasLimit == 0 {
		gasLimit, err = d.client.EstimateGas(ctx, ethereum.CallMsg{
			From:     from,
			GasPrice: gasPrice,
			Data:     data,
		})
		if err != nil {
			return nil, fmt.Errorf("client.EstimateGas: %w", err)
		}
	}

	cost := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(gasLimit))
	if balance.Cmp(cost) < 0 {
		return nil, fmt.Errorf("%w: %s, the transaction may cost up to %s", ErrInsufficientBalance, util.FormatEther(balance), util.FormatEther(cost))
	}

	tx := eth_types.NewContractCreation(nonce, big.NewInt(0), gasLimit, gasPrice, data)
	signed, err := d.account.SignTx(tx, chainId)
	if err != nil {
		return nil, fmt.Errorf("account.SignTx: %w", err)
	}

	if err := d.client.Send(ctx, signed); err != nil {
		return nil, fmt.Errorf("transaction failed: %w", err)
	}
	d.logger.Info("transaction sent", "hash", signed.Hash().Hex(), "nonce", nonce, "gas", gasLimit, "gas_price", gasPrice)

	receipt, err := d.client.WaitMined(ctx, signed)
	if err != nil {
		return nil, fmt.Errorf("client.WaitMined: %w", err)
	}
	if receipt.Status != eth_types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: %s in block %d", ErrDeploymentReverted, signed.Hash().Hex(), receipt.BlockNumber)
	}

	code, err := d.client.Code(ctx, receipt.ContractAddress)
	if err != nil {
		return nil, fmt.Errorf("client.Code: %w", err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoCode, receipt.ContractAddress.Hex())
	}

	deployment := &Deployment{
		Contract:    compiled.Name,
		Address:     receipt.ContractAddress,
		TxHash:      signed.Hash(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
		Deployer:    from,
		ChainId:     chainId.Uint64(),
		DeployedAt:  time.Now().UTC(),
	}
	d.logger.Info("contract deployed", "address", deployment.Address.Hex(), "block", deployment.BlockNumber, "gas_used", deployment.GasUsed)

	return deployment, nil
}

// CreationData is the bytecode followed by the abi encoded constructor arguments.
// Only the constructors without arguments are supported.
func CreationData(compiled *artifact.Artifact) ([]byte, error) {
	code, err := compiled.Code()
	if err != nil {
		return nil, err
	}
	parsed, err := compiled.Parse()
	if err != nil {
		return nil, err
	}

	if len(parsed.Constructor.Inputs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrConstructorArguments, parsed.Constructor.Sig)
	}
	arguments, err := parsed.Pack("")
	if err != nil {
		return nil, fmt.Errorf("abi.Pack(constructor): %w", err)
	}

	return append(code, arguments...), nil
}
