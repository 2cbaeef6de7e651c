// Package registry keeps the history of the deployments in the mysql database.
//
// The registry is optional, it's turned on by DEPLOYER_DATABASE_ENABLED.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/blocklords/authdeploy/deployer"
	eth_common "github.com/ethereum/go-ethereum/common"
)

var ErrNotFound = errors.New("deployment not found")

const createTable = `CREATE TABLE IF NOT EXISTS deployment (
	id INT UNSIGNED NOT NULL AUTO_INCREMENT,
	chain_id BIGINT UNSIGNED NOT NULL,
	contract VARCHAR(255) NOT NULL,
	address CHAR(42) NOT NULL,
	tx_hash CHAR(66) NOT NULL,
	block_number BIGINT UNSIGNED NOT NULL,
	gas_used BIGINT UNSIGNED NOT NULL,
	deployer CHAR(42) NOT NULL,
	deployed_at DATETIME NOT NULL,
	PRIMARY KEY (id),
	UNIQUE KEY tx_hash (tx_hash),
	KEY chain_contract (chain_id, contract)
)`

// Registry of the deployments
type Registry struct {
	db *Database
}

// New registry over the database. Creates the table if it doesn't exist.
func New(ctx context.Context, db *Database) (*Registry, error) {
	if _, err := db.Exec(ctx, createTable); err != nil {
		return nil, fmt.Errorf("create table: %w", err)
	}
	return &Registry{db: db}, nil
}

// Save the deployment
func (registry *Registry) Save(ctx context.Context, deployment *deployer.Deployment) error {
	_, err := registry.db.Exec(ctx,
		`INSERT INTO deployment (chain_id, contract, address, tx_hash, block_number, gas_used, deployer, deployed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		deployment.ChainId,
		deployment.Contract,
		deployment.Address.Hex(),
		deployment.TxHash.Hex(),
		deployment.BlockNumber,
		deployment.GasUsed,
		deployment.Deployer.Hex(),
		deployment.DeployedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("db.Exec: %w", err)
	}
	return nil
}

// Latest deployment of the contract on the blockchain.
func (registry *Registry) Latest(ctx context.Context, chainId uint64, contract string) (*deployer.Deployment, error) {
	var address, txHash, deployerAddress string
	var deployedAt time.Time
	deployment := deployer.Deployment{}

	err := registry.db.QueryRow(ctx,
		`SELECT chain_id, contract, address, tx_hash, block_number, gas_used, deployer, deployed_at
		FROM deployment WHERE chain_id = ? AND contract = ? ORDER BY id DESC LIMIT 1`,
		[]interface{}{chainId, contract},
		&deployment.ChainId,
		&deployment.Contract,
		&address,
		&txHash,
		&deployment.BlockNumber,
		&deployment.GasUsed,
		&deployerAddress,
		&deployedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: '%s' on chain %d", ErrNotFound, contract, chainId)
	} else if err != nil {
		return nil, fmt.Errorf("db.QueryRow: %w", err)
	}

	deployment.Address = eth_common.HexToAddress(address)
	deployment.TxHash = eth_common.HexToHash(txHash)
	deployment.Deployer = eth_common.HexToAddress(deployerAddress)
	deployment.DeployedAt = deployedAt.UTC()

	return &deployment, nil
}
