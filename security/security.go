// Package security provides the private key of the deployer.
//
// The key is never kept in the source code. It is read either from
// the environment variables (including .env files), or from the hashicorp vault.
//
// To read it from the vault, set DEPLOYER_SECRET_SOURCE=vault.
package security

import (
	"context"
	"fmt"

	"github.com/blocklords/authdeploy/config"
	"github.com/blocklords/authdeploy/log"
	"github.com/blocklords/authdeploy/security/account"
	"github.com/blocklords/authdeploy/security/vault"
)

const (
	EnvSource   = "env"
	VaultSource = "vault"
)

// Source returns the hex encoded private key
type Source interface {
	PrivateKey(ctx context.Context) (string, error)
}

// SecurityConfigurations are the default parameters of the security layer.
var SecurityConfigurations = config.DefaultConfig{
	Title: "Security",
	Parameters: map[string]interface{}{
		"DEPLOYER_SECRET_SOURCE": EnvSource,
		"DEPLOYER_PRIVATE_KEY":   nil,
	},
}

// Env reads the private key from DEPLOYER_PRIVATE_KEY
type Env struct {
	appConfig *config.Config
}

// PrivateKey returns account.ErrMissingKey if the variable is not set.
func (e *Env) PrivateKey(_ context.Context) (string, error) {
	if !e.appConfig.Exist("DEPLOYER_PRIVATE_KEY") {
		return "", fmt.Errorf("%w: set 'DEPLOYER_PRIVATE_KEY' environment variable", account.ErrMissingKey)
	}
	return e.appConfig.GetString("DEPLOYER_PRIVATE_KEY"), nil
}

// New source defined by DEPLOYER_SECRET_SOURCE
func New(appConfig *config.Config, logger *log.Logger) (Source, error) {
	appConfig.SetDefaults(SecurityConfigurations)

	source := appConfig.GetString("DEPLOYER_SECRET_SOURCE")
	switch source {
	case EnvSource:
		logger.Warn("the private key is read from the environment variables")
		return &Env{appConfig: appConfig}, nil
	case VaultSource:
		appConfig.SetDefaults(vault.VaultConfigurations)
		v, err := vault.New(appConfig, logger)
		if err != nil {
			return nil, fmt.Errorf("vault.New: %w", err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported 'DEPLOYER_SECRET_SOURCE' %q, expected %q or %q", source, EnvSource, VaultSource)
	}
}

// Account derives the signing account from the private key of the source.
func Account(ctx context.Context, source Source) (*account.Account, error) {
	privateKey, err := source.PrivateKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("source.PrivateKey: %w", err)
	}

	signer, err := account.FromHex(privateKey)
	if err != nil {
		return nil, fmt.Errorf("account.FromHex: %w", err)
	}
	return signer, nil
}
