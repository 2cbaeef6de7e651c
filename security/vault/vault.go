// Package vault reads the deployer's private key from the hashicorp vault.
package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blocklords/authdeploy/config"
	"github.com/blocklords/authdeploy/log"
	hashicorp "github.com/hashicorp/vault/api"
	"github.com/hashicorp/vault/api/auth/approle"
)

// ErrSecretNotFound is returned if the secret or its key is missing in the vault
var ErrSecretNotFound = errors.New("secret not found in vault")

// Vault is the wrapper around hashicorp vault client along with
// the Key-Value path of the private key.
type Vault struct {
	logger  *log.Logger
	client  *hashicorp.Client
	timeout time.Duration

	path   string // Key-Value v2 mount path
	secret string // secret name in the mount
	key    string // field in the secret

	// connection parameters
	approleRoleId    string
	approleSecretId  string
	approleMountPath string
}

// VaultConfigurations are setting the default configuration parameters.
//
// The values are the default values if it wasn't provided by the user
// Set the default value to nil, if the parameter is required from the user
var VaultConfigurations = config.DefaultConfig{
	Title: "Vault",
	Parameters: map[string]interface{}{
		"DEPLOYER_VAULT_HOST":               "localhost",
		"DEPLOYER_VAULT_PORT":               8200,
		"DEPLOYER_VAULT_HTTPS":              false,
		"DEPLOYER_VAULT_APPROLE_MOUNT_PATH": "approle",
		"DEPLOYER_VAULT_PATH":               "secret",
		"DEPLOYER_VAULT_SECRET":             "deployer",
		"DEPLOYER_VAULT_KEY":                "private_key",
		"DEPLOYER_VAULT_TIMEOUT":            10,
		"DEPLOYER_VAULT_APPROLE_ROLE_ID":    nil,
		"DEPLOYER_VAULT_APPROLE_SECRET_ID":  nil,
	},
}

// New vault client. The client is not authenticated until PrivateKey is called.
//
// Call it after setting VaultConfigurations as the default parameters.
func New(appConfig *config.Config, parent *log.Logger) (*Vault, error) {
	if appConfig == nil {
		return nil, errors.New("missing configuration")
	}
	// AppRole RoleID to log in to Vault
	if !appConfig.Exist("DEPLOYER_VAULT_APPROLE_ROLE_ID") {
		return nil, fmt.Errorf("missing 'DEPLOYER_VAULT_APPROLE_ROLE_ID' environment variable")
	}
	// AppRole SecretID to log in to Vault
	if !appConfig.Exist("DEPLOYER_VAULT_APPROLE_SECRET_ID") {
		return nil, fmt.Errorf("missing 'DEPLOYER_VAULT_APPROLE_SECRET_ID' environment variable")
	}
	if !appConfig.Exist("DEPLOYER_VAULT_APPROLE_MOUNT_PATH") {
		return nil, fmt.Errorf("missing 'DEPLOYER_VAULT_APPROLE_MOUNT_PATH' environment variable")
	}

	secure := appConfig.GetBool("DEPLOYER_VAULT_HTTPS")
	host := appConfig.GetString("DEPLOYER_VAULT_HOST")
	port := appConfig.GetString("DEPLOYER_VAULT_PORT")

	vaultConfig := hashicorp.DefaultConfig()
	if secure {
		vaultConfig.Address = fmt.Sprintf("https://%s:%s", host, port)
	} else {
		vaultConfig.Address = fmt.Sprintf("http://%s:%s", host, port)
	}

	client, err := hashicorp.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("hashicorp.NewClient: %w", err)
	}

	timeout := appConfig.GetDuration("DEPLOYER_VAULT_TIMEOUT")
	if timeout == 0 {
		return nil, errors.New("the 'DEPLOYER_VAULT_TIMEOUT' can not be zero")
	}

	return &Vault{
		logger:           parent.Child("vault", "address", vaultConfig.Address),
		client:           client,
		timeout:          timeout,
		path:             appConfig.GetString("DEPLOYER_VAULT_PATH"),
		secret:           appConfig.GetString("DEPLOYER_VAULT_SECRET"),
		key:              appConfig.GetString("DEPLOYER_VAULT_KEY"),
		approleRoleId:    appConfig.GetString("DEPLOYER_VAULT_APPROLE_ROLE_ID"),
		approleSecretId:  appConfig.GetString("DEPLOYER_VAULT_APPROLE_SECRET_ID"),
		approleMountPath: appConfig.GetString("DEPLOYER_VAULT_APPROLE_MOUNT_PATH"),
	}, nil
}

// PrivateKey logs in to the vault, reads the private key and then revokes the login token.
// The deployer runs once, so the token is never renewed.
func (v *Vault) PrivateKey(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	if _, err := v.login(ctx); err != nil {
		return "", fmt.Errorf("vault login: %w", err)
	}
	defer v.revoke(ctx)

	value, err := v.getString(ctx, v.secret, v.key)
	if err != nil {
		return "", fmt.Errorf("vault.getString: %w", err)
	}

	return value, nil
}

// A combination of a RoleID and a SecretID is required to log into Vault
// with AppRole authentication method.
//
// ref: https://learn.hashicorp.com/tutorials/vault/approle-best-practices?in=vault/auth-methods#secretid-delivery-best-practices
func (v *Vault) login(ctx context.Context) (*hashicorp.Secret, error) {
	v.logger.Debug("vault login: begin")

	approleSecretId := &approle.SecretID{
		FromString: v.approleSecretId,
	}

	appRoleAuth, err := approle.NewAppRoleAuth(
		v.approleRoleId,
		approleSecretId,
		approle.WithMountPath(v.approleMountPath),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize approle authentication method: %w", err)
	}

	authInfo, err := v.client.Auth().Login(ctx, appRoleAuth)
	if err != nil {
		return nil, fmt.Errorf("unable to login using approle auth method: %w", err)
	}
	if authInfo == nil {
		return nil, fmt.Errorf("no approle info was returned after login")
	}

	v.logger.Info("vault login: success!")

	return authInfo, nil
}

func (v *Vault) revoke(ctx context.Context) {
	if err := v.client.Auth().Token().RevokeSelfWithContext(ctx, ""); err != nil {
		v.logger.Warn("failed to revoke the vault token", "error", err)
	}
}

// Returns the String in the secret, by key
func (v *Vault) getString(ctx context.Context, secretName string, key string) (string, error) {
	secret, err := v.client.KVv2(v.path).Get(ctx, secretName)
	if err != nil {
		if errors.Is(err, hashicorp.ErrSecretNotFound) {
			return "", fmt.Errorf("%w: %s/%s", ErrSecretNotFound, v.path, secretName)
		}
		return "", fmt.Errorf("vault.client.KVv2(%s).Get(%s): %w", v.path, secretName, err)
	}

	raw, ok := secret.Data[key]
	if !ok {
		return "", fmt.Errorf("%w: '%s' key in %s/%s", ErrSecretNotFound, key, v.path, secretName)
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("the '%s' key in %s/%s is %T, not a string", key, v.path, secretName, raw)
	}

	return value, nil
}
