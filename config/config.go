// Package config defines the configuration engine of the deployer.
//
// The configuration features:
//   - automatically loads the environment variables files.
//   - allows setting default variables if user didn't define them.
//   - allows overwriting the variables by the command line flags.
package config

import (
	"fmt"
	"time"

	"github.com/blocklords/authdeploy/config/env"
	"github.com/blocklords/authdeploy/log"
	"github.com/spf13/viper"
)

// Config is the configuration engine based on viper.Viper
type Config struct {
	viper  *viper.Viper
	logger *log.Logger // debug purpose only
}

// New creates a configuration for the entire application.
// It loads the given .env files, then reads the environment variables.
func New(parent *log.Logger, envPaths ...string) (*Config, error) {
	logger := parent.Child("config")

	logger.Debug("loading environment files", "paths", envPaths)
	if err := env.LoadAnyEnv(envPaths...); err != nil {
		return nil, fmt.Errorf("env.LoadAnyEnv: %w", err)
	}

	conf := Config{
		viper:  viper.New(),
		logger: logger,
	}
	conf.viper.AutomaticEnv()

	return &conf, nil
}

// SetDefaults sets the default configuration parameters.
func (c *Config) SetDefaults(defaultConfig DefaultConfig) {
	c.logger.Debug("set the default config parameters", "title", defaultConfig.Title)

	for name, value := range defaultConfig.Parameters {
		if value == nil {
			continue
		}
		c.SetDefault(name, value)
	}
}

// SetDefault sets the default value of the configuration parameter
func (c *Config) SetDefault(name string, value interface{}) {
	c.viper.SetDefault(name, value)
}

// Set overwrites the configuration parameter.
// It has the priority over environment variables and default values.
func (c *Config) Set(name string, value interface{}) {
	c.logger.Debug("overwrite", name, value)
	c.viper.Set(name, value)
}

// Exist checks whether the configuration variable exists or not.
// If the configuration exists or its default value exists, then returns true.
func (c *Config) Exist(name string) bool {
	value := c.viper.GetString(name)
	return len(value) > 0
}

// GetString returns the configuration parameter as a string
func (c *Config) GetString(name string) string {
	return c.viper.GetString(name)
}

// GetUint64 returns the configuration parameter as an unsigned 64 bit number
func (c *Config) GetUint64(name string) uint64 {
	return c.viper.GetUint64(name)
}

// GetBool returns the configuration parameter as a boolean
func (c *Config) GetBool(name string) bool {
	return c.viper.GetBool(name)
}

// GetDuration returns the configuration parameter given in seconds as a duration
func (c *Config) GetDuration(name string) time.Duration {
	return time.Duration(c.viper.GetUint64(name)) * time.Second
}
