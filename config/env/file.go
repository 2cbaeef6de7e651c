// Package env loads the .env files into the process environment.
package env

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// DefaultPath is loaded automatically when it exists in the working directory.
const DefaultPath = ".env"

// LoadAnyEnv loads the given .env files into the application's environment variables.
// The relative paths are resolved against the working directory.
// If no path is given, then the .env of the working directory is loaded, if it exists.
//
// The variables that are already set in the environment are not overwritten.
func LoadAnyEnv(paths ...string) error {
	currentDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("os.Getwd: %w", err)
	}

	if len(paths) == 0 {
		defaultPath := filepath.Join(currentDir, DefaultPath)
		if _, err := os.Stat(defaultPath); err != nil {
			return nil
		}
		paths = []string{defaultPath}
	}

	absPaths := make([]string, len(paths))
	for i, envPath := range paths {
		if filepath.IsAbs(envPath) {
			absPaths[i] = envPath
		} else {
			absPaths[i] = filepath.Join(currentDir, envPath)
		}
	}

	if err := godotenv.Load(absPaths...); err != nil {
		return fmt.Errorf("godotenv.Load for paths %v: %w", absPaths, err)
	}
	return nil
}

// WriteEnv writes the given key value to the file.
// If the file exists, then it will be truncated.
func WriteEnv(data map[string]string, path string) error {
	if err := godotenv.Write(data, path); err != nil {
		return fmt.Errorf("godotenv.Write: %w", err)
	}

	return nil
}
