package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// ErrMissingAPIKey is returned when the credential variable is unset or empty.
var ErrMissingAPIKey = errors.New("API key not found")

// LoadAPIKey returns the value of the environment variable name. If envFile
// exists it is loaded first; variables already present in the environment
// win over the file.
func LoadAPIKey(envFile, name string) (string, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	key := os.Getenv(name)
	if key == "" {
		return "", fmt.Errorf("%w: %s is not set (environment or %s)", ErrMissingAPIKey, name, envFile)
	}
	return key, nil
}
