package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAddr      = "127.0.0.1:8501"
	DefaultBaseURL   = "https://generativelanguage.googleapis.com/v1beta"
	DefaultAPIKeyEnv = "GEMINI_API_KEY"
	DefaultEnvFile   = ".env"
	DefaultLogDir    = "logs"

	// DefaultDatabaseDSN keeps the transcript in memory; nothing outlives the process.
	DefaultDatabaseDSN = "file:geminichat?mode=memory&cache=shared"
)

// Config holds application configuration
type Config struct {
	Addr         string `toml:"addr"`
	BaseURL      string `toml:"base_url"`
	APIKeyEnv    string `toml:"api_key_env"`
	EnvFile      string `toml:"env_file"`
	DefaultModel string `toml:"default_model"` // Preferred initial model, e.g. "models/gemini-pro"
	Debug        bool   `toml:"debug"`
	LogDir       string `toml:"log_dir"`
	DatabaseDSN  string `toml:"database_dsn"`

	// RequestTimeout bounds each remote call. Zero means no timeout.
	RequestTimeout Duration `toml:"request_timeout"`
}

// Duration wraps time.Duration so it can be written as "30s" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:        DefaultAddr,
		BaseURL:     DefaultBaseURL,
		APIKeyEnv:   DefaultAPIKeyEnv,
		EnvFile:     DefaultEnvFile,
		LogDir:      DefaultLogDir,
		DatabaseDSN: DefaultDatabaseDSN,
	}
}

// LoadFile overlays the TOML file at path onto cfg. A missing file leaves
// cfg untouched.
func LoadFile(path string, cfg *Config) error {
	if path == "" {
		return nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return nil
}

// Validate checks the fields the rest of the program depends on.
func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr must not be empty")
	}
	if c.BaseURL == "" {
		return errors.New("base_url must not be empty")
	}
	if c.APIKeyEnv == "" {
		return errors.New("api_key_env must not be empty")
	}
	if c.RequestTimeout.Duration < 0 {
		return fmt.Errorf("request_timeout must not be negative, got %s", c.RequestTimeout.Duration)
	}
	return nil
}
