package main

import (
	"time"

	"GeminiChat/internal/config"

	"github.com/spf13/pflag"
)

const defaultConfigFile = "geminichat.toml"

// cliFlags holds flag values until they are overlaid on the file config.
type cliFlags struct {
	configPath     string
	values         config.Config
	requestTimeout time.Duration
	fs             *pflag.FlagSet
}

func (f *cliFlags) register(fs *pflag.FlagSet) {
	def := config.Default()
	f.fs = fs

	fs.StringVar(&f.configPath, "config", defaultConfigFile, "TOML config file (ignored if missing)")
	fs.StringVar(&f.values.Addr, "addr", def.Addr, "HTTP listen address")
	fs.StringVar(&f.values.EnvFile, "env-file", def.EnvFile, "dotenv file loaded before reading the API key")
	fs.StringVar(&f.values.APIKeyEnv, "api-key-env", def.APIKeyEnv, "environment variable holding the Gemini API key")
	fs.StringVar(&f.values.BaseURL, "base-url", def.BaseURL, "Gemini API base URL")
	fs.BoolVar(&f.values.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&f.values.LogDir, "log-dir", def.LogDir, "directory for log, trace and metric files")
	fs.StringVar(&f.values.DatabaseDSN, "db", def.DatabaseDSN, "SQLite DSN for the in-process transcript")
	fs.StringVar(&f.values.DefaultModel, "default-model", "", "model selected on first load (default: first available)")
	fs.DurationVar(&f.requestTimeout, "request-timeout", 0, "timeout for each Gemini request (0 = none)")
}

// load builds the effective configuration: defaults, then the config file,
// then any flag set explicitly on the command line.
func (f *cliFlags) load() (config.Config, error) {
	cfg := config.Default()
	if err := config.LoadFile(f.configPath, &cfg); err != nil {
		return cfg, err
	}

	changed := f.fs.Changed
	if changed("addr") {
		cfg.Addr = f.values.Addr
	}
	if changed("env-file") {
		cfg.EnvFile = f.values.EnvFile
	}
	if changed("api-key-env") {
		cfg.APIKeyEnv = f.values.APIKeyEnv
	}
	if changed("base-url") {
		cfg.BaseURL = f.values.BaseURL
	}
	if changed("debug") {
		cfg.Debug = f.values.Debug
	}
	if changed("log-dir") {
		cfg.LogDir = f.values.LogDir
	}
	if changed("db") {
		cfg.DatabaseDSN = f.values.DatabaseDSN
	}
	if changed("default-model") {
		cfg.DefaultModel = f.values.DefaultModel
	}
	if changed("request-timeout") {
		cfg.RequestTimeout = config.Duration{Duration: f.requestTimeout}
	}
	return cfg, cfg.Validate()
}
