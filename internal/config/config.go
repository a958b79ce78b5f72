// Package config loads the composition root's settings following the
// teacher's cmd/bd/config.go pattern: Cobra persistent flags bound through
// Viper, environment variables as the override layer, and a small TOML
// defaults file for static pool/timeout knobs that rarely change per
// invocation.
package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "WORKGRAPH"

// Config is everything the composition root needs to open a pool, build a
// logger, and start serving. Config loading itself sits outside the
// transactional core; this only wires the ambient stack.
type Config struct {
	DSN       string
	LogLevel  string
	LogFormat string // "json" or "text"

	PoolMaxOpenConns        int
	PoolMaxIdleConns        int
	StatementTimeoutSeconds int
}

// fileDefaults mirrors the optional TOML defaults file's shape.
type fileDefaults struct {
	Pool struct {
		MaxOpenConns int `toml:"max_open_conns"`
		MaxIdleConns int `toml:"max_idle_conns"`
	} `toml:"pool"`
	StatementTimeoutSeconds int `toml:"statement_timeout_seconds"`
}

// BindFlags registers the persistent flags Load reads back through Viper.
func BindFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("dsn", "", "MySQL-protocol data source name (or WORKGRAPH_DSN)")
	cmd.PersistentFlags().String("log-level", "info", "debug, info, warn, or error")
	cmd.PersistentFlags().String("log-format", "json", "json or text")
	cmd.PersistentFlags().String("config", "", "path to an optional TOML defaults file")
}

// Load resolves a Config from flags, environment, and an optional TOML
// defaults file, in that order of precedence (flags/env win over file
// defaults, which win over the built-in defaults below).
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for _, name := range []string{"dsn", "log-level", "log-format", "config"} {
		if err := v.BindPFlag(name, cmd.PersistentFlags().Lookup(name)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	cfg := &Config{
		LogLevel:                "info",
		LogFormat:                "json",
		PoolMaxOpenConns:        16,
		PoolMaxIdleConns:        4,
		StatementTimeoutSeconds: 30,
	}

	if path := v.GetString("config"); path != "" {
		var fd fileDefaults
		if _, err := toml.DecodeFile(path, &fd); err != nil {
			return nil, fmt.Errorf("decode config file %s: %w", path, err)
		}
		if fd.Pool.MaxOpenConns > 0 {
			cfg.PoolMaxOpenConns = fd.Pool.MaxOpenConns
		}
		if fd.Pool.MaxIdleConns > 0 {
			cfg.PoolMaxIdleConns = fd.Pool.MaxIdleConns
		}
		if fd.StatementTimeoutSeconds > 0 {
			cfg.StatementTimeoutSeconds = fd.StatementTimeoutSeconds
		}
	}

	cfg.DSN = v.GetString("dsn")
	if ll := v.GetString("log-level"); ll != "" {
		cfg.LogLevel = ll
	}
	if lf := v.GetString("log-format"); lf != "" {
		cfg.LogFormat = lf
	}

	if cfg.DSN == "" {
		return nil, fmt.Errorf("dsn is required: pass --dsn or set WORKGRAPH_DSN")
	}
	return cfg, nil
}
