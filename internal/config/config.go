// Package config loads mdk settings from defaults, config files, MDK_*
// environment variables and command line flags, in increasing precedence.
package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/mdkanban/mdkanban/internal/debounce"
	"github.com/mdkanban/mdkanban/internal/fsadapter"
	"github.com/mdkanban/mdkanban/internal/logging"
)

// Config is the effective mdk configuration.
type Config struct {
	// Root is the board directory. Empty means use the persisted session.
	Root string `mapstructure:"root"`

	Columns []string `mapstructure:"columns"`

	// Backend names an fsadapter backend (local, memory).
	Backend string `mapstructure:"backend"`

	// Mount is the logical prefix card paths carry.
	Mount string `mapstructure:"mount"`

	Debounce time.Duration `mapstructure:"debounce"`

	// StrictParse rejects cards with malformed fields instead of defaulting
	// them.
	StrictParse bool `mapstructure:"strict_parse"`

	// StateDB is the session database path. Empty means the platform
	// config directory.
	StateDB string `mapstructure:"state_db"`

	// Listen is the dashboard address.
	Listen string `mapstructure:"listen"`

	Log logging.Config `mapstructure:"log"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Columns:  []string{"backlog", "in-progress", "done"},
		Backend:  fsadapter.BackendLocal,
		Mount:    fsadapter.DefaultMount,
		Debounce: debounce.DefaultWindow,
		Listen:   "localhost:8080",
		Log:      logging.DefaultConfig(),
	}
}

// Validate rejects settings no component can work with.
func (c *Config) Validate() error {
	if len(c.Columns) == 0 {
		return fmt.Errorf("at least one column is required")
	}
	seen := make(map[string]bool, len(c.Columns))
	for _, col := range c.Columns {
		if col == "" || strings.ContainsAny(col, `/\`) || col == "." || col == ".." {
			return fmt.Errorf("invalid column name %q", col)
		}
		if seen[col] {
			return fmt.Errorf("duplicate column %q", col)
		}
		seen[col] = true
	}
	if !fsadapter.IsRegistered(c.Backend) {
		return fmt.Errorf("unknown backend %q (available: %s)",
			c.Backend, strings.Join(fsadapter.RegisteredBackends(), ", "))
	}
	if c.Debounce < 0 {
		return fmt.Errorf("debounce must not be negative (got %s)", c.Debounce)
	}
	return nil
}

// tomlView is the printable form. Durations are written as strings so the
// output can be pasted back into a config file.
type tomlView struct {
	Root        string         `toml:"root"`
	Columns     []string       `toml:"columns"`
	Backend     string         `toml:"backend"`
	Mount       string         `toml:"mount"`
	Debounce    string         `toml:"debounce"`
	StrictParse bool           `toml:"strict_parse"`
	StateDB     string         `toml:"state_db"`
	Listen      string         `toml:"listen"`
	Log         logging.Config `toml:"log"`
}

// WriteTOML prints the configuration as TOML.
func (c *Config) WriteTOML(w io.Writer) error {
	view := tomlView{
		Root:        c.Root,
		Columns:     c.Columns,
		Backend:     c.Backend,
		Mount:       c.Mount,
		Debounce:    c.Debounce.String(),
		StrictParse: c.StrictParse,
		StateDB:     c.StateDB,
		Listen:      c.Listen,
		Log:         c.Log,
	}
	if err := toml.NewEncoder(w).Encode(view); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}
