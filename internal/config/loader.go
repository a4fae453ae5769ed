package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override: MDK_ROOT, MDK_LOG_FILE, ...
const EnvPrefix = "MDK"

// flagKeys maps command line flags to config keys.
var flagKeys = map[string]string{
	"root":         "root",
	"columns":      "columns",
	"backend":      "backend",
	"mount":        "mount",
	"debounce":     "debounce",
	"strict-parse": "strict_parse",
	"state-db":     "state_db",
	"listen":       "listen",
	"log-file":     "log.file",
}

// Sources lists where Load reads from. Missing files are skipped.
type Sources struct {
	GlobalFile  string
	ProjectFile string

	// Flags are bound after files and environment. Only flags that exist in
	// the set are bound, and only explicitly set flags override.
	Flags *pflag.FlagSet
}

// DefaultSources returns the user-level and working-directory config files.
func DefaultSources(flags *pflag.FlagSet) Sources {
	return Sources{
		GlobalFile:  GlobalConfigPath(),
		ProjectFile: ProjectConfigPath(),
		Flags:       flags,
	}
}

// Load merges defaults, the global file, the project file, the environment
// and flags, then validates the result.
func Load(src Sources) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetConfigType("yaml")
	for _, path := range []string{src.GlobalFile, src.ProjectFile} {
		if err := mergeFile(v, path); err != nil {
			return nil, err
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if src.Flags != nil {
		for name, key := range flagKeys {
			f := src.Flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind --%s: %w", name, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("root", d.Root)
	v.SetDefault("columns", d.Columns)
	v.SetDefault("backend", d.Backend)
	v.SetDefault("mount", d.Mount)
	v.SetDefault("debounce", d.Debounce)
	v.SetDefault("strict_parse", d.StrictParse)
	v.SetDefault("state_db", d.StateDB)
	v.SetDefault("listen", d.Listen)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
	v.SetDefault("log.stderr", d.Log.Stderr)
}

func mergeFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}

// GlobalConfigPath returns ~/.config/mdkanban/config.yaml (or the platform
// equivalent).
func GlobalConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "mdkanban", "config.yaml")
}

// ProjectConfigPath returns ./.mdkanban.yaml
func ProjectConfigPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Join(cwd, ".mdkanban.yaml")
}
