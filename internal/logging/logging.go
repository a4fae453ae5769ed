// Package logging builds the component loggers used across mdk.
//
// Every component logs through a standard *log.Logger with a bracketed
// prefix ("[store] ", "[watcher] ", ...). When a log file is configured the
// output is rotated by lumberjack.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls where log output goes.
type Config struct {
	// File is the log file path. Empty means stderr only.
	File string `mapstructure:"file" toml:"file"`

	MaxSizeMB  int `mapstructure:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int `mapstructure:"max_backups" toml:"max_backups"`
	MaxAgeDays int `mapstructure:"max_age_days" toml:"max_age_days"`

	// Stderr also copies file output to stderr.
	Stderr bool `mapstructure:"stderr" toml:"stderr"`
}

// DefaultConfig returns stderr-only logging with sensible rotation limits
// for when a file is set later.
func DefaultConfig() Config {
	return Config{
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
	}
}

// Output is a shared log destination. Create component loggers from it with
// Logger and Close it on shutdown.
type Output struct {
	w    io.Writer
	file *lumberjack.Logger
}

// Open returns the destination described by cfg.
func Open(cfg Config) *Output {
	if cfg.File == "" {
		return &Output{w: os.Stderr}
	}

	file := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}
	out := &Output{w: file, file: file}
	if cfg.Stderr {
		out.w = io.MultiWriter(file, os.Stderr)
	}
	return out
}

// Discard returns an Output that drops everything.
func Discard() *Output {
	return &Output{w: io.Discard}
}

// Logger returns a logger prefixed with "[component] ".
func (o *Output) Logger(component string) *log.Logger {
	return log.New(o.w, "["+component+"] ", log.LstdFlags)
}

// Writer exposes the underlying writer.
func (o *Output) Writer() io.Writer { return o.w }

// Close flushes and closes the log file, if any.
func (o *Output) Close() error {
	if o.file == nil {
		return nil
	}
	return o.file.Close()
}
