// Package config defines service configuration and its loading.
//
// Values are layered: defaults from New, then an optional YAML file named by
// COACHPLAN_CONFIG, then COACHPLAN_* environment variables.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

var (
	// ErrInvalidConfig wraps every Validate failure.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig wraps file and environment read failures.
	ErrLoadConfig = errors.New("load config failed")
)

// Plan store backends.
const (
	StoreMemory = "memory"
	StorePebble = "pebble"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// RulesPath points at a rule table YAML file. Empty uses the built-in table.
	RulesPath string `koanf:"rules_path"`

	// WorkerCount sets the number of plan workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the in-memory plan queue.
	QueueSize int `koanf:"queue_size"`

	// DedupeSize caps the number of remembered plan fingerprints.
	DedupeSize int `koanf:"dedupe_size"`

	// CalcParallelism bounds the calculator fan-out per batch.
	CalcParallelism int `koanf:"calc_parallelism"`

	// Store selects the plan store: memory or pebble.
	Store string `koanf:"store"`

	// DataDir is the pebble directory when Store is pebble.
	DataDir string `koanf:"data_dir"`

	// MaxPlanList caps GET /plans?limit.
	MaxPlanList int `koanf:"max_plan_list"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":9080",
		WorkerCount:     2,
		QueueSize:       1024,
		DedupeSize:      50_000,
		CalcParallelism: runtime.NumCPU(),
		Store:           StoreMemory,
		DataDir:         "data",
		MaxPlanList:     100,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive, got %d", ErrInvalidConfig, c.WorkerCount)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive, got %d", ErrInvalidConfig, c.QueueSize)
	case c.DedupeSize <= 0:
		return fmt.Errorf("%w: dedupe_size must be positive, got %d", ErrInvalidConfig, c.DedupeSize)
	case c.CalcParallelism <= 0:
		return fmt.Errorf("%w: calc_parallelism must be positive, got %d", ErrInvalidConfig, c.CalcParallelism)
	case c.MaxPlanList <= 0:
		return fmt.Errorf("%w: max_plan_list must be positive, got %d", ErrInvalidConfig, c.MaxPlanList)
	case !validLevel(c.LogLevel):
		return fmt.Errorf("%w: log_level must be debug, info, warn or error, got %q", ErrInvalidConfig, c.LogLevel)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	}
	switch c.Store {
	case StoreMemory:
	case StorePebble:
		if c.DataDir == "" {
			return fmt.Errorf("%w: data_dir is required for the pebble store", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	}
	return nil
}

func validLevel(l string) bool {
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "", "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}
