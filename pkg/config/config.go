// Package config defines the econdash configuration and how it is loaded.
//
// Values are layered, lowest precedence first: built-in defaults, an
// optional YAML file, then ECONDASH_* environment variables.
package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/nicktill/econdash/pkg/derive"
	"github.com/nicktill/econdash/pkg/registry"
	"github.com/nicktill/econdash/pkg/storage/memory"
)

// Server defaults
const (
	DefaultAddr            = ":5000"
	DefaultDataDir         = "./data"
	DefaultLogLevel        = "info"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
)

// Metric declares one base metric loaded from a source file.
type Metric struct {
	Key   string `koanf:"key"`
	Title string `koanf:"title"`
	File  string `koanf:"file"`
}

// Derived declares one metric computed from another.
type Derived struct {
	Key       string `koanf:"key"`
	Title     string `koanf:"title"`
	From      string `koanf:"from"`
	Transform string `koanf:"transform"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":5000".
	Addr string `koanf:"addr"`

	// DataDir holds the source files named by Metrics.
	DataDir string `koanf:"data_dir"`

	// AllowedOrigins lists CORS origins; "*" allows any.
	AllowedOrigins []string `koanf:"allowed_origins"`

	// LoadConcurrency bounds how many source files are parsed at once.
	LoadConcurrency int `koanf:"load_concurrency"`

	// CountryReference names the metric the country directory comes from.
	CountryReference string `koanf:"country_reference"`

	// YearReference names the metric the year bounds come from.
	YearReference string `koanf:"year_reference"`

	Metrics []Metric  `koanf:"metrics"`
	Derived []Derived `koanf:"derived"`

	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// New returns the default configuration: the four World Bank indicators
// plus population growth.
func New() *Config {
	c := &Config{
		LogLevel:         DefaultLogLevel,
		Addr:             DefaultAddr,
		DataDir:          DefaultDataDir,
		AllowedOrigins:   []string{"*"},
		LoadConcurrency:  runtime.NumCPU(),
		CountryReference: memory.DefaultCountryReference,
		YearReference:    memory.DefaultYearReference,
		ReadTimeout:      DefaultReadTimeout,
		WriteTimeout:     DefaultWriteTimeout,
		ShutdownTimeout:  DefaultShutdownTimeout,
	}

	for _, e := range registry.DefaultBase() {
		c.Metrics = append(c.Metrics, Metric{Key: e.Key, Title: e.Title, File: e.Source})
	}
	for _, d := range derive.DefaultDerivations() {
		c.Derived = append(c.Derived, Derived{Key: d.Key, Title: d.Title, From: d.From, Transform: d.Transform})
	}
	return c
}

// Validate checks the configuration before anything is loaded.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.DataDir == "" {
		return fmt.Errorf("%w: data_dir must not be empty", ErrInvalidConfig)
	}
	if c.LoadConcurrency <= 0 {
		return fmt.Errorf("%w: load_concurrency must be positive, got %d", ErrInvalidConfig, c.LoadConcurrency)
	}
	if len(c.Metrics) == 0 {
		return fmt.Errorf("%w: at least one metric is required", ErrInvalidConfig)
	}

	seen := make(map[string]bool)
	for _, m := range c.Metrics {
		if m.Key == "" || m.File == "" {
			return fmt.Errorf("%w: metric %q needs a key and a file", ErrInvalidConfig, m.Key)
		}
		if seen[m.Key] {
			return fmt.Errorf("%w: duplicate metric key %q", ErrInvalidConfig, m.Key)
		}
		seen[m.Key] = true
	}
	for _, d := range c.Derived {
		if d.Key == "" || d.From == "" || d.Transform == "" {
			return fmt.Errorf("%w: derived metric %q needs a key, from and transform", ErrInvalidConfig, d.Key)
		}
		if seen[d.Key] {
			return fmt.Errorf("%w: duplicate metric key %q", ErrInvalidConfig, d.Key)
		}
		if !seen[d.From] {
			return fmt.Errorf("%w: derived metric %q comes from unknown metric %q", ErrInvalidConfig, d.Key, d.From)
		}
		if _, ok := derive.Lookup(d.Transform); !ok {
			return fmt.Errorf("%w: derived metric %q uses unknown transform %q", ErrInvalidConfig, d.Key, d.Transform)
		}
		seen[d.Key] = true
	}

	for _, ref := range []string{c.CountryReference, c.YearReference} {
		if ref != "" && !seen[ref] {
			return fmt.Errorf("%w: reference metric %q is not configured", ErrInvalidConfig, ref)
		}
	}
	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 || c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfig)
	}
	return nil
}

// BaseEntries converts Metrics into registry entries.
func (c *Config) BaseEntries() []registry.Entry {
	out := make([]registry.Entry, len(c.Metrics))
	for i, m := range c.Metrics {
		out[i] = registry.Entry{Key: m.Key, Title: m.Title, Kind: registry.KindBase, Source: m.File}
	}
	return out
}

// Derivations converts Derived into derive declarations.
func (c *Config) Derivations() []derive.Derivation {
	out := make([]derive.Derivation, len(c.Derived))
	for i, d := range c.Derived {
		out[i] = derive.Derivation{Key: d.Key, Title: d.Title, From: d.From, Transform: d.Transform}
	}
	return out
}
