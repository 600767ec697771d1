// Package config loads the kernel configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable consulted when no --config flag
// is given.
const EnvVar = "GOKERNEL_CONFIG"

// ErrInvalid is returned for a configuration that parses but cannot be
// used.
var ErrInvalid = errors.New("invalid configuration")

// Oracle kinds.
const (
	OracleParser   = "parser"
	OracleBalanced = "balanced"
)

// Output formats.
const (
	OutputPretty = "pretty"
	OutputJSON   = "json"
)

// Config is the kernel configuration.
type Config struct {
	History HistoryConfig `yaml:"history"`

	// Oracle selects how segment boundaries are found: the JavaScript
	// parser or the bracket-balancing heuristic.
	Oracle string `yaml:"oracle"`

	// Prelude lists scripts evaluated before the first block, typically
	// to register hooks. Relative paths resolve against the config file.
	Prelude []string `yaml:"prelude,omitempty"`

	// Timeout bounds a single evaluation. Zero means no limit.
	Timeout time.Duration `yaml:"timeout"`

	// WorkDir roots the fs object of evaluated code. Empty means the
	// process working directory; relative paths resolve against the
	// config file.
	WorkDir string `yaml:"workdir,omitempty"`

	// Output is the result format, pretty or json.
	Output string `yaml:"output"`

	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// HistoryConfig configures the history store.
type HistoryConfig struct {
	// Path of the SQLite database. Empty keeps history in memory.
	Path string `yaml:"path"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level string `yaml:"level"`
}

// MetricsConfig configures the metrics endpoint.
type MetricsConfig struct {
	// Addr is the listen address of /metrics, e.g. ":9464". Empty
	// disables the endpoint.
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Oracle: OracleParser,
		Output: OutputPretty,
		Log:    LogConfig{Level: "info"},
	}
}

// Load reads the YAML file at path over the defaults. Unknown fields are
// rejected.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	base := filepath.Dir(path)
	for i, p := range cfg.Prelude {
		if !filepath.IsAbs(p) {
			cfg.Prelude[i] = filepath.Join(base, p)
		}
	}
	if cfg.WorkDir != "" && !filepath.IsAbs(cfg.WorkDir) {
		cfg.WorkDir = filepath.Join(base, cfg.WorkDir)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Resolve picks the config file: the flag value if set, else EnvVar. An
// empty result means defaults.
func Resolve(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv(EnvVar)
}

// Validate checks field values.
func (c Config) Validate() error {
	switch c.Oracle {
	case OracleParser, OracleBalanced:
	default:
		return fmt.Errorf("%w: oracle must be %q or %q, got %q", ErrInvalid, OracleParser, OracleBalanced, c.Oracle)
	}
	switch c.Output {
	case OutputPretty, OutputJSON:
	default:
		return fmt.Errorf("%w: output must be %q or %q, got %q", ErrInvalid, OutputPretty, OutputJSON, c.Output)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalid)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses the level name: debug, info, warn or error.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(l.Level))); err != nil {
		return level, fmt.Errorf("%w: log level %q", ErrInvalid, l.Level)
	}
	return level, nil
}
