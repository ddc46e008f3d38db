package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	foundationerrors "git.home.luguber.info/inful/pkgbuilder/internal/foundation/errors"
)

// DefaultFile is the configuration file looked up in the invocation directory.
const DefaultFile = "pkgbuilder.yaml"

// Config is the tool configuration. The package itself is described by the descriptor,
// not by this file.
type Config struct {
	Paths   PathsConfig   `yaml:"paths"`
	HTTP    HTTPConfig    `yaml:"http"`
	Scripts ScriptsConfig `yaml:"scripts"`
	History HistoryConfig `yaml:"history"`
	Metrics MetricsConfig `yaml:"metrics"`
	Events  EventsConfig  `yaml:"events"`
	Log     LogConfig     `yaml:"log"`
}

// PathsConfig locates the descriptor and the build trees relative to the invocation directory.
type PathsConfig struct {
	Descriptor string `yaml:"descriptor"`
	PkgDir     string `yaml:"pkg_dir"`
	SrcDir     string `yaml:"src_dir"`
	OutputDir  string `yaml:"output_dir"`
}

// HTTPConfig tunes the source downloader. A zero timeout disables it.
type HTTPConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

// ScriptsConfig controls how build, package and clean scripts are run.
type ScriptsConfig struct {
	Shell           string `yaml:"shell"`
	ContinueOnError bool   `yaml:"continue_on_error"`
}

// HistoryConfig enables the SQLite build ledger when Path is set.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// MetricsConfig enables the Prometheus textfile when Textfile is set.
type MetricsConfig struct {
	Textfile  string `yaml:"textfile"`
	Namespace string `yaml:"namespace"`
}

// EventsConfig enables NATS notifications when URL is set.
type EventsConfig struct {
	URL     string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// LogConfig selects level and output format for slog.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads the YAML file at path, expanding ${VAR} references first. A missing file is only
// an error when required is set; otherwise defaults are returned.
func Load(path string, required bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return Default(), nil
		}
		return nil, foundationerrors.ConfigError("failed to read config file").
			WithContext("path", path).
			WithCause(err).
			Build()
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, foundationerrors.ConfigError("failed to parse config file").
			WithContext("path", path).
			WithCause(err).
			Build()
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Paths.Descriptor == "" {
		cfg.Paths.Descriptor = "PKG.toml"
	}
	if cfg.Paths.PkgDir == "" {
		cfg.Paths.PkgDir = "pkg"
	}
	if cfg.Paths.SrcDir == "" {
		cfg.Paths.SrcDir = "src"
	}
	if cfg.Paths.OutputDir == "" {
		cfg.Paths.OutputDir = "."
	}
	if cfg.HTTP.UserAgent == "" {
		cfg.HTTP.UserAgent = "pkgbuilder"
	}
	if cfg.Scripts.Shell == "" {
		cfg.Scripts.Shell = "/bin/sh"
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "pkgbuilder"
	}
	if cfg.Events.Subject == "" {
		cfg.Events.Subject = "pkgbuilder.builds"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// Validate rejects values that cannot be acted upon.
func (c *Config) Validate() error {
	switch c.Log.Format {
	case "text", "json":
	default:
		return invalid("log.format", c.Log.Format)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log.level", c.Log.Level)
	}
	if c.HTTP.Timeout < 0 {
		return invalid("http.timeout", c.HTTP.Timeout.String())
	}
	if c.Paths.PkgDir == c.Paths.SrcDir {
		return invalid("paths.src_dir", c.Paths.SrcDir)
	}
	return nil
}

func invalid(key, value string) error {
	return foundationerrors.ConfigError(fmt.Sprintf("invalid value for %s: %q", key, value)).
		WithContext("key", key).
		Build()
}
