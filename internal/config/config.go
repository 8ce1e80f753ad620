// Package config loads the culler configuration from YAML with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/culler-io/culler/internal/errkind"
)

// Config is the root configuration.
type Config struct {
	Cluster ClusterConfig `yaml:"cluster"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	RunLog  RunLogConfig  `yaml:"runlog"`
}

// ClusterConfig describes the cluster connection.
type ClusterConfig struct {
	Endpoint       string `yaml:"endpoint"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the request timeout as a duration.
func (c ClusterConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LoggingConfig describes log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig describes the optional metrics listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// RunLogConfig describes the optional local run history database.
type RunLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Cluster: ClusterConfig{
			Endpoint:       "http://127.0.0.1:9200",
			TimeoutSeconds: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Listen: ":9464",
		},
		RunLog: RunLogConfig{
			Path: "culler.db",
		},
	}
}

// Load reads the configuration file at path, layered over the defaults,
// then applies environment overrides. An empty path loads defaults and
// environment only.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errkind.Configf("parse config %s: %v", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overlays CULLER_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("CULLER_ENDPOINT"); v != "" {
		c.Cluster.Endpoint = v
	}
	if v := os.Getenv("CULLER_USERNAME"); v != "" {
		c.Cluster.Username = v
	}
	if v := os.Getenv("CULLER_PASSWORD"); v != "" {
		c.Cluster.Password = v
	}
	if v := os.Getenv("CULLER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CULLER_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("CULLER_METRICS_LISTEN"); v != "" {
		c.Metrics.Listen = v
	}
	if v := os.Getenv("CULLER_RUNLOG_PATH"); v != "" {
		c.RunLog.Path = v
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Cluster.Endpoint == "" {
		return errkind.Missingf("cluster endpoint must be set")
	}
	if c.Cluster.TimeoutSeconds <= 0 {
		return errkind.Configf("cluster timeout must be positive, got %d", c.Cluster.TimeoutSeconds)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return errkind.Configf("unknown log level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return errkind.Configf("unknown log format %q", c.Logging.Format)
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return errkind.Missingf("metrics listener enabled without an address")
	}
	if c.RunLog.Enabled && c.RunLog.Path == "" {
		return errkind.Missingf("run log enabled without a database path")
	}
	return nil
}
