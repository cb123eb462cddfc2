package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Sandbox   SandboxConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Metrics   MetricsConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"3210"`
	Host               string        `envconfig:"HOST" default:"0.0.0.0"`
	MaxBodyBytes       int64         `envconfig:"MAX_BODY_BYTES" default:"0"`
	CORSEnabled        bool          `envconfig:"CORS_ENABLED" default:"false"`
	CompressionEnabled bool          `envconfig:"COMPRESSION_ENABLED" default:"false"`
	ShutdownTimeout    time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`
}

// SandboxConfig holds snippet execution configuration.
type SandboxConfig struct {
	ExamplesDir        string        `envconfig:"EXAMPLES_DIR" default:"examples"`
	NodeModulesDir     string        `envconfig:"NODE_MODULES_DIR" default:"node_modules"`
	HostModulesEnabled bool          `envconfig:"HOST_MODULES_ENABLED" default:"true"`
	ExecTimeout        time.Duration `envconfig:"EXEC_TIMEOUT" default:"0"`
	MaxConcurrent      int64         `envconfig:"MAX_CONCURRENT_EXECUTIONS" default:"0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
	Verbose     bool   `ignored:"true"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"false"`
}

// MetricsConfig holds the Prometheus listener configuration. An empty
// address disables the listener.
type MetricsConfig struct {
	Addr string `envconfig:"METRICS_ADDR" default:""`
}

// VerboseEnvVars are the equivalent spellings of the verbosity switch.
var VerboseEnvVars = []string{"VERBOSE", "DEBUG", "JSRUN_VERBOSE"}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Logging.Verbose = verboseFromEnv()
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:            "3210",
			Host:            "0.0.0.0",
			ShutdownTimeout: 5 * time.Second,
		},
		Sandbox: SandboxConfig{
			ExamplesDir:        "examples",
			NodeModulesDir:     "node_modules",
			HostModulesEnabled: true,
		},
		Logging: LogConfig{
			Level: "info",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
		},
	}
	_ = cfg.Normalize()
	return cfg
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// EffectiveLogLevel returns the zap level to use; verbose mode forces debug.
func (c *Config) EffectiveLogLevel() string {
	if c.Logging.Verbose {
		return "debug"
	}
	return c.Logging.Level
}

// Normalize validates the configuration and anchors relative sandbox
// directories at the working directory so they stay fixed for the process
// lifetime. Call it again after overriding fields.
func (c *Config) Normalize() error {
	if p, err := strconv.Atoi(c.Server.Port); err != nil || p < 0 || p > 65535 {
		return fmt.Errorf("invalid port %q", c.Server.Port)
	}
	if c.Sandbox.ExecTimeout < 0 {
		return fmt.Errorf("invalid exec timeout %s", c.Sandbox.ExecTimeout)
	}
	if c.Sandbox.MaxConcurrent < 0 {
		return fmt.Errorf("invalid max concurrent executions %d", c.Sandbox.MaxConcurrent)
	}

	for _, p := range []*string{&c.Sandbox.ExamplesDir, &c.Sandbox.NodeModulesDir} {
		if *p == "" || filepath.IsAbs(*p) {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return fmt.Errorf("failed to resolve %q: %w", *p, err)
		}
		*p = abs
	}
	return nil
}

func verboseFromEnv() bool {
	for _, key := range VerboseEnvVars {
		if isTruthy(os.Getenv(key)) {
			return true
		}
	}
	return false
}

func isTruthy(v string) bool {
	switch v {
	case "yes", "YES", "Yes", "on", "ON", "On":
		return true
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
