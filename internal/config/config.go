// Package config loads hive settings from a YAML config file, HIVE_*
// environment variables and built-in defaults, in that precedence order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the resolved application configuration.
type Config struct {
	// BackendURL is the chat backend base URL.
	BackendURL string `mapstructure:"backend_url" yaml:"backend_url"`
	// WebSocketURL is the push channel base URL; derived from BackendURL
	// when empty.
	WebSocketURL string `mapstructure:"websocket_url" yaml:"websocket_url"`
	// StateDir holds persisted sessions, agents and flags.
	StateDir string `mapstructure:"state_dir" yaml:"state_dir"`
	// RequestTimeout bounds backend HTTP calls.
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	// TypingInterval is the reveal rate of the typing animation.
	TypingInterval time.Duration `mapstructure:"typing_interval" yaml:"typing_interval"`
	// SchedulerTimeScale multiplies the mock scheduler's simulated delays.
	SchedulerTimeScale float64 `mapstructure:"scheduler_time_scale" yaml:"scheduler_time_scale"`
	// ServeHost/ServePort configure the local gateway.
	ServeHost string `mapstructure:"serve_host" yaml:"serve_host"`
	ServePort int    `mapstructure:"serve_port" yaml:"serve_port"`
	// Debug enables verbose gateway logging.
	Debug bool `mapstructure:"debug" yaml:"debug"`
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hive"
	}
	return filepath.Join(home, ".hive")
}

// Load resolves the configuration. path may be empty, in which case
// ~/.hive/config.yaml is tried; a missing config file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("backend_url", "http://localhost:8000")
	v.SetDefault("websocket_url", "")
	v.SetDefault("state_dir", defaultStateDir())
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("typing_interval", 20*time.Millisecond)
	v.SetDefault("scheduler_time_scale", 1.0)
	v.SetDefault("serve_host", "localhost")
	v.SetDefault("serve_port", 8090)
	v.SetDefault("debug", false)

	v.SetEnvPrefix("HIVE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(defaultStateDir())
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.WebSocketURL == "" {
		cfg.WebSocketURL = DeriveWebSocketURL(cfg.BackendURL)
	}
	return &cfg, nil
}

// DefaultPath is the config file location used when no explicit path is
// given.
func DefaultPath() string {
	return filepath.Join(defaultStateDir(), "config.yaml")
}

// Save writes the configuration back to the given path as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// DeriveWebSocketURL maps http(s):// to ws(s):// on the same host.
func DeriveWebSocketURL(backendURL string) string {
	switch {
	case strings.HasPrefix(backendURL, "https://"):
		return "wss://" + strings.TrimPrefix(backendURL, "https://")
	case strings.HasPrefix(backendURL, "http://"):
		return "ws://" + strings.TrimPrefix(backendURL, "http://")
	default:
		return backendURL
	}
}
