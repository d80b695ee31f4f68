package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v:         viper.New(),
		envPrefix: "SENTINEL",
	}
}

// NewLoaderWithViper creates a loader using an existing viper instance.
// This allows integration with CLI flag bindings.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:         v,
		envPrefix: "SENTINEL",
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads configuration from all sources.
// Precedence (highest to lowest):
// 1. CLI flags (set via viper.BindPFlag)
// 2. Environment variables (SENTINEL_*)
// 3. Project config (.sentinel.yaml in current directory)
// 4. User config (~/.config/sentinel/config.yaml)
// 5. Defaults
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName(".sentinel")
		l.v.SetConfigType("yaml")

		// Project config takes precedence over user config
		l.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "sentinel"))
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values.
func (l *Loader) setDefaults() {
	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "auto")

	l.v.SetDefault("review.budget_limit", 5.0)
	l.v.SetDefault("review.max_iterations", 15)
	l.v.SetDefault("review.turn_pause", "500ms")
	l.v.SetDefault("review.skip_style", false)
	l.v.SetDefault("review.concurrency", 2)

	l.v.SetDefault("agent.path", "claude")
	l.v.SetDefault("agent.fast_model", "claude-haiku-4-5")
	l.v.SetDefault("agent.standard_model", "claude-sonnet-4-20250514")
	l.v.SetDefault("agent.advanced_model", "claude-opus-4-1")
	l.v.SetDefault("agent.timeout", "10m")

	l.v.SetDefault("ledger.path", ".sentinel/ledger.db")
	l.v.SetDefault("report.dir", ".sentinel/reports")

	l.v.SetDefault("api.addr", "127.0.0.1:7777")
	l.v.SetDefault("api.allowed_origins", []string{"http://localhost:5173"})
	l.v.SetDefault("api.request_timeout", "30s")

	l.v.SetDefault("github.timeout", "60s")
}

// ConfigFile returns the config file path if one was used.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}
