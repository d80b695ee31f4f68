// Package config loads and validates harness configuration from defaults,
// config files, environment variables and CLI flags.
package config

import "time"

// Config is the root configuration.
type Config struct {
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
	Review ReviewConfig `mapstructure:"review" yaml:"review"`
	Agent  AgentConfig  `mapstructure:"agent" yaml:"agent"`
	Ledger LedgerConfig `mapstructure:"ledger" yaml:"ledger"`
	Report ReportConfig `mapstructure:"report" yaml:"report"`
	API    APIConfig    `mapstructure:"api" yaml:"api"`
	GitHub GitHubConfig `mapstructure:"github" yaml:"github"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // auto, text, json
}

// ReviewConfig holds the orchestration loop policy.
type ReviewConfig struct {
	BudgetLimit   float64       `mapstructure:"budget_limit" yaml:"budget_limit"`
	MaxIterations int           `mapstructure:"max_iterations" yaml:"max_iterations"`
	TurnPause     time.Duration `mapstructure:"turn_pause" yaml:"turn_pause"`
	SkipStyle     bool          `mapstructure:"skip_style" yaml:"skip_style"`
	Concurrency   int           `mapstructure:"concurrency" yaml:"concurrency"`
}

// AgentConfig configures the agent CLI executor.
type AgentConfig struct {
	Path          string        `mapstructure:"path" yaml:"path"`
	FastModel     string        `mapstructure:"fast_model" yaml:"fast_model"`
	StandardModel string        `mapstructure:"standard_model" yaml:"standard_model"`
	AdvancedModel string        `mapstructure:"advanced_model" yaml:"advanced_model"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	WorkDir       string        `mapstructure:"work_dir" yaml:"work_dir"`
}

// LedgerConfig locates the run archive database.
type LedgerConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// ReportConfig controls where run reports are written.
type ReportConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// APIConfig configures the status API server.
type APIConfig struct {
	Addr           string        `mapstructure:"addr" yaml:"addr"`
	AllowedOrigins []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// GitHubConfig configures the gh CLI wrapper.
type GitHubConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}
