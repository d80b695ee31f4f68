package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-review/sentinel/internal/core"
)

func validConfig() *Config {
	return &Config{
		Log:    LogConfig{Level: "info", Format: "auto"},
		Review: ReviewConfig{BudgetLimit: 5.0, MaxIterations: 15, TurnPause: 500 * time.Millisecond, Concurrency: 2},
		Agent:  AgentConfig{Path: "claude", Timeout: 10 * time.Minute},
		Ledger: LedgerConfig{Path: ".sentinel/ledger.db"},
		Report: ReportConfig{Dir: ".sentinel/reports"},
		API:    APIConfig{Addr: "127.0.0.1:7777", RequestTimeout: 30 * time.Second},
		GitHub: GitHubConfig{Timeout: time.Minute},
	}
}

func TestValidateAccepts(t *testing.T) {
	require.NoError(t, Validate(validConfig()))
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		mention string
	}{
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"zero budget", func(c *Config) { c.Review.BudgetLimit = 0 }, "budget_limit"},
		{"negative budget", func(c *Config) { c.Review.BudgetLimit = -1 }, "budget_limit"},
		{"zero iterations", func(c *Config) { c.Review.MaxIterations = 0 }, "max_iterations"},
		{"huge iterations", func(c *Config) { c.Review.MaxIterations = 500 }, "max_iterations"},
		{"negative pause", func(c *Config) { c.Review.TurnPause = -time.Second }, "turn_pause"},
		{"zero concurrency", func(c *Config) { c.Review.Concurrency = 0 }, "concurrency"},
		{"missing agent path", func(c *Config) { c.Agent.Path = "" }, "agent.path"},
		{"zero agent timeout", func(c *Config) { c.Agent.Timeout = 0 }, "agent.timeout"},
		{"missing ledger path", func(c *Config) { c.Ledger.Path = "" }, "ledger.path"},
		{"missing report dir", func(c *Config) { c.Report.Dir = "" }, "report.dir"},
		{"missing api addr", func(c *Config) { c.API.Addr = "" }, "api.addr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.True(t, core.IsCategory(err, core.ErrCatValidation))
			assert.Contains(t, err.Error(), tt.mention)
		})
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Log.Level = "loud"
	cfg.Review.BudgetLimit = 0
	cfg.Agent.Path = ""

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level")
	assert.Contains(t, err.Error(), "budget_limit")
	assert.Contains(t, err.Error(), "agent.path")
}
