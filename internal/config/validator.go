package config

import (
	"fmt"
	"strings"

	"github.com/sentinel-review/sentinel/internal/core"
)

// Validate checks the configuration for invalid values. All problems are
// collected so a bad config file surfaces every mistake at once.
func Validate(cfg *Config) error {
	var problems []string

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("log.level: unknown level %q", cfg.Log.Level))
	}
	switch cfg.Log.Format {
	case "auto", "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format: unknown format %q", cfg.Log.Format))
	}

	if cfg.Review.BudgetLimit <= 0 {
		problems = append(problems, "review.budget_limit: must be positive")
	}
	if cfg.Review.MaxIterations <= 0 {
		problems = append(problems, "review.max_iterations: must be positive")
	}
	if cfg.Review.MaxIterations > 100 {
		problems = append(problems, "review.max_iterations: implausibly large, max 100")
	}
	if cfg.Review.TurnPause < 0 {
		problems = append(problems, "review.turn_pause: must not be negative")
	}
	if cfg.Review.Concurrency <= 0 {
		problems = append(problems, "review.concurrency: must be positive")
	}

	if cfg.Agent.Path == "" {
		problems = append(problems, "agent.path: agent CLI path is required")
	}
	if cfg.Agent.Timeout <= 0 {
		problems = append(problems, "agent.timeout: must be positive")
	}

	if cfg.Ledger.Path == "" {
		problems = append(problems, "ledger.path: ledger database path is required")
	}
	if cfg.Report.Dir == "" {
		problems = append(problems, "report.dir: report directory is required")
	}

	if cfg.API.Addr == "" {
		problems = append(problems, "api.addr: listen address is required")
	}
	if cfg.API.RequestTimeout <= 0 {
		problems = append(problems, "api.request_timeout: must be positive")
	}

	if cfg.GitHub.Timeout <= 0 {
		problems = append(problems, "github.timeout: must be positive")
	}

	if len(problems) > 0 {
		return core.ErrValidation(core.CodeInvalidConfig,
			"invalid configuration:\n  - "+strings.Join(problems, "\n  - "))
	}
	return nil
}
