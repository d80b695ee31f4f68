// Package executor runs review agents as external CLI processes. Each turn
// shells out to the configured agent CLI with a role-specific prompt on
// stdin and parses the JSON turn record from stdout.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/sentinel-review/sentinel/internal/core"
	"github.com/sentinel-review/sentinel/internal/logging"
	"github.com/sentinel-review/sentinel/internal/service"
)

// Config holds CLI executor configuration. Model names are resolved per
// agent tier so the coordinator and specialists can run on different
// model classes.
type Config struct {
	Path    string
	Models  map[core.ModelTier]string
	Timeout time.Duration
	WorkDir string
	// ExtraEnv is applied on top of the process environment.
	ExtraEnv map[string]string
}

// DefaultTimeout bounds a single agent turn.
const DefaultTimeout = 10 * time.Minute

// CLIExecutor implements the AgentExecutor port by invoking an external
// agent CLI once per turn.
type CLIExecutor struct {
	config   Config
	registry *core.Registry
	retry    *service.RetryPolicy
	logger   *logging.Logger
}

// Option configures a CLIExecutor.
type Option func(*CLIExecutor)

// WithLogger sets the executor logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *CLIExecutor) { e.logger = l }
}

// WithRetryPolicy overrides the default transport retry policy.
func WithRetryPolicy(p *service.RetryPolicy) Option {
	return func(e *CLIExecutor) { e.retry = p }
}

// New creates a CLI executor. The registry supplies each agent's role
// descriptor for prompt construction.
func New(cfg Config, registry *core.Registry, opts ...Option) (*CLIExecutor, error) {
	if cfg.Path == "" {
		return nil, core.ErrValidation(core.CodeInvalidConfig, "agent CLI path not configured")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	e := &CLIExecutor{
		config:   cfg,
		registry: registry,
		retry:    service.DefaultRetryPolicy(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// CheckAvailability verifies the agent CLI is installed and on PATH.
func (e *CLIExecutor) CheckAvailability() error {
	parts := strings.Fields(e.config.Path)
	if _, err := exec.LookPath(parts[0]); err != nil {
		return core.ErrNotFound("agent CLI", parts[0])
	}
	return nil
}

// ExecuteTurn runs one agent turn. Transport failures are retried per the
// configured policy; a response that does not satisfy the turn schema is a
// protocol violation and never reaches the caller as a valid response.
func (e *CLIExecutor) ExecuteTurn(ctx context.Context, agent core.AgentID, cs *core.ChangeSetContext, prior []core.AgentResponse, budgetRemaining float64) (*core.AgentResponse, error) {
	spec, err := e.registry.Spec(agent)
	if err != nil {
		return nil, err
	}

	prompt := buildPrompt(spec, cs, prior, budgetRemaining)
	log := e.logger.WithAgent(string(agent))

	var resp *core.AgentResponse
	start := time.Now()
	err = e.retry.Execute(ctx, func(ctx context.Context) error {
		out, runErr := e.run(ctx, spec, prompt)
		if runErr != nil {
			return runErr
		}
		parsed, parseErr := parseResponse(out)
		if parseErr != nil {
			return parseErr
		}
		resp = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The agent field in the output is advisory; the invocation decides
	// which agent actually ran.
	resp.Agent = agent
	if resp.DurationMs == 0 {
		resp.DurationMs = time.Since(start).Milliseconds()
	}
	if err := resp.Validate(); err != nil {
		return nil, err
	}

	log.Info("executor: turn finished",
		"success", resp.Success,
		"findings", len(resp.Findings),
		"cost", resp.Cost,
		"tokens", resp.TokensUsed,
		"duration_ms", resp.DurationMs,
	)
	return resp, nil
}

// run invokes the agent CLI once with the prompt on stdin.
func (e *CLIExecutor) run(ctx context.Context, spec *core.AgentSpec, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	args := []string{"--output-format", "json"}
	if model := e.config.Models[spec.Tier]; model != "" {
		args = append(args, "--model", model)
	}

	cmdPath := e.config.Path
	parts := strings.Fields(cmdPath)
	if len(parts) > 1 {
		cmdPath = parts[0]
		args = append(parts[1:], args...)
	}

	// #nosec G204 -- command path comes from validated config
	cmd := exec.CommandContext(ctx, cmdPath, args...)
	if e.config.WorkDir != "" {
		cmd.Dir = e.config.WorkDir
	}
	cmd.Stdin = strings.NewReader(prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	cmd.Env = os.Environ()
	cmd.Env = append(cmd.Env, "SENTINEL_MANAGED=true", "SENTINEL_AGENT="+string(spec.ID))
	for k, v := range e.config.ExtraEnv {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	e.logger.Debug("executor: invoking agent CLI",
		"agent", spec.ID,
		"path", cmdPath,
		"args", args,
		"prompt_length", len(prompt),
	)

	err := cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		return "", core.ErrTimeout(fmt.Sprintf("agent turn timed out after %v", e.config.Timeout))
	}
	if ctx.Err() == context.Canceled {
		return "", ctx.Err()
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", classifyError(exitErr.ExitCode(), stderr.String(), stdout.String())
		}
		return "", fmt.Errorf("executing agent CLI: %w", err)
	}

	return stdout.String(), nil
}

// classifyError converts a non-zero CLI exit into a domain error.
func classifyError(exitCode int, stderr, stdout string) error {
	msg := strings.TrimSpace(stderr)
	if msg == "" {
		msg = strings.TrimSpace(stdout)
	}
	if msg == "" {
		msg = "(no error output captured)"
	}
	lower := strings.ToLower(msg)

	switch {
	case containsAny(lower, "rate limit", "too many requests", "429", "quota"):
		return core.ErrRateLimit(msg)
	case containsAny(lower, "connection", "network", "unreachable", "dns"):
		return core.ErrNetwork(msg)
	}
	return core.ErrExecution(core.CodeAgentFailed,
		fmt.Sprintf("agent CLI exited with code %d: %s", exitCode, msg))
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
