// Package service implements the handoff orchestration engine: the
// sequential state machine that drives review agents through a bounded,
// auditable loop and synthesizes the final verdict.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sentinel-review/sentinel/internal/core"
	"github.com/sentinel-review/sentinel/internal/events"
	"github.com/sentinel-review/sentinel/internal/logging"
)

// DefaultTurnPause is the fixed pause between agent turns.
const DefaultTurnPause = 500 * time.Millisecond

// Engine orchestrates one review run at a time per call. Engines hold no
// per-run state and are safe for concurrent Run calls: each run owns its
// own RunState and registry, so independent pull requests can be reviewed
// in parallel.
type Engine struct {
	fetcher   core.ChangeSetFetcher
	executor  core.AgentExecutor
	ledger    core.CostLedger
	publisher core.ReviewPublisher
	bus       *events.Bus
	logger    *logging.Logger
	turnPause time.Duration
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *logging.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithBus sets the event bus the engine publishes run events on.
func WithBus(b *events.Bus) EngineOption {
	return func(e *Engine) { e.bus = b }
}

// WithTurnPause overrides the inter-turn pause. Tests set this to zero.
func WithTurnPause(d time.Duration) EngineOption {
	return func(e *Engine) { e.turnPause = d }
}

// NewEngine creates a review engine from its collaborators.
func NewEngine(
	fetcher core.ChangeSetFetcher,
	executor core.AgentExecutor,
	ledger core.CostLedger,
	publisher core.ReviewPublisher,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		fetcher:   fetcher,
		executor:  executor,
		ledger:    ledger,
		publisher: publisher,
		logger:    logging.NewNop(),
		turnPause: DefaultTurnPause,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one complete review. The returned result is never nil for a
// run that started: whatever findings were accumulated before a failure are
// always preserved in it. An error return means the run could not start at
// all (invalid request or registry construction failure).
func (e *Engine) Run(ctx context.Context, req core.ReviewRequest) (*RunResult, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	regOpts := make([]core.RegistryOption, 0, 2)
	if len(req.AgentsToRun) > 0 {
		regOpts = append(regOpts, core.WithAgents(req.AgentsToRun...))
	}
	if req.SkipStyle {
		regOpts = append(regOpts, core.WithSkipStyle())
	}
	registry, err := core.NewRegistry(regOpts...)
	if err != nil {
		return nil, err
	}

	runID := "run-" + uuid.NewString()
	state := core.NewRunState(runID)
	log := e.logger.WithRun(runID)

	log.Info("starting review run",
		"owner", req.RepositoryOwner,
		"repo", req.RepositoryName,
		"change_set", req.ChangeSetID,
		"budget_limit", req.BudgetLimit,
		"max_iterations", req.MaxIterations,
	)

	cs, err := e.fetcher.FetchChangeSet(ctx, req.RepositoryOwner, req.RepositoryName, req.ChangeSetID)
	if err != nil {
		log.Error("fetching change-set failed", "error", err)
		state.Complete(core.ReasonExecutorError)
		return e.finish(ctx, log, req, state, nil, err), nil
	}

	runErr := e.loop(ctx, log, registry, req, state, cs)
	return e.finish(ctx, log, req, state, cs, runErr), nil
}

// loop runs agent turns until one of the termination conditions fires.
// It returns non-nil only for executor transport failures; protocol and
// circuit-breaker terminations are normal completions.
func (e *Engine) loop(
	ctx context.Context,
	log *logging.Logger,
	registry *core.Registry,
	req core.ReviewRequest,
	state *core.RunState,
	cs *core.ChangeSetContext,
) error {
	for !state.Completed {
		if err := ctx.Err(); err != nil {
			state.Complete(core.ReasonExecutorError)
			return err
		}

		state.Iteration++

		// Budget breaker trips before the next agent runs, on cost
		// already incurred.
		if state.CostIncurred >= req.BudgetLimit {
			log.Warn("budget limit reached",
				"cost_incurred", state.CostIncurred,
				"budget_limit", req.BudgetLimit,
			)
			state.Complete(core.ReasonBudgetLimit)
			return nil
		}

		agent := state.CurrentAgent
		e.publish(events.NewTurnStarted(state.RunID, string(agent), state.Iteration))
		log.Info("executing agent turn", "agent", agent, "iteration", state.Iteration)

		resp, err := e.executor.ExecuteTurn(ctx, agent, cs, state.Responses, req.BudgetLimit-state.CostIncurred)
		if err != nil {
			log.Error("agent executor failed", "agent", agent, "error", err)
			state.Complete(core.ReasonExecutorError)
			return err
		}

		// The executor boundary validates responses; a malformed one
		// slipping through is still fatal, never retried.
		if verr := resp.Validate(); verr != nil {
			log.Error("malformed agent response", "agent", agent, "error", verr)
			state.Complete(core.ReasonMalformedResponse)
			return verr
		}

		state.RecordTurn(*resp)
		if e.ledger != nil {
			e.ledger.RecordAgentCost(ctx, state.RunID, agent, resp.Cost, resp.TokensUsed)
		}

		next := ""
		if resp.WantsHandoff() {
			next = string(*resp.NextAgent)
		}
		e.publish(events.NewTurnCompleted(state.RunID, string(agent), state.Iteration,
			resp.Success, len(resp.Findings), resp.Cost, resp.TokensUsed, next))
		log.Info("agent turn completed",
			"agent", agent,
			"success", resp.Success,
			"findings", len(resp.Findings),
			"cost", resp.Cost,
			"tokens", resp.TokensUsed,
			"next_agent", next,
		)

		if !resp.WantsHandoff() {
			state.Complete(core.ReasonAgentCompleted)
			return nil
		}

		proposed := *resp.NextAgent
		if err := registry.ValidateHandoff(agent, proposed); err != nil {
			log.Warn("invalid handoff proposed", "from", agent, "to", proposed)
			state.Complete(core.ReasonInvalidHandoff)
			return nil
		}

		if core.DetectHandoffLoop(state.AgentHistory, proposed) {
			log.Warn("handoff loop detected", "history", state.AgentHistory, "proposed", proposed)
			state.Complete(core.ReasonHandoffLoop)
			return nil
		}

		if state.Iteration >= req.MaxIterations {
			log.Warn("iteration ceiling reached", "iterations", state.Iteration)
			state.Complete(core.ReasonMaxIterations)
			return nil
		}

		state.CurrentAgent = proposed

		if e.turnPause > 0 {
			select {
			case <-ctx.Done():
				state.Complete(core.ReasonExecutorError)
				return ctx.Err()
			case <-time.After(e.turnPause):
			}
		}
	}
	return nil
}

// finish synthesizes the verdict, assembles the run result, and publishes
// the review. Findings accumulated before any failure are always kept.
func (e *Engine) finish(
	ctx context.Context,
	log *logging.Logger,
	req core.ReviewRequest,
	state *core.RunState,
	cs *core.ChangeSetContext,
	runErr error,
) *RunResult {
	result := BuildRunResult(req, state, runErr)

	e.publish(events.NewRunCompleted(state.RunID, state.CompletionReason,
		string(result.ReviewStatus), state.Iteration, state.CostIncurred))
	log.Info("review run completed",
		"reason", state.CompletionReason,
		"status", result.ReviewStatus,
		"findings", len(result.Findings),
		"iterations", result.Metadata.Iterations,
		"total_cost", result.TotalCost,
		"success", result.Success,
	)

	if result.Success && e.publisher != nil && cs != nil {
		body := FormatReviewBody(result)
		if err := e.publisher.PublishReview(ctx, cs, result.Findings, result.ReviewStatus, body); err != nil {
			log.Error("publishing review failed", "error", err)
		}
	}

	return result
}

func (e *Engine) publish(ev events.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}
