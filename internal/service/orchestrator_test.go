package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/sentinel-review/sentinel/internal/core"
)

// scriptedStep is one turn of a scripted executor.
type scriptedStep struct {
	resp *core.AgentResponse
	err  error
}

// scriptedExecutor replays a fixed sequence of turns and records what it
// was asked to execute.
type scriptedExecutor struct {
	mu     sync.Mutex
	steps  []scriptedStep
	calls  []core.AgentID
	budget []float64
}

func (s *scriptedExecutor) ExecuteTurn(_ context.Context, agent core.AgentID, _ *core.ChangeSetContext, _ []core.AgentResponse, budgetRemaining float64) (*core.AgentResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, agent)
	s.budget = append(s.budget, budgetRemaining)
	if len(s.steps) == 0 {
		return nil, errors.New("scripted executor exhausted")
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	return step.resp, step.err
}

type fakeFetcher struct {
	cs  *core.ChangeSetContext
	err error
}

func (f *fakeFetcher) FetchChangeSet(context.Context, string, string, int) (*core.ChangeSetContext, error) {
	return f.cs, f.err
}

type recordingLedger struct {
	mu      sync.Mutex
	entries []float64
}

func (l *recordingLedger) RecordAgentCost(_ context.Context, _ string, _ core.AgentID, cost float64, _ int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, cost)
}

type recordingPublisher struct {
	mu     sync.Mutex
	calls  int
	status core.ReviewStatus
	body   string
}

func (p *recordingPublisher) PublishReview(_ context.Context, _ *core.ChangeSetContext, _ []core.Finding, status core.ReviewStatus, body string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.status = status
	p.body = body
	return nil
}

func handoff(agent, next core.AgentID, cost float64, tokens int, findings ...core.Finding) scriptedStep {
	return scriptedStep{resp: &core.AgentResponse{
		Agent:      agent,
		Success:    true,
		NextAgent:  &next,
		Findings:   findings,
		Cost:       cost,
		TokensUsed: tokens,
	}}
}

func completion(agent core.AgentID, cost float64, tokens int) scriptedStep {
	return scriptedStep{resp: &core.AgentResponse{
		Agent:      agent,
		Success:    true,
		Cost:       cost,
		TokensUsed: tokens,
	}}
}

func newTestEngine(exec core.AgentExecutor, ledger core.CostLedger, pub core.ReviewPublisher) *Engine {
	fetcher := &fakeFetcher{cs: &core.ChangeSetContext{Owner: "acme", Repo: "widget", Number: 123}}
	return NewEngine(fetcher, exec, ledger, pub, WithTurnPause(0))
}

func baseRequest() core.ReviewRequest {
	return core.ReviewRequest{
		RepositoryOwner: "acme",
		RepositoryName:  "widget",
		ChangeSetID:     123,
	}
}

func TestEngine_EndToEndScenario(t *testing.T) {
	line := 12
	exec := &scriptedExecutor{steps: []scriptedStep{
		handoff(core.AgentCoordinator, core.AgentSecurity, 0.05, 1000),
		handoff(core.AgentSecurity, core.AgentCoordinator, 0.05, 900, core.Finding{
			Type:     core.FindingVulnerability,
			Severity: core.SeverityHigh,
			File:     "package.json",
			Line:     &line,
			Message:  "dependency with known CVE",
		}),
		handoff(core.AgentCoordinator, core.AgentCodeReview, 0.03, 500),
		handoff(core.AgentCodeReview, core.AgentCoordinator, 0.01, 400, core.Finding{
			Type:     core.FindingBug,
			Severity: core.SeverityMedium,
			File:     "src/index.js",
			Message:  "nil dereference on empty input",
		}),
		completion(core.AgentCoordinator, 0, 100),
	}}
	ledger := &recordingLedger{}
	pub := &recordingPublisher{}
	engine := newTestEngine(exec, ledger, pub)

	req := baseRequest()
	req.BudgetLimit = 1.0

	result, err := engine.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !result.Success {
		t.Error("Success = false, want true")
	}
	if result.ReviewStatus != core.StatusRequestChanges {
		t.Errorf("ReviewStatus = %s, want request_changes", result.ReviewStatus)
	}
	if len(result.Findings) != 2 {
		t.Errorf("findings = %d, want 2", len(result.Findings))
	}
	if result.Summary.HighCount != 1 || result.Summary.MediumCount != 1 {
		t.Errorf("summary = %+v", result.Summary)
	}
	wantAgents := []core.AgentID{core.AgentCoordinator, core.AgentSecurity, core.AgentCodeReview}
	if len(result.AgentsExecuted) != len(wantAgents) {
		t.Fatalf("agentsExecuted = %v, want %v", result.AgentsExecuted, wantAgents)
	}
	for i := range wantAgents {
		if result.AgentsExecuted[i] != wantAgents[i] {
			t.Errorf("agentsExecuted[%d] = %s, want %s", i, result.AgentsExecuted[i], wantAgents[i])
		}
	}
	if math.Abs(result.TotalCost-0.14) > 1e-9 {
		t.Errorf("TotalCost = %v, want 0.14", result.TotalCost)
	}
	if result.Metadata.Iterations != 5 {
		t.Errorf("iterations = %d, want 5", result.Metadata.Iterations)
	}
	if result.CompletionReason != core.ReasonAgentCompleted {
		t.Errorf("completionReason = %q", result.CompletionReason)
	}
	if result.Verdict.BlockingFindingCount != 1 {
		t.Errorf("blocking count = %d, want 1", result.Verdict.BlockingFindingCount)
	}
	if len(ledger.entries) != 5 {
		t.Errorf("ledger writes = %d, want 5", len(ledger.entries))
	}
	if pub.calls != 1 {
		t.Errorf("publisher calls = %d, want exactly 1", pub.calls)
	}
	if pub.status != core.StatusRequestChanges {
		t.Errorf("published status = %s", pub.status)
	}
	if !strings.Contains(pub.body, "package.json") {
		t.Errorf("review body should mention the finding location:\n%s", pub.body)
	}
}

func TestEngine_LoopDetection(t *testing.T) {
	exec := &scriptedExecutor{steps: []scriptedStep{
		handoff(core.AgentCoordinator, core.AgentSecurity, 0.01, 10),
		handoff(core.AgentSecurity, core.AgentCoordinator, 0.01, 10),
		handoff(core.AgentCoordinator, core.AgentSecurity, 0.01, 10),
		handoff(core.AgentSecurity, core.AgentCoordinator, 0.01, 10),
		// A fifth turn must never execute.
		handoff(core.AgentCoordinator, core.AgentSecurity, 0.01, 10),
	}}
	engine := newTestEngine(exec, nil, nil)

	result, err := engine.Run(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.CompletionReason != core.ReasonHandoffLoop {
		t.Errorf("completionReason = %q, want %q", result.CompletionReason, core.ReasonHandoffLoop)
	}
	if len(exec.calls) != 4 {
		t.Errorf("executor calls = %d, want 4 (no fifth turn)", len(exec.calls))
	}
	if !result.Success {
		t.Error("loop detection is a normal termination, not a failure")
	}
}

func TestEngine_InvalidHandoff(t *testing.T) {
	exec := &scriptedExecutor{steps: []scriptedStep{
		handoff(core.AgentCoordinator, core.AgentSecurity, 0.01, 10),
		handoff(core.AgentSecurity, core.AgentStyle, 0.01, 10, core.Finding{
			Type: core.FindingInfo, Severity: core.SeverityLow, Message: "note",
		}),
	}}
	engine := newTestEngine(exec, nil, nil)

	result, err := engine.Run(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.CompletionReason != core.ReasonInvalidHandoff {
		t.Errorf("completionReason = %q, want %q", result.CompletionReason, core.ReasonInvalidHandoff)
	}
	// The run keeps the findings collected before the violation.
	if len(result.Findings) != 1 {
		t.Errorf("findings = %d, want 1", len(result.Findings))
	}
	if len(exec.calls) != 2 {
		t.Errorf("executor calls = %d, want 2", len(exec.calls))
	}
}

func TestEngine_BudgetBreaker(t *testing.T) {
	exec := &scriptedExecutor{steps: []scriptedStep{
		handoff(core.AgentCoordinator, core.AgentSecurity, 0.06, 10),
		handoff(core.AgentSecurity, core.AgentCoordinator, 0.06, 10),
		handoff(core.AgentCoordinator, core.AgentCodeReview, 0.06, 10),
	}}
	engine := newTestEngine(exec, nil, nil)

	req := baseRequest()
	req.BudgetLimit = 0.1

	result, err := engine.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.CompletionReason != core.ReasonBudgetLimit {
		t.Errorf("completionReason = %q, want %q", result.CompletionReason, core.ReasonBudgetLimit)
	}
	// Turn 1 starts at 0.00, turn 2 at 0.06; the third turn would start at
	// 0.12 >= 0.10 and must never begin.
	if len(exec.calls) != 2 {
		t.Errorf("executor calls = %d, want 2", len(exec.calls))
	}
	if math.Abs(result.TotalCost-0.12) > 1e-9 {
		t.Errorf("TotalCost = %v, want 0.12", result.TotalCost)
	}
	for i, b := range exec.budget {
		if b <= 0 {
			t.Errorf("turn %d started with non-positive budget remaining %v", i+1, b)
		}
	}
}

func TestEngine_IterationCeiling(t *testing.T) {
	exec := &scriptedExecutor{steps: []scriptedStep{
		handoff(core.AgentCoordinator, core.AgentSecurity, 0.01, 10),
		handoff(core.AgentSecurity, core.AgentCoordinator, 0.01, 10),
		handoff(core.AgentCoordinator, core.AgentCodeReview, 0.01, 10),
		handoff(core.AgentCodeReview, core.AgentCoordinator, 0.01, 10),
	}}
	engine := newTestEngine(exec, nil, nil)

	req := baseRequest()
	req.MaxIterations = 3

	result, err := engine.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.CompletionReason != core.ReasonMaxIterations {
		t.Errorf("completionReason = %q, want %q", result.CompletionReason, core.ReasonMaxIterations)
	}
	if len(exec.calls) != 3 {
		t.Errorf("executor calls = %d, want 3", len(exec.calls))
	}
	if result.Metadata.Iterations != 3 {
		t.Errorf("iterations = %d, want 3", result.Metadata.Iterations)
	}
}

func TestEngine_PartialFailurePreservesFindings(t *testing.T) {
	exec := &scriptedExecutor{steps: []scriptedStep{
		handoff(core.AgentCoordinator, core.AgentSecurity, 0.02, 10, core.Finding{
			Type: core.FindingInfo, Severity: core.SeverityLow, Message: "first",
		}),
		handoff(core.AgentSecurity, core.AgentCoordinator, 0.02, 10, core.Finding{
			Type: core.FindingBug, Severity: core.SeverityMedium, Message: "second",
		}),
		{err: errors.New("provider unreachable")},
	}}
	pub := &recordingPublisher{}
	engine := newTestEngine(exec, nil, pub)

	result, err := engine.Run(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Success {
		t.Error("Success = true, want false after executor failure")
	}
	if len(result.Findings) != 2 {
		t.Errorf("findings = %d, want 2 preserved", len(result.Findings))
	}
	if result.Error == "" || !strings.Contains(result.Error, "provider unreachable") {
		t.Errorf("Error = %q, want executor message", result.Error)
	}
	if result.CompletionReason != core.ReasonExecutorError {
		t.Errorf("completionReason = %q", result.CompletionReason)
	}
	if pub.calls != 0 {
		t.Error("failed runs must not publish a verdict")
	}
}

func TestEngine_MalformedResponseIsFatal(t *testing.T) {
	exec := &scriptedExecutor{steps: []scriptedStep{
		{resp: &core.AgentResponse{Agent: "optimizer", Success: true}},
	}}
	engine := newTestEngine(exec, nil, nil)

	result, err := engine.Run(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Success {
		t.Error("malformed responses must fail the run")
	}
	if result.CompletionReason != core.ReasonMalformedResponse {
		t.Errorf("completionReason = %q", result.CompletionReason)
	}
}

func TestEngine_FailedTurnDoesNotContributeFindings(t *testing.T) {
	next := core.AgentSecurity
	exec := &scriptedExecutor{steps: []scriptedStep{
		{resp: &core.AgentResponse{
			Agent:     core.AgentCoordinator,
			Success:   false,
			NextAgent: &next,
			Cost:      0.03,
			Findings:  []core.Finding{{Type: core.FindingBug, Severity: core.SeverityHigh, Message: "junk"}},
		}},
		completion(core.AgentSecurity, 0.01, 10),
	}}
	engine := newTestEngine(exec, nil, nil)

	result, err := engine.Run(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(result.Findings) != 0 {
		t.Errorf("findings from failed turns must be dropped, got %d", len(result.Findings))
	}
	if math.Abs(result.TotalCost-0.04) > 1e-9 {
		t.Errorf("failed turns still cost money: TotalCost = %v, want 0.04", result.TotalCost)
	}
	if result.ReviewStatus != core.StatusApprove {
		t.Errorf("ReviewStatus = %s, want approve with no findings", result.ReviewStatus)
	}
}

func TestEngine_SkipStyleRestrictsTopology(t *testing.T) {
	exec := &scriptedExecutor{steps: []scriptedStep{
		handoff(core.AgentCoordinator, core.AgentStyle, 0.01, 10),
	}}
	engine := newTestEngine(exec, nil, nil)

	req := baseRequest()
	req.SkipStyle = true

	result, err := engine.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.CompletionReason != core.ReasonInvalidHandoff {
		t.Errorf("handoff to skipped agent should be invalid, got %q", result.CompletionReason)
	}
}

func TestEngine_FetchFailure(t *testing.T) {
	engine := NewEngine(
		&fakeFetcher{err: errors.New("gh: not found")},
		&scriptedExecutor{},
		nil, nil,
		WithTurnPause(0),
	)

	result, err := engine.Run(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Success {
		t.Error("fetch failure must fail the run")
	}
	if len(result.Findings) != 0 {
		t.Error("no findings expected before the first turn")
	}
	if result.Error == "" {
		t.Error("error message should be surfaced")
	}
}

func TestEngine_InvalidRequest(t *testing.T) {
	engine := newTestEngine(&scriptedExecutor{}, nil, nil)
	_, err := engine.Run(context.Background(), core.ReviewRequest{})
	if err == nil {
		t.Fatal("empty request should be rejected")
	}
	if !core.IsCategory(err, core.ErrCatValidation) {
		t.Errorf("error category = %v, want validation", core.GetCategory(err))
	}
}
