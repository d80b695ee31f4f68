package core

import "time"

// Completion reason strings, one per in-core termination condition. Each is
// distinct so callers can tell budget exhaustion, iteration ceilings and
// routing bugs apart when reading run records.
const (
	ReasonAgentCompleted    = "agent reported completion"
	ReasonInvalidHandoff    = "invalid handoff"
	ReasonHandoffLoop       = "handoff loop detected"
	ReasonBudgetLimit       = "budget limit exceeded"
	ReasonMaxIterations     = "max iterations reached"
	ReasonExecutorError     = "agent executor error"
	ReasonMalformedResponse = "malformed agent response"
)

// RunState is the mutable core of one review run. It is owned exclusively by
// the orchestration loop for the lifetime of the run: no other component
// reads or writes it mid-run. CostIncurred and TokensUsed only increase,
// Findings only grows, and Iteration advances by exactly one per turn.
type RunState struct {
	RunID            string          `json:"run_id"`
	CurrentAgent     AgentID         `json:"current_agent"`
	AgentHistory     []AgentID       `json:"agent_history"`
	Responses        []AgentResponse `json:"responses"`
	Findings         []Finding       `json:"findings"`
	CostIncurred     float64         `json:"cost_incurred"`
	TokensUsed       int             `json:"tokens_used"`
	Iteration        int             `json:"iteration"`
	Completed        bool            `json:"completed"`
	CompletionReason string          `json:"completion_reason,omitempty"`
	StartedAt        time.Time       `json:"started_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
}

// NewRunState creates the state for a fresh run. Every review starts at the
// coordinator with iteration zero.
func NewRunState(runID string) *RunState {
	return &RunState{
		RunID:        runID,
		CurrentAgent: AgentCoordinator,
		AgentHistory: make([]AgentID, 0, 8),
		Responses:    make([]AgentResponse, 0, 8),
		Findings:     make([]Finding, 0),
		StartedAt:    time.Now(),
	}
}

// RecordTurn merges one agent response into the run state: the executing
// agent joins the history, cost and token counters advance, and findings
// from successful turns are appended. Findings from failed turns are
// discarded; their cost is still charged.
func (s *RunState) RecordTurn(resp AgentResponse) {
	s.AgentHistory = append(s.AgentHistory, s.CurrentAgent)
	s.Responses = append(s.Responses, resp)
	s.CostIncurred += resp.Cost
	s.TokensUsed += resp.TokensUsed
	if resp.Success {
		s.Findings = append(s.Findings, resp.Findings...)
	}
}

// Complete marks the run terminal with the given reason. Once completed,
// no further turns execute.
func (s *RunState) Complete(reason string) {
	if s.Completed {
		return
	}
	s.Completed = true
	s.CompletionReason = reason
	now := time.Now()
	s.CompletedAt = &now
}

// AgentsExecuted returns the deduplicated history in first-seen order.
func (s *RunState) AgentsExecuted() []AgentID {
	seen := make(map[AgentID]bool, len(s.AgentHistory))
	out := make([]AgentID, 0, len(s.AgentHistory))
	for _, a := range s.AgentHistory {
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	return out
}

// Duration returns the wall-clock duration of the run so far, or the final
// duration once the run is complete.
func (s *RunState) Duration() time.Duration {
	end := time.Now()
	if s.CompletedAt != nil {
		end = *s.CompletedAt
	}
	return end.Sub(s.StartedAt)
}

// DetectHandoffLoop reports whether appending proposed to history would
// continue a period-2 oscillation (pattern ... A, B, A, B -> A). Detection
// needs at least five entries including the proposed one; shorter histories
// never trip it. Longer oscillation periods are deliberately not detected,
// matching the narrow window the iteration ceiling backstops anyway.
func DetectHandoffLoop(history []AgentID, proposed AgentID) bool {
	h := make([]AgentID, 0, len(history)+1)
	h = append(h, history...)
	h = append(h, proposed)
	if len(h) < 5 {
		return false
	}
	n := len(h)
	return h[n-1] == h[n-3] && h[n-2] == h[n-4]
}
