package core

// AgentResponse is one agent's turn output. The Agent Executor collaborator
// produces exactly one per turn; the orchestration loop consumes it exactly
// once. An absent NextAgent means the agent considers the review complete.
type AgentResponse struct {
	Agent         AgentID   `json:"agent"`
	Success       bool      `json:"success"`
	Summary       string    `json:"summary"`
	Findings      []Finding `json:"findings,omitempty"`
	NextAgent     *AgentID  `json:"next_agent,omitempty"`
	HandoffReason string    `json:"handoff_reason,omitempty"`
	ToolsUsed     []string  `json:"tools_used,omitempty"`
	TokensUsed    int       `json:"tokens_used"`
	Cost          float64   `json:"cost"`
	DurationMs    int64     `json:"duration_ms"`
}

// WantsHandoff reports whether the response proposes a next agent.
func (r *AgentResponse) WantsHandoff() bool {
	return r.NextAgent != nil && *r.NextAgent != ""
}

// Validate enforces the response schema contract. Responses that fail
// validation must never reach the orchestration loop: the executor
// boundary rejects them as protocol violations.
func (r *AgentResponse) Validate() error {
	if !r.Agent.IsValid() {
		return ErrProtocol(CodeMalformedResponse,
			"response names an unknown agent").WithDetail("agent", string(r.Agent))
	}
	if r.NextAgent != nil && !r.NextAgent.IsValid() {
		return ErrProtocol(CodeMalformedResponse,
			"response proposes an unknown next agent").WithDetail("next_agent", string(*r.NextAgent))
	}
	if r.TokensUsed < 0 {
		return ErrProtocol(CodeMalformedResponse, "negative token count")
	}
	if r.Cost < 0 {
		return ErrProtocol(CodeMalformedResponse, "negative cost")
	}
	for i, f := range r.Findings {
		if !f.Severity.IsValid() {
			return ErrProtocol(CodeMalformedResponse,
				"finding has unknown severity").
				WithDetail("index", i).
				WithDetail("severity", string(f.Severity))
		}
		if f.Message == "" {
			return ErrProtocol(CodeMalformedResponse,
				"finding has empty message").WithDetail("index", i)
		}
	}
	return nil
}
