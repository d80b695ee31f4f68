package core

import "fmt"

// AgentID identifies one of the specialist review agents.
type AgentID string

const (
	// AgentCoordinator routes the review: it decides which specialist
	// runs next and when the review is done. It is the only agent that
	// workers may hand back to.
	AgentCoordinator AgentID = "coordinator"

	// AgentSecurity scans the change-set for vulnerabilities.
	AgentSecurity AgentID = "security"

	// AgentCodeReview looks for bugs, logic errors and missed edge cases.
	AgentCodeReview AgentID = "codereview"

	// AgentStyle checks formatting, naming and documentation conventions.
	AgentStyle AgentID = "style"
)

// AllAgents returns every known agent identifier.
func AllAgents() []AgentID {
	return []AgentID{AgentCoordinator, AgentSecurity, AgentCodeReview, AgentStyle}
}

// WorkerAgents returns the non-coordinator agents.
func WorkerAgents() []AgentID {
	return []AgentID{AgentSecurity, AgentCodeReview, AgentStyle}
}

// IsValid reports whether the identifier names a known agent.
func (a AgentID) IsValid() bool {
	switch a {
	case AgentCoordinator, AgentSecurity, AgentCodeReview, AgentStyle:
		return true
	}
	return false
}

// IsWorker reports whether the agent is a specialist (non-coordinator).
func (a AgentID) IsWorker() bool {
	return a.IsValid() && a != AgentCoordinator
}

// ParseAgentID converts a string into an AgentID.
func ParseAgentID(s string) (AgentID, error) {
	id := AgentID(s)
	if !id.IsValid() {
		return "", ErrValidation(CodeUnknownAgent, fmt.Sprintf("unknown agent: %q", s))
	}
	return id, nil
}

// ModelTier selects the model class an agent runs on.
type ModelTier string

const (
	TierFast     ModelTier = "fast"
	TierStandard ModelTier = "standard"
	TierAdvanced ModelTier = "advanced"
)

// AgentSpec is the static descriptor for one agent. Specs are built once
// at registry construction and are read-only thereafter.
type AgentSpec struct {
	ID                  AgentID
	Tier                ModelTier
	ToolCapabilities    map[string]bool
	LegalHandoffTargets map[AgentID]bool
	MaxIterationsHint   int
	Temperature         float64
}

// CanUseTool reports whether the agent's capability set includes the tool.
func (s *AgentSpec) CanUseTool(name string) bool {
	return s.ToolCapabilities[name]
}

// Tool names agents may be granted.
const (
	ToolFetchDiff        = "fetch_diff"
	ToolListChangedFiles = "list_changed_files"
	ToolQueryVulnDB      = "query_vuln_db"
	ToolPostComment      = "post_comment"
)
