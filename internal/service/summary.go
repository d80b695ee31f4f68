package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/sentinel-review/sentinel/internal/core"
)

// RunMetadata carries timing information for one run.
type RunMetadata struct {
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
	Iterations  int       `json:"iterations"`
}

// RunResult is the output record of one review run. It always contains
// whatever findings were gathered before termination, so a late-stage
// failure never produces an information-free result.
type RunResult struct {
	RunID            string              `json:"run_id"`
	RepositoryOwner  string              `json:"repository_owner"`
	RepositoryName   string              `json:"repository_name"`
	ChangeSetID      int                 `json:"change_set_id"`
	Success          bool                `json:"success"`
	ReviewStatus     core.ReviewStatus   `json:"review_status"`
	Verdict          core.ReviewVerdict  `json:"verdict"`
	Findings         []core.Finding      `json:"findings"`
	Summary          core.FindingSummary `json:"summary"`
	AgentsExecuted   []core.AgentID      `json:"agents_executed"`
	TotalCost        float64             `json:"total_cost"`
	TotalTokens      int                 `json:"total_tokens"`
	CompletionReason string              `json:"completion_reason"`
	Metadata         RunMetadata         `json:"metadata"`
	Error            string              `json:"error,omitempty"`
}

// BuildRunResult assembles the output record from terminal run state.
// runErr is non-nil when the run failed outside the protocol conditions
// (executor transport failure, malformed response); the result then carries
// Success=false and the error message alongside the partial findings.
func BuildRunResult(req core.ReviewRequest, state *core.RunState, runErr error) *RunResult {
	verdict := core.SynthesizeVerdict(state.Findings)

	completedAt := time.Now()
	if state.CompletedAt != nil {
		completedAt = *state.CompletedAt
	}

	result := &RunResult{
		RunID:            state.RunID,
		RepositoryOwner:  req.RepositoryOwner,
		RepositoryName:   req.RepositoryName,
		ChangeSetID:      req.ChangeSetID,
		Success:          runErr == nil,
		ReviewStatus:     verdict.Status,
		Verdict:          verdict,
		Findings:         state.Findings,
		Summary:          core.SummarizeFindings(state.Findings),
		AgentsExecuted:   state.AgentsExecuted(),
		TotalCost:        state.CostIncurred,
		TotalTokens:      state.TokensUsed,
		CompletionReason: state.CompletionReason,
		Metadata: RunMetadata{
			StartedAt:   state.StartedAt,
			CompletedAt: completedAt,
			DurationMs:  completedAt.Sub(state.StartedAt).Milliseconds(),
			Iterations:  state.Iteration,
		},
	}
	if runErr != nil {
		result.Error = runErr.Error()
	}
	return result
}

// statusHeadline maps a review status to the review body headline.
func statusHeadline(status core.ReviewStatus) string {
	switch status {
	case core.StatusApprove:
		return "✅ Approved"
	case core.StatusRequestChanges:
		return "🛑 Changes requested"
	default:
		return "💬 Review comments"
	}
}

// FormatReviewBody renders the markdown body posted to the review surface.
func FormatReviewBody(r *RunResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## %s\n\n", statusHeadline(r.ReviewStatus))

	if len(r.Findings) == 0 {
		b.WriteString("No issues found by the review agents.\n")
	} else {
		fmt.Fprintf(&b, "**%d finding(s)** — %d high, %d medium, %d low, %d info.\n\n",
			len(r.Findings), r.Summary.HighCount, r.Summary.MediumCount,
			r.Summary.LowCount, r.Summary.InfoCount)

		for _, sev := range []core.Severity{core.SeverityHigh, core.SeverityMedium, core.SeverityLow, core.SeverityInfo} {
			section := findingsBySeverity(r.Findings, sev)
			if len(section) == 0 {
				continue
			}
			fmt.Fprintf(&b, "### %s\n\n", strings.ToUpper(string(sev)))
			for _, f := range section {
				loc := f.File
				if f.Line != nil {
					loc = fmt.Sprintf("%s:%d", f.File, *f.Line)
				}
				fmt.Fprintf(&b, "- **%s** `%s` — %s", f.Type, loc, f.Message)
				if f.Recommendation != "" {
					fmt.Fprintf(&b, "\n  - Recommendation: %s", f.Recommendation)
				}
				if f.VulnerabilityID != "" {
					fmt.Fprintf(&b, " (%s)", f.VulnerabilityID)
				}
				b.WriteString("\n")
			}
			b.WriteString("\n")
		}
	}

	agents := make([]string, len(r.AgentsExecuted))
	for i, a := range r.AgentsExecuted {
		agents[i] = string(a)
	}
	fmt.Fprintf(&b, "---\n_Agents: %s · %d iterations · $%.4f · %d tokens_\n",
		strings.Join(agents, ", "), r.Metadata.Iterations, r.TotalCost, r.TotalTokens)

	return b.String()
}

func findingsBySeverity(findings []core.Finding, sev core.Severity) []core.Finding {
	var out []core.Finding
	for _, f := range findings {
		if f.Severity == sev {
			out = append(out, f)
		}
	}
	return out
}
