package core

import "context"

// =============================================================================
// Review request
// =============================================================================

// Default circuit breaker policy values.
const (
	DefaultBudgetLimit   = 5.0
	DefaultMaxIterations = 15
)

// ReviewRequest is the input record for one review run.
type ReviewRequest struct {
	RepositoryOwner string    `json:"repository_owner"`
	RepositoryName  string    `json:"repository_name"`
	ChangeSetID     int       `json:"change_set_id"`
	BudgetLimit     float64   `json:"budget_limit,omitempty"`
	MaxIterations   int       `json:"max_iterations,omitempty"`
	AgentsToRun     []AgentID `json:"agents_to_run,omitempty"`
	SkipStyle       bool      `json:"skip_style,omitempty"`
}

// Normalize applies default policy values in place.
func (r *ReviewRequest) Normalize() {
	if r.BudgetLimit <= 0 {
		r.BudgetLimit = DefaultBudgetLimit
	}
	if r.MaxIterations <= 0 {
		r.MaxIterations = DefaultMaxIterations
	}
}

// Validate checks the request invariants.
func (r *ReviewRequest) Validate() error {
	if r.RepositoryOwner == "" {
		return ErrValidation(CodeInvalidRequest, "repository owner cannot be empty")
	}
	if r.RepositoryName == "" {
		return ErrValidation(CodeInvalidRequest, "repository name cannot be empty")
	}
	if r.ChangeSetID <= 0 {
		return ErrValidation(CodeInvalidRequest, "change-set id must be positive")
	}
	for _, a := range r.AgentsToRun {
		if !a.IsValid() {
			return ErrValidation(CodeUnknownAgent, "unknown agent in agents_to_run: "+string(a))
		}
	}
	return nil
}

// =============================================================================
// ChangeSetFetcher port
// =============================================================================

// ChangedFile is one file touched by the change-set.
type ChangedFile struct {
	Path      string `json:"path"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Status    string `json:"status"` // added, modified, removed, renamed
}

// ChangeSetContext is the read-only snapshot of the pull request under
// review, fetched once at run start and shared with every agent turn.
type ChangeSetContext struct {
	Owner        string        `json:"owner"`
	Repo         string        `json:"repo"`
	Number       int           `json:"number"`
	Title        string        `json:"title"`
	Body         string        `json:"body"`
	Author       string        `json:"author"`
	BaseBranch   string        `json:"base_branch"`
	HeadBranch   string        `json:"head_branch"`
	HeadSHA      string        `json:"head_sha"`
	Diff         string        `json:"diff"`
	ChangedFiles []ChangedFile `json:"changed_files"`
}

// ChangeSetFetcher retrieves the change-set under review. Called once at
// run start; read-only.
type ChangeSetFetcher interface {
	FetchChangeSet(ctx context.Context, owner, repo string, number int) (*ChangeSetContext, error)
}

// =============================================================================
// AgentExecutor port
// =============================================================================

// AgentExecutor produces one AgentResponse per turn. Implementations must
// resolve within bounded time, must report "no findings" as success with an
// empty findings list, and must surface genuine agent failures as
// Success=false rather than an error. An error return is a transport
// failure: the loop converts it into a failed run that keeps all findings
// accumulated so far. Calls must be safe to retry at the caller's
// durable-execution layer.
type AgentExecutor interface {
	ExecuteTurn(ctx context.Context, agent AgentID, cs *ChangeSetContext, prior []AgentResponse, budgetRemaining float64) (*AgentResponse, error)
}

// =============================================================================
// CostLedger port
// =============================================================================

// CostLedger records per-turn spend. RecordAgentCost is fire-and-forget:
// implementations log failures but a ledger write error never aborts a run.
type CostLedger interface {
	RecordAgentCost(ctx context.Context, runID string, agent AgentID, cost float64, tokens int)
}

// =============================================================================
// ReviewPublisher port
// =============================================================================

// ReviewPublisher posts the synthesized verdict to the external review
// surface. Called exactly once, after termination.
type ReviewPublisher interface {
	PublishReview(ctx context.Context, cs *ChangeSetContext, findings []Finding, status ReviewStatus, body string) error
}
