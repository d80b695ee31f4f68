package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-review/sentinel/internal/core"
	"github.com/sentinel-review/sentinel/internal/service"
)

func openTestLedger(t *testing.T) *SQLiteLedger {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleResult(runID string) *service.RunResult {
	started := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	return &service.RunResult{
		RunID:            runID,
		RepositoryOwner:  "acme",
		RepositoryName:   "widget",
		ChangeSetID:      123,
		Success:          true,
		ReviewStatus:     core.StatusRequestChanges,
		Findings: []core.Finding{
			{Type: core.FindingVulnerability, Severity: core.SeverityHigh, File: "auth.go", Message: "hardcoded secret"},
		},
		AgentsExecuted:   []core.AgentID{core.AgentCoordinator, core.AgentSecurity},
		TotalCost:        0.14,
		TotalTokens:      5200,
		CompletionReason: core.ReasonAgentCompleted,
		Metadata: service.RunMetadata{
			StartedAt:   started,
			CompletedAt: started.Add(90 * time.Second),
			Iterations:  5,
		},
	}
}

func TestSaveAndGetRun(t *testing.T) {
	s := openTestLedger(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRun(ctx, sampleResult("run-1")))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "acme", got.RepositoryOwner)
	assert.Equal(t, core.StatusRequestChanges, got.ReviewStatus)
	require.Len(t, got.Findings, 1)
	assert.Equal(t, core.SeverityHigh, got.Findings[0].Severity)
	assert.Equal(t, 5, got.Metadata.Iterations)
}

func TestGetRunNotFound(t *testing.T) {
	s := openTestLedger(t)

	_, err := s.GetRun(context.Background(), "run-missing")
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatNotFound))
}

func TestSaveRunReplaces(t *testing.T) {
	s := openTestLedger(t)
	ctx := context.Background()

	r := sampleResult("run-1")
	require.NoError(t, s.SaveRun(ctx, r))

	r.Success = false
	r.CompletionReason = core.ReasonBudgetLimit
	require.NoError(t, s.SaveRun(ctx, r))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.False(t, got.Success)
	assert.Equal(t, core.ReasonBudgetLimit, got.CompletionReason)

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestListRunsOrdersNewestFirst(t *testing.T) {
	s := openTestLedger(t)
	ctx := context.Background()

	old := sampleResult("run-old")
	old.Metadata.StartedAt = time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	recent := sampleResult("run-recent")
	recent.Metadata.StartedAt = time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveRun(ctx, old))
	require.NoError(t, s.SaveRun(ctx, recent))

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-recent", runs[0].RunID)
	assert.Equal(t, "run-old", runs[1].RunID)
}

func TestListRunsLimit(t *testing.T) {
	s := openTestLedger(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		r := sampleResult("run-" + string(rune('a'+i)))
		r.Metadata.StartedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, s.SaveRun(ctx, r))
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestRecordAgentCost(t *testing.T) {
	s := openTestLedger(t)
	ctx := context.Background()

	s.RecordAgentCost(ctx, "run-1", core.AgentCoordinator, 0.01, 300)
	s.RecordAgentCost(ctx, "run-1", core.AgentSecurity, 0.05, 1800)
	s.RecordAgentCost(ctx, "run-2", core.AgentCoordinator, 0.02, 400)

	entries, err := s.RunCosts(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "coordinator", entries[0].Agent)
	assert.Equal(t, 0.05, entries[1].Cost)
	assert.Equal(t, 1800, entries[1].Tokens)
}

func TestRecordAgentCostNeverPanicsAfterClose(t *testing.T) {
	s := openTestLedger(t)
	require.NoError(t, s.Close())

	// Fire-and-forget contract: a broken ledger must not take the run down.
	s.RecordAgentCost(context.Background(), "run-1", core.AgentStyle, 0.01, 100)
}
