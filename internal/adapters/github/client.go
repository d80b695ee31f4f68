// Package github wraps the gh CLI to fetch change-set context and publish
// review verdicts. It implements the core ChangeSetFetcher and
// ReviewPublisher ports.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sentinel-review/sentinel/internal/core"
)

// Client wraps GitHub CLI operations.
type Client struct {
	timeout time.Duration
}

// NewClient creates a new GitHub client and verifies gh authentication.
func NewClient() (*Client, error) {
	c := &Client{timeout: 60 * time.Second}
	if err := c.verifyAuth(); err != nil {
		return nil, err
	}
	return c, nil
}

// WithTimeout returns a copy with a different per-command timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	return &Client{timeout: d}
}

// verifyAuth checks if gh is authenticated.
func (c *Client) verifyAuth() error {
	if err := exec.Command("gh", "auth", "status").Run(); err != nil {
		return core.ErrValidation("GH_NOT_AUTHENTICATED",
			"gh CLI is not authenticated, run 'gh auth login'")
	}
	return nil
}

// run executes a gh command.
func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "gh", args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", core.ErrTimeout("gh command timed out")
		}
		return "", core.ErrNetwork(
			fmt.Sprintf("gh %s: %s", strings.Join(args, " "), strings.TrimSpace(stderr.String()))).
			WithCause(err)
	}

	return strings.TrimSpace(stdout.String()), nil
}

// prView mirrors the fields requested from gh pr view --json.
type prView struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	Author struct {
		Login string `json:"login"`
	} `json:"author"`
	BaseRefName string `json:"baseRefName"`
	HeadRefName string `json:"headRefName"`
	HeadRefOid  string `json:"headRefOid"`
	Files       []struct {
		Path      string `json:"path"`
		Additions int    `json:"additions"`
		Deletions int    `json:"deletions"`
	} `json:"files"`
}

// FetchChangeSet retrieves the pull request under review: metadata, the
// changed file list and the unified diff. Called once at run start.
func (c *Client) FetchChangeSet(ctx context.Context, owner, repo string, number int) (*core.ChangeSetContext, error) {
	repoFlag := fmt.Sprintf("%s/%s", owner, repo)

	out, err := c.run(ctx, "pr", "view", fmt.Sprint(number),
		"--repo", repoFlag,
		"--json", "number,title,body,author,baseRefName,headRefName,headRefOid,files",
	)
	if err != nil {
		return nil, err
	}

	var view prView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		return nil, fmt.Errorf("parsing pr view: %w", err)
	}

	diff, err := c.run(ctx, "pr", "diff", fmt.Sprint(number), "--repo", repoFlag)
	if err != nil {
		return nil, err
	}

	return buildChangeSet(owner, repo, view, diff), nil
}

func buildChangeSet(owner, repo string, view prView, diff string) *core.ChangeSetContext {
	cs := &core.ChangeSetContext{
		Owner:      owner,
		Repo:       repo,
		Number:     view.Number,
		Title:      view.Title,
		Body:       view.Body,
		Author:     view.Author.Login,
		BaseBranch: view.BaseRefName,
		HeadBranch: view.HeadRefName,
		HeadSHA:    view.HeadRefOid,
		Diff:       diff,
	}
	for _, f := range view.Files {
		status := "modified"
		switch {
		case f.Deletions == 0 && f.Additions > 0 && !strings.Contains(diff, "--- a/"+f.Path):
			status = "added"
		case f.Additions == 0 && f.Deletions > 0 && !strings.Contains(diff, "+++ b/"+f.Path):
			status = "removed"
		}
		cs.ChangedFiles = append(cs.ChangedFiles, core.ChangedFile{
			Path:      f.Path,
			Additions: f.Additions,
			Deletions: f.Deletions,
			Status:    status,
		})
	}
	return cs
}

// reviewFlag maps a verdict status to the gh pr review flag.
func reviewFlag(status core.ReviewStatus) string {
	switch status {
	case core.StatusApprove:
		return "--approve"
	case core.StatusRequestChanges:
		return "--request-changes"
	default:
		return "--comment"
	}
}

// PublishReview posts the synthesized verdict on the pull request. Called
// exactly once, after the run terminates.
func (c *Client) PublishReview(ctx context.Context, cs *core.ChangeSetContext, _ []core.Finding, status core.ReviewStatus, body string) error {
	_, err := c.run(ctx, "pr", "review", fmt.Sprint(cs.Number),
		"--repo", fmt.Sprintf("%s/%s", cs.Owner, cs.Repo),
		reviewFlag(status),
		"--body", body,
	)
	return err
}
