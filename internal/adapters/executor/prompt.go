package executor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sentinel-review/sentinel/internal/core"
)

// maxDiffChars caps how much of the unified diff goes into the prompt.
// Roughly 30k tokens at 4 chars per token.
const maxDiffChars = 120_000

var roleInstructions = map[core.AgentID]string{
	core.AgentCoordinator: `You are the review coordinator. Decide which specialist should
examine this change-set next, or conclude the review. Hand off to a specialist by
setting next_agent; omit it when the review is complete. Do not report findings
yourself.`,
	core.AgentSecurity: `You are the security reviewer. Scan the diff for vulnerabilities:
injection, secrets in code, unsafe deserialization, dependency risks. Report each as a
finding with type "vulnerability" and set vulnerability_id when a CVE or advisory
applies. When done, hand back to the coordinator.`,
	core.AgentCodeReview: `You are the code reviewer. Look for bugs, logic errors, race
conditions and missed edge cases in the diff. Report each as a finding with type "bug"
or "edge_case". When done, hand back to the coordinator.`,
	core.AgentStyle: `You are the style reviewer. Check formatting, naming and
documentation conventions. Report issues as findings with type "style", severity "low"
or "info". When done, hand back to the coordinator.`,
}

const outputContract = `Respond with a single JSON object and nothing else:
{
  "agent": "<your agent id>",
  "success": true,
  "summary": "<one paragraph>",
  "findings": [{"type": "...", "severity": "high|medium|low|info", "file": "...",
    "line": 0, "message": "...", "recommendation": "...", "vulnerability_id": ""}],
  "next_agent": "<agent id or omit to finish>",
  "handoff_reason": "<why, when handing off>",
  "tools_used": [],
  "tokens_used": 0,
  "cost": 0.0
}`

// buildPrompt assembles the full turn prompt for one agent.
func buildPrompt(spec *core.AgentSpec, cs *core.ChangeSetContext, prior []core.AgentResponse, budgetRemaining float64) string {
	var b strings.Builder

	b.WriteString(roleInstructions[spec.ID])
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Tools available to you: %s\n", strings.Join(toolList(spec), ", "))
	fmt.Fprintf(&b, "Legal handoff targets: %s\n", strings.Join(targetList(spec), ", "))
	fmt.Fprintf(&b, "Budget remaining: $%.2f\n\n", budgetRemaining)

	fmt.Fprintf(&b, "## Pull request %s/%s#%d: %s\n", cs.Owner, cs.Repo, cs.Number, cs.Title)
	fmt.Fprintf(&b, "Author: %s | %s -> %s\n\n", cs.Author, cs.HeadBranch, cs.BaseBranch)
	if cs.Body != "" {
		b.WriteString(cs.Body)
		b.WriteString("\n\n")
	}

	b.WriteString("## Changed files\n")
	for _, f := range cs.ChangedFiles {
		fmt.Fprintf(&b, "- %s (%s, +%d -%d)\n", f.Path, f.Status, f.Additions, f.Deletions)
	}
	b.WriteString("\n## Diff\n```diff\n")
	b.WriteString(truncate(cs.Diff, maxDiffChars))
	b.WriteString("\n```\n")

	if len(prior) > 0 {
		b.WriteString("\n## Prior turns\n")
		for _, r := range prior {
			fmt.Fprintf(&b, "- %s (success=%t, findings=%d): %s\n",
				r.Agent, r.Success, len(r.Findings), r.Summary)
		}
	}

	b.WriteString("\n")
	b.WriteString(outputContract)
	return b.String()
}

func toolList(spec *core.AgentSpec) []string {
	var tools []string
	for name, ok := range spec.ToolCapabilities {
		if ok {
			tools = append(tools, name)
		}
	}
	sort.Strings(tools)
	if len(tools) == 0 {
		return []string{"(none)"}
	}
	return tools
}

func targetList(spec *core.AgentSpec) []string {
	var targets []string
	for id, ok := range spec.LegalHandoffTargets {
		if ok {
			targets = append(targets, string(id))
		}
	}
	sort.Strings(targets)
	if len(targets) == 0 {
		return []string{"(none)"}
	}
	return targets
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n...[diff truncated]"
}
