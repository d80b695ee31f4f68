package core

// ReviewStatus is the synthesized overall review outcome.
type ReviewStatus string

const (
	StatusApprove        ReviewStatus = "approve"
	StatusRequestChanges ReviewStatus = "request_changes"
	StatusComment        ReviewStatus = "comment"
)

// ReviewVerdict is derived from the accumulated findings at termination.
// It is never stored on the run state; callers recompute it as needed.
type ReviewVerdict struct {
	Status               ReviewStatus `json:"status"`
	BlockingFindingCount int          `json:"blocking_finding_count"`
}

// SynthesizeVerdict computes the review outcome from findings. The cascade
// is a strict tie-break: severity dominates, and within a tier the count
// only affects the reported blocking number. The result depends solely on
// the multiset of severities, so finding order is irrelevant.
func SynthesizeVerdict(findings []Finding) ReviewVerdict {
	summary := SummarizeFindings(findings)

	switch {
	case summary.HighCount > 0:
		return ReviewVerdict{
			Status:               StatusRequestChanges,
			BlockingFindingCount: summary.HighCount,
		}
	case summary.MediumCount > 0:
		return ReviewVerdict{Status: StatusRequestChanges}
	case len(findings) > 0:
		return ReviewVerdict{Status: StatusComment}
	default:
		return ReviewVerdict{Status: StatusApprove}
	}
}
