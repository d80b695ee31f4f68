package core

// FindingType categorizes a discovered issue.
type FindingType string

const (
	FindingVulnerability FindingType = "vulnerability"
	FindingBug           FindingType = "bug"
	FindingEdgeCase      FindingType = "edge_case"
	FindingStyle         FindingType = "style"
	FindingInfo          FindingType = "info"
)

// Severity ranks how urgent a finding is.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
	SeverityInfo   Severity = "info"
)

// IsValid reports whether the severity is one of the known levels.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return true
	}
	return false
}

// Finding is one discovered issue. Findings are immutable values: the run
// accumulates them in an append-only sequence and never mutates or removes
// one once recorded.
type Finding struct {
	Type            FindingType `json:"type"`
	Severity        Severity    `json:"severity"`
	File            string      `json:"file"`
	Line            *int        `json:"line,omitempty"`
	Message         string      `json:"message"`
	Recommendation  string      `json:"recommendation"`
	AutoFixable     *bool       `json:"auto_fixable,omitempty"`
	VulnerabilityID string      `json:"vulnerability_id,omitempty"`
}

// FindingSummary buckets finding counts by severity.
type FindingSummary struct {
	HighCount   int `json:"high_count"`
	MediumCount int `json:"medium_count"`
	LowCount    int `json:"low_count"`
	InfoCount   int `json:"info_count"`
}

// SummarizeFindings counts findings per severity bucket.
func SummarizeFindings(findings []Finding) FindingSummary {
	var s FindingSummary
	for _, f := range findings {
		switch f.Severity {
		case SeverityHigh:
			s.HighCount++
		case SeverityMedium:
			s.MediumCount++
		case SeverityLow:
			s.LowCount++
		case SeverityInfo:
			s.InfoCount++
		}
	}
	return s
}
