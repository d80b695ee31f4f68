package core

import "testing"

func TestSynthesizeVerdict(t *testing.T) {
	tests := []struct {
		name         string
		findings     []Finding
		wantStatus   ReviewStatus
		wantBlocking int
	}{
		{
			name: "high dominates low",
			findings: []Finding{
				{Severity: SeverityHigh, Message: "sql injection"},
				{Severity: SeverityLow, Message: "typo"},
			},
			wantStatus:   StatusRequestChanges,
			wantBlocking: 1,
		},
		{
			name: "medium requests changes without blocking count",
			findings: []Finding{
				{Severity: SeverityMedium, Message: "unchecked error"},
			},
			wantStatus:   StatusRequestChanges,
			wantBlocking: 0,
		},
		{
			name: "low only comments",
			findings: []Finding{
				{Severity: SeverityLow, Message: "naming"},
			},
			wantStatus:   StatusComment,
			wantBlocking: 0,
		},
		{
			name:         "no findings approves",
			findings:     nil,
			wantStatus:   StatusApprove,
			wantBlocking: 0,
		},
		{
			name: "multiple highs counted",
			findings: []Finding{
				{Severity: SeverityHigh, Message: "a"},
				{Severity: SeverityHigh, Message: "b"},
				{Severity: SeverityMedium, Message: "c"},
			},
			wantStatus:   StatusRequestChanges,
			wantBlocking: 2,
		},
		{
			name: "info only comments",
			findings: []Finding{
				{Severity: SeverityInfo, Message: "fyi"},
			},
			wantStatus:   StatusComment,
			wantBlocking: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SynthesizeVerdict(tt.findings)
			if got.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s", got.Status, tt.wantStatus)
			}
			if got.BlockingFindingCount != tt.wantBlocking {
				t.Errorf("BlockingFindingCount = %d, want %d", got.BlockingFindingCount, tt.wantBlocking)
			}
		})
	}
}

func TestSynthesizeVerdict_OrderIndependent(t *testing.T) {
	a := []Finding{
		{Severity: SeverityLow, Message: "x"},
		{Severity: SeverityHigh, Message: "y"},
	}
	b := []Finding{
		{Severity: SeverityHigh, Message: "y"},
		{Severity: SeverityLow, Message: "x"},
	}
	if SynthesizeVerdict(a) != SynthesizeVerdict(b) {
		t.Error("verdict should depend only on the multiset of severities")
	}
}

func TestSummarizeFindings(t *testing.T) {
	findings := []Finding{
		{Severity: SeverityHigh},
		{Severity: SeverityHigh},
		{Severity: SeverityMedium},
		{Severity: SeverityLow},
		{Severity: SeverityInfo},
	}
	s := SummarizeFindings(findings)
	if s.HighCount != 2 || s.MediumCount != 1 || s.LowCount != 1 || s.InfoCount != 1 {
		t.Errorf("SummarizeFindings() = %+v", s)
	}
}
