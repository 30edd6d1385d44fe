package model

import "testing"

func TestParseSeverity(t *testing.T) {
	cases := []struct {
		in   string
		want Severity
	}{
		{"critical", SeverityCritical},
		{"high", SeverityHigh},
		{"medium", SeverityMedium},
		{"low", SeverityLow},
		{"", SeverityMedium},
		{"WARNING", SeverityMedium},
		{"blocker", SeverityMedium},
	}

	for _, c := range cases {
		if got := ParseSeverity(c.in); got != c.want {
			t.Errorf("ParseSeverity(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSeverityRankOrdering(t *testing.T) {
	order := []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}
	for i := 1; i < len(order); i++ {
		if order[i-1].Rank() >= order[i].Rank() {
			t.Errorf("%s should rank before %s", order[i-1], order[i])
		}
	}
	if Severity("bogus").Rank() != SeverityLow.Rank() {
		t.Errorf("unknown severity should rank with low")
	}
}

func TestClampConfidence(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{1.5, 1},
		{-0.3, 0},
		{0.7, 0.7},
		{0, 0},
		{1, 1},
	}

	for _, c := range cases {
		if got := ClampConfidence(c.in); got != c.want {
			t.Errorf("ClampConfidence(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}
