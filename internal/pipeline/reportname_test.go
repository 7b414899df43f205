package pipeline

import (
	"strings"
	"testing"

	"github.com/eastress/robustness-pipeline/internal/stage"
)

func TestSanitizeReplacesNonTokenRunsWithASingleUnderscore(t *testing.T) {
	got := sanitize("EURUSD H1!!  pass#1", 64)
	if got != "EURUSD_H1_pass_1" {
		t.Fatalf("sanitize = %q, want %q", got, "EURUSD_H1_pass_1")
	}
}

func TestSanitizeFallsBackToRunWhenNothingSurvives(t *testing.T) {
	if got := sanitize("!!!", 64); got != "run" {
		t.Fatalf("sanitize(%q) = %q, want %q", "!!!", got, "run")
	}
}

func TestSanitizeTruncatesToMaxLen(t *testing.T) {
	got := sanitize(strings.Repeat("a", 100), 10)
	if len(got) != 10 {
		t.Fatalf("len(sanitize(...)) = %d, want 10", len(got))
	}
}

func TestReportNameIsDeterministicForTheSameInputs(t *testing.T) {
	a := reportName("wf-2024-01-01-0001", stage.BacktestTop, "EURUSD", "H1")
	b := reportName("wf-2024-01-01-0001", stage.BacktestTop, "EURUSD", "H1")
	if a != b {
		t.Fatalf("reportName is not deterministic: %q != %q", a, b)
	}
}

func TestReportNameDiffersWhenAnyInputDiffers(t *testing.T) {
	base := reportName("wf-1", stage.BacktestTop, "EURUSD", "H1")
	variants := []string{
		reportName("wf-2", stage.BacktestTop, "EURUSD", "H1"),
		reportName("wf-1", stage.MonteCarlo, "EURUSD", "H1"),
		reportName("wf-1", stage.BacktestTop, "GBPUSD", "H1"),
		reportName("wf-1", stage.BacktestTop, "EURUSD", "M15"),
	}
	for _, v := range variants {
		if v == base {
			t.Fatalf("expected a changed input to change the report name, got %q for both", base)
		}
	}
}

func TestReportNameDisambiguatesWorkflowIDsThatCollideAfterTruncation(t *testing.T) {
	longA := "workflow_" + strings.Repeat("a", 40) + "_tail_one"
	longB := "workflow_" + strings.Repeat("a", 40) + "_tail_two"

	a := reportName(longA, stage.LoadEA, "EURUSD", "H1")
	b := reportName(longB, stage.LoadEA, "EURUSD", "H1")
	if a == b {
		t.Fatalf("expected the hash suffix to disambiguate truncated-identical workflow ids, both produced %q", a)
	}
}

func TestReportNameStaysWithinFileNameLengthBudget(t *testing.T) {
	got := reportName(strings.Repeat("x", 200), stage.StressScenarios, "EURUSD", "H1")
	if len(got) > 60 {
		t.Fatalf("len(reportName(...)) = %d, want <= 60", len(got))
	}
}
