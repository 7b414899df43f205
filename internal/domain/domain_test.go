package domain

import (
	"testing"
	"time"
)

func TestOptimizationRangeValidate(t *testing.T) {
	cases := []struct {
		name    string
		r       OptimizationRange
		wantErr bool
	}{
		{"valid optimize range", OptimizationRange{Name: "p", Start: 1, Stop: 10, Step: 1, Optimize: true}, false},
		{"start after stop", OptimizationRange{Name: "p", Start: 10, Stop: 1, Step: 1, Optimize: true}, true},
		{"zero step", OptimizationRange{Name: "p", Start: 1, Stop: 10, Step: 0, Optimize: true}, true},
		{"fixed without value", OptimizationRange{Name: "p", Start: 1, Stop: 10, Optimize: false}, true},
		{"fixed with value", OptimizationRange{Name: "p", Start: 1, Stop: 10, Optimize: false, FixedValue: ptr(5.0)}, false},
		{"fixed equal bounds no value needed", OptimizationRange{Name: "p", Start: 5, Stop: 5, Optimize: false}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.r.Validate()
			if (err != nil) != c.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, c.wantErr)
			}
		})
	}
}

func ptr(v float64) *float64 { return &v }

func TestTradeNetProfitReconciles(t *testing.T) {
	tr := NewTrade(1, "EURUSD", SideBuy, 1.0, time.Time{}, time.Time{}, 1.1, 1.2, -7, -1, 100)
	want := 100.0 - 7 - 1
	if tr.NetProfit != want {
		t.Fatalf("NetProfit = %v, want %v", tr.NetProfit, want)
	}
}

func TestReservedSafetyInputNeverOptimizable(t *testing.T) {
	p := NewParameter("EAStressSafety_MaxSpreadPips", "double", TypeDouble, "5.0", 10, false)
	if p.Optimizable {
		t.Fatalf("reserved safety input must never be optimizable")
	}
}

func TestGateOperatorCompare(t *testing.T) {
	if !OpGTE.Compare(5, 5) {
		t.Fatal(">= should hold for equal values")
	}
	if OpGT.Compare(5, 5) {
		t.Fatal("> should not hold for equal values")
	}
}

func TestWorkflowSummarize(t *testing.T) {
	w := NewWorkflowState("wf1", "MyEA", "/path/MyEA.mq5", "IC_Markets", "EURUSD", "H1", 3)
	w.Steps["1_load_ea"] = StageRecord{Status: "passed", Result: StageResult{Success: true}}
	w.Steps["2_compile"] = StageRecord{Status: "failed", Result: StageResult{Success: false}}
	s := w.Summarize([]string{"1_load_ea", "2_compile", "3_extract_params"})
	if s.TotalSteps != 3 || s.StepsPassed != 1 || s.StepsFailed != 1 {
		t.Fatalf("unexpected summary: %+v", s)
	}
}
