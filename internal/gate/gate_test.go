package gate

import (
	"math"
	"testing"

	"github.com/eastress/robustness-pipeline/internal/domain"
)

func TestNormalizeBounds(t *testing.T) {
	for _, v := range []float64{-10, 0, 5, 15, 30, 100} {
		n := Normalize(v, 0, 30, false)
		if n < 0 || n > 1 {
			t.Fatalf("Normalize(%v) = %v out of [0,1]", v, n)
		}
	}
}

func TestNormalizeInvertComplement(t *testing.T) {
	for _, v := range []float64{0, 5, 15, 30} {
		a := Normalize(v, 0, 30, false)
		b := Normalize(v, 0, 30, true)
		if math.Abs((a+b)-1) > 1e-9 {
			t.Fatalf("normalize(%v)+normalize_invert(%v) = %v, want 1", v, v, a+b)
		}
	}
}

func TestCompositeScoreRange(t *testing.T) {
	inputs := []CompositeScoreInput{
		{Profit: 5000, TotalTrades: 200, ProfitFactor: 3, MaxDrawdownPct: 0, Segments: SegmentProfits{Back: 1000, Forward: 1000, HasBack: true, HasForward: true}},
		{Profit: -500, TotalTrades: 5, ProfitFactor: 0.5, MaxDrawdownPct: 50},
		{Profit: 0, TotalTrades: 0, ProfitFactor: 0, MaxDrawdownPct: 100},
	}
	for _, in := range inputs {
		s := CompositeScore(in)
		if s < 0 || s > 10 {
			t.Fatalf("CompositeScore(%+v) = %v, out of [0,10]", in, s)
		}
	}
}

func TestCompositeScoreMonotonicInProfit(t *testing.T) {
	base := CompositeScoreInput{Profit: 1000, TotalTrades: 100, ProfitFactor: 2, MaxDrawdownPct: 10}
	higher := base
	higher.Profit = 2000
	if CompositeScore(higher) < CompositeScore(base) {
		t.Fatalf("score should be non-decreasing in profit")
	}
}

func TestHappyPathScoreIsHigh(t *testing.T) {
	in := CompositeScoreInput{
		Profit:         5000,
		TotalTrades:    120,
		ProfitFactor:   2.1,
		MaxDrawdownPct: 18.5,
		Segments:       SegmentProfits{Back: 2500, Forward: 2500, HasBack: true, HasForward: true},
	}
	got := PassScore(in)
	if got < 7 || got > 10 {
		t.Fatalf("happy-path score = %v, want a high score in [7,10]", got)
	}
}

func TestDiagnoseMinimumTrades(t *testing.T) {
	g := CheckMinimumTrades(20, Thresholds{MinTrades: 50})
	msg := Diagnose(g, DiagnosisInputs{})
	want := "Only 20 trades (need 50+): EA may be too selective. Consider widening entry conditions or testing longer period."
	if msg != want {
		t.Fatalf("diagnosis = %q, want %q", msg, want)
	}
}

func TestGoLiveReadyRequiresAllCritical(t *testing.T) {
	gates := map[string]domain.GateResult{
		"profit_factor": {Passed: true},
		"max_drawdown":  {Passed: true},
		"minimum_trades": {Passed: true},
		"mc_confidence": {Passed: true},
		"mc_ruin":       {Passed: false},
	}
	if GoLiveReady(gates) {
		t.Fatal("should not be ready when mc_ruin fails")
	}
	gates["mc_ruin"] = domain.GateResult{Passed: true}
	if !GoLiveReady(gates) {
		t.Fatal("should be ready when all critical gates pass")
	}
}
