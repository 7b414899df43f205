package montecarlo

import (
	"math"
	"testing"
)

func TestEstimateTradesFromSummaryNormal(t *testing.T) {
	in := SummaryInputs{TotalTrades: 100, WinRate: 60, Profit: 5000, ProfitFactor: 2.0}
	trades := EstimateTradesFromSummary(in)
	if len(trades) != 100 {
		t.Fatalf("len(trades) = %d, want 100", len(trades))
	}
	sum := sumFloat(trades)
	if math.Abs(sum-in.Profit) > 1e-6 {
		t.Fatalf("reconstructed trades sum to %v, want %v", sum, in.Profit)
	}
}

func TestEstimateTradesFromSummaryProfitFactorOne(t *testing.T) {
	in := SummaryInputs{TotalTrades: 40, WinRate: 50, Profit: 1000, ProfitFactor: 1.0}
	trades := EstimateTradesFromSummary(in)
	if len(trades) != 40 {
		t.Fatalf("len(trades) = %d, want 40", len(trades))
	}
	sum := sumFloat(trades)
	if math.Abs(sum-in.Profit) > 1e-6 {
		t.Fatalf("degenerate reconstruction sums to %v, want %v", sum, in.Profit)
	}
}

func TestEstimateTradesFromSummaryNonPositiveProfit(t *testing.T) {
	in := SummaryInputs{TotalTrades: 10, WinRate: 40, Profit: -200, ProfitFactor: 1.5}
	trades := EstimateTradesFromSummary(in)
	if len(trades) != 10 {
		t.Fatalf("len(trades) = %d, want 10", len(trades))
	}
}

func TestRecoveryFactorIsNetProfitOverMaxDrawdownAbsolute(t *testing.T) {
	trades := []float64{1000, -500, 800, -300}
	rm := CalculateRiskMetrics(trades, 10000, 0, 252)
	if rm.RecoveryFactor == 0 {
		t.Fatal("expected non-zero recovery factor")
	}
}
