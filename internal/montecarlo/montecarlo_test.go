package montecarlo

import (
	"testing"

	"go.uber.org/zap"
)

func TestRuinAccountingLosingStreak(t *testing.T) {
	trades := make([]float64, 50)
	for i := range trades {
		trades[i] = -200
	}
	cfg := DefaultConfig()
	cfg.Iterations = 500
	result, _, _ := Run(zap.NewNop(), trades, cfg)

	if result.RuinProbabilityPct <= 50 {
		t.Fatalf("ruin probability = %v, want > 50", result.RuinProbabilityPct)
	}
	if result.ConfidencePct >= 10 {
		t.Fatalf("confidence = %v, want < 10", result.ConfidencePct)
	}
}

func TestRuinAccountingWinningStreak(t *testing.T) {
	trades := make([]float64, 50)
	for i := range trades {
		trades[i] = 50
	}
	cfg := DefaultConfig()
	cfg.Iterations = 500
	result, _, _ := Run(zap.NewNop(), trades, cfg)

	if result.RuinProbabilityPct >= 10 {
		t.Fatalf("ruin probability = %v, want < 10", result.RuinProbabilityPct)
	}
	if result.ConfidencePct <= 90 {
		t.Fatalf("confidence = %v, want > 90", result.ConfidencePct)
	}
}

func TestSameSeedIsDeterministic(t *testing.T) {
	trades := []float64{100, -50, 200, -150, 30, 80, -20, 60, -10, 40}
	cfg := DefaultConfig()
	cfg.Iterations = 2000
	cfg.Seed = 42

	r1, dist1, _ := Run(zap.NewNop(), trades, cfg)
	r2, dist2, _ := Run(zap.NewNop(), trades, cfg)

	if r1.RuinProbabilityPct != r2.RuinProbabilityPct || r1.ConfidencePct != r2.ConfidencePct ||
		r1.ExpectedProfit != r2.ExpectedProfit || r1.MedianProfit != r2.MedianProfit {
		t.Fatalf("results differ for same seed: %+v vs %+v", r1, r2)
	}
	if len(dist1) != len(dist2) {
		t.Fatal("distribution length mismatch")
	}
	for i := range dist1 {
		if dist1[i] != dist2[i] {
			t.Fatalf("distribution differs at index %d: %v vs %v", i, dist1[i], dist2[i])
		}
	}
}

func TestParallelMatchesSequentialForSameSeed(t *testing.T) {
	trades := []float64{100, -50, 200, -150, 30, 80, -20, 60, -10, 40}
	cfg := DefaultConfig()
	cfg.Iterations = 1000
	cfg.Seed = 7

	sequential, _, _ := Run(zap.NewNop(), trades, cfg)

	cfg.Concurrency = 4
	parallel, _, _ := Run(zap.NewNop(), trades, cfg)

	if sequential.RuinProbabilityPct != parallel.RuinProbabilityPct ||
		sequential.ConfidencePct != parallel.ConfidencePct ||
		sequential.ExpectedProfit != parallel.ExpectedProfit ||
		sequential.MedianProfit != parallel.MedianProfit {
		t.Fatalf("parallel result diverges from sequential: %+v vs %+v", parallel, sequential)
	}
}
