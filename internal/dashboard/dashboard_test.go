package dashboard

import (
	"testing"
	"time"

	"github.com/eastress/robustness-pipeline/internal/domain"
)

func tradeAt(closeOffset time.Duration, netProfit float64) domain.Trade {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return domain.Trade{
		OpenTime:  base,
		CloseTime: base.Add(closeOffset),
		NetProfit: netProfit,
	}
}

func TestEquityCurveIsSortedByCloseTimeRegardlessOfInputOrder(t *testing.T) {
	trades := []domain.Trade{
		tradeAt(2*time.Hour, -50),
		tradeAt(1*time.Hour, 100),
	}
	curve := EquityCurve(trades, 1000)
	want := []float64{1000, 1100, 1050}
	if len(curve) != len(want) {
		t.Fatalf("len(curve) = %d, want %d", len(curve), len(want))
	}
	for i, v := range want {
		if curve[i] != v {
			t.Fatalf("curve[%d] = %v, want %v", i, curve[i], v)
		}
	}
}

func TestEquityCurveEmptyWithZeroInitialBalanceAndNoTrades(t *testing.T) {
	if curve := EquityCurve(nil, 0); curve != nil {
		t.Fatalf("curve = %v, want nil", curve)
	}
}

func TestProfitHistogramCollapsesToOneBucketWhenAllProfitsAreEqual(t *testing.T) {
	trades := []domain.Trade{tradeAt(time.Hour, 100), tradeAt(2*time.Hour, 100)}
	h := ProfitHistogram(trades, 20)
	if len(h.Values) != 1 || h.Values[0] != 2 {
		t.Fatalf("Values = %v, want [2]", h.Values)
	}
	if h.Colors[0] != "#198754" {
		t.Fatalf("Colors[0] = %q, want the winning color", h.Colors[0])
	}
}

func TestProfitHistogramBucketsSpanMinToMax(t *testing.T) {
	trades := []domain.Trade{
		tradeAt(time.Hour, -100),
		tradeAt(2*time.Hour, 0),
		tradeAt(3*time.Hour, 100),
	}
	h := ProfitHistogram(trades, 4)
	total := 0
	for _, v := range h.Values {
		total += v
	}
	if total != len(trades) {
		t.Fatalf("bucket total = %d, want %d", total, len(trades))
	}
}

func TestMFEMAEScatterEstimatesFromNetProfitWhenNoExcursionData(t *testing.T) {
	trades := []domain.Trade{tradeAt(time.Hour, 150), tradeAt(2*time.Hour, -75)}
	points := MFEMAEScatter(trades)
	if points[0].MFE != 150 || points[0].MAE != 0 {
		t.Fatalf("winning trade point = %+v, want MFE=150 MAE=0", points[0])
	}
	if points[1].MFE != 0 || points[1].MAE != -75 {
		t.Fatalf("losing trade point = %+v, want MFE=0 MAE=-75", points[1])
	}
}

func TestHoldingTimeDistributionSkipsTradesMissingEitherTimestamp(t *testing.T) {
	trades := []domain.Trade{
		tradeAt(time.Hour, 10),
		{NetProfit: 20}, // zero OpenTime/CloseTime
	}
	h := HoldingTimeDistribution(trades, 5)
	total := 0
	for _, v := range h.Values {
		total += v
	}
	if total != 1 {
		t.Fatalf("bucket total = %d, want 1 (the timestamped trade only)", total)
	}
}

func TestBuildAssemblesEveryComponent(t *testing.T) {
	trades := []domain.Trade{tradeAt(time.Hour, 100)}
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	data := Build("wf1", trades, now)
	if data.TotalTrades != 1 {
		t.Fatalf("TotalTrades = %d, want 1", data.TotalTrades)
	}
	if data.WorkflowID != "wf1" {
		t.Fatalf("WorkflowID = %q, want wf1", data.WorkflowID)
	}
	if !data.GeneratedAt.Equal(now) {
		t.Fatalf("GeneratedAt = %v, want %v", data.GeneratedAt, now)
	}
}
