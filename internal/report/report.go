package report

import "github.com/eastress/robustness-pipeline/internal/domain"

// ToTradeMetrics converts a parsed single-run report into the flat
// metrics record the gate engine and aggregator operate on.
func (r *SingleRunReport) ToTradeMetrics() domain.TradeMetrics {
	return domain.TradeMetrics{
		Profit:         r.Profit,
		ProfitFactor:   r.ProfitFactor,
		MaxDrawdownPct: r.DrawdownPct,
		TotalTrades:    r.Trades,
		WinRate:        r.WinRatePct,
		ExpectedPayoff: r.ExpectedPayoff,
		GrossProfit:    r.GrossProfit,
		GrossLoss:      r.GrossLoss,
	}
}

// ToTradeMetrics converts an optimization pass into the same flat
// metrics shape a single-run report produces, so gate evaluation and
// composite scoring work identically regardless of which source a
// workflow's step pulled them from.
func (p PassRecord) ToTradeMetrics() domain.TradeMetrics {
	return domain.TradeMetrics{
		Profit:         p.Profit,
		ProfitFactor:   p.ProfitFactor,
		MaxDrawdownPct: p.DrawdownPct,
		TotalTrades:    p.Trades,
		ExpectedPayoff: p.ExpectedPayoff,
	}
}

// BestPass returns the top pass by the report's descending sort order
// (Result, falling back to Profit), or ok=false for an empty report.
func (o *OptimizationReport) BestPass() (PassRecord, bool) {
	if len(o.Passes) == 0 {
		return PassRecord{}, false
	}
	return o.Passes[0], true
}

// TopN returns up to n passes from the head of the descending-sorted
// list (spec §4.3's "top passes by composite score" selection draws its
// candidate pool from here before re-ranking by score).
func (o *OptimizationReport) TopN(n int) []PassRecord {
	if n > len(o.Passes) {
		n = len(o.Passes)
	}
	return o.Passes[:n]
}
