package montecarlo

import "math"

// SummaryInputs is the subset of TradeMetrics the estimator reconstructs
// a synthetic trade list from, when the actual per-trade list is
// unavailable (spec §4.5).
type SummaryInputs struct {
	TotalTrades  int
	WinRate      float64 // percent, 0-100
	Profit       float64
	ProfitFactor float64
}

// EstimateTradesFromSummary reconstructs winning_trades, losing_trades,
// avg_win, avg_loss from (total_trades, win_rate, profit, profit_factor)
// by solving |gross_loss| = profit / (pf - 1) for pf > 1 and profit > 0,
// then generates a synthetic trade list of exactly that shape (spec
// §4.5, ported from modules/monte_carlo.py:extract_trades_from_results).
//
// At pf == 1.0 (within epsilon) or profit <= 0, the source's formula is
// undefined (division by zero or a meaningless negative gross loss).
// This system's documented resolution (see DESIGN.md, Open Question 3):
// split profit evenly across winners and losers so the reconstructed
// list still sums to profit, rather than propagating a division error.
func EstimateTradesFromSummary(in SummaryInputs) []float64 {
	if in.TotalTrades <= 0 {
		return nil
	}

	winRate := in.WinRate / 100
	winningTrades := int(float64(in.TotalTrades) * winRate)
	losingTrades := in.TotalTrades - winningTrades

	const epsilon = 1e-9
	degenerate := in.Profit <= 0 || math.Abs(in.ProfitFactor-1.0) < epsilon

	var avgWin, avgLoss float64
	if degenerate {
		avgWin, avgLoss = symmetricSplit(in.Profit, winningTrades, losingTrades)
	} else {
		grossLoss := in.Profit / (in.ProfitFactor - 1)
		grossProfit := in.Profit + grossLoss

		if winningTrades > 0 {
			avgWin = grossProfit / float64(winningTrades)
		}
		if losingTrades > 0 {
			avgLoss = -grossLoss / float64(losingTrades)
		}
	}

	trades := make([]float64, 0, in.TotalTrades)
	for i := 0; i < winningTrades; i++ {
		trades = append(trades, avgWin)
	}
	for i := 0; i < losingTrades; i++ {
		trades = append(trades, avgLoss)
	}
	return trades
}

// symmetricSplit distributes profit evenly across winners and losers so
// the reconstructed list still sums to profit even when the profit
// factor is exactly 1 (wins and losses offset) or profit is non-positive.
func symmetricSplit(profit float64, winningTrades, losingTrades int) (avgWin, avgLoss float64) {
	total := winningTrades + losingTrades
	if total == 0 {
		return 0, 0
	}
	perTrade := profit / float64(total)
	return perTrade, perTrade
}

// RiskMetrics holds the risk-adjusted performance ratios computed from a
// trade list's equity curve (spec §3 TradeMetrics fields, ported from
// modules/monte_carlo.py:calculate_risk_metrics).
type RiskMetrics struct {
	SharpeRatio       float64
	SortinoRatio      float64
	CalmarRatio       float64
	RecoveryFactor    float64
	TotalReturnPct    float64
	MaxDrawdownPct    float64
	VolatilityPct     float64
}

// CalculateRiskMetrics computes Sharpe/Sortino/Calmar/recovery from a
// trade list and an initial balance. RecoveryFactor is computed as
// net_profit / max_drawdown_absolute per spec §9 (the original's
// |profit/(dd_pct*100)| formula is dimensionally suspect and is not
// reproduced; see DESIGN.md Open Question 2).
func CalculateRiskMetrics(trades []float64, initialBalance, riskFreeRate float64, tradingDaysPerYear int) RiskMetrics {
	if len(trades) == 0 {
		return RiskMetrics{}
	}

	equity := make([]float64, len(trades)+1)
	equity[0] = initialBalance
	for i, t := range trades {
		equity[i+1] = equity[i] + t
	}

	returns := make([]float64, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] != 0 {
			returns[i-1] = (equity[i] - equity[i-1]) / equity[i-1]
		}
	}

	n := float64(len(returns))
	meanReturn := sumFloat(returns) / n
	annualReturn := meanReturn * float64(tradingDaysPerYear)

	variance := 0.0
	for _, r := range returns {
		d := r - meanReturn
		variance += d * d
	}
	variance /= n
	annualStd := math.Sqrt(variance) * math.Sqrt(float64(tradingDaysPerYear))

	downsideVarianceSum := 0.0
	for _, r := range returns {
		if r < 0 {
			downsideVarianceSum += r * r
		}
	}
	annualDownsideStd := 0.0001
	if downsideVarianceSum > 0 {
		annualDownsideStd = math.Sqrt(downsideVarianceSum/n) * math.Sqrt(float64(tradingDaysPerYear))
	}

	peak := equity[0]
	maxDD := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		dd := 0.0
		if peak > 0 {
			dd = (peak - v) / peak
		}
		if dd > maxDD {
			maxDD = dd
		}
	}

	sharpe := 0.0
	if annualStd > 0 {
		sharpe = (annualReturn - riskFreeRate) / annualStd
	}
	sortino := 0.0
	if annualDownsideStd > 0 {
		sortino = (annualReturn - riskFreeRate) / annualDownsideStd
	}
	calmar := 0.0
	if maxDD > 0 {
		calmar = annualReturn / maxDD
	}

	maxDDAbsolute := maxDD * initialBalance
	netProfit := equity[len(equity)-1] - equity[0]
	recovery := 0.0
	if maxDDAbsolute > 0 {
		recovery = netProfit / maxDDAbsolute
	}

	totalReturn := 0.0
	if equity[0] != 0 {
		totalReturn = (equity[len(equity)-1] - equity[0]) / equity[0]
	}

	return RiskMetrics{
		SharpeRatio:    round3(sharpe),
		SortinoRatio:   round3(sortino),
		CalmarRatio:    round3(calmar),
		RecoveryFactor: round3(recovery),
		TotalReturnPct: round2(totalReturn * 100),
		MaxDrawdownPct: round2(maxDD * 100),
		VolatilityPct:  round2(annualStd * 100),
	}
}

func sumFloat(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s
}

func round3(v float64) float64 {
	return float64(int(v*1000+sign(v)*0.5)) / 1000
}
