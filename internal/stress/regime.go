package stress

import (
	"math"

	"github.com/eastress/robustness-pipeline/internal/domain"
)

// RegimeLabel classifies the realized return sequence of a scenario's
// closed-trade list, so a stress result can be read alongside the market
// behavior it was produced under rather than as a bare metrics row.
type RegimeLabel string

const (
	RegimeTrending      RegimeLabel = "trending"
	RegimeMeanReverting RegimeLabel = "mean_reverting"
	RegimeHighVol       RegimeLabel = "high_vol"
	RegimeLowVol        RegimeLabel = "low_vol"
	RegimeNeutral       RegimeLabel = "neutral"
)

// RegimeThresholds bounds classifyReturns' rule-based decisions.
type RegimeThresholds struct {
	VolThreshold   float64
	TrendThreshold float64
	MRThreshold    float64
}

// DefaultRegimeThresholds mirrors the thresholds a live regime detector
// would use, scaled to per-trade return magnitudes instead of bar returns.
func DefaultRegimeThresholds() RegimeThresholds {
	return RegimeThresholds{
		VolThreshold:   0.25,
		TrendThreshold: 0.3,
		MRThreshold:    -0.1,
	}
}

// tradeReturns turns a closed trade list into a per-trade return series,
// normalizing net profit by notional so trades of different lot sizes
// contribute comparable magnitudes.
func tradeReturns(trades []domain.Trade) []float64 {
	returns := make([]float64, 0, len(trades))
	for _, t := range trades {
		notional := t.Volume * t.OpenPrice
		if notional <= 0 {
			continue
		}
		returns = append(returns, t.NetProfit/notional)
	}
	return returns
}

func returnVolatility(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		diff := r - mean
		variance += diff * diff
	}
	variance /= float64(len(returns) - 1)
	return math.Sqrt(variance)
}

func returnTrend(returns []float64, vol float64) float64 {
	if len(returns) == 0 || vol == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range returns {
		sum += r
	}
	trend := sum / (vol * math.Sqrt(float64(len(returns))))
	if trend > 1 {
		trend = 1
	} else if trend < -1 {
		trend = -1
	}
	return trend
}

// returnMeanReversion is the lag-1 autocorrelation of the return series;
// negative values indicate a range-bound, mean-reverting window.
func returnMeanReversion(returns []float64) float64 {
	n := len(returns)
	if n < 3 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(n)

	autocovariance := 0.0
	variance := 0.0
	for i := 1; i < n; i++ {
		autocovariance += (returns[i] - mean) * (returns[i-1] - mean)
		variance += (returns[i] - mean) * (returns[i] - mean)
	}
	if variance == 0 {
		return 0
	}
	return autocovariance / variance
}

func classifyReturns(trend, vol, mr float64, th RegimeThresholds) (RegimeLabel, float64) {
	label := RegimeNeutral
	confidence := 0.5

	if vol > th.VolThreshold {
		label = RegimeHighVol
		confidence = 0.5 + vol/2
	} else if vol < th.VolThreshold/2 {
		label = RegimeLowVol
		confidence = 0.5 + (th.VolThreshold-vol)/th.VolThreshold
	}

	if math.Abs(trend) > th.TrendThreshold {
		label = RegimeTrending
		confidence = 0.5 + math.Abs(trend)/2
	} else if mr < th.MRThreshold && confidence < 0.6 {
		label = RegimeMeanReverting
		confidence = 0.5 + math.Abs(mr)
	}

	if confidence > 1 {
		confidence = 1
	}
	return label, confidence
}

// ClassifyWindow labels the market behavior a scenario's trade list was
// produced under. It returns RegimeNeutral with zero confidence when there
// are too few trades to classify.
func ClassifyWindow(trades []domain.Trade, thresholds RegimeThresholds) (RegimeLabel, float64) {
	returns := tradeReturns(trades)
	if len(returns) < 3 {
		return RegimeNeutral, 0
	}
	vol := returnVolatility(returns)
	trend := returnTrend(returns, vol)
	mr := returnMeanReversion(returns)
	return classifyReturns(trend, vol, mr, thresholds)
}
