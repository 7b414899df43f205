package stress

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/eastress/robustness-pipeline/internal/domain"
	"github.com/shopspring/decimal"
)

var nonAlphaRe = regexp.MustCompile(`[^A-Za-z]+`)

func canonicalSymbol(symbol string) string {
	return strings.ToUpper(nonAlphaRe.ReplaceAllString(symbol, ""))
}

// inferPipSize falls back to decimal-counting the sample prices only when
// the symbol's quote currency isn't recognizable (JPY crosses use a 0.01
// pip, everything else 0.0001).
func inferPipSize(symbol string, samplePrices []float64) float64 {
	sym := canonicalSymbol(symbol)
	if len(sym) >= 6 {
		if sym[3:6] == "JPY" {
			return 0.01
		}
		return 0.0001
	}

	digits := 0
	for _, p := range samplePrices {
		s := fmt.Sprintf("%.10f", p)
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
		if i := strings.IndexByte(s, '.'); i >= 0 {
			if d := len(s) - i - 1; d > digits {
				digits = d
			}
		}
	}
	switch {
	case digits >= 4:
		return 0.0001
	case digits == 3, digits == 2:
		return 0.01
	default:
		return 0.0001
	}
}

// estimatePipValuePerLot derives a robust per-lot pip value from a trade
// sample: for each trade, back out pip value from |gross profit| /
// (price-move-in-pips × volume), then take the median across trades to
// dampen outliers and cross-rate drift. Returns (0, false) when no trade
// yields a usable estimate.
func estimatePipValuePerLot(trades []domain.Trade, symbol string) (float64, bool) {
	var prices []float64
	for _, t := range trades {
		if t.OpenPrice == 0 || t.ClosePrice == 0 || t.Volume == 0 {
			continue
		}
		prices = append(prices, t.OpenPrice, t.ClosePrice)
	}

	pipSize := inferPipSize(symbol, prices)
	if pipSize <= 0 {
		return 0, false
	}

	var pipValues []float64
	for _, t := range trades {
		if t.Volume <= 0 {
			continue
		}
		diff := math.Abs(t.ClosePrice - t.OpenPrice)
		if diff <= 0 {
			continue
		}
		pips := diff / pipSize
		if pips <= 0 {
			continue
		}
		gross := t.GrossProfit
		if gross == 0 {
			gross = t.NetProfit
		}
		if gross == 0 {
			continue
		}
		pv := math.Abs(gross) / (pips * t.Volume)
		if pv <= 0 || pv > 1e6 {
			continue
		}
		pipValues = append(pipValues, pv)
	}

	if len(pipValues) == 0 {
		return 0, false
	}
	return median(pipValues), true
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// OverlayCost is the post-hoc cost-application parameters for one overlay
// scenario (spread/slippage in pips, number of sides slippage applies to).
type OverlayCost struct {
	SpreadPips   float64
	SlippagePips float64
	Sides        int
}

// ExtraPips is the per-trade pip cost this overlay adds.
func (o OverlayCost) ExtraPips() float64 {
	spread := math.Max(0, o.SpreadPips)
	slip := math.Max(0, o.SlippagePips)
	sides := o.Sides
	if sides < 0 {
		sides = 0
	}
	return spread + slip*float64(sides)
}

// OverlayMetrics is the result of recomputing profit/PF/drawdown over a
// trade list after applying a per-trade cost deduction.
type OverlayMetrics struct {
	Profit           float64
	ProfitFactor     float64
	MaxDrawdownPct   float64
	TotalTrades      int
	ExtraPipsTotal   float64
	PipValuePerLot   float64
	OverlayCostTotal float64
}

// ApplyCostOverlay recomputes profit, profit factor, and max drawdown over
// trades ordered by close time after deducting a flat per-trade cost of
// pipValuePerLot × volume × extraPips — the simulator is never re-run.
// The running sums are accumulated as decimal.Decimal: fifty-plus trades of
// fractional-pip costs drift under repeated float64 addition, and this is
// money, not a ratio.
func ApplyCostOverlay(trades []domain.Trade, pipValuePerLot float64, cost OverlayCost, initialBalance float64) OverlayMetrics {
	extraPips := cost.ExtraPips()
	pipValueDec := decimal.NewFromFloat(pipValuePerLot)
	extraPipsDec := decimal.NewFromFloat(extraPips)

	type row struct {
		closeTime time.Time
		adjusted  decimal.Decimal
	}
	rows := make([]row, 0, len(trades))
	overlayCostTotal := decimal.Zero
	for _, t := range trades {
		c := pipValueDec.Mul(decimal.NewFromFloat(t.Volume)).Mul(extraPipsDec)
		overlayCostTotal = overlayCostTotal.Add(c)
		adjusted := decimal.NewFromFloat(t.NetProfit).Sub(c)
		rows = append(rows, row{closeTime: t.CloseTime, adjusted: adjusted})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].closeTime.Before(rows[j].closeTime) })

	profit := decimal.Zero
	grossProfit := decimal.Zero
	grossLoss := decimal.Zero
	balance := decimal.NewFromFloat(initialBalance)
	peak := balance
	if peak.IsZero() {
		peak = decimal.NewFromFloat(1e-9)
	}
	maxDD := decimal.Zero

	for _, r := range rows {
		profit = profit.Add(r.adjusted)
		switch {
		case r.adjusted.IsPositive():
			grossProfit = grossProfit.Add(r.adjusted)
		case r.adjusted.IsNegative():
			grossLoss = grossLoss.Sub(r.adjusted)
		}
		balance = balance.Add(r.adjusted)
		if balance.GreaterThan(peak) {
			peak = balance
		}
		if peak.IsPositive() {
			if dd := peak.Sub(balance).Div(peak); dd.GreaterThan(maxDD) {
				maxDD = dd
			}
		}
	}

	return OverlayMetrics{
		Profit:           profit.InexactFloat64(),
		ProfitFactor:     profitFactorFromGross(grossProfit.InexactFloat64(), grossLoss.InexactFloat64()),
		MaxDrawdownPct:   maxDD.Mul(decimal.NewFromInt(100)).InexactFloat64(),
		TotalTrades:      len(trades),
		ExtraPipsTotal:   extraPips,
		PipValuePerLot:   pipValuePerLot,
		OverlayCostTotal: overlayCostTotal.InexactFloat64(),
	}
}

// profitFactorFromGross applies the stress engine's own degenerate-case
// convention (99.0 sentinel when there are no losses at all, 0.0 when
// there's no profit either) — distinct from the gate engine's own
// division-by-zero handling, since this value is diagnostic rather than a
// pass/fail input.
func profitFactorFromGross(grossProfit, grossLoss float64) float64 {
	if grossLoss <= 1e-12 {
		if grossProfit > 0 {
			return 99.0
		}
		return 0.0
	}
	return grossProfit / grossLoss
}
