// Package dashboard computes the per-workflow presentation feed the core
// hands to an external renderer: an equity curve, a profit histogram, an
// MFE/MAE scatter, and a holding-time distribution, all derived from the
// extracted trade list. The HTML/CSS rendering of this feed is out of
// scope (spec's graphical-rendering non-goal); only the JSON emission is
// owned here, grounded on modules/trade_extractor.py's equivalent
// functions.
package dashboard

import (
	"fmt"
	"sort"
	"time"

	"github.com/eastress/robustness-pipeline/internal/domain"
)

// Histogram is a bucketed, chart-ready distribution.
type Histogram struct {
	Labels []string `json:"labels"`
	Values []int    `json:"values"`
	Colors []string `json:"colors,omitempty"`
}

// EquityCurve returns the running balance after each trade, sorted by
// close time ascending, starting from initialBalance.
func EquityCurve(trades []domain.Trade, initialBalance float64) []float64 {
	if len(trades) == 0 {
		if initialBalance > 0 {
			return []float64{initialBalance}
		}
		return nil
	}

	sorted := make([]domain.Trade, len(trades))
	copy(sorted, trades)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CloseTime.Before(sorted[j].CloseTime) })

	equity := make([]float64, 0, len(sorted)+1)
	balance := initialBalance
	equity = append(equity, balance)
	for _, t := range sorted {
		balance += t.NetProfit
		equity = append(equity, balance)
	}
	return equity
}

func bucketColor(mid float64) string {
	if mid >= 0 {
		return "#198754"
	}
	return "#dc3545"
}

// ProfitHistogram buckets each trade's net profit into bucketCount evenly
// spaced bins spanning [min(profit), max(profit)].
func ProfitHistogram(trades []domain.Trade, bucketCount int) Histogram {
	if len(trades) == 0 {
		return Histogram{Labels: []string{}, Values: []int{}, Colors: []string{}}
	}

	minP, maxP := trades[0].NetProfit, trades[0].NetProfit
	for _, t := range trades {
		if t.NetProfit < minP {
			minP = t.NetProfit
		}
		if t.NetProfit > maxP {
			maxP = t.NetProfit
		}
	}
	if minP == maxP {
		return Histogram{
			Labels: []string{fmt.Sprintf("%.0f", minP)},
			Values: []int{len(trades)},
			Colors: []string{bucketColor(minP)},
		}
	}

	bucketSize := (maxP - minP) / float64(bucketCount)
	values := make([]int, bucketCount)
	labels := make([]string, bucketCount)
	colors := make([]string, bucketCount)
	for i := 0; i < bucketCount; i++ {
		lo := minP + float64(i)*bucketSize
		hi := lo + bucketSize
		labels[i] = fmt.Sprintf("%.0f to %.0f", lo, hi)
		colors[i] = bucketColor((lo + hi) / 2)
	}
	for _, t := range trades {
		idx := int((t.NetProfit - minP) / bucketSize)
		if idx >= bucketCount {
			idx = bucketCount - 1
		}
		if idx < 0 {
			idx = 0
		}
		values[idx]++
	}
	return Histogram{Labels: labels, Values: values, Colors: colors}
}

// ScatterPoint is one MFE/MAE point. The report parser carries no true
// intra-trade excursion data, so MFE/MAE are estimated from net profit:
// the positive part is the favorable excursion, the negative part the
// adverse one.
type ScatterPoint struct {
	MAE    float64 `json:"x"`
	MFE    float64 `json:"y"`
	Profit float64 `json:"profit"`
}

// MFEMAEScatter builds one scatter point per trade.
func MFEMAEScatter(trades []domain.Trade) []ScatterPoint {
	points := make([]ScatterPoint, 0, len(trades))
	for _, t := range trades {
		mfe := t.NetProfit
		if mfe < 0 {
			mfe = 0
		}
		mae := t.NetProfit
		if mae > 0 {
			mae = 0
		}
		points = append(points, ScatterPoint{MAE: mae, MFE: mfe, Profit: t.NetProfit})
	}
	return points
}

func formatDuration(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second))
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%.0fs", seconds)
	case d < time.Hour:
		return fmt.Sprintf("%.0fm", d.Minutes())
	case d < 24*time.Hour:
		return fmt.Sprintf("%.1fh", d.Hours())
	default:
		return fmt.Sprintf("%.1fd", d.Hours()/24)
	}
}

// HoldingTimeDistribution buckets each trade's holding duration (close
// time minus open time) in seconds into bucketCount evenly spaced bins.
// Trades with a zero open or close time are excluded.
func HoldingTimeDistribution(trades []domain.Trade, bucketCount int) Histogram {
	var seconds []float64
	for _, t := range trades {
		if t.OpenTime.IsZero() || t.CloseTime.IsZero() {
			continue
		}
		d := t.CloseTime.Sub(t.OpenTime).Seconds()
		if d > 0 {
			seconds = append(seconds, d)
		}
	}
	if len(seconds) == 0 {
		return Histogram{Labels: []string{}, Values: []int{}}
	}

	minT, maxT := seconds[0], seconds[0]
	for _, s := range seconds {
		if s < minT {
			minT = s
		}
		if s > maxT {
			maxT = s
		}
	}
	if minT == maxT {
		return Histogram{Labels: []string{formatDuration(minT)}, Values: []int{len(seconds)}}
	}

	bucketSize := (maxT - minT) / float64(bucketCount)
	values := make([]int, bucketCount)
	labels := make([]string, bucketCount)
	for i := 0; i < bucketCount; i++ {
		lo := minT + float64(i)*bucketSize
		hi := lo + bucketSize
		labels[i] = formatDuration(lo) + " - " + formatDuration(hi)
	}
	for _, s := range seconds {
		idx := int((s - minT) / bucketSize)
		if idx >= bucketCount {
			idx = bucketCount - 1
		}
		if idx < 0 {
			idx = 0
		}
		values[idx]++
	}
	return Histogram{Labels: labels, Values: values}
}

// Data is the full per-workflow dashboard feed persisted to
// runs/dashboards/<id>/data.json.
type Data struct {
	WorkflowID         string         `json:"workflowId"`
	EquityCurve        []float64      `json:"equityCurve"`
	ProfitHistogram    Histogram      `json:"profitHistogram"`
	MFEMAEScatter      []ScatterPoint `json:"mfeMaeScatter"`
	HoldingTimeBuckets Histogram      `json:"holdingTimeBuckets"`
	TotalTrades        int            `json:"totalTrades"`
	GeneratedAt        time.Time      `json:"generatedAt"`
}

// Build assembles the dashboard feed for a workflow from its extracted
// trade list.
func Build(workflowID string, trades []domain.Trade, now time.Time) Data {
	return Data{
		WorkflowID:         workflowID,
		EquityCurve:        EquityCurve(trades, 0),
		ProfitHistogram:    ProfitHistogram(trades, 20),
		MFEMAEScatter:      MFEMAEScatter(trades),
		HoldingTimeBuckets: HoldingTimeDistribution(trades, 10),
		TotalTrades:        len(trades),
		GeneratedAt:        now,
	}
}
