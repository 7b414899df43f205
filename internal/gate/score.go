package gate

import "math"

// Normalize maps v linearly onto [0,1] over [lo,hi], clamped, and
// inverted if requested. normalize = 0 when hi <= lo (spec §4.3).
func Normalize(v, lo, hi float64, invert bool) float64 {
	if hi <= lo {
		return 0
	}
	n := (v - lo) / (hi - lo)
	if n < 0 {
		n = 0
	}
	if n > 1 {
		n = 1
	}
	if invert {
		return 1 - n
	}
	return n
}

// SegmentProfits carries the back/forward segment profits a pass's
// consistency subscore is computed from (spec §4.3).
type SegmentProfits struct {
	Back    float64
	Forward float64
	HasBack    bool
	HasForward bool
}

// consistencyScore implements the §4.3 table's Consistency row:
// both segments positive -> normalize(min(back,forward), 0, 2000);
// exactly one positive -> normalize(max, 0, 2000) * 0.25; else 0.
func consistencyScore(seg SegmentProfits) float64 {
	backPositive := seg.HasBack && seg.Back > 0
	forwardPositive := seg.HasForward && seg.Forward > 0

	switch {
	case backPositive && forwardPositive:
		minVal := math.Min(seg.Back, seg.Forward)
		return Normalize(minVal, 0, 2000, false)
	case backPositive || forwardPositive:
		maxVal := math.Max(seg.Back, seg.Forward)
		return Normalize(maxVal, 0, 2000, false) * 0.25
	default:
		return 0
	}
}

// CompositeScoreInput is every field the Go-Live Score depends on.
type CompositeScoreInput struct {
	Profit         float64
	TotalTrades    int
	ProfitFactor   float64
	MaxDrawdownPct float64
	Segments       SegmentProfits
}

// CompositeScore computes the weighted 0-10 Go-Live Score from the single
// table mandated by spec §4.3. This is the ONLY composite-score formula
// in this system: the original source's calculate_composite_score used a
// different, inconsistent weighting across callsites (see DESIGN.md); it
// is intentionally not reproduced here.
func CompositeScore(in CompositeScoreInput) float64 {
	consistency := consistencyScore(in.Segments) * 0.25
	totalProfit := Normalize(in.Profit, 0, 5000, false) * 0.25
	tradeCount := Normalize(float64(in.TotalTrades), 50, 200, false) * 0.20
	profitFactor := Normalize(in.ProfitFactor, 1.0, 3.0, false) * 0.15
	maxDrawdown := Normalize(in.MaxDrawdownPct, 0, 30, true) * 0.15

	sum := consistency + totalProfit + tradeCount + profitFactor + maxDrawdown
	score := math.Round(sum*10*10) / 10
	if score > 10 {
		score = 10
	}
	if score < 0 {
		score = 0
	}
	return score
}

// PassScore computes a single pass's composite score plus the +0.5
// consistency bonus (capped at 10) awarded when both segment profits are
// positive (spec §4.3).
func PassScore(in CompositeScoreInput) float64 {
	score := CompositeScore(in)
	if in.Segments.HasBack && in.Segments.HasForward && in.Segments.Back > 0 && in.Segments.Forward > 0 {
		score += 0.5
	}
	if score > 10 {
		score = 10
	}
	return score
}
