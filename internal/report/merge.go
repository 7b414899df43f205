package report

// MergeForwardBack combines a back-test optimization report and a
// forward-test optimization report of the same parameter passes into a
// single record set keyed by Pass number. Each merged record carries
// both BackResult and ForwardResult (when present on either side) and
// Trades becomes the sum of the two segments, matching how the walk-
// forward step reports a single combined trade count per pass. The
// forward segment's own metric fields are also copied onto the merged
// record under their Forward-prefixed keys, so both segments' figures
// survive the merge instead of one overwriting the other.
func MergeForwardBack(back, forward []PassRecord) []PassRecord {
	byPass := make(map[int]*PassRecord, len(back))
	order := make([]int, 0, len(back))

	for _, rec := range back {
		rec := rec
		rec.BackResult = rec.Result
		rec.HasBack = true
		byPass[rec.Pass] = &rec
		order = append(order, rec.Pass)
	}

	for _, fwd := range forward {
		if existing, ok := byPass[fwd.Pass]; ok {
			existing.ForwardResult = fwd.Result
			existing.HasForward = true
			existing.Trades += fwd.Trades
			applyForwardMetrics(existing, fwd)
			continue
		}
		rec := fwd
		rec.ForwardResult = fwd.Result
		rec.HasForward = true
		applyForwardMetrics(&rec, fwd)
		byPass[rec.Pass] = &rec
		order = append(order, rec.Pass)
	}

	merged := make([]PassRecord, 0, len(order))
	seen := make(map[int]bool, len(order))
	for _, pass := range order {
		if seen[pass] {
			continue
		}
		seen[pass] = true
		merged = append(merged, *byPass[pass])
	}

	sortPassesDescending(merged)
	return merged
}

// applyForwardMetrics copies the forward segment's own metric fields
// onto rec under their Forward-prefixed names.
func applyForwardMetrics(rec *PassRecord, fwd PassRecord) {
	rec.ForwardProfit = fwd.Profit
	rec.ForwardExpectedPayoff = fwd.ExpectedPayoff
	rec.ForwardProfitFactor = fwd.ProfitFactor
	rec.ForwardRecoveryFactor = fwd.RecoveryFactor
	rec.ForwardSharpeRatio = fwd.SharpeRatio
	rec.ForwardMaxDrawdownPct = fwd.DrawdownPct
	rec.ForwardTotalTrades = fwd.Trades
}
