// Package gate evaluates per-stage pass/fail predicates against a metrics
// record, computes the composite Go-Live Score, and produces structured
// failure diagnoses (spec §4.3, C4).
package gate

// Thresholds collects every gate threshold used by the pipeline. It is
// populated once from internal/config and threaded explicitly into the
// gate engine and every stage that checks a gate, mirroring the
// ViabilityThresholds struct the teacher's backtester package uses for an
// analogous purpose.
type Thresholds struct {
	MinTrades         int
	MinProfitFactor   float64
	MaxDrawdownPct    float64
	MCConfidenceMin   float64
	MCRuinMax         float64
	MinOptimizationPasses int
}

// DefaultThresholds returns the thresholds used by the original
// implementation's settings module, kept as this system's defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinTrades:             50,
		MinProfitFactor:       1.5,
		MaxDrawdownPct:        25.0,
		MCConfidenceMin:       80.0,
		MCRuinMax:             5.0,
		MinOptimizationPasses: 10,
	}
}
