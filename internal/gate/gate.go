package gate

import (
	"fmt"

	"github.com/eastress/robustness-pipeline/internal/domain"
)

func result(name string, passed bool, value, threshold float64, op domain.GateOperator, message string) domain.GateResult {
	if message == "" {
		status := "FAIL"
		if passed {
			status = "PASS"
		}
		message = fmt.Sprintf("%s: %s = %g (%s %g)", status, name, value, op, threshold)
	}
	return domain.GateResult{Name: name, Passed: passed, Value: value, Threshold: threshold, Operator: op, Message: message}
}

// CheckFileExists gates on the extractor having found a loadable EA source.
func CheckFileExists(found bool) domain.GateResult {
	v := 0.0
	if found {
		v = 1.0
	}
	return result("file_exists", found, v, 1.0, domain.OpEQ, "")
}

// CheckCompilation gates on a successful compile.
func CheckCompilation(success bool) domain.GateResult {
	v := 0.0
	if success {
		v = 1.0
	}
	return result("compilation", success, v, 1.0, domain.OpEQ, "")
}

// CheckParamsFound gates on the extractor having found at least one
// declared parameter.
func CheckParamsFound(paramCount int) domain.GateResult {
	passed := paramCount > 0
	return result("params_found", passed, float64(paramCount), 1, domain.OpGTE, "")
}

// CheckMinimumTrades gates on the validation backtest producing enough
// trades for statistical significance.
func CheckMinimumTrades(totalTrades int, th Thresholds) domain.GateResult {
	passed := totalTrades >= th.MinTrades
	return result("minimum_trades", passed, float64(totalTrades), float64(th.MinTrades), domain.OpGTE, "")
}

// CheckProfitFactor gates on the profit factor meeting the minimum.
func CheckProfitFactor(pf float64, th Thresholds) domain.GateResult {
	passed := pf >= th.MinProfitFactor
	return result("profit_factor", passed, pf, th.MinProfitFactor, domain.OpGTE, "")
}

// CheckMaxDrawdown gates on the max drawdown staying under the ceiling.
func CheckMaxDrawdown(ddPct float64, th Thresholds) domain.GateResult {
	passed := ddPct <= th.MaxDrawdownPct
	return result("max_drawdown", passed, ddPct, th.MaxDrawdownPct, domain.OpLTE, "")
}

// CheckMonteCarloConfidence gates on the Monte Carlo confidence (P(final
// balance > initial)) meeting the floor.
func CheckMonteCarloConfidence(confidencePct float64, th Thresholds) domain.GateResult {
	passed := confidencePct >= th.MCConfidenceMin
	return result("mc_confidence", passed, confidencePct, th.MCConfidenceMin, domain.OpGTE, "")
}

// CheckMonteCarloRuin gates on the ruin probability staying under the
// ceiling.
func CheckMonteCarloRuin(ruinPct float64, th Thresholds) domain.GateResult {
	passed := ruinPct <= th.MCRuinMax
	return result("mc_ruin", passed, ruinPct, th.MCRuinMax, domain.OpLTE, "")
}

// CheckOptimizationPasses gates on the optimization run having produced
// enough passes to select from.
func CheckOptimizationPasses(passesCount int, th Thresholds) domain.GateResult {
	passed := passesCount >= th.MinOptimizationPasses
	return result("optimization_passes", passed, float64(passesCount), float64(th.MinOptimizationPasses), domain.OpGTE, "")
}

// CheckValidPasses gates on at least one pass surviving structural
// validation (non-zero trades, parseable metrics).
func CheckValidPasses(validCount int) domain.GateResult {
	passed := validCount > 0
	return result("valid_passes", passed, float64(validCount), 1, domain.OpGTE, "")
}

// CheckSuccessfulPasses gates on at least one selected pass clearing the
// backtest-replay gates.
func CheckSuccessfulPasses(successfulCount int) domain.GateResult {
	passed := successfulCount > 0
	return result("successful_passes", passed, float64(successfulCount), 1, domain.OpGTE, "")
}

// criticalGates are the gates checked by GoLiveReady (spec §4.3's
// implied "critical" set, ported from engine/gates.py's
// check_go_live_ready list).
var criticalGates = []string{"profit_factor", "max_drawdown", "minimum_trades", "mc_confidence", "mc_ruin"}

// GoLiveReady reports whether every critical gate present in gates has
// passed. A missing critical gate is treated as not ready.
func GoLiveReady(gates map[string]domain.GateResult) bool {
	for _, name := range criticalGates {
		g, ok := gates[name]
		if !ok || !g.Passed {
			return false
		}
	}
	return true
}

// CheckAll bundles a set of GateResults into the all_passed/by-name shape
// stage executors attach to a StageResult.
func CheckAll(results ...domain.GateResult) (allPassed bool, byName map[string]domain.GateResult) {
	byName = make(map[string]domain.GateResult, len(results))
	allPassed = true
	for _, r := range results {
		byName[r.Name] = r
		if !r.Passed {
			allPassed = false
		}
	}
	return allPassed, byName
}
