package gate

import (
	"fmt"

	"github.com/eastress/robustness-pipeline/internal/domain"
)

// DiagnosisInputs carries the extra metrics the diagnosis messages need
// beyond what's on the GateResult itself (avg win/loss, win rate), ported
// from engine/gates.py:diagnose_failure.
type DiagnosisInputs struct {
	AvgWin  float64
	AvgLoss float64
	WinRate float64
}

// Diagnose produces a short, human-readable explanation for a single
// failed gate. Messages match the original implementation's wording
// exactly, since spec §8's end-to-end scenarios assert on them verbatim.
func Diagnose(g domain.GateResult, in DiagnosisInputs) string {
	if g.Passed {
		return ""
	}
	switch g.Name {
	case "profit_factor":
		if in.AvgLoss != 0 && in.AvgWin < in.AvgLoss*1.5 {
			return fmt.Sprintf(
				"PF %.2f < %.2f: Average win ($%.0f) is too close to average loss ($%.0f). Consider tightening stop loss or improving exit strategy.",
				g.Value, g.Threshold, in.AvgWin, in.AvgLoss)
		}
		return fmt.Sprintf(
			"PF %.2f < %.2f: Win rate is %.0f%%. Consider improving entry signals to increase winning trades.",
			g.Value, g.Threshold, in.WinRate)
	case "max_drawdown":
		return fmt.Sprintf(
			"Drawdown %.1f%% > %.1f%%: Consider adding position sizing, trailing stops, or reducing exposure during losing streaks.",
			g.Value, g.Threshold)
	case "minimum_trades":
		return fmt.Sprintf(
			"Only %d trades (need %d+): EA may be too selective. Consider widening entry conditions or testing longer period.",
			int(g.Value), int(g.Threshold))
	case "mc_confidence":
		return fmt.Sprintf(
			"MC confidence %.0f%% < %.0f%%: Results may be due to luck. Trade sequence matters too much - reduce dependency on specific market conditions.",
			g.Value, g.Threshold)
	case "mc_ruin":
		return fmt.Sprintf(
			"Ruin probability %.0f%% > %.0f%%: High risk of account blowup. Reduce position sizes or add circuit breakers for losing streaks.",
			g.Value, g.Threshold)
	default:
		return g.Message
	}
}

// DiagnoseAll returns a diagnosis for every failed gate, keyed by gate
// name (spec §7's "user-visible failure" contract).
func DiagnoseAll(gates map[string]domain.GateResult, in DiagnosisInputs) map[string]string {
	out := make(map[string]string)
	for name, g := range gates {
		if !g.Passed {
			out[name] = Diagnose(g, in)
		}
	}
	return out
}
