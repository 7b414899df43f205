package stage

import (
	"time"

	"go.uber.org/zap"

	"github.com/eastress/robustness-pipeline/internal/dashboard"
	"github.com/eastress/robustness-pipeline/internal/domain"
	"github.com/eastress/robustness-pipeline/internal/gate"
)

// runGenerateReports always runs, even after an earlier stage failed
// (spec §4.6): it computes the Go-Live composite score, checks whether
// every gate recorded so far has passed, and attaches a diagnosis for
// each one that hasn't, so a failed workflow still ends with an
// actionable explanation instead of a bare "failed" status.
func runGenerateReports(env *Env, state *domain.WorkflowState, reportName string, input interface{}) domain.StageResult {
	started := time.Now()

	var sidecar backtestSideCar
	_ = env.Store.LoadResults(state.WorkflowID, "backtests", &sidecar)

	segments := gate.SegmentProfits{
		Back: sidecar.Best.Back, Forward: sidecar.Best.Forward,
		HasBack: sidecar.Best.HasBack, HasForward: sidecar.Best.HasFwd,
	}
	scoreInput := gate.CompositeScoreInput{
		Profit:         state.Metrics["profit"],
		TotalTrades:    int(state.Metrics["total_trades"]),
		ProfitFactor:   state.Metrics["profit_factor"],
		MaxDrawdownPct: state.Metrics["max_drawdown_pct"],
		Segments:       segments,
	}
	score := gate.CompositeScore(scoreInput)
	goLiveReady := gate.GoLiveReady(state.Gates)

	diagnoses := map[string]string{}
	if !goLiveReady {
		in := gate.DiagnosisInputs{WinRate: state.Metrics["win_rate"]}
		diagnoses = gate.DiagnoseAll(state.Gates, in)
	}

	var trades []domain.Trade
	_ = env.Store.LoadResults(state.WorkflowID, "trades", &trades)
	feed := dashboard.Build(state.WorkflowID, trades, started)
	dashboardPath, dashErr := env.Store.SaveDashboard(state.WorkflowID, feed)
	if dashErr != nil && env.Logger != nil {
		env.Logger.Warn("failed to persist dashboard feed", zap.String("workflowId", state.WorkflowID), zap.Error(dashErr))
	}

	return ok(started, map[string]interface{}{
		"compositeScore": score,
		"goLiveReady":    goLiveReady,
		"diagnoses":      diagnoses,
		"dashboardPath":  dashboardPath,
	}, nil)
}
