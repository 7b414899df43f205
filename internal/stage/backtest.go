package stage

import (
	"fmt"
	"os"
	"time"

	"github.com/eastress/robustness-pipeline/internal/domain"
	"github.com/eastress/robustness-pipeline/internal/gate"
	"github.com/eastress/robustness-pipeline/internal/montecarlo"
	"github.com/eastress/robustness-pipeline/internal/report"
	"github.com/eastress/robustness-pipeline/internal/simulator"
)

// subReportName derives a distinct, bounded report name for one of
// several simulator calls made within a single stage (one per selected
// pass). Collisions are harmless here (pass numbers are unique within a
// workflow), so no hash disambiguation is needed the way stress scenario
// IDs need it.
func subReportName(base, suffix string) string {
	name := base + "_" + suffix
	if len(name) > 60 {
		name = name[:60]
	}
	return name
}

// passOutcome is one selected pass's re-backtest result, carrying its
// original optimization back/forward split so step 11 can score
// consistency without re-parsing the optimization XML.
type passOutcome struct {
	Pass    int                 `json:"pass"`
	Metrics domain.TradeMetrics `json:"metrics"`
	Back    float64             `json:"backResult"`
	Forward float64             `json:"forwardResult"`
	HasBack bool                `json:"hasBack"`
	HasFwd  bool                `json:"hasForward"`
}

// backtestSideCar is the full content of the "backtests" side-car file.
type backtestSideCar struct {
	Best passOutcome   `json:"best"`
	All  []passOutcome `json:"all"`
}

func rangesFromPassParameters(params []domain.Parameter, passParams map[string]string) map[string]domain.OptimizationRange {
	ranges := make(map[string]domain.OptimizationRange, len(params))
	for _, p := range params {
		raw, has := passParams[p.Name]
		if !has {
			continue
		}
		val, okNum := report.ParseNumber(raw)
		if !okNum {
			continue
		}
		ranges[p.Name] = domain.OptimizationRange{Name: p.Name, Start: val, Stop: val, Optimize: false, FixedValue: &val}
	}
	return ranges
}

// runBacktestTop re-backtests each externally-selected pass with its own
// parameter set held fixed, keeping the best by profit, and stores the
// best pass's trade list (only that pass's) alongside the per-pass
// metrics so step 10 can resample it
// (spec §4.6, grounded on engine/runner.py:_step_backtest_robust).
func runBacktestTop(env *Env, state *domain.WorkflowState, reportName string, input interface{}) domain.StageResult {
	started := time.Now()
	compileData := prevData(state, Compile)
	eaName := strVal(compileData, "eaName")
	if eaName == "" {
		return fail(started, "9_backtest_top: no compiled EA from 2_compile")
	}

	var selected []report.PassRecord
	if err := env.Store.LoadResults(state.WorkflowID, "selected_passes", &selected); err != nil {
		return fail(started, err.Error())
	}
	params, err := loadParams(env, state.WorkflowID)
	if err != nil {
		return fail(started, err.Error())
	}

	var all []passOutcome
	var bestIdx = -1
	var bestTrades []domain.Trade

	for i, pass := range selected {
		rn := subReportName(reportName, fmt.Sprintf("p%d", pass.Pass))
		req := simulator.Request{
			Terminal: env.Terminal,
			EAName:   eaName,
			INI: simulator.INIConfig{
				EAName:     eaName,
				Symbol:     state.Symbol,
				Timeframe:  state.Timeframe,
				FromDate:   env.FromDate,
				ToDate:     env.ToDate,
				Deposit:    env.Deposit,
				Currency:   env.Currency,
				Leverage:   env.Leverage,
				ReportName: rn,
				Parameters: params,
				Ranges:     rangesFromPassParameters(params, pass.Parameters),
			},
			ReportName: rn,
		}

		bt, err := env.Sim.Backtest(bgCtx(), req)
		if err != nil || !bt.Success {
			continue
		}
		data, err := os.ReadFile(bt.HTMLPath)
		if err != nil {
			continue
		}
		sr := report.ParseSingleRunHTML(data)
		metrics := sr.ToTradeMetrics()
		outcome := passOutcome{
			Pass: pass.Pass, Metrics: metrics,
			Back: pass.BackResult, Forward: pass.ForwardResult,
			HasBack: pass.HasBack, HasFwd: pass.HasForward,
		}
		all = append(all, outcome)

		if bestIdx == -1 || metrics.Profit > all[bestIdx].Metrics.Profit {
			bestIdx = len(all) - 1
			deals := report.ParseDealsHTML(data)
			bestTrades = report.ExtractTrades(deals)
		}
	}

	if bestIdx == -1 {
		return fail(started, "9_backtest_top: no selected pass backtested successfully")
	}

	best := all[bestIdx]
	sidecar := backtestSideCar{Best: best, All: all}
	if _, err := env.Store.SaveResults(state.WorkflowID, "backtests", sidecar); err != nil {
		return fail(started, err.Error())
	}
	if _, err := env.Store.SaveResults(state.WorkflowID, "trades", bestTrades); err != nil {
		return fail(started, err.Error())
	}

	gates := []domain.GateResult{
		gate.CheckProfitFactor(best.Metrics.ProfitFactor, env.Thresholds),
		gate.CheckMaxDrawdown(best.Metrics.MaxDrawdownPct, env.Thresholds),
		gate.CheckMinimumTrades(best.Metrics.TotalTrades, env.Thresholds),
	}
	allPassed, _ := gate.CheckAll(gates...)

	data := map[string]interface{}{
		"metrics":  best.Metrics.ToMap(),
		"bestPass": best.Pass,
		"gates":    gates,
	}
	return domain.StageResult{
		Success:     allPassed,
		Data:        data,
		Gate:        &gates[0],
		StartedAt:   started,
		CompletedAt: time.Now(),
	}
}

// runMonteCarlo resamples the winning pass's trade list to estimate ruin
// probability and profit percentiles under alternate trade orderings
// (spec §4.5, C5).
func runMonteCarlo(env *Env, state *domain.WorkflowState, reportName string, input interface{}) domain.StageResult {
	started := time.Now()
	var trades []domain.Trade
	if err := env.Store.LoadResults(state.WorkflowID, "trades", &trades); err != nil {
		return fail(started, err.Error())
	}
	if len(trades) == 0 {
		return fail(started, "10_monte_carlo: no trades recovered from 9_backtest_top")
	}

	profits := make([]float64, len(trades))
	for i, t := range trades {
		profits[i] = t.NetProfit
	}

	mc, _, _ := montecarlo.Run(env.Logger, profits, env.MCConfig)
	if _, err := env.Store.SaveResults(state.WorkflowID, "montecarlo", mc); err != nil {
		return fail(started, err.Error())
	}

	confGate := gate.CheckMonteCarloConfidence(mc.ConfidencePct, env.Thresholds)
	ruinGate := gate.CheckMonteCarloRuin(mc.RuinProbabilityPct, env.Thresholds)
	allPassed, _ := gate.CheckAll(confGate, ruinGate)

	return domain.StageResult{
		Success: allPassed,
		Data: map[string]interface{}{
			"metrics": map[string]float64{
				"mc_confidence":       mc.ConfidencePct,
				"mc_ruin_probability": mc.RuinProbabilityPct,
				"mc_expected_profit":  mc.ExpectedProfit,
			},
			"gates": []domain.GateResult{confGate, ruinGate},
		},
		Gate:        &confGate,
		StartedAt:   started,
		CompletedAt: time.Now(),
	}
}
