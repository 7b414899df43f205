package stage

import (
	"fmt"
	"os"
	"time"

	"github.com/eastress/robustness-pipeline/internal/domain"
	"github.com/eastress/robustness-pipeline/internal/extractor"
	"github.com/eastress/robustness-pipeline/internal/gate"
	"github.com/eastress/robustness-pipeline/internal/report"
	"github.com/eastress/robustness-pipeline/internal/simulator"
)

// runExtractParams reads the declared inputs off the ORIGINAL EA source
// (not the injected copy: injected safety inputs must never be treated
// as optimization candidates), and stores the full list as a side-car
// since it can run into the hundreds for a complex EA.
func runExtractParams(env *Env, state *domain.WorkflowState, reportName string, input interface{}) domain.StageResult {
	started := time.Now()
	params, err := extractor.ExtractParams(state.EAPath)
	if err != nil {
		return fail(started, err.Error())
	}
	if _, err := env.Store.SaveResults(state.WorkflowID, "params", params); err != nil {
		return fail(started, err.Error())
	}
	opt := extractor.Optimizable(params)
	g := gate.CheckParamsFound(len(params))
	return ok(started, map[string]interface{}{
		"paramCount":       len(params),
		"optimizableCount": len(opt),
	}, &g)
}

// runAnalyzeParams records the externally-chosen optimization ranges.
// The executor only ever invokes this through its resume entry point,
// after pausing with status=awaiting_param_analysis.
func runAnalyzeParams(env *Env, state *domain.WorkflowState, reportName string, input interface{}) domain.StageResult {
	started := time.Now()
	ranges, ok2 := input.([]domain.OptimizationRange)
	if !ok2 {
		return fail(started, "4_analyze_params: expected []domain.OptimizationRange payload")
	}
	for _, r := range ranges {
		if err := r.Validate(); err != nil {
			return fail(started, err.Error())
		}
	}
	if _, err := env.Store.SaveResults(state.WorkflowID, "ranges", ranges); err != nil {
		return fail(started, err.Error())
	}
	return ok(started, map[string]interface{}{"rangeCount": len(ranges)}, nil)
}

func loadParams(env *Env, workflowID string) ([]domain.Parameter, error) {
	var params []domain.Parameter
	if err := env.Store.LoadResults(workflowID, "params", &params); err != nil {
		return nil, err
	}
	return params, nil
}

func loadRanges(env *Env, workflowID string) (map[string]domain.OptimizationRange, error) {
	var ranges []domain.OptimizationRange
	if err := env.Store.LoadResults(workflowID, "ranges", &ranges); err != nil {
		return nil, err
	}
	byName := make(map[string]domain.OptimizationRange, len(ranges))
	for _, r := range ranges {
		byName[r.Name] = r
	}
	return byName, nil
}

// runValidateTrades backtests the compiled EA with its declared defaults
// (no swept ranges) to confirm the strategy produces enough trades to be
// statistically meaningful before spending an optimization run on it
// (spec §4.6, grounded on engine/runner.py:_step_validate_trades).
func runValidateTrades(env *Env, state *domain.WorkflowState, reportName string, input interface{}) domain.StageResult {
	started := time.Now()
	compileData := prevData(state, Compile)
	exePath := strVal(compileData, "exePath")
	eaName := strVal(compileData, "eaName")
	if exePath == "" {
		return fail(started, "5_validate_trades: no compiled EA from 2_compile")
	}

	params, err := loadParams(env, state.WorkflowID)
	if err != nil {
		return fail(started, err.Error())
	}

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
			ReportName: reportName,
			Parameters: params,
		},
		ReportName: reportName,
	}

	bt, err := env.Sim.Backtest(bgCtx(), req)
	if err != nil {
		return fail(started, err.Error())
	}
	if !bt.Success {
		return fail(started, bt.Errors...)
	}

	data, err := os.ReadFile(bt.HTMLPath)
	if err != nil {
		return fail(started, err.Error())
	}
	sr := report.ParseSingleRunHTML(data)
	metrics := sr.ToTradeMetrics()
	g := gate.CheckMinimumTrades(metrics.TotalTrades, env.Thresholds)

	return domain.StageResult{
		Success:     g.Passed,
		Data:        map[string]interface{}{"totalTrades": metrics.TotalTrades},
		Gate:        &g,
		StartedAt:   started,
		CompletedAt: time.Now(),
	}
}

// runCreateINI validates the complete (params, ranges) pairing before any
// simulator invocation spends time on it: an optimizable parameter with
// no declared range is accepted (left at its default), and every declared
// range of an optimizable parameter must satisfy its own start/stop/step
// invariant (spec §3).
func runCreateINI(env *Env, state *domain.WorkflowState, reportName string, input interface{}) domain.StageResult {
	started := time.Now()
	params, err := loadParams(env, state.WorkflowID)
	if err != nil {
		return fail(started, err.Error())
	}
	ranges, err := loadRanges(env, state.WorkflowID)
	if err != nil {
		return fail(started, err.Error())
	}

	for _, p := range params {
		if !p.Optimizable {
			continue
		}
		r, has := ranges[p.Name]
		if !has {
			continue // left at its default, not swept: valid per spec §3
		}
		if err := r.Validate(); err != nil {
			return fail(started, fmt.Sprintf("6_create_ini: %s", err.Error()))
		}
	}

	return ok(started, map[string]interface{}{"rangeCount": len(ranges)}, nil)
}
