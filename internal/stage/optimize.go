package stage

import (
	"os"
	"strconv"
	"time"

	"github.com/eastress/robustness-pipeline/internal/domain"
	"github.com/eastress/robustness-pipeline/internal/gate"
	"github.com/eastress/robustness-pipeline/internal/report"
	"github.com/eastress/robustness-pipeline/internal/simulator"
)

// runRunOptimization drives the genetic optimization pass and stores the
// full parsed result set as a side-car: a real EA can produce thousands
// of rows, far too many to keep in the state document itself (spec §5,
// grounded on engine/runner.py:_step_run_optimization).
func runRunOptimization(env *Env, state *domain.WorkflowState, reportName string, input interface{}) domain.StageResult {
	started := time.Now()
	compileData := prevData(state, Compile)
	eaName := strVal(compileData, "eaName")
	if eaName == "" {
		return fail(started, "7_run_optimization: no compiled EA from 2_compile")
	}

	params, err := loadParams(env, state.WorkflowID)
	if err != nil {
		return fail(started, err.Error())
	}
	ranges, err := loadRanges(env, state.WorkflowID)
	if err != nil {
		return fail(started, err.Error())
	}

	req := simulator.Request{
		Terminal: env.Terminal,
		EAName:   eaName,
		INI: simulator.INIConfig{
			EAName:                eaName,
			Symbol:                state.Symbol,
			Timeframe:             state.Timeframe,
			FromDate:              env.FromDate,
			ToDate:                env.ToDate,
			Deposit:               env.Deposit,
			Currency:              env.Currency,
			Leverage:              env.Leverage,
			OptimizationMode:      simulator.OptimizationFastGenetic,
			OptimizationCriterion: env.OptimizationCriterion,
			ReportName:            reportName,
			Parameters:            params,
			Ranges:                ranges,
		},
		ReportName: reportName,
	}

	res, err := env.Sim.Optimize(bgCtx(), req)
	if err != nil {
		return fail(started, err.Error())
	}
	if !res.Success {
		return fail(started, res.Errors...)
	}

	f, err := os.Open(res.XMLPath)
	if err != nil {
		return fail(started, err.Error())
	}
	defer f.Close()

	optReport, err := report.ParseOptimizationXML(f)
	if err != nil {
		return fail(started, err.Error())
	}

	if res.ForwardXMLPath != "" {
		if ff, ferr := os.Open(res.ForwardXMLPath); ferr == nil {
			defer ff.Close()
			if fwd, ferr := report.ParseOptimizationXML(ff); ferr == nil {
				optReport.Passes = report.MergeForwardBack(optReport.Passes, fwd.Passes)
			}
		}
	}

	if _, err := env.Store.SaveResults(state.WorkflowID, "optimization", optReport.Passes); err != nil {
		return fail(started, err.Error())
	}

	g := gate.CheckOptimizationPasses(len(optReport.Passes), env.Thresholds)
	return ok(started, map[string]interface{}{
		"totalPasses": len(optReport.Passes),
		"xmlPath":     res.XMLPath,
	}, &g)
}

func loadOptimizationPasses(env *Env, workflowID string) ([]report.PassRecord, error) {
	var passes []report.PassRecord
	if err := env.Store.LoadResults(workflowID, "optimization", &passes); err != nil {
		return nil, err
	}
	return passes, nil
}

// runParseResults is a pure structural check: it only confirms enough
// passes met the minimum-trades bar to be worth ranking. The actual
// ranking and top-N selection is an external step (8b_select_passes),
// mirroring the original's "Claude picks the top 20" split.
func runParseResults(env *Env, state *domain.WorkflowState, reportName string, input interface{}) domain.StageResult {
	started := time.Now()
	passes, err := loadOptimizationPasses(env, state.WorkflowID)
	if err != nil {
		return fail(started, err.Error())
	}

	valid := 0
	for _, p := range passes {
		if p.Trades >= env.Thresholds.MinTrades {
			valid++
		}
	}
	g := gate.CheckValidPasses(valid)
	return domain.StageResult{
		Success:     g.Passed,
		Data:        map[string]interface{}{"totalPasses": len(passes), "validPasses": valid},
		Gate:        &g,
		StartedAt:   started,
		CompletedAt: time.Now(),
	}
}

// runSelectPasses records the externally-chosen subset of passes
// (selected by pass number) to backtest robustly in step 9.
func runSelectPasses(env *Env, state *domain.WorkflowState, reportName string, input interface{}) domain.StageResult {
	started := time.Now()
	passNums, okInput := input.([]int)
	if !okInput {
		return fail(started, "8b_select_passes: expected []int pass-number payload")
	}
	all, err := loadOptimizationPasses(env, state.WorkflowID)
	if err != nil {
		return fail(started, err.Error())
	}
	byPass := make(map[int]report.PassRecord, len(all))
	for _, p := range all {
		byPass[p.Pass] = p
	}

	var selected []report.PassRecord
	for _, n := range passNums {
		p, found := byPass[n]
		if !found {
			return fail(started, "8b_select_passes: pass "+strconv.Itoa(n)+" not present in optimization results")
		}
		selected = append(selected, p)
	}
	if len(selected) == 0 {
		return fail(started, "8b_select_passes: no passes selected")
	}

	if _, err := env.Store.SaveResults(state.WorkflowID, "selected_passes", selected); err != nil {
		return fail(started, err.Error())
	}
	return ok(started, map[string]interface{}{"selectedCount": len(selected)}, nil)
}
