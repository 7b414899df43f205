package stage

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/eastress/robustness-pipeline/internal/domain"
	"github.com/eastress/robustness-pipeline/internal/report"
	"github.com/eastress/robustness-pipeline/internal/stress"
)

// runStressScenarios enumerates the deterministic suite of rolling/
// calendar windows, data-model and latency variants, plus post-hoc cost
// overlays, and drives the base scenarios through the simulator (spec
// §4.4, C6). Results are diagnostic: a scenario failing to produce
// trades does not fail the workflow, it is simply reported as such.
func runStressScenarios(env *Env, state *domain.WorkflowState, reportName string, input interface{}) domain.StageResult {
	started := time.Now()
	compileData := prevData(state, Compile)
	eaName := strVal(compileData, "eaName")
	if eaName == "" {
		return fail(started, "12_stress_scenarios: no compiled EA from 2_compile")
	}

	params, err := loadParams(env, state.WorkflowID)
	if err != nil {
		return fail(started, err.Error())
	}
	ranges, err := loadRanges(env, state.WorkflowID)
	if err != nil {
		ranges = nil
	}

	workflowEnd, _ := report.ParseDatetime(env.ToDate)
	if workflowEnd.IsZero() {
		workflowEnd = time.Now().UTC()
	}
	defs := stress.BuildDynamicScenarios(env.StressSuite, workflowEnd)

	runner := stress.NewRunner(env.Sim, env.Logger)
	results, err := runner.RunSuite(bgCtx(), stress.RunRequest{
		EAName:     eaName,
		EAStem:     strings.TrimSuffix(eaName, filepath.Ext(eaName)),
		Symbol:     state.Symbol,
		Timeframe:  state.Timeframe,
		Terminal:   env.Terminal,
		Parameters: params,
		Ranges:     ranges,
		Defs:       defs,
		Overlays:   env.StressOverlays,
		InitialBalance: env.Deposit,
	})
	if err != nil {
		return fail(started, err.Error())
	}

	if _, err := env.Store.SaveResults(state.WorkflowID, "stress", results); err != nil {
		return fail(started, err.Error())
	}

	passed := 0
	for _, r := range results {
		if r.Success {
			passed++
		}
	}
	return ok(started, map[string]interface{}{
		"scenarioCount": len(results),
		"passedCount":   passed,
	}, nil)
}

// runForwardWindows reconciles the optimization run's in-sample/forward
// split recorded in step 7 into a single merged view, so later review
// doesn't need to re-parse the raw XML pair (spec §4.6).
func runForwardWindows(env *Env, state *domain.WorkflowState, reportName string, input interface{}) domain.StageResult {
	started := time.Now()
	passes, err := loadOptimizationPasses(env, state.WorkflowID)
	if err != nil {
		return fail(started, err.Error())
	}

	withForward := 0
	for _, p := range passes {
		if p.HasForward {
			withForward++
		}
	}
	if _, err := env.Store.SaveResults(state.WorkflowID, "forward", passes); err != nil {
		return fail(started, err.Error())
	}
	return ok(started, map[string]interface{}{
		"totalPasses":      len(passes),
		"withForwardMatch": withForward,
	}, nil)
}

// MultiPairRecord is one proposed follow-up workflow step 14 emits: the
// stage itself never spawns a child workflow, it only describes what the
// executor could start next (spec §4.6's multi-symbol orchestration).
type MultiPairRecord struct {
	Symbol           string                `json:"symbol"`
	ParentWorkflowID string                `json:"parentWorkflowId"`
	Parameters       []domain.Parameter    `json:"parameters"`
}

// runMultiPair emits one MultiPairRecord per configured additional
// symbol other than the workflow's own, carrying the workflow's extracted
// parameter list (declared defaults; the winning pass's values are not
// applied) as that symbol's starting point. It performs no simulator
// work itself.
func runMultiPair(env *Env, state *domain.WorkflowState, reportName string, input interface{}) domain.StageResult {
	started := time.Now()
	if len(env.AdditionalSymbols) == 0 {
		return ok(started, map[string]interface{}{"childCount": 0}, nil)
	}

	params, err := loadParams(env, state.WorkflowID)
	if err != nil {
		return fail(started, err.Error())
	}

	records := make([]MultiPairRecord, 0, len(env.AdditionalSymbols))
	for _, sym := range env.AdditionalSymbols {
		if sym == state.Symbol {
			continue
		}
		records = append(records, MultiPairRecord{
			Symbol:           sym,
			ParentWorkflowID: state.WorkflowID,
			Parameters:       params,
		})
	}

	if _, err := env.Store.SaveResults(state.WorkflowID, "multipair", records); err != nil {
		return fail(started, err.Error())
	}

	symbols := make([]string, len(records))
	for i, r := range records {
		symbols[i] = r.Symbol
	}
	return ok(started, map[string]interface{}{
		"childCount": len(records),
		"symbols":    symbols,
	}, nil)
}
