package pipeline

import (
	"fmt"

	"github.com/eastress/robustness-pipeline/internal/domain"
	"github.com/eastress/robustness-pipeline/internal/stage"
)

// ResumeWithParams supplies the externally-chosen optimization ranges
// for a workflow paused at 4_analyze_params. Calling it again with the
// workflow already past that pause is a no-op: the step record is never
// re-written and no further stage re-executes (spec §8's resume
// idempotence property).
func (e *Executor) ResumeWithParams(workflowID string, ranges []domain.OptimizationRange) (*domain.WorkflowState, error) {
	state, err := e.store.Load(workflowID)
	if err != nil {
		return nil, fmt.Errorf("pipeline: load workflow: %w", err)
	}
	if state.Status != domain.StatusAwaitingParamAnalysis {
		return state, nil
	}

	result := e.runSingle(state, stage.AnalyzeParams, ranges)
	e.record(state, stage.AnalyzeParams, result)
	if !result.Success {
		state.Status = domain.StatusFailed
		return state, e.store.Save(state)
	}
	state.Status = domain.StatusInProgress
	if err := e.store.Save(state); err != nil {
		return state, err
	}
	return state, e.runFrom(state, indexOf(stage.AnalyzeParams)+1)
}

// ResumeWithSelectedPasses supplies the externally-chosen pass numbers
// for a workflow paused at 8b_select_passes.
func (e *Executor) ResumeWithSelectedPasses(workflowID string, passNumbers []int) (*domain.WorkflowState, error) {
	state, err := e.store.Load(workflowID)
	if err != nil {
		return nil, fmt.Errorf("pipeline: load workflow: %w", err)
	}
	if state.Status != domain.StatusAwaitingStatsAnalysis {
		return state, nil
	}

	result := e.runSingle(state, stage.SelectPasses, passNumbers)
	e.record(state, stage.SelectPasses, result)
	if !result.Success {
		state.Status = domain.StatusFailed
		return state, e.store.Save(state)
	}
	state.Status = domain.StatusInProgress
	if err := e.store.Save(state); err != nil {
		return state, err
	}
	return state, e.runFrom(state, indexOf(stage.SelectPasses)+1)
}

// ResumeAfterEAFix continues a workflow paused at awaiting_ea_fix.
// restart forces a full restart from 1_load_ea, discarding every step
// record from 1b_inject_ontester onward: a fixed EA can change its
// parameter surface, compiled binary, and everything derived from them,
// so nothing downstream of the fix point can be trusted as-is (spec
// §4.6's repair loop, deliberately not a partial resume).
func (e *Executor) ResumeAfterEAFix(workflowID string, restart bool) (*domain.WorkflowState, error) {
	state, err := e.store.Load(workflowID)
	if err != nil {
		return nil, fmt.Errorf("pipeline: load workflow: %w", err)
	}
	if state.Status != domain.StatusAwaitingEAFix {
		return state, nil
	}
	if !restart {
		return state, nil
	}

	discardFrom := indexOf(stage.InjectOnTester)
	for i := discardFrom; i < len(stage.Ordered); i++ {
		delete(state.Steps, string(stage.Ordered[i]))
	}
	state.Metrics = make(map[string]float64)
	state.Gates = make(map[string]domain.GateResult)
	state.Status = domain.StatusInProgress

	if err := e.store.Save(state); err != nil {
		return state, err
	}
	return state, e.runFrom(state, 0)
}
