// Package pipeline drives a workflow through the ordered stage graph
// defined in internal/stage, persisting its state after every step,
// pausing at external-input steps, and running the bounded EA-fix
// repair loop (spec §4.6, C8).
package pipeline

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eastress/robustness-pipeline/internal/domain"
	"github.com/eastress/robustness-pipeline/internal/metrics"
	"github.com/eastress/robustness-pipeline/internal/stage"
	"github.com/eastress/robustness-pipeline/internal/store"
)

// Executor owns no per-workflow state: everything it needs to resume a
// workflow after a process restart comes from the store.
type Executor struct {
	logger  *zap.Logger
	reg     *stage.Registry
	env     *stage.Env
	store   *store.Store
	metrics *metrics.Metrics
}

// New builds an Executor. env is shared across every workflow the
// process runs; reg supplies the stage implementations.
func New(logger *zap.Logger, reg *stage.Registry, env *stage.Env, st *store.Store) *Executor {
	return &Executor{logger: logger.Named("pipeline"), reg: reg, env: env, store: st}
}

// SetMetrics attaches a metrics sink. Optional: an Executor with none
// simply skips recording.
func (e *Executor) SetMetrics(m *metrics.Metrics) {
	e.metrics = m
}

// StartWorkflow creates a new workflow document and runs it to
// completion, a pause point, or a terminal failure.
func (e *Executor) StartWorkflow(workflowID, eaName, eaPath, terminalID, symbol, timeframe string, maxFixAttempts int) (*domain.WorkflowState, error) {
	state := domain.NewWorkflowState(workflowID, eaName, eaPath, terminalID, symbol, timeframe, maxFixAttempts)
	if err := e.store.Save(state); err != nil {
		return nil, fmt.Errorf("pipeline: save new workflow: %w", err)
	}
	if e.metrics != nil {
		e.metrics.WorkflowsStarted.Inc()
	}
	if err := e.runFrom(state, 0); err != nil {
		return state, err
	}
	return state, nil
}

func indexOf(name stage.Name) int {
	for i, n := range stage.Ordered {
		if n == name {
			return i
		}
	}
	return -1
}

func pauseStatusFor(name stage.Name) domain.WorkflowStatus {
	switch name {
	case stage.AnalyzeParams:
		return domain.StatusAwaitingParamAnalysis
	case stage.SelectPasses:
		return domain.StatusAwaitingStatsAnalysis
	default:
		return domain.StatusInProgress
	}
}

// runFrom walks stage.Ordered starting at startIdx. Once a non-repair
// failure occurs it stops executing ordinary steps but keeps iterating
// so that any step marked AlwaysRuns (report generation) still runs
// before the workflow is marked failed (spec §4.6).
func (e *Executor) runFrom(state *domain.WorkflowState, startIdx int) error {
	state.Status = domain.StatusInProgress

	failed := false
	for i := startIdx; i < len(stage.Ordered); i++ {
		name := stage.Ordered[i]
		state.CurrentStep = i

		if failed && !stage.AlwaysRuns(name) {
			continue
		}

		if !failed && stage.External(name) {
			state.Status = pauseStatusFor(name)
			return e.store.Save(state)
		}

		result := e.runSingle(state, name, nil)
		e.record(state, name, result)

		if err := e.store.Save(state); err != nil {
			return fmt.Errorf("pipeline: persist after %s: %w", name, err)
		}

		if !result.Success && !failed {
			if name == stage.ValidateTrades {
				return e.enterEAFix(state)
			}
			failed = true
		}
	}

	if failed {
		state.Status = domain.StatusFailed
		if e.metrics != nil {
			e.metrics.WorkflowsFailed.Inc()
		}
	} else {
		state.Status = domain.StatusCompleted
		if e.metrics != nil {
			e.metrics.WorkflowsCompleted.Inc()
		}
	}
	return e.store.Save(state)
}

func (e *Executor) runSingle(state *domain.WorkflowState, name stage.Name, input interface{}) domain.StageResult {
	fn, okReg := e.reg.Get(name)
	if !okReg {
		return domain.StageResult{
			Success:     false,
			Errors:      []string{fmt.Sprintf("no stage registered for %s", name)},
			StartedAt:   time.Now(),
			CompletedAt: time.Now(),
		}
	}
	rn := reportName(state.WorkflowID, name, state.Symbol, state.Timeframe)

	startedAt := time.Now()
	result := fn(e.env, state, rn, input)
	if e.metrics != nil {
		e.metrics.RecordStage(string(name), result.Success, time.Since(startedAt).Seconds())
	}
	return result
}

// record writes a stage's result into WorkflowState: the step record
// itself, any metrics it declared, the gate it checked (if any), and an
// entry in the workflow-level error log on failure (spec §3, §7).
func (e *Executor) record(state *domain.WorkflowState, name stage.Name, result domain.StageResult) {
	status := "passed"
	if !result.Success {
		status = "failed"
	}
	errMsg := ""
	if len(result.Errors) > 0 {
		errMsg = result.Errors[0]
	}
	state.Steps[string(name)] = domain.StageRecord{Status: status, Result: result, Error: errMsg}
	state.UpdatedAt = time.Now()

	if result.Gate != nil {
		state.Gates[result.Gate.Name] = *result.Gate
	}
	if gs, has := result.Data["gates"]; has {
		if list, okList := gs.([]domain.GateResult); okList {
			for _, g := range list {
				state.Gates[g.Name] = g
			}
		}
	}
	if m, has := result.Data["metrics"]; has {
		if flat, okMap := m.(map[string]float64); okMap {
			for k, v := range flat {
				state.Metrics[k] = v
			}
		}
	}
	if !result.Success {
		for _, errText := range result.Errors {
			state.Errors = append(state.Errors, domain.WorkflowError{Step: string(name), Error: errText, Timestamp: time.Now()})
		}
		if len(result.Errors) == 0 {
			state.Errors = append(state.Errors, domain.WorkflowError{Step: string(name), Error: "stage failed its gate", Timestamp: time.Now()})
		}
	}
}

// enterEAFix pauses the workflow for an external EA fix, bounded by
// MaxFixAttempts, mirroring the original's fix_attempts counter (spec
// §4.6's repair loop).
func (e *Executor) enterEAFix(state *domain.WorkflowState) error {
	if state.FixAttempts >= state.MaxFixAttempts {
		state.Status = domain.StatusFailed
		return e.store.Save(state)
	}
	state.FixAttempts++
	state.Status = domain.StatusAwaitingEAFix
	return e.store.Save(state)
}
