package domain

import "time"

// WorkflowStatus is the executor-owned lifecycle state of a workflow.
// The awaiting_* members are the only suspension points the executor
// recognizes (spec §4.6, §5): a stage pauses only by returning one of
// these, never by blocking in-process.
type WorkflowStatus string

const (
	StatusPending               WorkflowStatus = "pending"
	StatusInProgress             WorkflowStatus = "in_progress"
	StatusAwaitingParamAnalysis  WorkflowStatus = "awaiting_param_analysis"
	StatusAwaitingStatsAnalysis  WorkflowStatus = "awaiting_stats_analysis"
	StatusAwaitingEAFix          WorkflowStatus = "awaiting_ea_fix"
	StatusCompleted              WorkflowStatus = "completed"
	StatusFailed                 WorkflowStatus = "failed"
)

// IsAwaiting reports whether a status is one of the pause states.
func (s WorkflowStatus) IsAwaiting() bool {
	switch s {
	case StatusAwaitingParamAnalysis, StatusAwaitingStatsAnalysis, StatusAwaitingEAFix:
		return true
	default:
		return false
	}
}

// StageResult is the immutable output of a single stage execution.
// Once written to WorkflowState.Steps it is never mutated again; resume
// reads it back verbatim (spec §3 invariant).
type StageResult struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Gate    *GateResult            `json:"gate,omitempty"`
	Errors  []string               `json:"errors,omitempty"`

	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt"`
}

// StageRecord wraps a StageResult with the step's own status bookkeeping,
// matching the original `{"status": ..., "result": ...}` shape so the
// state document stays legible across an equivalent port.
type StageRecord struct {
	Status string      `json:"status"` // in_progress, passed, failed
	Result StageResult `json:"result"`
	Error  string      `json:"error,omitempty"`
}

// WorkflowState is the full state of a single robustness study.
// The executor exclusively owns the in-memory value; the state store
// exclusively owns its on-disk form (§3 Ownership).
type WorkflowState struct {
	WorkflowID string `json:"workflowId"`
	EAName     string `json:"eaName"`
	EAPath     string `json:"eaPath"`
	Symbol     string `json:"symbol"`
	Timeframe  string `json:"timeframe"`
	TerminalID string `json:"terminalId"`

	Status      WorkflowStatus `json:"status"`
	CurrentStep int            `json:"currentStep"`

	Steps map[string]StageRecord `json:"steps"`

	Metrics map[string]float64    `json:"metrics"`
	Gates   map[string]GateResult `json:"gates"`
	Errors  []WorkflowError       `json:"errors"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	FixAttempts       int    `json:"fixAttempts"`
	MaxFixAttempts    int    `json:"maxFixAttempts"`
	PreviousWorkflowID string `json:"previousWorkflowId,omitempty"`
}

// WorkflowError is one entry of the workflow-level error log, recorded
// whenever a stage completes with an error (spec §3, §7).
type WorkflowError struct {
	Step      string    `json:"step"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// NewWorkflowState initializes a fresh, pending workflow document.
func NewWorkflowState(workflowID, eaName, eaPath, terminalID, symbol, timeframe string, maxFixAttempts int) *WorkflowState {
	now := time.Now()
	return &WorkflowState{
		WorkflowID:     workflowID,
		EAName:         eaName,
		EAPath:         eaPath,
		Symbol:         symbol,
		Timeframe:      timeframe,
		TerminalID:     terminalID,
		Status:         StatusPending,
		CurrentStep:    0,
		Steps:          make(map[string]StageRecord),
		Metrics:        make(map[string]float64),
		Gates:          make(map[string]GateResult),
		Errors:         nil,
		CreatedAt:      now,
		UpdatedAt:      now,
		MaxFixAttempts: maxFixAttempts,
	}
}

// AllGatesPassed reports whether every recorded gate passed.
func (w *WorkflowState) AllGatesPassed() bool {
	for _, g := range w.Gates {
		if !g.Passed {
			return false
		}
	}
	return true
}

// StepResult returns the result of a completed step, if any.
func (w *WorkflowState) StepResult(name string) (StageResult, bool) {
	rec, ok := w.Steps[name]
	if !ok {
		return StageResult{}, false
	}
	return rec.Result, true
}

// IsStepComplete reports whether a step has a terminal (passed/failed)
// record.
func (w *WorkflowState) IsStepComplete(name string) bool {
	rec, ok := w.Steps[name]
	return ok && (rec.Status == "passed" || rec.Status == "failed")
}

// IsStepPassed reports whether a step completed successfully.
func (w *WorkflowState) IsStepPassed(name string) bool {
	rec, ok := w.Steps[name]
	return ok && rec.Status == "passed"
}

// Summary is the compact projection used by the aggregator and workflow
// listings (spec §4.7, grounded on engine/state.py's get_summary).
type Summary struct {
	WorkflowID      string             `json:"workflowId"`
	EAName          string             `json:"eaName"`
	Status          WorkflowStatus     `json:"status"`
	CurrentStep     int                `json:"currentStep"`
	TotalSteps      int                `json:"totalSteps"`
	StepsPassed     int                `json:"stepsPassed"`
	StepsFailed     int                `json:"stepsFailed"`
	AllGatesPassed  bool               `json:"allGatesPassed"`
	Metrics         map[string]float64 `json:"metrics"`
	Errors          []WorkflowError    `json:"errors"`
}

// Summarize builds a Summary from the current state, given the declared
// ordered step list (so TotalSteps reflects the pipeline definition, not
// just what has executed so far).
func (w *WorkflowState) Summarize(declaredSteps []string) Summary {
	passed, failed := 0, 0
	for _, rec := range w.Steps {
		switch rec.Status {
		case "passed":
			passed++
		case "failed":
			failed++
		}
	}
	return Summary{
		WorkflowID:     w.WorkflowID,
		EAName:         w.EAName,
		Status:         w.Status,
		CurrentStep:    w.CurrentStep,
		TotalSteps:     len(declaredSteps),
		StepsPassed:    passed,
		StepsFailed:    failed,
		AllGatesPassed: w.AllGatesPassed(),
		Metrics:        w.Metrics,
		Errors:         w.Errors,
	}
}
