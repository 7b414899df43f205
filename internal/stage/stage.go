// Package stage defines the ordered catalogue of pipeline steps and the
// shared environment every step function runs against (spec §4.6, C7).
// Each stage is a small, pure-ish function: read whatever prior
// StageResults it declares as dependencies off the WorkflowState, do its
// work, return a StageResult. Stages never mutate WorkflowState directly
// and never save the state document themselves; the executor in
// internal/pipeline owns both. Stages do write their large side-car
// results (and the dashboard feed) through Env.Store.
package stage

import (
	"go.uber.org/zap"

	"github.com/eastress/robustness-pipeline/internal/gate"
	"github.com/eastress/robustness-pipeline/internal/montecarlo"
	"github.com/eastress/robustness-pipeline/internal/simulator"
	"github.com/eastress/robustness-pipeline/internal/store"
	"github.com/eastress/robustness-pipeline/internal/stress"
)

// Name identifies one step of the pipeline graph. Values match the
// original numbering so state documents and logs stay legible.
type Name string

const (
	LoadEA          Name = "1_load_ea"
	InjectOnTester  Name = "1b_inject_ontester"
	InjectSafety    Name = "1c_inject_safety"
	Compile         Name = "2_compile"
	ExtractParams   Name = "3_extract_params"
	AnalyzeParams   Name = "4_analyze_params"
	ValidateTrades  Name = "5_validate_trades"
	CreateINI       Name = "6_create_ini"
	RunOptimization Name = "7_run_optimization"
	ParseResults    Name = "8_parse_results"
	SelectPasses    Name = "8b_select_passes"
	BacktestTop     Name = "9_backtest_top"
	MonteCarlo      Name = "10_monte_carlo"
	GenerateReports Name = "11_generate_reports"
	StressScenarios Name = "12_stress_scenarios"
	ForwardWindows  Name = "13_forward_windows"
	MultiPair       Name = "14_multi_pair"
)

// Ordered is the total order the executor walks a workflow through.
var Ordered = []Name{
	LoadEA, InjectOnTester, InjectSafety, Compile, ExtractParams,
	AnalyzeParams, ValidateTrades, CreateINI, RunOptimization,
	ParseResults, SelectPasses, BacktestTop, MonteCarlo, GenerateReports,
	StressScenarios, ForwardWindows, MultiPair,
}

// External marks the two steps that consume an externally-supplied
// payload instead of computing anything themselves: the executor runs up
// to one of these, persists an awaiting_* status, and returns. A second
// entry point resumes the workflow once the payload arrives.
func External(n Name) bool {
	return n == AnalyzeParams || n == SelectPasses
}

// AlwaysRuns reports whether a step must execute even after an earlier
// stop-on-failure, per spec §4.6: report generation is the one step that
// always runs so a failed workflow still gets a diagnosis.
func AlwaysRuns(n Name) bool {
	return n == GenerateReports
}

// Env bundles every dependency a stage function needs. It is built once
// per process and threaded through unchanged; nothing in it is
// per-workflow state (that lives in WorkflowState and the store).
type Env struct {
	Logger *zap.Logger

	Sim      simulator.Runner
	Terminal simulator.TerminalConfig
	Store    *store.Store

	Thresholds gate.Thresholds
	MCConfig   montecarlo.Config

	StressSuite    stress.SuiteConfig
	StressOverlays []stress.OverlayCost

	WorkDir           string // scratch directory for modified EA copies
	InjectorMinTrades int

	Deposit               float64
	Currency              string
	Leverage              int
	OptimizationCriterion int
	RunTimeout            int64 // seconds; not passed to any simulator call, which all use the runner's default timeout

	// FromDate/ToDate bound the backtest/optimization window, MT5
	// YYYY.MM.DD format (spec §6).
	FromDate string
	ToDate   string

	// AdditionalSymbols are the other instruments step 14 proposes
	// follow-up workflows for, beyond the workflow's own Symbol.
	AdditionalSymbols []string
}
