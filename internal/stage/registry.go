package stage

import "github.com/eastress/robustness-pipeline/internal/domain"

// Func is the signature every stage implements. reportName is the
// deterministic, pre-computed simulator report name for this call (empty
// for stages that never invoke the simulator). input carries the
// external payload for External steps and is nil for every other step.
type Func func(env *Env, state *domain.WorkflowState, reportName string, input interface{}) domain.StageResult

// Registry maps a step Name to its implementation.
type Registry struct {
	fns map[Name]Func
}

// NewRegistry builds the registry with every stage wired, in the order
// declared by Ordered (spec §4.6, C7). External steps (AnalyzeParams,
// SelectPasses) still get an entry: their Func validates and records the
// externally-supplied payload, and is only ever invoked by the
// executor's resume entry points, never by the main run loop.
func NewRegistry() *Registry {
	r := &Registry{fns: map[Name]Func{
		LoadEA:          runLoadEA,
		InjectOnTester:  runInjectOnTester,
		InjectSafety:    runInjectSafety,
		Compile:         runCompile,
		ExtractParams:   runExtractParams,
		AnalyzeParams:   runAnalyzeParams,
		ValidateTrades:  runValidateTrades,
		CreateINI:       runCreateINI,
		RunOptimization: runRunOptimization,
		ParseResults:    runParseResults,
		SelectPasses:    runSelectPasses,
		BacktestTop:     runBacktestTop,
		MonteCarlo:      runMonteCarlo,
		GenerateReports: runGenerateReports,
		StressScenarios: runStressScenarios,
		ForwardWindows:  runForwardWindows,
		MultiPair:       runMultiPair,
	}}
	return r
}

// Get returns the stage function for name, or ok=false if unregistered.
func (r *Registry) Get(name Name) (Func, bool) {
	fn, ok := r.fns[name]
	return fn, ok
}

// Register overrides or adds a stage implementation, mainly for tests
// that want to substitute a stub for one step without standing up the
// whole environment.
func (r *Registry) Register(name Name, fn Func) {
	r.fns[name] = fn
}
