package stage

import (
	"testing"

	"github.com/eastress/robustness-pipeline/internal/domain"
)

func TestRunExtractParamsFindsOptimizableInputs(t *testing.T) {
	env, state := testEnv(t, &fakeRunner{compileOK: true})
	state.EAPath = writeEAFixture(t)

	res := runExtractParams(env, state, "", nil)
	if !res.Success {
		t.Fatalf("runExtractParams failed: %v", res.Errors)
	}
	if intVal(res.Data, "paramCount") != 2 {
		t.Fatalf("paramCount = %d, want 2", intVal(res.Data, "paramCount"))
	}
	if intVal(res.Data, "optimizableCount") != 2 {
		t.Fatalf("optimizableCount = %d, want 2", intVal(res.Data, "optimizableCount"))
	}

	params, err := loadParams(env, state.WorkflowID)
	if err != nil {
		t.Fatalf("loadParams: %v", err)
	}
	if len(params) != 2 {
		t.Fatalf("side-car params = %d, want 2", len(params))
	}
}

func TestRunAnalyzeParamsRejectsInvalidRange(t *testing.T) {
	env, state := testEnv(t, &fakeRunner{compileOK: true})

	bad := []domain.OptimizationRange{{Name: "FastMA", Start: 20, Stop: 10, Step: 1, Optimize: true}}
	res := runAnalyzeParams(env, state, "", bad)
	if res.Success {
		t.Fatal("expected failure for a start > stop range")
	}
}

func TestRunAnalyzeParamsStoresValidRanges(t *testing.T) {
	env, state := testEnv(t, &fakeRunner{compileOK: true})

	good := []domain.OptimizationRange{
		{Name: "FastMA", Start: 5, Stop: 20, Step: 1, Optimize: true},
		{Name: "StopLossPips", Start: 10, Stop: 40, Step: 5, Optimize: true},
	}
	res := runAnalyzeParams(env, state, "", good)
	if !res.Success {
		t.Fatalf("runAnalyzeParams failed: %v", res.Errors)
	}

	ranges, err := loadRanges(env, state.WorkflowID)
	if err != nil {
		t.Fatalf("loadRanges: %v", err)
	}
	if len(ranges) != 2 {
		t.Fatalf("side-car ranges = %d, want 2", len(ranges))
	}
}

func TestRunAnalyzeParamsRejectsWrongPayloadType(t *testing.T) {
	env, state := testEnv(t, &fakeRunner{compileOK: true})
	res := runAnalyzeParams(env, state, "", "not a range slice")
	if res.Success {
		t.Fatal("expected failure for a mistyped payload")
	}
}

func TestRunValidateTradesUsesCompileStepEAName(t *testing.T) {
	env, state := testEnv(t, &fakeRunner{
		compileOK:        true,
		htmlByReportName: map[string]string{"": singleRunHTMLFixture},
	})
	state.EAPath = writeEAFixture(t)

	extractRes := runExtractParams(env, state, "", nil)
	state.Steps[string(ExtractParams)] = recordOf(extractRes)

	compileRes := runCompile(env, state, "", nil)
	state.Steps[string(Compile)] = recordOf(compileRes)

	res := runValidateTrades(env, state, "rn_validate", nil)
	if !res.Success {
		t.Fatalf("runValidateTrades failed: %v", res.Errors)
	}
	if intVal(res.Data, "totalTrades") != 60 {
		t.Fatalf("totalTrades = %d, want 60", intVal(res.Data, "totalTrades"))
	}
}

func TestRunValidateTradesFailsWithoutCompiledEA(t *testing.T) {
	env, state := testEnv(t, &fakeRunner{compileOK: true})
	res := runValidateTrades(env, state, "rn_validate", nil)
	if res.Success {
		t.Fatal("expected failure when 2_compile never ran")
	}
}

func TestRunCreateINIAcceptsOptimizableParamWithNoDeclaredRange(t *testing.T) {
	env, state := testEnv(t, &fakeRunner{compileOK: true})
	state.EAPath = writeEAFixture(t)

	extractRes := runExtractParams(env, state, "", nil)
	if !extractRes.Success {
		t.Fatalf("runExtractParams failed: %v", extractRes.Errors)
	}

	res := runCreateINI(env, state, "", nil)
	if !res.Success {
		t.Fatalf("runCreateINI should accept an unswept-but-optimizable param, got: %v", res.Errors)
	}
}

func TestRunCreateINIRejectsInvalidDeclaredRange(t *testing.T) {
	env, state := testEnv(t, &fakeRunner{compileOK: true})
	state.EAPath = writeEAFixture(t)
	runExtractParams(env, state, "", nil)

	bad := []domain.OptimizationRange{{Name: "FastMA", Start: 20, Stop: 10, Step: 1, Optimize: true}}
	if _, err := env.Store.SaveResults(state.WorkflowID, "ranges", bad); err != nil {
		t.Fatalf("SaveResults: %v", err)
	}

	res := runCreateINI(env, state, "", nil)
	if res.Success {
		t.Fatal("expected failure for an invalid declared range")
	}
}
