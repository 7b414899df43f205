package stage

import (
	"testing"

	"github.com/eastress/robustness-pipeline/internal/domain"
)

func TestRunForwardWindowsCountsPassesWithAForwardMatch(t *testing.T) {
	env, state := testEnv(t, &fakeRunner{compileOK: true})
	if _, err := env.Store.SaveResults(state.WorkflowID, "optimization", mustParsePasses(t, optimizationXMLFixture)); err != nil {
		t.Fatalf("SaveResults: %v", err)
	}

	res := runForwardWindows(env, state, "", nil)
	if !res.Success {
		t.Fatalf("runForwardWindows failed: %v", res.Errors)
	}
	if intVal(res.Data, "totalPasses") != 2 {
		t.Fatalf("totalPasses = %d, want 2", intVal(res.Data, "totalPasses"))
	}
}

func TestRunMultiPairSkipsTheWorkflowsOwnSymbol(t *testing.T) {
	env, state := testEnv(t, &fakeRunner{compileOK: true})
	env.AdditionalSymbols = []string{"EURUSD", "GBPUSD", "USDJPY"}
	if _, err := env.Store.SaveResults(state.WorkflowID, "params", []domain.Parameter{
		{Name: "FastMA", Optimizable: true},
	}); err != nil {
		t.Fatalf("SaveResults: %v", err)
	}

	res := runMultiPair(env, state, "", nil)
	if !res.Success {
		t.Fatalf("runMultiPair failed: %v", res.Errors)
	}
	if intVal(res.Data, "childCount") != 2 {
		t.Fatalf("childCount = %d, want 2 (EURUSD excluded as the workflow's own symbol)", intVal(res.Data, "childCount"))
	}

	var records []MultiPairRecord
	if err := env.Store.LoadResults(state.WorkflowID, "multipair", &records); err != nil {
		t.Fatalf("LoadResults multipair: %v", err)
	}
	for _, r := range records {
		if r.Symbol == state.Symbol {
			t.Fatalf("unexpected record for the workflow's own symbol: %+v", r)
		}
		if r.ParentWorkflowID != state.WorkflowID {
			t.Fatalf("ParentWorkflowID = %q, want %q", r.ParentWorkflowID, state.WorkflowID)
		}
	}
}

func TestRunMultiPairIsANoOpWithoutAdditionalSymbols(t *testing.T) {
	env, state := testEnv(t, &fakeRunner{compileOK: true})

	res := runMultiPair(env, state, "", nil)
	if !res.Success {
		t.Fatalf("runMultiPair failed: %v", res.Errors)
	}
	if intVal(res.Data, "childCount") != 0 {
		t.Fatalf("childCount = %d, want 0", intVal(res.Data, "childCount"))
	}
}
