package stage

import (
	"os"
	"path/filepath"
	"testing"
)

const tinyEASource = `//+------------------------------------------------------------------+
input int FastMA = 10;
input double StopLossPips = 25.0;
void OnTick() {}
`

func writeEAFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "TestEA.mq5")
	if err := os.WriteFile(path, []byte(tinyEASource), 0o644); err != nil {
		t.Fatalf("write EA fixture: %v", err)
	}
	return path
}

func TestRunLoadEAMissingFileFailsGate(t *testing.T) {
	env, state := testEnv(t, &fakeRunner{compileOK: true})
	state.EAPath = filepath.Join(env.WorkDir, "does_not_exist.mq5")

	res := runLoadEA(env, state, "", nil)
	if res.Success {
		t.Fatal("expected failure for a missing EA file")
	}
	if res.Gate == nil || res.Gate.Passed {
		t.Fatal("expected a failing file-exists gate")
	}
}

func TestRunLoadEAExistingFilePasses(t *testing.T) {
	env, state := testEnv(t, &fakeRunner{compileOK: true})
	state.EAPath = writeEAFixture(t)

	res := runLoadEA(env, state, "", nil)
	if !res.Success {
		t.Fatalf("expected success, got errors: %v", res.Errors)
	}
}

func TestRunInjectOnTesterThenSafetyThenCompile(t *testing.T) {
	env, state := testEnv(t, &fakeRunner{compileOK: true})
	state.EAPath = writeEAFixture(t)

	injRes := runInjectOnTester(env, state, "", nil)
	if !injRes.Success {
		t.Fatalf("runInjectOnTester failed: %v", injRes.Errors)
	}
	modifiedPath := strVal(injRes.Data, "modifiedPath")
	if modifiedPath == "" {
		t.Fatal("expected a non-empty modifiedPath")
	}
	state.Steps[string(InjectOnTester)] = recordOf(injRes)

	safetyRes := runInjectSafety(env, state, "", nil)
	if !safetyRes.Success {
		t.Fatalf("runInjectSafety failed: %v", safetyRes.Errors)
	}
	state.Steps[string(InjectSafety)] = recordOf(safetyRes)

	compileRes := runCompile(env, state, "", nil)
	if !compileRes.Success {
		t.Fatalf("runCompile failed: %v", compileRes.Errors)
	}
	exePath := strVal(compileRes.Data, "exePath")
	if filepath.Ext(exePath) != ".ex5" {
		t.Fatalf("exePath = %q, want a .ex5 path derived from the compiled source", exePath)
	}
}

func TestRunCompileFailureCarriesSimulatorErrors(t *testing.T) {
	env, state := testEnv(t, &fakeRunner{compileOK: false})
	state.EAPath = writeEAFixture(t)

	res := runCompile(env, state, "", nil)
	if res.Success {
		t.Fatal("expected compile failure to propagate")
	}
	if res.Gate == nil || res.Gate.Passed {
		t.Fatal("expected a failing compilation gate")
	}
}
