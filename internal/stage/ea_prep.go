package stage

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/eastress/robustness-pipeline/internal/domain"
	"github.com/eastress/robustness-pipeline/internal/gate"
	"github.com/eastress/robustness-pipeline/internal/injector"
)

func runLoadEA(env *Env, state *domain.WorkflowState, reportName string, input interface{}) domain.StageResult {
	started := time.Now()
	_, err := os.Stat(state.EAPath)
	exists := err == nil
	g := gate.CheckFileExists(exists)
	return ok(started, map[string]interface{}{"path": state.EAPath, "exists": exists}, &g)
}

// runInjectOnTester writes a modified copy of the EA with the scoring
// OnTester() appended, leaving the original source untouched (spec §6,
// grounded on modules/injector.py:create_modified_ea).
func runInjectOnTester(env *Env, state *domain.WorkflowState, reportName string, input interface{}) domain.StageResult {
	started := time.Now()
	res := injector.CreateModifiedEA(state.EAPath, env.WorkDir, true, false, injector.DefaultSuffix, env.InjectorMinTrades)
	if !res.Success {
		return fail(started, res.Errors...)
	}
	return ok(started, map[string]interface{}{
		"modifiedPath":     res.ModifiedPath,
		"onTesterInjected": res.OnTesterInjected,
	}, nil)
}

// runInjectSafety inserts the STRESS_TEST_MODE guard and trade-safety
// blocks into the already-modified copy from InjectOnTester, in place
// (spec §6, grounded on modules/injector.py:inject_safety).
func runInjectSafety(env *Env, state *domain.WorkflowState, reportName string, input interface{}) domain.StageResult {
	started := time.Now()
	modifiedPath := strVal(prevData(state, InjectOnTester), "modifiedPath")
	if modifiedPath == "" {
		return fail(started, "1c_inject_safety: no modified EA path from 1b_inject_ontester")
	}
	content, err := os.ReadFile(modifiedPath)
	if err != nil {
		return fail(started, err.Error())
	}
	modified, injected := injector.InjectSafety(string(content))
	if injected {
		if err := os.WriteFile(modifiedPath, []byte(modified), 0o644); err != nil {
			return fail(started, err.Error())
		}
	}
	return ok(started, map[string]interface{}{
		"path":           modifiedPath,
		"safetyInjected": injected,
	}, nil)
}

// runCompile compiles whichever EA source is current (the injected copy
// if steps 1b/1c produced one, else the original) and derives the
// compiled binary's path: MT5 writes the .ex5 alongside the .mq5 source.
func runCompile(env *Env, state *domain.WorkflowState, reportName string, input interface{}) domain.StageResult {
	started := time.Now()
	eaToCompile := strVal(prevData(state, InjectSafety), "path")
	if eaToCompile == "" {
		eaToCompile = strVal(prevData(state, InjectOnTester), "modifiedPath")
	}
	if eaToCompile == "" {
		eaToCompile = state.EAPath
	}

	res, err := env.Sim.Compile(bgCtx(), env.Terminal, eaToCompile)
	if err != nil {
		return fail(started, err.Error())
	}
	g := gate.CheckCompilation(res.Success)
	if !res.Success {
		return domain.StageResult{
			Success:     false,
			Data:        map[string]interface{}{"logPath": res.LogPath},
			Gate:        &g,
			Errors:      res.Errors,
			StartedAt:   started,
			CompletedAt: time.Now(),
		}
	}

	exePath := strings.TrimSuffix(eaToCompile, filepath.Ext(eaToCompile)) + ".ex5"
	return ok(started, map[string]interface{}{
		"exePath": exePath,
		"eaName":  filepath.Base(exePath),
		"logPath": res.LogPath,
	}, &g)
}
