package stage

import (
	"context"
	"time"

	"github.com/eastress/robustness-pipeline/internal/domain"
)

// bgCtx is the base context every stage's simulator call derives its
// timeout from. The executor runs one stage at a time to completion
// (spec §5), so there is no outer request context to thread through.
func bgCtx() context.Context {
	return context.Background()
}

func ok(started time.Time, data map[string]interface{}, g *domain.GateResult) domain.StageResult {
	return domain.StageResult{
		Success:     g == nil || g.Passed,
		Data:        data,
		Gate:        g,
		StartedAt:   started,
		CompletedAt: time.Now(),
	}
}

func fail(started time.Time, errs ...string) domain.StageResult {
	return domain.StageResult{
		Success:     false,
		Errors:      errs,
		StartedAt:   started,
		CompletedAt: time.Now(),
	}
}

// prevData returns the Data map of a previously-recorded step, or nil if
// the step never ran. Stages use this to read what an upstream step
// declared as its dependency output (spec §4.6's execution contract).
func prevData(state *domain.WorkflowState, name Name) map[string]interface{} {
	res, ok := state.StepResult(string(name))
	if !ok {
		return nil
	}
	return res.Data
}

func strVal(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func intVal(m map[string]interface{}, key string) int {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func boolVal(m map[string]interface{}, key string) bool {
	if m == nil {
		return false
	}
	b, _ := m[key].(bool)
	return b
}
