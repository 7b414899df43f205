package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/eastress/robustness-pipeline/internal/domain"
	"github.com/eastress/robustness-pipeline/internal/gate"
	"github.com/eastress/robustness-pipeline/internal/pipeline"
	"github.com/eastress/robustness-pipeline/internal/stage"
	"github.com/eastress/robustness-pipeline/internal/store"
)

// stubRegistry mirrors internal/pipeline's test helper: every step passes
// trivially so the API tests exercise routing and status codes, not stage
// logic.
func stubRegistry() *stage.Registry {
	r := stage.NewRegistry()
	for _, name := range stage.Ordered {
		r.Register(name, func(env *stage.Env, state *domain.WorkflowState, reportName string, input interface{}) domain.StageResult {
			return domain.StageResult{Success: true, Data: map[string]interface{}{}}
		})
	}
	return r
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st, err := store.New(zap.NewNop(), t.TempDir())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	ex := pipeline.New(zap.NewNop(), stubRegistry(), &stage.Env{}, st)
	return NewServer(zap.NewNop(), ServerConfig{WebSocketPath: "/ws"}, ex, st, gate.DefaultThresholds())
}

func doRequest(t *testing.T, s *Server, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpointReportsHealthy(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, "GET", "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestStartWorkflowPausesAtAnalyzeParamsAndIsRetrievable(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, "POST", "/api/v1/workflows", `{"eaName":"EA1","eaPath":"/fake/EA1.mq5","terminalId":"term1","symbol":"EURUSD","timeframe":"H1"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body=%s", rec.Code, rec.Body.String())
	}

	var state domain.WorkflowState
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if state.Status != domain.StatusAwaitingParamAnalysis {
		t.Fatalf("Status = %v, want awaiting_param_analysis", state.Status)
	}

	rec2 := doRequest(t, s, "GET", "/api/v1/workflows/"+state.WorkflowID, "")
	if rec2.Code != http.StatusOK {
		t.Fatalf("GET status = %d, want 200", rec2.Code)
	}
}

func TestGetWorkflowReturnsNotFoundForUnknownID(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, "GET", "/api/v1/workflows/does-not-exist", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestResumeWithParamsAdvancesToValidateTrades(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, "POST", "/api/v1/workflows", `{"eaName":"EA1","eaPath":"/fake/EA1.mq5","terminalId":"term1","symbol":"EURUSD","timeframe":"H1"}`)
	var state domain.WorkflowState
	_ = json.Unmarshal(rec.Body.Bytes(), &state)

	rec2 := doRequest(t, s, "POST", "/api/v1/workflows/"+state.WorkflowID+"/resume/params", `[]`)
	if rec2.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec2.Code, rec2.Body.String())
	}

	var resumed domain.WorkflowState
	if err := json.Unmarshal(rec2.Body.Bytes(), &resumed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resumed.IsStepPassed(string(stage.ValidateTrades)) {
		t.Fatalf("expected ValidateTrades to have run, steps=%+v", resumed.Steps)
	}
}

func TestGetSummaryReturnsAStepCount(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, "POST", "/api/v1/workflows", `{"eaName":"EA1","eaPath":"/fake/EA1.mq5","terminalId":"term1","symbol":"EURUSD","timeframe":"H1"}`)
	var state domain.WorkflowState
	_ = json.Unmarshal(rec.Body.Bytes(), &state)

	rec2 := doRequest(t, s, "GET", "/api/v1/workflows/"+state.WorkflowID+"/summary", "")
	if rec2.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec2.Code)
	}
	var summary domain.Summary
	if err := json.Unmarshal(rec2.Body.Bytes(), &summary); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if summary.TotalSteps != len(stage.Ordered) {
		t.Fatalf("TotalSteps = %d, want %d", summary.TotalSteps, len(stage.Ordered))
	}
}

func TestGetLeaderboardAndBoardsReturnEmptyForAFreshStore(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, "GET", "/api/v1/leaderboard", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("leaderboard status = %d, want 200", rec.Code)
	}

	rec2 := doRequest(t, s, "GET", "/api/v1/boards", "")
	if rec2.Code != http.StatusOK {
		t.Fatalf("boards status = %d, want 200", rec2.Code)
	}
}

func TestGetDashboardReturnsNotFoundBeforeReportsRun(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, "GET", "/api/v1/workflows/no-such-id/dashboard", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
