package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRecordStageIncrementsCountersAndIsScrapable(t *testing.T) {
	m := New("test")
	m.RecordStage("2_compile", true, 1.5)
	m.RecordStage("2_compile", false, 0.5)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "test_pipeline_stage_runs_total") {
		t.Fatalf("expected stage_runs_total series in scrape output, got:\n%s", body)
	}
	if !strings.Contains(body, `stage="2_compile"`) {
		t.Fatalf("expected stage label in scrape output, got:\n%s", body)
	}
}

func TestRecordSimulatorCallTracksOperationAndStatus(t *testing.T) {
	m := New("test")
	m.RecordSimulatorCall("backtest", true, 42.0)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()
	if !strings.Contains(body, `operation="backtest"`) {
		t.Fatalf("expected operation label in scrape output, got:\n%s", body)
	}
	if !strings.Contains(body, `status="ok"`) {
		t.Fatalf("expected status label in scrape output, got:\n%s", body)
	}
}

func TestTwoInstancesDoNotCollideOnRegistration(t *testing.T) {
	a := New("a")
	b := New("b")
	a.RecordStage("x", true, 1)
	b.RecordStage("x", true, 1)
}
