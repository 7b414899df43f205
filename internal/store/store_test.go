package store

import (
	"testing"

	"github.com/eastress/robustness-pipeline/internal/domain"
	"go.uber.org/zap"
)

func TestSaveLoadRoundTrips(t *testing.T) {
	s, err := New(zap.NewNop(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	state := domain.NewWorkflowState("MyEA_20260101_120000", "MyEA", "/path/MyEA.mq5", "IC_Markets", "EURUSD", "H1", 3)
	state.Status = domain.StatusAwaitingParamAnalysis
	state.Metrics["profit_factor"] = 2.1

	if err := s.Save(state); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := s.Load(state.WorkflowID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Status != domain.StatusAwaitingParamAnalysis {
		t.Fatalf("Status = %v, want awaiting_param_analysis", loaded.Status)
	}
	if loaded.Metrics["profit_factor"] != 2.1 {
		t.Fatalf("Metrics[profit_factor] = %v, want 2.1", loaded.Metrics["profit_factor"])
	}
}

func TestLoadUnknownWorkflowErrors(t *testing.T) {
	s, err := New(zap.NewNop(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load("does_not_exist"); err == nil {
		t.Fatal("expected error loading unknown workflow")
	}
}

func TestSaveResultsRoundTrips(t *testing.T) {
	s, err := New(zap.NewNop(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	type payload struct {
		Passes int `json:"passes"`
	}
	if _, err := s.SaveResults("wf1", "optimization", payload{Passes: 42}); err != nil {
		t.Fatalf("SaveResults: %v", err)
	}

	var out payload
	if err := s.LoadResults("wf1", "optimization", &out); err != nil {
		t.Fatalf("LoadResults: %v", err)
	}
	if out.Passes != 42 {
		t.Fatalf("Passes = %d, want 42", out.Passes)
	}
}

func TestListWorkflowsNewestFirst(t *testing.T) {
	s, err := New(zap.NewNop(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	first := domain.NewWorkflowState("A_20260101_000000", "A", "/a.mq5", "term", "EURUSD", "H1", 3)
	second := domain.NewWorkflowState("B_20260102_000000", "B", "/b.mq5", "term", "EURUSD", "H1", 3)
	if err := s.Save(first); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(second); err != nil {
		t.Fatal(err)
	}

	list, err := s.ListWorkflows()
	if err != nil {
		t.Fatalf("ListWorkflows: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len(list) = %d, want 2", len(list))
	}
	if list[0].WorkflowID != "B_20260102_000000" {
		t.Fatalf("list[0].WorkflowID = %q, want newest first", list[0].WorkflowID)
	}
}
