package aggregator

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/eastress/robustness-pipeline/internal/domain"
	"github.com/eastress/robustness-pipeline/internal/gate"
	"github.com/eastress/robustness-pipeline/internal/report"
	"github.com/eastress/robustness-pipeline/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(zap.NewNop(), t.TempDir())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	return st
}

func saveWorkflow(t *testing.T, st *store.Store, id string, status domain.WorkflowStatus, updatedAt time.Time) *domain.WorkflowState {
	t.Helper()
	state := domain.NewWorkflowState(id, "EA_"+id, "/fake/"+id+".mq5", "term1", "EURUSD", "H1", 3)
	state.Status = status
	state.UpdatedAt = updatedAt
	state.Metrics["profit"] = 1000
	state.Metrics["profit_factor"] = 1.8
	state.Metrics["max_drawdown_pct"] = 12
	state.Metrics["total_trades"] = 80
	if err := st.Save(state); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return state
}

func TestBuildLeaderboardExcludesUnfinishedWorkflows(t *testing.T) {
	st := newTestStore(t)
	saveWorkflow(t, st, "wf-failed", domain.StatusFailed, time.Now())
	saveWorkflow(t, st, "wf-pending", domain.StatusPending, time.Now())
	saveWorkflow(t, st, "wf-awaiting", domain.StatusAwaitingParamAnalysis, time.Now())

	board, err := BuildLeaderboard(st, gate.DefaultThresholds(), 0, time.Now())
	if err != nil {
		t.Fatalf("BuildLeaderboard: %v", err)
	}
	if board.WorkflowsProcessed != 0 || len(board.Rows) != 0 {
		t.Fatalf("expected no rows from unfinished workflows, got %+v", board)
	}
}

func TestBuildLeaderboardPrefersBacktestsOverOptimizationFallback(t *testing.T) {
	st := newTestStore(t)
	state := saveWorkflow(t, st, "wf1", domain.StatusCompleted, time.Now())

	sidecar := backtestSideCar{
		All: []passOutcome{
			{Pass: 1, Metrics: domain.TradeMetrics{Profit: 3000, ProfitFactor: 2.2, MaxDrawdownPct: 10, TotalTrades: 100}, HasBack: true, HasFwd: true, Back: 1500, Forward: 500},
			{Pass: 2, Metrics: domain.TradeMetrics{Profit: 500, ProfitFactor: 1.1, MaxDrawdownPct: 20, TotalTrades: 60}},
		},
	}
	if _, err := st.SaveResults(state.WorkflowID, "backtests", sidecar); err != nil {
		t.Fatalf("SaveResults backtests: %v", err)
	}
	if _, err := st.SaveResults(state.WorkflowID, "optimization", []report.PassRecord{
		{Pass: 99, Profit: 9999, ProfitFactor: 9.9, Trades: 999},
	}); err != nil {
		t.Fatalf("SaveResults optimization: %v", err)
	}

	board, err := BuildLeaderboard(st, gate.DefaultThresholds(), 0, time.Now())
	if err != nil {
		t.Fatalf("BuildLeaderboard: %v", err)
	}
	if board.WorkflowsProcessed != 1 || len(board.Rows) != 2 {
		t.Fatalf("expected 2 backtest rows, got %+v", board)
	}
	for _, r := range board.Rows {
		if r.Source != "backtest" {
			t.Fatalf("expected every row sourced from backtests, got %q", r.Source)
		}
	}
	if board.Rows[0].Pass != 1 {
		t.Fatalf("expected the higher-scoring pass 1 ranked first, got pass %d", board.Rows[0].Pass)
	}
	if board.Rows[0].Rank != 1 || board.Rows[1].Rank != 2 {
		t.Fatalf("expected sequential ranks, got %d and %d", board.Rows[0].Rank, board.Rows[1].Rank)
	}
}

func TestBuildLeaderboardFallsBackToOptimizationWhenNoBacktests(t *testing.T) {
	st := newTestStore(t)
	state := saveWorkflow(t, st, "wf2", domain.StatusCompleted, time.Now())
	if _, err := st.SaveResults(state.WorkflowID, "optimization", []report.PassRecord{
		{Pass: 1, Profit: 2000, ProfitFactor: 1.9, DrawdownPct: 15, Trades: 70},
		{Pass: 2, Profit: 100, ProfitFactor: 0.8, DrawdownPct: 40, Trades: 10}, // below MinTrades, excluded
	}); err != nil {
		t.Fatalf("SaveResults optimization: %v", err)
	}

	board, err := BuildLeaderboard(st, gate.DefaultThresholds(), 0, time.Now())
	if err != nil {
		t.Fatalf("BuildLeaderboard: %v", err)
	}
	if len(board.Rows) != 1 {
		t.Fatalf("len(Rows) = %d, want 1 (pass 2 fails the minimum-trades qualification)", len(board.Rows))
	}
	if board.Rows[0].Source != "optimization" {
		t.Fatalf("Source = %q, want optimization", board.Rows[0].Source)
	}
}

func TestBuildLeaderboardCapsPassesPerWorkflow(t *testing.T) {
	st := newTestStore(t)
	state := saveWorkflow(t, st, "wf3", domain.StatusCompleted, time.Now())

	var outcomes []passOutcome
	for i := 1; i <= 5; i++ {
		outcomes = append(outcomes, passOutcome{Pass: i, Metrics: domain.TradeMetrics{Profit: float64(i * 100), TotalTrades: 60, ProfitFactor: 1.5}})
	}
	if _, err := st.SaveResults(state.WorkflowID, "backtests", backtestSideCar{All: outcomes}); err != nil {
		t.Fatalf("SaveResults backtests: %v", err)
	}

	board, err := BuildLeaderboard(st, gate.DefaultThresholds(), 2, time.Now())
	if err != nil {
		t.Fatalf("BuildLeaderboard: %v", err)
	}
	if len(board.Rows) != 2 {
		t.Fatalf("len(Rows) = %d, want 2 (capped)", len(board.Rows))
	}
}

func TestBuildBoardsExcludesUnfinishedWorkflowsAndSortsNewestFirst(t *testing.T) {
	st := newTestStore(t)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	older := saveWorkflow(t, st, "wf-old", domain.StatusCompleted, base.Add(-time.Hour))
	saveWorkflow(t, st, "wf-new", domain.StatusFailed, base.Add(2*time.Hour))
	saveWorkflow(t, st, "wf-newest", domain.StatusCompleted, base.Add(time.Hour))

	boards, err := BuildBoards(st, []string{"1_load_ea"}, base)
	if err != nil {
		t.Fatalf("BuildBoards: %v", err)
	}
	if len(boards.Entries) != 2 {
		t.Fatalf("len(Entries) = %d, want 2 (wf-new excluded as failed)", len(boards.Entries))
	}
	if boards.Entries[0].WorkflowID != "wf-newest" {
		t.Fatalf("Entries[0].WorkflowID = %q, want wf-newest (most recently updated)", boards.Entries[0].WorkflowID)
	}
	if boards.Entries[1].WorkflowID != older.WorkflowID {
		t.Fatalf("Entries[1].WorkflowID = %q, want %q", boards.Entries[1].WorkflowID, older.WorkflowID)
	}
}
