// Package aggregator builds the two cross-workflow views the dashboard
// surface reads from: a pass-level leaderboard and a workflow-level board
// index. Both are pure read-only derivations over the state store
// (spec §4.7); the aggregator never writes back into a workflow's own
// state document. Grounded on reports/leaderboard.py's generate_leaderboard
// and engine/state.py's list_workflows/get_summary.
package aggregator

import (
	"sort"
	"time"

	"github.com/eastress/robustness-pipeline/internal/domain"
	"github.com/eastress/robustness-pipeline/internal/gate"
	"github.com/eastress/robustness-pipeline/internal/report"
	"github.com/eastress/robustness-pipeline/internal/store"
)

// DefaultPassesPerWorkflow caps how many passes a single workflow
// contributes to the leaderboard (spec §4.7's "up to N passes per
// workflow, default 30").
const DefaultPassesPerWorkflow = 30

// excluded reports whether a workflow's state should be left out of both
// the leaderboard and the board index: failed, pending, and any awaiting_*
// (still in-flight) workflow never has a finished result worth ranking.
func excluded(status domain.WorkflowStatus) bool {
	if status == domain.StatusFailed || status == domain.StatusPending {
		return true
	}
	return status.IsAwaiting()
}

// passOutcome mirrors the "backtests" side-car shape internal/stage
// writes (internal/stage/backtest.go's unexported passOutcome); the
// aggregator decodes the same on-disk JSON independently since stage's
// type is unexported and the contract between writer and reader is the
// file layout, not a shared Go type.
type passOutcome struct {
	Pass    int                 `json:"pass"`
	Metrics domain.TradeMetrics `json:"metrics"`
	Back    float64             `json:"backResult"`
	Forward float64             `json:"forwardResult"`
	HasBack bool                `json:"hasBack"`
	HasFwd  bool                `json:"hasForward"`
}

type backtestSideCar struct {
	Best passOutcome   `json:"best"`
	All  []passOutcome `json:"all"`
}

// Row is a single ranked pass on the cross-workflow leaderboard.
type Row struct {
	WorkflowID     string  `json:"workflowId"`
	EAName         string  `json:"eaName"`
	Symbol         string  `json:"symbol"`
	Timeframe      string  `json:"timeframe"`
	Pass           int     `json:"pass"`
	Source         string  `json:"source"` // "backtest" or "optimization"
	Profit         float64 `json:"profit"`
	ProfitFactor   float64 `json:"profitFactor"`
	MaxDrawdownPct float64 `json:"maxDrawdownPct"`
	TotalTrades    int     `json:"totalTrades"`
	BackResult     float64 `json:"backResult"`
	ForwardResult  float64 `json:"forwardResult"`
	Consistent     bool    `json:"consistent"`
	CompositeScore float64 `json:"compositeScore"`
	Rank           int     `json:"rank"`
}

// Leaderboard is the full leaderboard document persisted to
// runs/leaderboard/data.json.
type Leaderboard struct {
	Rows               []Row     `json:"passes"`
	TotalPasses        int       `json:"totalPasses"`
	WorkflowsProcessed int       `json:"workflowsProcessed"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func rowScore(metrics domain.TradeMetrics, back, forward float64, hasBack, hasFwd bool) float64 {
	return gate.CompositeScore(gate.CompositeScoreInput{
		Profit:         metrics.Profit,
		TotalTrades:    metrics.TotalTrades,
		ProfitFactor:   metrics.ProfitFactor,
		MaxDrawdownPct: metrics.MaxDrawdownPct,
		Segments: gate.SegmentProfits{
			Back: back, Forward: forward,
			HasBack: hasBack, HasForward: hasFwd,
		},
	})
}

func rowsFromBacktests(state domain.WorkflowState, sidecar backtestSideCar, topN int) []Row {
	all := append([]passOutcome(nil), sidecar.All...)
	sort.Slice(all, func(i, j int) bool {
		return rowScore(all[i].Metrics, all[i].Back, all[i].Forward, all[i].HasBack, all[i].HasFwd) >
			rowScore(all[j].Metrics, all[j].Back, all[j].Forward, all[j].HasBack, all[j].HasFwd)
	})
	if len(all) > topN {
		all = all[:topN]
	}

	rows := make([]Row, 0, len(all))
	for _, p := range all {
		rows = append(rows, Row{
			WorkflowID:     state.WorkflowID,
			EAName:         state.EAName,
			Symbol:         state.Symbol,
			Timeframe:      state.Timeframe,
			Pass:           p.Pass,
			Source:         "backtest",
			Profit:         p.Metrics.Profit,
			ProfitFactor:   p.Metrics.ProfitFactor,
			MaxDrawdownPct: p.Metrics.MaxDrawdownPct,
			TotalTrades:    p.Metrics.TotalTrades,
			BackResult:     p.Back,
			ForwardResult:  p.Forward,
			Consistent:     p.HasBack && p.HasFwd && p.Back > 0 && p.Forward > 0,
			CompositeScore: rowScore(p.Metrics, p.Back, p.Forward, p.HasBack, p.HasFwd),
		})
	}
	return rows
}

// rowsFromOptimization is the fallback path when a workflow never
// reached step 9 (no "backtests" side-car yet, or it's empty): it ranks
// the raw optimization passes by minimum-trades-qualified profit factor,
// the same shape analyze_passes' filtered_passes used upstream.
func rowsFromOptimization(state domain.WorkflowState, passes []report.PassRecord, minTrades int, topN int) []Row {
	qualified := make([]report.PassRecord, 0, len(passes))
	for _, p := range passes {
		if p.Trades >= minTrades {
			qualified = append(qualified, p)
		}
	}
	sort.Slice(qualified, func(i, j int) bool {
		if qualified[i].ProfitFactor != qualified[j].ProfitFactor {
			return qualified[i].ProfitFactor > qualified[j].ProfitFactor
		}
		return qualified[i].Profit > qualified[j].Profit
	})
	if len(qualified) > topN {
		qualified = qualified[:topN]
	}

	rows := make([]Row, 0, len(qualified))
	for _, p := range qualified {
		rows = append(rows, Row{
			WorkflowID:     state.WorkflowID,
			EAName:         state.EAName,
			Symbol:         state.Symbol,
			Timeframe:      state.Timeframe,
			Pass:           p.Pass,
			Source:         "optimization",
			Profit:         p.Profit,
			ProfitFactor:   p.ProfitFactor,
			MaxDrawdownPct: p.DrawdownPct,
			TotalTrades:    p.Trades,
			BackResult:     p.BackResult,
			ForwardResult:  p.ForwardResult,
			Consistent:     p.HasBack && p.HasForward && p.BackResult > 0 && p.ForwardResult > 0,
			CompositeScore: rowScore(domain.TradeMetrics{
				Profit: p.Profit, ProfitFactor: p.ProfitFactor,
				MaxDrawdownPct: p.DrawdownPct, TotalTrades: p.Trades,
			}, p.BackResult, p.ForwardResult, p.HasBack, p.HasForward),
		})
	}
	return rows
}

// BuildLeaderboard scans every persisted workflow, prefers each one's
// step-9 backtest passes, falls back to its step-7 optimization passes
// when no backtest ran, and recomputes every row's composite score with
// gate.CompositeScore so the leaderboard and the pipeline gates can never
// disagree about a pass's score.
func BuildLeaderboard(st *store.Store, thresholds gate.Thresholds, passesPerWorkflow int, now time.Time) (Leaderboard, error) {
	if passesPerWorkflow <= 0 {
		passesPerWorkflow = DefaultPassesPerWorkflow
	}

	states, err := st.ListWorkflows()
	if err != nil {
		return Leaderboard{}, err
	}

	var all []Row
	processed := 0
	for _, state := range states {
		if excluded(state.Status) {
			continue
		}

		var sidecar backtestSideCar
		var rows []Row
		if err := st.LoadResults(state.WorkflowID, "backtests", &sidecar); err == nil && len(sidecar.All) > 0 {
			rows = rowsFromBacktests(state, sidecar, passesPerWorkflow)
		} else {
			var passes []report.PassRecord
			if err := st.LoadResults(state.WorkflowID, "optimization", &passes); err == nil && len(passes) > 0 {
				rows = rowsFromOptimization(state, passes, thresholds.MinTrades, passesPerWorkflow)
			}
		}
		if len(rows) == 0 {
			continue
		}
		all = append(all, rows...)
		processed++
	}

	sort.Slice(all, func(i, j int) bool { return all[i].CompositeScore > all[j].CompositeScore })
	for i := range all {
		all[i].Rank = i + 1
	}

	return Leaderboard{
		Rows:               all,
		TotalPasses:        len(all),
		WorkflowsProcessed: processed,
		UpdatedAt:          now,
	}, nil
}

// BoardEntry is one workflow's summary row on the board index.
type BoardEntry struct {
	domain.Summary
	Symbol         string  `json:"symbol"`
	Timeframe      string  `json:"timeframe"`
	CompositeScore float64 `json:"compositeScore"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Boards is the workflow-summary index persisted to runs/boards/data.json.
type Boards struct {
	Entries   []BoardEntry `json:"entries"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// BuildBoards projects every non-excluded workflow to its Summary plus a
// recomputed composite score, sorted newest first.
func BuildBoards(st *store.Store, declaredSteps []string, now time.Time) (Boards, error) {
	states, err := st.ListWorkflows()
	if err != nil {
		return Boards{}, err
	}

	entries := make([]BoardEntry, 0, len(states))
	for _, state := range states {
		if excluded(state.Status) {
			continue
		}
		s := state
		score := rowScore(domain.TradeMetrics{
			Profit:         state.Metrics["profit"],
			ProfitFactor:   state.Metrics["profit_factor"],
			MaxDrawdownPct: state.Metrics["max_drawdown_pct"],
			TotalTrades:    int(state.Metrics["total_trades"]),
		}, 0, 0, false, false)
		entries = append(entries, BoardEntry{
			Summary:        s.Summarize(declaredSteps),
			Symbol:         state.Symbol,
			Timeframe:      state.Timeframe,
			CompositeScore: score,
			CreatedAt:      state.CreatedAt,
			UpdatedAt:      state.UpdatedAt,
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].UpdatedAt.After(entries[j].UpdatedAt) })

	return Boards{Entries: entries, UpdatedAt: now}, nil
}
