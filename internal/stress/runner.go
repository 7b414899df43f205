package stress

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/eastress/robustness-pipeline/internal/domain"
	"github.com/eastress/robustness-pipeline/internal/report"
	"github.com/eastress/robustness-pipeline/internal/simulator"
	"go.uber.org/zap"
)

// ScenarioResult is the outcome of one suite entry, base or overlay.
type ScenarioResult struct {
	Scenario     domain.Scenario
	Success      bool
	Metrics      domain.TradeMetrics
	ReportPath   string
	TickCoverage *TickCoverage
	Errors       []string
}

// RunRequest is everything the suite runner needs to execute the base
// scenarios and, afterward, derive their overlay variants.
type RunRequest struct {
	EAName             string // compiled filename, e.g. "MyEA.ex5"
	EAStem             string // EAName without extension, used for report-name hashing
	Symbol             string
	Timeframe          string
	Terminal           simulator.TerminalConfig
	Parameters         []domain.Parameter
	Ranges             map[string]domain.OptimizationRange
	Defs               []ScenarioDef
	TimeoutPerScenario time.Duration
	Overlays           []OverlayCost
	InitialBalance     float64
	OnProgress         func(string)
}

// Runner executes the enumerated scenario suite through a simulator.Runner
// and derives overlay variants post-hoc, without any further simulator
// invocations (spec §4.4).
type Runner struct {
	sim    simulator.Runner
	logger *zap.Logger
}

// NewRunner builds a suite Runner over the given simulator adapter.
func NewRunner(sim simulator.Runner, logger *zap.Logger) *Runner {
	return &Runner{sim: sim, logger: logger.Named("stress")}
}

// RunSuite executes every base ScenarioDef, then layers overlay variants
// on top of whichever base scenarios succeeded and aren't latency variants
// (latency already perturbs execution; stacking a cost overlay on top of
// it would conflate two independent stress dimensions).
func (r *Runner) RunSuite(ctx context.Context, req RunRequest) ([]ScenarioResult, error) {
	var results []ScenarioResult

	for i, def := range req.Defs {
		if req.OnProgress != nil {
			req.OnProgress(fmt.Sprintf("stress %d/%d: %s (%s -> %s)", i+1, len(req.Defs), def.ID, def.Window.FromDate, def.Window.ToDate))
		}
		res := r.runBase(ctx, req, def)
		results = append(results, res)
		if req.OnProgress != nil {
			req.OnProgress(fmt.Sprintf("stress %d/%d %s: %s profit %.0f, PF %.2f, trades %d",
				i+1, len(req.Defs), successWord(res.Success), def.ID, res.Metrics.Profit, res.Metrics.ProfitFactor, res.Metrics.TotalTrades))
		}
	}

	if len(req.Overlays) > 0 {
		overlayResults := r.runOverlays(req, results)
		results = append(results, overlayResults...)
	}

	return results, nil
}

func successWord(ok bool) string {
	if ok {
		return "OK"
	}
	return "FAIL"
}

func (r *Runner) runBase(ctx context.Context, req RunRequest, def ScenarioDef) ScenarioResult {
	reportName := makeReportName(req.EAStem, def.ID, 60)

	scenario := domain.Scenario{
		ID:       def.ID,
		Label:    def.Label,
		PeriodID: def.PeriodID,
		Variant:  domain.VariantBase,
		Window:   domain.ScenarioWindow{From: def.Window.FromDate, To: def.Window.ToDate, ID: def.Window.ID, Label: def.Window.Label},
		Settings: domain.ScenarioSettings{
			From:      def.Window.FromDate,
			To:        def.Window.ToDate,
			Model:     def.Model.name(),
			LatencyMs: def.LatencyMs,
		},
		Tags: def.Tags,
	}

	simReq := simulator.Request{
		Terminal: req.Terminal,
		EAName:   req.EAName,
		INI: simulator.INIConfig{
			EAName:             req.EAName,
			Symbol:             req.Symbol,
			Timeframe:          req.Timeframe,
			FromDate:           def.Window.FromDate,
			ToDate:             def.Window.ToDate,
			DataModel:          int(def.Model),
			ExecutionLatencyMs: def.LatencyMs,
			ReportName:         reportName,
			Parameters:         req.Parameters,
			Ranges:             req.Ranges,
		},
		ReportName: reportName,
		Timeout:    req.TimeoutPerScenario,
		OnProgress: req.OnProgress,
	}

	bt, err := r.sim.Backtest(ctx, simReq)
	if err != nil {
		return ScenarioResult{Scenario: scenario, Errors: []string{err.Error()}}
	}
	if !bt.Success {
		return ScenarioResult{Scenario: scenario, Errors: bt.Errors}
	}

	metrics, parseErr := loadScenarioMetrics(bt.XMLPath)
	if parseErr != nil {
		return ScenarioResult{Scenario: scenario, Errors: []string{parseErr.Error()}}
	}

	result := ScenarioResult{
		Scenario:   scenario,
		Success:    true,
		Metrics:    metrics,
		ReportPath: bt.HTMLPath,
	}

	if def.Model == ModelTick {
		from, _ := report.ParseDatetime(def.Window.FromDate)
		to, _ := report.ParseDatetime(def.Window.ToDate)
		cov := CheckTickFileCoverage(req.Terminal.DataPath, req.Symbol, from, to, time.Now())
		result.TickCoverage = &cov
	}

	if data, err := os.ReadFile(bt.HTMLPath); err == nil {
		trades := report.ExtractTrades(report.ParseDealsHTML(data))
		label, confidence := ClassifyWindow(trades, DefaultRegimeThresholds())
		if confidence > 0 {
			result.Scenario.Tags = append(result.Scenario.Tags, "regime:"+string(label))
		}
	}

	return result
}

func loadScenarioMetrics(xmlPath string) (domain.TradeMetrics, error) {
	f, err := os.Open(xmlPath)
	if err != nil {
		return domain.TradeMetrics{}, err
	}
	defer f.Close()

	opt, err := report.ParseOptimizationXML(f)
	if err != nil {
		return domain.TradeMetrics{}, err
	}
	best, ok := opt.BestPass()
	if !ok {
		return domain.TradeMetrics{}, fmt.Errorf("stress: no pass rows in %s", xmlPath)
	}
	return best.ToTradeMetrics(), nil
}

// runOverlays loads each eligible base scenario's deal list once, estimates
// its pip value per lot, then recomputes profit/PF/drawdown for every
// configured (spread, slippage) combination against that same trade list.
func (r *Runner) runOverlays(req RunRequest, bases []ScenarioResult) []ScenarioResult {
	type overlayBase struct {
		trades []domain.Trade
		pipValue float64
	}
	cache := map[string]*overlayBase{}

	var out []ScenarioResult
	for _, base := range bases {
		if !base.Success || base.ReportPath == "" || hasTag(base.Scenario.Tags, "latency") {
			continue
		}

		ob, cached := cache[base.ReportPath]
		if !cached {
			data, err := os.ReadFile(base.ReportPath)
			if err != nil {
				out = append(out, overlayErrorResult(base.Scenario, err.Error()))
				cache[base.ReportPath] = nil
				continue
			}
			deals := report.ParseDealsHTML(data)
			trades := report.ExtractTrades(deals)
			pipValue, ok := estimatePipValuePerLot(trades, req.Symbol)
			if !ok {
				out = append(out, overlayErrorResult(base.Scenario, "could not estimate pip value for overlay costs"))
				cache[base.ReportPath] = nil
				continue
			}
			ob = &overlayBase{trades: trades, pipValue: pipValue}
			cache[base.ReportPath] = ob
		}
		if ob == nil {
			continue
		}

		for _, o := range req.Overlays {
			if o.SpreadPips == 0 && o.SlippagePips == 0 {
				continue
			}
			metrics := ApplyCostOverlay(ob.trades, ob.pipValue, o, req.InitialBalance)

			overlayID := sanitizeID(fmt.Sprintf("%s_overlay_sp%g_sl%g", base.Scenario.ID, o.SpreadPips, o.SlippagePips), 60)
			scenario := domain.Scenario{
				ID:       overlayID,
				Label:    fmt.Sprintf("%s + costs (spread %gp, slip %gp x%d)", base.Scenario.Label, o.SpreadPips, o.SlippagePips, o.Sides),
				PeriodID: base.Scenario.PeriodID,
				Variant:  domain.VariantOverlay,
				Window:   base.Scenario.Window,
				Settings: base.Scenario.Settings,
				Tags:     append(append([]string{}, base.Scenario.Tags...), "overlay"),
				OverlaySettings: &domain.OverlaySettings{
					SpreadPips:   o.SpreadPips,
					SlippagePips: o.SlippagePips,
					Sides:        o.Sides,
				},
				BaseScenarioID: base.Scenario.ID,
			}

			out = append(out, ScenarioResult{
				Scenario:   scenario,
				Success:    true,
				ReportPath: base.ReportPath,
				Metrics: domain.TradeMetrics{
					Profit:       metrics.Profit,
					ProfitFactor: metrics.ProfitFactor,
					MaxDrawdownPct: metrics.MaxDrawdownPct,
					TotalTrades:  metrics.TotalTrades,
				},
			})
		}
	}
	return out
}

func overlayErrorResult(base domain.Scenario, errMsg string) ScenarioResult {
	scenario := base
	scenario.ID = sanitizeID(base.ID+"_overlay_error", 60)
	scenario.Label = base.Label + " + costs (overlay unavailable)"
	scenario.Variant = domain.VariantOverlay
	scenario.BaseScenarioID = base.ID
	return ScenarioResult{Scenario: scenario, Success: false, Errors: []string{errMsg}}
}

func hasTag(tags []string, target string) bool {
	for _, t := range tags {
		if t == target {
			return true
		}
	}
	return false
}
