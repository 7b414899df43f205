// Package stress builds the deterministic stress-scenario suite (rolling
// windows, calendar months, data-model/latency variants), runs the base
// scenarios through the simulator adapter, and derives cost-overlay
// variants post-hoc from an existing scenario's trade list.
package stress

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const mt5DateFmt = "2006.01.02"

var sanitizeRe = regexp.MustCompile(`[^A-Za-z0-9_]+`)
var underscoreRunRe = regexp.MustCompile(`_+`)

// sanitizeID mirrors the original's token-safe identifier rule: collapse
// everything but letters/digits/underscore into a single underscore, trim
// the result, and cap its length.
func sanitizeID(value string, maxLen int) string {
	value = strings.TrimSpace(value)
	value = sanitizeRe.ReplaceAllString(value, "_")
	value = underscoreRunRe.ReplaceAllString(value, "_")
	value = strings.Trim(value, "_")
	if value == "" {
		value = "scenario"
	}
	if len(value) > maxLen {
		value = value[:maxLen]
	}
	return value
}

// makeReportName produces a short, collision-resistant MT5 report name:
// scenario IDs get truncated independently, so a hash of the untruncated
// pair guarantees uniqueness even when two long IDs truncate identically.
func makeReportName(eaStem, scenarioID string, maxLen int) string {
	eaShort := sanitizeID(eaStem, 18)
	scShort := sanitizeID(scenarioID, 18)
	sum := sha1.Sum([]byte(eaStem + ":" + scenarioID))
	digest := hex.EncodeToString(sum[:])[:8]
	return sanitizeID(fmt.Sprintf("%s_S12_%s_%s", eaShort, scShort, digest), maxLen)
}

// DataModel is the simulator's execution data model.
type DataModel int

const (
	ModelOHLC DataModel = 1
	ModelTick DataModel = 0
)

func (m DataModel) name() string {
	if m == ModelTick {
		return "tick"
	}
	return "ohlc"
}

// SuiteConfig is the small, explicit input that makes scenario enumeration
// fully deterministic given a workflow's backtest window.
type SuiteConfig struct {
	RollingDays       []int
	CalendarMonthsAgo []int
	Models            []DataModel
	TickLatenciesMs   []int
}

// DefaultSuiteConfig matches the original's default suite shape: a 30-day
// rolling window and the previous calendar month, both OHLC and tick, with
// no latency variants unless the caller opts in.
func DefaultSuiteConfig() SuiteConfig {
	return SuiteConfig{
		RollingDays:       []int{30},
		CalendarMonthsAgo: []int{1},
		Models:            []DataModel{ModelOHLC, ModelTick},
	}
}

// ScenarioDef is one entry of the enumerated suite before it has been run:
// the simulator-facing settings plus the bookkeeping needed to label and
// dedupe it.
type ScenarioDef struct {
	ID       string
	Label    string
	PeriodID string
	Window   Window
	Model    DataModel
	LatencyMs int
	Tags     []string
}

// Window is the date range (and identity) a scenario replays over.
type Window struct {
	ID       string
	Label    string
	FromDate string
	ToDate   string
}

// BuildDynamicScenarios enumerates the deterministic stress suite anchored
// to workflowEnd, so re-running the same workflow always produces the
// same window boundaries regardless of wall-clock time.
func BuildDynamicScenarios(cfg SuiteConfig, workflowEnd time.Time) []ScenarioDef {
	var scenarios []ScenarioDef

	addWindow := func(windowID, windowLabel string, start, end time.Time) {
		from := start.Format(mt5DateFmt)
		to := end.Format(mt5DateFmt)
		win := Window{ID: windowID, Label: windowLabel, FromDate: from, ToDate: to}

		for _, model := range cfg.Models {
			baseID := fmt.Sprintf("%s_%s", model.name(), windowID)
			modelLabel := "OHLC (1m)"
			if model == ModelTick {
				modelLabel = "Tick"
			}
			scenarios = append(scenarios, ScenarioDef{
				ID:       baseID,
				Label:    fmt.Sprintf("%s - %s", modelLabel, windowLabel),
				PeriodID: windowID,
				Window:   win,
				Model:    model,
				Tags:     []string{"window", model.name()},
			})

			if model == ModelTick {
				for _, lat := range cfg.TickLatenciesMs {
					scenarios = append(scenarios, ScenarioDef{
						ID:        fmt.Sprintf("%s_latency_%dms", baseID, lat),
						Label:     fmt.Sprintf("Tick + latency %dms - %s", lat, windowLabel),
						PeriodID:  windowID,
						Window:    win,
						Model:     ModelTick,
						LatencyMs: lat,
						Tags:      []string{"window", "tick", "latency"},
					})
				}
			}
		}
	}

	for _, d := range cfg.RollingDays {
		if d <= 0 {
			continue
		}
		start := workflowEnd.AddDate(0, 0, -d)
		addWindow(fmt.Sprintf("last_%dd", d), fmt.Sprintf("Last %d days", d), start, workflowEnd)
	}

	for _, m := range cfg.CalendarMonthsAgo {
		if m <= 0 {
			continue
		}
		anchorMonthStart := time.Date(workflowEnd.Year(), workflowEnd.Month(), 1, 0, 0, 0, 0, time.UTC)
		targetStart := anchorMonthStart.AddDate(0, -m, 0)
		targetEnd := targetStart.AddDate(0, 1, 0).AddDate(0, 0, -1)

		windowID := fmt.Sprintf("month_%04d_%02d", targetStart.Year(), int(targetStart.Month()))
		windowLabel := targetStart.Format("Jan 2006")
		addWindow(windowID, windowLabel, targetStart, targetEnd)
	}

	return scenarios
}
