package simulator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/eastress/robustness-pipeline/internal/domain"
)

// timeframeMinutes maps the usual MT timeframe shorthand to the Period=
// value the INI file expects, in minutes (W1/MN1 use the terminal's own
// special-case values).
var timeframeMinutes = map[string]int{
	"M1": 1, "M5": 5, "M15": 15, "M30": 30,
	"H1": 60, "H4": 240, "D1": 1440, "W1": 10080, "MN1": 43200,
}

// booleanPrefixes are the input-name prefixes this system treats as
// boolean-valued regardless of declared type, so an EA's hand-rolled
// "0/1" int input for a flag still emits as MQL5's true/false literals.
var booleanPrefixes = []string{"Enable_", "Use_", "Avoid_", "Allow_", "Is_", "Has_"}

func looksBoolean(name string, normalized domain.NormalizedType) bool {
	if normalized == domain.TypeBool {
		return true
	}
	for _, p := range booleanPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// OptimizationMode mirrors the terminal's Optimization= INI values.
type OptimizationMode int

const (
	OptimizationDisabled     OptimizationMode = 0
	OptimizationSlowComplete OptimizationMode = 1
	OptimizationFastGenetic  OptimizationMode = 2
)

// ForwardMode mirrors the terminal's ForwardMode= INI values.
type ForwardMode int

const (
	ForwardModeDisabled ForwardMode = 0
	ForwardModeByDate   ForwardMode = 2
)

// INIConfig is everything needed to emit a [Tester]/[TesterInputs] file
// for one compile/backtest/optimize run.
type INIConfig struct {
	EAName              string
	Symbol              string
	Timeframe           string
	FromDate            string
	ToDate              string
	ForwardDate         string
	ForwardMode         ForwardMode
	DataModel           int
	ExecutionLatencyMs  int
	OptimizationMode    OptimizationMode
	OptimizationCriterion int
	ReportName          string
	Deposit             float64
	Currency            string
	Leverage            int
	Parameters          []domain.Parameter
	Ranges              map[string]domain.OptimizationRange
}

// BuildINI renders the [Tester]/[TesterInputs] grammar the terminal's
// /config: flag consumes, ported line-for-line from
// modules/optimizer.py:create_ini_file.
func BuildINI(cfg INIConfig) string {
	tf, ok := timeframeMinutes[strings.ToUpper(cfg.Timeframe)]
	if !ok {
		tf = 60
	}

	var b strings.Builder
	fmt.Fprintf(&b, "; EA Stress Test - Optimization Configuration\n\n")
	fmt.Fprintf(&b, "[Tester]\n")
	fmt.Fprintf(&b, "Expert=%s\n", cfg.EAName)
	fmt.Fprintf(&b, "Symbol=%s\n", cfg.Symbol)
	fmt.Fprintf(&b, "Period=%d\n", tf)
	fmt.Fprintf(&b, "FromDate=%s\n", cfg.FromDate)
	fmt.Fprintf(&b, "ToDate=%s\n", cfg.ToDate)
	fmt.Fprintf(&b, "ForwardMode=%d\n", cfg.ForwardMode)
	fmt.Fprintf(&b, "ForwardDate=%s\n", cfg.ForwardDate)
	fmt.Fprintf(&b, "Model=%d\n", cfg.DataModel)
	fmt.Fprintf(&b, "ExecutionMode=%d\n", cfg.ExecutionLatencyMs)
	fmt.Fprintf(&b, "Optimization=%d\n", cfg.OptimizationMode)
	fmt.Fprintf(&b, "OptimizationCriterion=%d\n", cfg.OptimizationCriterion)
	fmt.Fprintf(&b, "Report=%s\n", cfg.ReportName)
	fmt.Fprintf(&b, "ReplaceReport=1\n")
	fmt.Fprintf(&b, "UseLocal=1\n")
	fmt.Fprintf(&b, "Visual=0\n")
	fmt.Fprintf(&b, "ShutdownTerminal=1\n")
	fmt.Fprintf(&b, "Deposit=%s\n", strconv.FormatFloat(cfg.Deposit, 'f', -1, 64))
	fmt.Fprintf(&b, "Currency=%s\n", cfg.Currency)
	fmt.Fprintf(&b, "Leverage=%d\n", cfg.Leverage)

	fmt.Fprintf(&b, "\n[TesterInputs]\n")
	for _, p := range cfg.Parameters {
		rng, hasRange := cfg.Ranges[p.Name]
		b.WriteString(iniInputLine(p, rng, hasRange))
		b.WriteString("\n")
	}

	return b.String()
}

// iniInputLine renders one TesterInputs entry:
// Name=value||start||step||stop||Y (optimize) or ||0||value||N (fixed).
// Boolean-convention parameters always render true/false literals.
func iniInputLine(p domain.Parameter, rng domain.OptimizationRange, hasRange bool) string {
	isBool := looksBoolean(p.Name, p.NormalizedType)

	if isBool {
		val := "false"
		if hasRange && rng.FixedValue != nil && *rng.FixedValue != 0 {
			val = "true"
		} else if p.Default == "true" {
			val = "true"
		}
		return fmt.Sprintf("%s=%s||%s||0||%s||N", p.Name, val, val, val)
	}

	if !hasRange {
		return fmt.Sprintf("%s=%s||%s||0||%s||N", p.Name, p.Default, p.Default, p.Default)
	}

	start := formatNum(rng.Start)
	if rng.Optimize && rng.Step > 0 {
		stop := formatNum(rng.Stop)
		step := formatNum(rng.Step)
		return fmt.Sprintf("%s=%s||%s||%s||%s||Y", p.Name, start, start, step, stop)
	}

	fixed := start
	if rng.FixedValue != nil {
		fixed = formatNum(*rng.FixedValue)
	}
	return fmt.Sprintf("%s=%s||%s||0||%s||N", p.Name, fixed, fixed, fixed)
}

func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
