package report

import "strings"

// canonicalField is the set of metric fields this package recognizes
// across both the optimization-results spreadsheet-XML header row and
// the single-run HTML report's labelled-value table. Report vendors
// vary the exact wording and punctuation of these labels, so lookups go
// through normalizeHeader before matching the alias table.
type canonicalField string

const (
	fieldPass           canonicalField = "pass"
	fieldResult         canonicalField = "result"
	fieldProfit         canonicalField = "profit"
	fieldExpectedPayoff canonicalField = "expected_payoff"
	fieldProfitFactor   canonicalField = "profit_factor"
	fieldDrawdownPct    canonicalField = "drawdown_pct"
	fieldTrades         canonicalField = "trades"
	fieldBackResult     canonicalField = "back_result"
	fieldForwardResult  canonicalField = "forward_result"
	fieldSharpeRatio    canonicalField = "sharpe_ratio"
	fieldRecoveryFactor canonicalField = "recovery_factor"
	fieldGrossProfit    canonicalField = "gross_profit"
	fieldGrossLoss      canonicalField = "gross_loss"
	fieldWinRate        canonicalField = "win_rate"
	fieldHistoryQuality canonicalField = "history_quality"
)

// reportSuccessFields are the five labelled-value fields the single-run
// HTML parser uses to decide whether it actually read a recognizable
// report: at least two must have matched for the parse to count as
// successful (spec §4.2), since a vendor skin can rename or drop any
// individual label.
var reportSuccessFields = []canonicalField{
	fieldProfit, fieldTrades, fieldProfitFactor, fieldDrawdownPct, fieldHistoryQuality,
}

// headerAliases maps every normalized spelling a vendor report might use
// for a column or labelled-value row to the canonical field it means.
// Keys must already be run through normalizeHeader (lowercase, collapsed
// whitespace, trailing colon stripped).
var headerAliases = map[string]canonicalField{
	"pass":                       fieldPass,
	"result":                     fieldResult,
	"profit":                     fieldProfit,
	"total net profit":           fieldProfit,
	"net profit":                 fieldProfit,
	"expected payoff":            fieldExpectedPayoff,
	"profit factor":              fieldProfitFactor,
	"equity dd %":                fieldDrawdownPct,
	"equity drawdown maximal":    fieldDrawdownPct,
	"drawdown %":                 fieldDrawdownPct,
	"maximal drawdown":           fieldDrawdownPct,
	"trades":                     fieldTrades,
	"total trades":               fieldTrades,
	"back result":                fieldBackResult,
	"forward result":             fieldForwardResult,
	"sharpe ratio":                fieldSharpeRatio,
	"recovery factor":            fieldRecoveryFactor,
	"gross profit":               fieldGrossProfit,
	"gross loss":                 fieldGrossLoss,
	"profit trades (% of total)": fieldWinRate,
	"won trades %":               fieldWinRate,
	"history quality":            fieldHistoryQuality,
}

// normalizeHeader lowercases, collapses internal whitespace and strips a
// trailing colon so "Equity DD %:", "equity  dd %" and "Equity DD %" all
// resolve to the same alias-table key.
func normalizeHeader(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ":")
	s = strings.ToLower(s)
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// canonicalize resolves a raw header/label into a canonical field name,
// or "" if it isn't one this package tracks (in which case callers keep
// the raw header as an opaque parameter/column name).
func canonicalize(raw string) (canonicalField, bool) {
	f, ok := headerAliases[normalizeHeader(raw)]
	return f, ok
}
