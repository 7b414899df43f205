package report

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"
)

// PassRecord is one row of an optimization pass: the recognized metric
// columns plus any unrecognized columns, kept verbatim as Parameters so
// the caller can still see which input values produced this pass.
type PassRecord struct {
	Pass           int
	Result         float64
	Profit         float64
	ExpectedPayoff float64
	ProfitFactor   float64
	DrawdownPct    float64
	RecoveryFactor float64
	SharpeRatio    float64
	Trades         int
	BackResult     float64
	HasBack        bool
	ForwardResult  float64
	HasForward     bool

	// Forward-segment metrics, copied onto the merged record under their
	// own keys by MergeForwardBack so a walk-forward pass carries both
	// segments' figures at once instead of the back segment overwriting
	// the forward one.
	ForwardProfit         float64
	ForwardExpectedPayoff float64
	ForwardProfitFactor   float64
	ForwardRecoveryFactor float64
	ForwardSharpeRatio    float64
	ForwardMaxDrawdownPct float64
	ForwardTotalTrades    int

	Parameters map[string]string
}

// OptimizationReport is the full parsed optimization-results spreadsheet.
type OptimizationReport struct {
	Passes []PassRecord
}

// rawRow and rawCell mirror just enough of the SpreadsheetML dialect to
// read both the namespaced form MT5 emits
// (xmlns="urn:schemas-microsoft-com:office:spreadsheet") and the bare
// unnamespaced form some report generators produce. encoding/xml matches
// a struct tag with no namespace against an element of any namespace as
// long as the local name agrees, so a single set of tags covers both.
type rawRow struct {
	Cells []rawCell `xml:"Cell"`
}

type rawCell struct {
	Data rawData `xml:"Data"`
}

type rawData struct {
	Type  string `xml:"Type,attr"`
	Value string `xml:",chardata"`
}

// ParseOptimizationXML reads a spreadsheet-XML optimization report: a
// header row of column labels followed by one row per optimization pass.
// Columns recognized via the alias table become typed PassRecord fields;
// everything else is kept in Parameters under its raw header text.
func ParseOptimizationXML(r io.Reader) (*OptimizationReport, error) {
	rows, err := decodeRows(r)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &OptimizationReport{}, nil
	}

	header := rowText(rows[0])
	columns := make([]canonicalField, len(header))
	for i, h := range header {
		if f, ok := canonicalize(h); ok {
			columns[i] = f
		}
	}

	passes := make([]PassRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		cells := rowText(row)
		rec := PassRecord{Parameters: map[string]string{}}
		for i, cell := range cells {
			if i >= len(columns) {
				break
			}
			switch columns[i] {
			case fieldPass:
				rec.Pass = int(mustNumber(cell))
			case fieldResult:
				rec.Result = mustNumber(cell)
			case fieldProfit:
				rec.Profit = mustNumber(cell)
			case fieldExpectedPayoff:
				rec.ExpectedPayoff = mustNumber(cell)
			case fieldProfitFactor:
				rec.ProfitFactor = mustNumber(cell)
			case fieldDrawdownPct:
				rec.DrawdownPct = mustNumber(cell)
			case fieldRecoveryFactor:
				rec.RecoveryFactor = mustNumber(cell)
			case fieldSharpeRatio:
				rec.SharpeRatio = mustNumber(cell)
			case fieldTrades:
				rec.Trades = int(mustNumber(cell))
			case fieldBackResult:
				rec.BackResult = mustNumber(cell)
				rec.HasBack = true
			case fieldForwardResult:
				rec.ForwardResult = mustNumber(cell)
				rec.HasForward = true
			default:
				if i < len(header) {
					rec.Parameters[header[i]] = cell
				}
			}
		}
		passes = append(passes, rec)
	}

	sortPassesDescending(passes)
	return &OptimizationReport{Passes: passes}, nil
}

// decodeRows walks the document as a token stream looking for elements
// whose local name is "Row", independent of namespace or nesting depth
// (Worksheet/Table wrapping varies by generator).
func decodeRows(r io.Reader) ([]rawRow, error) {
	dec := xml.NewDecoder(r)
	var rows []rawRow
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("report: decode optimization xml: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "Row" {
			continue
		}
		var row rawRow
		if err := dec.DecodeElement(&row, &start); err != nil {
			return nil, fmt.Errorf("report: decode row: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func rowText(row rawRow) []string {
	out := make([]string, len(row.Cells))
	for i, c := range row.Cells {
		out[i] = c.Data.Value
	}
	return out
}

func mustNumber(s string) float64 {
	v, _ := ParseNumber(s)
	return v
}

// sortPassesDescending orders passes by Result descending; when Result
// is absent or tied (zero across the board is common when a report only
// carries Profit), Profit is used as the tiebreaker/fallback key.
func sortPassesDescending(passes []PassRecord) {
	sort.SliceStable(passes, func(i, j int) bool {
		if passes[i].Result != passes[j].Result {
			return passes[i].Result > passes[j].Result
		}
		return passes[i].Profit > passes[j].Profit
	})
}
