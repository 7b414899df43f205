package report

import (
	"encoding/binary"
	"regexp"
	"strings"
	"unicode/utf16"
)

// SingleRunReport is the parsed labelled-value table from a single-run
// (non-optimization) HTML report: one backtest's summary metrics.
type SingleRunReport struct {
	Profit         float64
	ProfitFactor   float64
	ExpectedPayoff float64
	DrawdownPct    float64
	Trades         int
	GrossProfit    float64
	GrossLoss      float64
	WinRatePct     float64
	HistoryQuality float64
	Recognized     int // how many of reportSuccessFields matched
	Raw            map[string]string
}

// Recognizable reports whether enough known fields were found to treat
// this as a valid single-run report rather than an unrelated document
// (spec §4.2: at least two of the five tracked fields must match).
func (r *SingleRunReport) Recognizable() bool {
	return r.Recognized >= 2
}

// decodeHTMLBytes turns the raw bytes of an HTML report into text. MT5
// writes these reports as UTF-16LE (with or without a BOM); anything
// else is assumed to already be a single-byte-per-rune encoding (UTF-8
// or Windows-1252, both of which pass through cleanly for the ASCII
// markup and Latin-1-range content these reports contain). There is no
// general charset-detection library in this stack, so BOM-sniffing plus
// a unicode/utf16 decode covers the one charset the simulator actually
// emits; a full encoding/ICU layer would be overkill for a single known
// producer.
func decodeHTMLBytes(data []byte) string {
	isUTF16LE := false
	if len(data) >= 2 && data[0] == 0xFF && data[1] == 0xFE {
		data = data[2:]
		isUTF16LE = true
	} else if looksUTF16LE(data) {
		isUTF16LE = true
	}
	if !isUTF16LE {
		return string(data)
	}

	n := len(data) / 2
	units := make([]uint16, n)
	for i := 0; i < n; i++ {
		units[i] = binary.LittleEndian.Uint16(data[i*2 : i*2+2])
	}
	return string(utf16.Decode(units))
}

// looksUTF16LE heuristically detects BOM-less UTF-16LE: ASCII text
// encoded that way has a zero high byte after every printable ASCII
// character, so every other byte in the sample is 0x00.
func looksUTF16LE(data []byte) bool {
	if len(data) < 8 {
		return false
	}
	sample := data
	if len(sample) > 200 {
		sample = sample[:200]
	}
	zeros := 0
	for i := 1; i < len(sample); i += 2 {
		if sample[i] == 0x00 {
			zeros++
		}
	}
	return zeros > len(sample)/2/2
}

var (
	tdCloseRe  = regexp.MustCompile(`(?i)</td\s*>`)
	trOpenRe   = regexp.MustCompile(`(?i)<tr[^>]*>`)
	tagRe      = regexp.MustCompile(`<[^>]*>`)
	spaceRunRe = regexp.MustCompile(`[ \t]+`)
)

// htmlRows turns a report's markup into rows of plain-text cell values,
// using the fact that every generator that produces these reports still
// nests <td> inside <tr>, however the surrounding table structure varies.
func htmlRows(html string) [][]string {
	html = trOpenRe.ReplaceAllString(html, "\n")
	html = tdCloseRe.ReplaceAllString(html, "\t")
	html = tagRe.ReplaceAllString(html, "")
	html = strings.ReplaceAll(html, "&nbsp;", " ")
	html = strings.ReplaceAll(html, "&amp;", "&")

	lines := strings.Split(html, "\n")
	rows := make([][]string, 0, len(lines))
	for _, line := range lines {
		cells := strings.Split(line, "\t")
		row := make([]string, 0, len(cells))
		for _, c := range cells {
			c = spaceRunRe.ReplaceAllString(strings.TrimSpace(c), " ")
			if c != "" {
				row = append(row, c)
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows
}

// ParseSingleRunHTML parses a single-run (non-optimization) HTML report
// into its labelled summary metrics. Labels and values alternate within
// a row ("Total Net Profit:", "6 756.13 (67.56%)", "Gross Profit:",
// "9 120.00", ...); a label with no recognized value on the same row
// looks ahead one cell only, matching how these reports lay consecutive
// label/value pairs out across a fixed number of columns per row.
func ParseSingleRunHTML(data []byte) *SingleRunReport {
	text := decodeHTMLBytes(data)
	rows := htmlRows(text)

	raw := make(map[string]string)
	for _, row := range rows {
		for i := 0; i < len(row); i++ {
			cell := row[i]
			if !strings.HasSuffix(cell, ":") || i+1 >= len(row) {
				continue
			}
			label := strings.TrimSuffix(cell, ":")
			value := row[i+1]
			raw[label] = value
		}
	}

	rep := &SingleRunReport{Raw: raw}
	for label, value := range raw {
		field, ok := canonicalize(label)
		if !ok {
			continue
		}
		primary, secondary, hasSecondary := ParseComposite(value)
		switch field {
		case fieldProfit:
			rep.Profit = primary
			rep.Recognized++
		case fieldProfitFactor:
			rep.ProfitFactor = primary
			rep.Recognized++
		case fieldExpectedPayoff:
			rep.ExpectedPayoff = primary
		case fieldDrawdownPct:
			if hasSecondary {
				rep.DrawdownPct = secondary
			} else {
				rep.DrawdownPct = primary
			}
			rep.Recognized++
		case fieldTrades:
			rep.Trades = int(primary)
			rep.Recognized++
		case fieldGrossProfit:
			rep.GrossProfit = primary
		case fieldGrossLoss:
			rep.GrossLoss = primary
		case fieldWinRate:
			if hasSecondary {
				rep.WinRatePct = secondary
			} else {
				rep.WinRatePct = primary
			}
		case fieldHistoryQuality:
			rep.HistoryQuality = primary
			rep.Recognized++
		}
	}
	return rep
}
