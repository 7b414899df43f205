package stress

import (
	"os"
	"path/filepath"
	"sort"
	"time"
)

// TickCoverage reports whether the simulator holds real per-month tick
// data for a window, since "History Quality 100%" can still mean the
// terminal synthesized ticks rather than replaying real ones.
type TickCoverage struct {
	Available      bool
	Server         string
	TickDir        string
	MonthsNeeded   []string
	MonthsPresent  []string
	MonthsMissing  []string
	TicksDatUsed   bool
	CoverageOK     bool
	Error          string
}

func monthID(t time.Time) string {
	return t.Format("200601")
}

func iterMonthIDs(start, end time.Time) []string {
	var months []string
	y, m := start.Year(), int(start.Month())
	endY, endM := end.Year(), int(end.Month())
	for y < endY || (y == endY && m <= endM) {
		months = append(months, monthIDFromParts(y, m))
		m++
		if m > 12 {
			m = 1
			y++
		}
	}
	return months
}

func monthIDFromParts(year, month int) string {
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).Format("200601")
}

// findTickSymbolDir locates <dataPath>/bases/<server>/ticks/<SYMBOL>,
// preferring the server directory with the most substantial tick store
// when more than one broker/server subtree exists under the same data
// path (best-effort: MT5 doesn't expose which server is "current").
func findTickSymbolDir(dataPath, symbol string) (tickDir, server string, ok bool) {
	basesDir := filepath.Join(dataPath, "bases")
	entries, err := os.ReadDir(basesDir)
	if err != nil {
		return "", "", false
	}
	sym := canonicalSymbol(symbol)
	if sym == "" {
		return "", "", false
	}

	type candidate struct {
		score [3]int64
		dir   string
		server string
	}
	var candidates []candidate
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(basesDir, e.Name(), "ticks", sym)
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}
		tkcFiles, _ := filepath.Glob(filepath.Join(dir, "*.tkc"))
		var tkcSize int64
		for _, f := range tkcFiles {
			if fi, err := os.Stat(f); err == nil {
				tkcSize += fi.Size()
			}
		}
		var ticksDatSize int64
		if fi, err := os.Stat(filepath.Join(dir, "ticks.dat")); err == nil {
			ticksDatSize = fi.Size()
		}
		candidates = append(candidates, candidate{
			score:  [3]int64{int64(len(tkcFiles)), tkcSize, ticksDatSize},
			dir:    dir,
			server: e.Name(),
		})
	}
	if len(candidates) == 0 {
		return "", "", false
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i].score, candidates[j].score
		for k := range a {
			if a[k] != b[k] {
				return a[k] > b[k]
			}
		}
		return false
	})
	return candidates[0].dir, candidates[0].server, true
}

// CheckTickFileCoverage validates that a per-month .tkc real-tick file
// exists for every month spanning [from, to]; ticks.dat (the live cache)
// only counts as coverage for the current calendar month.
func CheckTickFileCoverage(dataPath, symbol string, from, to time.Time, now time.Time) TickCoverage {
	tickDir, server, ok := findTickSymbolDir(dataPath, symbol)
	if !ok {
		return TickCoverage{Error: "tick directory not found"}
	}

	needed := iterMonthIDs(from, to)
	present := make([]string, 0, len(needed))
	missingSet := map[string]bool{}
	var missing []string
	for _, mid := range needed {
		if _, err := os.Stat(filepath.Join(tickDir, mid+".tkc")); err == nil {
			present = append(present, mid)
		} else {
			missing = append(missing, mid)
			missingSet[mid] = true
		}
	}

	ticksDatUsed := false
	liveMonth := monthID(now)
	endMonth := monthID(to)
	if endMonth == liveMonth && missingSet[endMonth] {
		if fi, err := os.Stat(filepath.Join(tickDir, "ticks.dat")); err == nil && fi.Size() > 0 {
			missing = removeString(missing, endMonth)
			ticksDatUsed = true
		}
	}

	return TickCoverage{
		Available:     true,
		Server:        server,
		TickDir:       tickDir,
		MonthsNeeded:  needed,
		MonthsPresent: present,
		MonthsMissing: missing,
		TicksDatUsed:  ticksDatUsed,
		CoverageOK:    len(missing) == 0,
	}
}

func removeString(ss []string, target string) []string {
	out := ss[:0]
	for _, s := range ss {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}
