package simulator

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
)

// InMemoryRunner is a deterministic test double for Runner: instead of
// launching a terminal, it synthesizes a spreadsheet-XML optimization
// report directly to disk at the path collectResults would have found,
// so the full report-parsing path can be exercised without the actual
// simulator binary.
type InMemoryRunner struct {
	Dir      string
	Seed     int64
	NumPasses int
}

// NewInMemoryRunner builds an in-memory runner that writes synthetic
// reports under dir.
func NewInMemoryRunner(dir string, seed int64, numPasses int) *InMemoryRunner {
	if numPasses <= 0 {
		numPasses = 20
	}
	return &InMemoryRunner{Dir: dir, Seed: seed, NumPasses: numPasses}
}

func (m *InMemoryRunner) Compile(ctx context.Context, terminal TerminalConfig, eaSourcePath string) (CompileResult, error) {
	return CompileResult{Success: true}, nil
}

func (m *InMemoryRunner) Optimize(ctx context.Context, req Request) (Result, error) {
	return m.writeReport(req)
}

func (m *InMemoryRunner) Backtest(ctx context.Context, req Request) (Result, error) {
	return m.writeReport(req)
}

func (m *InMemoryRunner) writeReport(req Request) (Result, error) {
	reportBase := req.ReportName
	if reportBase == "" {
		reportBase = "synthetic_OPT"
	}
	if err := os.MkdirAll(m.Dir, 0o755); err != nil {
		return Result{}, err
	}
	path := filepath.Join(m.Dir, reportBase+".xml")

	rng := rand.New(rand.NewSource(m.Seed))
	xml := synthesizeOptimizationXML(rng, m.NumPasses)
	if err := os.WriteFile(path, []byte(xml), 0o644); err != nil {
		return Result{}, err
	}
	return Result{Success: true, XMLPath: path}, nil
}

func synthesizeOptimizationXML(rng *rand.Rand, n int) string {
	header := `<?xml version="1.0"?>
<Workbook xmlns="urn:schemas-microsoft-com:office:spreadsheet">
<Worksheet ss:Name="Optimization Results">
<Table>
<Row>
<Cell><Data ss:Type="String">Pass</Data></Cell>
<Cell><Data ss:Type="String">Result</Data></Cell>
<Cell><Data ss:Type="String">Profit</Data></Cell>
<Cell><Data ss:Type="String">Profit Factor</Data></Cell>
<Cell><Data ss:Type="String">Equity DD %</Data></Cell>
<Cell><Data ss:Type="String">Trades</Data></Cell>
</Row>
`
	rows := ""
	for i := 1; i <= n; i++ {
		profit := 1000 + rng.Float64()*9000
		pf := 1.0 + rng.Float64()*2.0
		dd := 5 + rng.Float64()*30
		trades := 40 + rng.Intn(200)
		result := profit * pf / (dd + 1)
		rows += fmt.Sprintf(`<Row>
<Cell><Data ss:Type="Number">%d</Data></Cell>
<Cell><Data ss:Type="Number">%.2f</Data></Cell>
<Cell><Data ss:Type="Number">%.2f</Data></Cell>
<Cell><Data ss:Type="Number">%.2f</Data></Cell>
<Cell><Data ss:Type="Number">%.2f</Data></Cell>
<Cell><Data ss:Type="Number">%d</Data></Cell>
</Row>
`, i, result, profit, pf, dd, trades)
	}
	footer := "</Table>\n</Worksheet>\n</Workbook>\n"
	return header + rows + footer
}
