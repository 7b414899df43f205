package stage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/eastress/robustness-pipeline/internal/domain"
	"github.com/eastress/robustness-pipeline/internal/gate"
	"github.com/eastress/robustness-pipeline/internal/montecarlo"
	"github.com/eastress/robustness-pipeline/internal/simulator"
	"github.com/eastress/robustness-pipeline/internal/store"
	"github.com/eastress/robustness-pipeline/internal/stress"
)

// fakeRunner is a scripted simulator.Runner: each test configures exactly
// the HTML/XML payloads its stage under test will read back, rather than
// standing up the real child-process adapter.
type fakeRunner struct {
	compileOK bool
	optXML    string
	htmlByReportName map[string]string
	dealsHTML string
	err       error
}

func (f *fakeRunner) Compile(ctx context.Context, terminal simulator.TerminalConfig, eaSourcePath string) (simulator.CompileResult, error) {
	return simulator.CompileResult{Success: f.compileOK}, nil
}

func (f *fakeRunner) Optimize(ctx context.Context, req simulator.Request) (simulator.Result, error) {
	if f.err != nil {
		return simulator.Result{}, f.err
	}
	dir := req.Terminal.FilesPath()
	if dir == "" {
		dir = os.TempDir()
	}
	_ = os.MkdirAll(dir, 0o755)
	path := filepath.Join(dir, req.ReportName+".xml")
	if err := os.WriteFile(path, []byte(f.optXML), 0o644); err != nil {
		return simulator.Result{}, err
	}
	return simulator.Result{Success: true, XMLPath: path}, nil
}

func (f *fakeRunner) Backtest(ctx context.Context, req simulator.Request) (simulator.Result, error) {
	if f.err != nil {
		return simulator.Result{}, f.err
	}
	dir := req.Terminal.FilesPath()
	if dir == "" {
		dir = os.TempDir()
	}
	_ = os.MkdirAll(dir, 0o755)
	html, has := f.htmlByReportName[req.ReportName]
	if !has {
		html = f.htmlByReportName[""]
	}
	path := filepath.Join(dir, req.ReportName+".htm")
	content := html
	if f.dealsHTML != "" {
		content += f.dealsHTML
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return simulator.Result{}, err
	}
	return simulator.Result{Success: true, HTMLPath: path}, nil
}

// recordOf wraps a StageResult the way the executor would before tests
// stitch it into WorkflowState.Steps, without pulling in the pipeline
// package itself.
func recordOf(res domain.StageResult) domain.StageRecord {
	status := "passed"
	if !res.Success {
		status = "failed"
	}
	return domain.StageRecord{Status: status, Result: res}
}

func testEnv(t *testing.T, sim simulator.Runner) (*Env, *domain.WorkflowState) {
	t.Helper()
	st, err := store.New(zap.NewNop(), t.TempDir())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	env := &Env{
		Logger:                zap.NewNop(),
		Sim:                   sim,
		Terminal:              simulator.TerminalConfig{Name: "test", DataPath: t.TempDir()},
		Store:                 st,
		Thresholds:            gate.DefaultThresholds(),
		MCConfig:              montecarlo.DefaultConfig(),
		StressSuite:           stress.DefaultSuiteConfig(),
		WorkDir:               t.TempDir(),
		InjectorMinTrades:     30,
		Deposit:               10000,
		Currency:              "USD",
		Leverage:              100,
		OptimizationCriterion: 0,
		FromDate:              "2024.01.01",
		ToDate:                "2024.06.01",
	}
	state := domain.NewWorkflowState("TestEA_20240101_000000", "TestEA", "/fake/TestEA.mq5", "test", "EURUSD", "H1", 3)
	return env, state
}

const singleRunHTMLFixture = `<html><body><table>
<tr><td><b>Total Net Profit:</b></td><td><b>2 500.00 (25.00%)</b></td>
<td><b>Gross Profit:</b></td><td><b>4 000.00</b></td></tr>
<tr><td><b>Profit Factor:</b></td><td><b>1.80</b></td>
<td><b>Equity Drawdown Maximal:</b></td><td><b>450.00 (8.00%)</b></td></tr>
<tr><td><b>Total Trades:</b></td><td><b>60</b></td></tr>
</table></body></html>`

const optimizationXMLFixture = `<?xml version="1.0"?>
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
<Row>
<Cell><Data ss:Type="Number">1</Data></Cell>
<Cell><Data ss:Type="Number">1200</Data></Cell>
<Cell><Data ss:Type="Number">1200</Data></Cell>
<Cell><Data ss:Type="Number">1.9</Data></Cell>
<Cell><Data ss:Type="Number">10</Data></Cell>
<Cell><Data ss:Type="Number">80</Data></Cell>
</Row>
<Row>
<Cell><Data ss:Type="Number">2</Data></Cell>
<Cell><Data ss:Type="Number">900</Data></Cell>
<Cell><Data ss:Type="Number">900</Data></Cell>
<Cell><Data ss:Type="Number">1.6</Data></Cell>
<Cell><Data ss:Type="Number">15</Data></Cell>
<Cell><Data ss:Type="Number">55</Data></Cell>
</Row>
</Table>
</Worksheet>
</Workbook>
`
