package simulator

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eastress/robustness-pipeline/internal/metrics"
)

// Request is everything one compile/backtest/optimize invocation needs.
type Request struct {
	Terminal         TerminalConfig
	EAName           string // filename, e.g. "MyEA.ex5"
	INI              INIConfig
	ReportName       string
	Timeout          time.Duration
	ProgressInterval time.Duration
	OnProgress       func(string)
}

// Result is what a run produced: the report files it found (subject to
// the determinism rule below) and any errors.
type Result struct {
	Success        bool
	XMLPath        string
	ForwardXMLPath string
	HTMLPath       string
	Errors         []string
}

// Runner is the uniform interface both the real (child-process) adapter
// and the in-memory test double satisfy, so the pipeline executor never
// knows which one it's talking to.
type Runner interface {
	Compile(ctx context.Context, terminal TerminalConfig, eaSourcePath string) (CompileResult, error)
	Optimize(ctx context.Context, req Request) (Result, error)
	Backtest(ctx context.Context, req Request) (Result, error)
}

// CompileResult is the outcome of compiling an .mq5 source into .ex5.
type CompileResult struct {
	Success  bool
	ExitCode int
	LogPath  string
	Errors   []string
}

// RealRunner shells out to the terminal executable with a /config: INI
// file, the way the original engine drives MT5 (spec §2, ported from
// modules/optimizer.py:run_optimization and engine/terminals.py).
type RealRunner struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewRealRunner builds a Runner that actually launches the terminal.
func NewRealRunner(logger *zap.Logger) *RealRunner {
	return &RealRunner{logger: logger.Named("simulator-runner")}
}

// SetMetrics attaches a metrics sink. Optional: a RealRunner with none
// simply skips recording.
func (r *RealRunner) SetMetrics(m *metrics.Metrics) {
	r.metrics = m
}

const defaultRunTimeout = 2 * time.Hour
const defaultProgressInterval = 30 * time.Second

// mtimeSkewTolerance absorbs clock skew between this process starting
// the terminal and the terminal's own report-file timestamps.
const mtimeSkewTolerance = 2 * time.Second

func (r *RealRunner) Compile(ctx context.Context, terminal TerminalConfig, eaSourcePath string) (CompileResult, error) {
	startedAt := time.Now()
	result, err := r.compile(ctx, terminal, eaSourcePath)
	if r.metrics != nil {
		r.metrics.RecordSimulatorCall("compile", result.Success, time.Since(startedAt).Seconds())
	}
	return result, err
}

func (r *RealRunner) compile(ctx context.Context, terminal TerminalConfig, eaSourcePath string) (CompileResult, error) {
	logPath := eaSourcePath + ".compile.log"
	cmd := exec.CommandContext(ctx, terminal.Path, fmt.Sprintf("/compile:%s", eaSourcePath), fmt.Sprintf("/log:%s", logPath))
	terminateStuckProcesses(r.logger, terminal.Path)

	if err := cmd.Run(); err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return CompileResult{Success: false, ExitCode: exitCode, LogPath: logPath, Errors: []string{err.Error()}}, nil
	}

	logText, _ := os.ReadFile(logPath)
	if strings.Contains(string(logText), "error") {
		return CompileResult{Success: false, LogPath: logPath, Errors: []string{"compiler reported errors, see log"}}, nil
	}
	return CompileResult{Success: true, LogPath: logPath}, nil
}

func (r *RealRunner) Optimize(ctx context.Context, req Request) (Result, error) {
	startedAt := time.Now()
	result, err := r.run(ctx, req)
	if r.metrics != nil {
		r.metrics.RecordSimulatorCall("optimize", result.Success, time.Since(startedAt).Seconds())
	}
	return result, err
}

func (r *RealRunner) Backtest(ctx context.Context, req Request) (Result, error) {
	startedAt := time.Now()
	result, err := r.run(ctx, req)
	if r.metrics != nil {
		r.metrics.RecordSimulatorCall("backtest", result.Success, time.Since(startedAt).Seconds())
	}
	return result, err
}

func (r *RealRunner) run(ctx context.Context, req Request) (Result, error) {
	iniPath := filepath.Join(req.Terminal.FilesPath(), "optimization.ini")
	if err := os.MkdirAll(filepath.Dir(iniPath), 0o755); err != nil {
		return Result{}, fmt.Errorf("simulator: create files dir: %w", err)
	}
	if err := os.WriteFile(iniPath, []byte(BuildINI(req.INI)), 0o644); err != nil {
		return Result{}, fmt.Errorf("simulator: write ini: %w", err)
	}

	terminateStuckProcesses(r.logger, req.Terminal.Path)

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultRunTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	startedAt := time.Now()
	cmd := exec.CommandContext(runCtx, req.Terminal.Path, "/config:"+iniPath)
	if err := cmd.Start(); err != nil {
		return Result{Success: false, Errors: []string{fmt.Sprintf("failed to run terminal: %v", err)}}, nil
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	interval := req.ProgressInterval
	if interval <= 0 {
		interval = defaultProgressInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var waitErr error
loop:
	for {
		select {
		case waitErr = <-done:
			break loop
		case <-ticker.C:
			if req.OnProgress != nil {
				req.OnProgress(fmt.Sprintf("running: %s (%s elapsed)", req.ReportName, time.Since(startedAt).Round(time.Second)))
			}
		case <-runCtx.Done():
			_ = cmd.Process.Kill()
			return Result{Success: false, Errors: []string{fmt.Sprintf("run timed out after %s", timeout)}}, nil
		}
	}
	_ = waitErr // a non-zero exit is not itself fatal; the terminal can exit non-zero on ShutdownTerminal=1

	return r.collectResults(req, startedAt)
}

// collectResults implements the determinism rule: when ReportName is
// given, only an exact "<ReportName>.xml" match counts, and "most
// recent file in the directory" is never used as a substitute (spec §2).
func (r *RealRunner) collectResults(req Request, startedAt time.Time) (Result, error) {
	searchDirs := []string{
		req.Terminal.DataPath,
		req.Terminal.TesterPath(),
		filepath.Join(req.Terminal.TesterPath(), "reports"),
	}
	threshold := startedAt.Add(-mtimeSkewTolerance)

	reportBase := strings.TrimSpace(req.ReportName)
	if reportBase == "" {
		reportBase = strings.TrimSuffix(req.EAName, filepath.Ext(req.EAName)) + "_OPT"
	}

	xmlPath := latestMatch(searchDirs, reportBase+".xml", threshold)
	forwardPath := latestMatch(searchDirs, reportBase+".forward.xml", threshold)
	htmlPath := latestGlobMatch(searchDirs, reportBase+".htm*", threshold)

	if xmlPath == "" && req.ReportName != "" {
		return Result{Success: false, Errors: []string{
			fmt.Sprintf("optimization results not found for report_name: %s", reportBase),
		}}, nil
	}
	if xmlPath == "" {
		// Only when no report_name was pinned do we fall back to scanning
		// for any freshly-written, non-forward XML in the search dirs.
		xmlPath = latestGlobMatchExcluding(searchDirs, "*.xml", threshold, ".forward.xml")
	}
	if xmlPath == "" {
		return Result{Success: false, Errors: []string{"optimization results not found"}}, nil
	}

	return Result{
		Success:        true,
		XMLPath:        xmlPath,
		ForwardXMLPath: forwardPath,
		HTMLPath:       htmlPath,
	}, nil
}

func latestMatch(dirs []string, name string, threshold time.Time) string {
	var candidates []string
	for _, dir := range dirs {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.ModTime().Before(threshold) {
			candidates = append(candidates, p)
		}
	}
	return latestByMTime(candidates)
}

func latestGlobMatch(dirs []string, pattern string, threshold time.Time) string {
	var candidates []string
	for _, dir := range dirs {
		matches, _ := filepath.Glob(filepath.Join(dir, pattern))
		for _, m := range matches {
			if info, err := os.Stat(m); err == nil && !info.ModTime().Before(threshold) {
				candidates = append(candidates, m)
			}
		}
	}
	return latestByMTime(candidates)
}

func latestGlobMatchExcluding(dirs []string, pattern string, threshold time.Time, excludeSuffix string) string {
	var candidates []string
	for _, dir := range dirs {
		matches, _ := filepath.Glob(filepath.Join(dir, pattern))
		for _, m := range matches {
			if strings.HasSuffix(m, excludeSuffix) {
				continue
			}
			if info, err := os.Stat(m); err == nil && !info.ModTime().Before(threshold) {
				candidates = append(candidates, m)
			}
		}
	}
	return latestByMTime(candidates)
}

func latestByMTime(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	sort.Slice(paths, func(i, j int) bool {
		ii, _ := os.Stat(paths[i])
		jj, _ := os.Stat(paths[j])
		if ii == nil || jj == nil {
			return false
		}
		return ii.ModTime().After(jj.ModTime())
	})
	return paths[0]
}

// terminateStuckProcesses best-effort kills any previous instance of the
// terminal executable (matched by its path; by image name on Windows)
// before starting a new run; no other helper process is looked for. The
// way the original shells out to psutil for the same cleanup. Go has no
// portable process-by-executable-path enumeration in the stack's
// dependencies, so this uses the platform's own process-listing tool
// and swallows any failure exactly as the original does when psutil is
// unavailable: best-effort, never fatal to the run.
func terminateStuckProcesses(logger *zap.Logger, terminalExe string) {
	if runtime.GOOS == "windows" {
		_ = exec.Command("taskkill", "/F", "/IM", filepath.Base(terminalExe)).Run()
		return
	}
	_ = exec.Command("pkill", "-f", terminalExe).Run()
}
