package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadWithNoFileUsesBuiltInDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Thresholds.MinTrades != 50 {
		t.Fatalf("Thresholds.MinTrades = %d, want 50", cfg.Thresholds.MinTrades)
	}
	if cfg.Thresholds.MinProfitFactor != 1.5 {
		t.Fatalf("Thresholds.MinProfitFactor = %v, want 1.5", cfg.Thresholds.MinProfitFactor)
	}
	if cfg.MCConfig.Iterations != 10000 {
		t.Fatalf("MCConfig.Iterations = %d, want 10000", cfg.MCConfig.Iterations)
	}
	if len(cfg.StressSuite.RollingDays) != 1 || cfg.StressSuite.RollingDays[0] != 30 {
		t.Fatalf("StressSuite.RollingDays = %v, want [30]", cfg.StressSuite.RollingDays)
	}
	if cfg.RunsDir != "./runs" {
		t.Fatalf("RunsDir = %q, want ./runs", cfg.RunsDir)
	}
	if cfg.Port != 8080 {
		t.Fatalf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.LeaderboardPassesPerWorkflow != 30 {
		t.Fatalf("LeaderboardPassesPerWorkflow = %d, want 30", cfg.LeaderboardPassesPerWorkflow)
	}
}

func TestLoadConfigFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
server:
  port: 9090
gate:
  minTrades: 75
  minProfitFactor: 2.0
stress:
  rollingDays: [7, 30, 90]
simulator:
  deposit: 25000
  currency: GBP
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != 9090 {
		t.Fatalf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.Thresholds.MinTrades != 75 {
		t.Fatalf("Thresholds.MinTrades = %d, want 75", cfg.Thresholds.MinTrades)
	}
	if cfg.Thresholds.MinProfitFactor != 2.0 {
		t.Fatalf("Thresholds.MinProfitFactor = %v, want 2.0", cfg.Thresholds.MinProfitFactor)
	}
	if len(cfg.StressSuite.RollingDays) != 3 {
		t.Fatalf("len(StressSuite.RollingDays) = %d, want 3", len(cfg.StressSuite.RollingDays))
	}
	if cfg.Deposit != 25000 {
		t.Fatalf("Deposit = %v, want 25000", cfg.Deposit)
	}
	if cfg.Currency != "GBP" {
		t.Fatalf("Currency = %q, want GBP", cfg.Currency)
	}
	// Values the file didn't touch still fall back to defaults.
	if cfg.Thresholds.MaxDrawdownPct != 25.0 {
		t.Fatalf("Thresholds.MaxDrawdownPct = %v, want 25.0 (untouched default)", cfg.Thresholds.MaxDrawdownPct)
	}
}

func TestLoadReturnsErrorForAMissingConfigFile(t *testing.T) {
	if _, err := Load("/does/not/exist.yaml"); err == nil {
		t.Fatal("expected an error for a nonexistent config file")
	}
}

func TestLoadParsesNamedTerminals(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
terminal:
  defaultId: sim1
terminals:
  sim1:
    path: C:\Program Files\Terminal1\terminal64.exe
    dataPath: C:\Users\trader\AppData\Roaming\MetaQuotes\Terminal\sim1
  sim2:
    path: C:\Program Files\Terminal2\terminal64.exe
    dataPath: C:\Users\trader\AppData\Roaming\MetaQuotes\Terminal\sim2
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(cfg.Terminals) != 2 {
		t.Fatalf("len(Terminals) = %d, want 2", len(cfg.Terminals))
	}
	sim1, ok := cfg.Terminals["sim1"]
	if !ok {
		t.Fatal("expected a sim1 terminal entry")
	}
	if !sim1.Default {
		t.Fatal("expected sim1 to be marked Default since it matches DefaultTerminalID")
	}
	if cfg.Terminals["sim2"].Default {
		t.Fatal("expected sim2 to not be marked Default")
	}
}

func TestRunTimeoutConvertsSecondsToDuration(t *testing.T) {
	cfg := Config{RunTimeoutSeconds: 90}
	if cfg.RunTimeout().Seconds() != 90 {
		t.Fatalf("RunTimeout() = %v, want 90s", cfg.RunTimeout())
	}
}
