// Package simulator adapts the external market-simulation terminal: a
// registry of configured terminal installs, the INI file grammar that
// drives a compile/backtest/optimize run, and a Runner that shells out
// to the terminal executable and recovers its report files (spec §2,
// C2). Ported from engine/terminals.py and modules/optimizer.py, with
// the child-process lifecycle generalized to the teacher's zap-logged,
// mutex-guarded struct idiom.
package simulator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// TerminalConfig describes one configured terminal install.
type TerminalConfig struct {
	Name     string `json:"-"`
	Path     string `json:"path"`
	DataPath string `json:"data_path"`
	Default  bool   `json:"default"`
}

// ExpertsPath, IncludePath, LogsPath, FilesPath are the well-known
// subfolders under a terminal's data directory.
func (t TerminalConfig) ExpertsPath() string { return filepath.Join(t.DataPath, "MQL5", "Experts") }
func (t TerminalConfig) IncludePath() string { return filepath.Join(t.DataPath, "MQL5", "Include") }
func (t TerminalConfig) LogsPath() string    { return filepath.Join(t.DataPath, "MQL5", "Logs") }
func (t TerminalConfig) FilesPath() string   { return filepath.Join(t.DataPath, "MQL5", "Files") }
func (t TerminalConfig) TesterPath() string  { return filepath.Join(t.DataPath, "Tester") }

// TerminalRegistry holds every configured terminal, loaded once from a
// JSON config file, with one marked active by default.
type TerminalRegistry struct {
	mu        sync.RWMutex
	logger    *zap.Logger
	terminals map[string]TerminalConfig
	active    string
}

// NewTerminalRegistry loads terminal configurations from configPath.
// Keys beginning with "_" are treated as comments/instructions and
// skipped, matching the original JSON config's convention.
func NewTerminalRegistry(logger *zap.Logger, configPath string) (*TerminalRegistry, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("simulator: read terminal config: %w", err)
	}

	var raw map[string]TerminalConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("simulator: parse terminal config: %w", err)
	}

	reg := &TerminalRegistry{
		logger:    logger.Named("terminal-registry"),
		terminals: make(map[string]TerminalConfig, len(raw)),
	}
	for name, cfg := range raw {
		if strings.HasPrefix(name, "_") {
			continue
		}
		cfg.Name = name
		reg.terminals[name] = cfg
		if cfg.Default && reg.active == "" {
			reg.active = name
		}
	}
	return reg, nil
}

// Get returns the named terminal, or the active terminal when name is
// empty. Errors if no terminal can be resolved.
func (r *TerminalRegistry) Get(name string) (TerminalConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "" {
		name = r.active
	}
	if name == "" {
		return TerminalConfig{}, fmt.Errorf("simulator: no terminal specified and no default terminal set")
	}
	cfg, ok := r.terminals[name]
	if !ok {
		return TerminalConfig{}, fmt.Errorf("simulator: terminal not found: %s (available: %s)", name, r.names())
	}
	return cfg, nil
}

// SetActive changes which terminal Get("") resolves to.
func (r *TerminalRegistry) SetActive(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.terminals[name]; !ok {
		return fmt.Errorf("simulator: terminal not found: %s (available: %s)", name, r.names())
	}
	r.active = name
	return nil
}

func (r *TerminalRegistry) names() []string {
	names := make([]string, 0, len(r.terminals))
	for n := range r.terminals {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ValidationIssue is one problem found validating a terminal install.
type ValidationIssue string

// ValidationReport is the result of checking a terminal's paths exist.
type ValidationReport struct {
	Terminal TerminalConfig
	Issues   []ValidationIssue
}

func (v ValidationReport) Valid() bool { return len(v.Issues) == 0 }

// Validate checks that the named terminal's executable, data path, and
// Experts folder exist on disk.
func (r *TerminalRegistry) Validate(name string) (ValidationReport, error) {
	cfg, err := r.Get(name)
	if err != nil {
		return ValidationReport{}, err
	}

	var issues []ValidationIssue
	if _, err := os.Stat(cfg.Path); err != nil {
		issues = append(issues, ValidationIssue(fmt.Sprintf("terminal executable not found: %s", cfg.Path)))
	}
	if _, err := os.Stat(cfg.DataPath); err != nil {
		issues = append(issues, ValidationIssue(fmt.Sprintf("data path not found: %s", cfg.DataPath)))
	}
	if _, err := os.Stat(cfg.ExpertsPath()); err != nil {
		issues = append(issues, ValidationIssue(fmt.Sprintf("experts folder not found: %s", cfg.ExpertsPath())))
	}
	return ValidationReport{Terminal: cfg, Issues: issues}, nil
}

// EAFile is one discovered EA source file.
type EAFile struct {
	Name     string // file stem
	Filename string
	Path     string
	ModTime  int64
}

// FindEAs lists every .mq5 file under the named terminal's Experts
// folder, newest first.
func (r *TerminalRegistry) FindEAs(name string) ([]EAFile, error) {
	cfg, err := r.Get(name)
	if err != nil {
		return nil, err
	}

	root := cfg.ExpertsPath()
	if _, err := os.Stat(root); err != nil {
		return nil, nil
	}

	var eas []EAFile
	walkErr := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".mq5") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		eas = append(eas, EAFile{
			Name:     strings.TrimSuffix(d.Name(), filepath.Ext(d.Name())),
			Filename: d.Name(),
			Path:     path,
			ModTime:  info.ModTime().Unix(),
		})
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("simulator: scan experts folder: %w", walkErr)
	}

	sort.Slice(eas, func(i, j int) bool { return eas[i].ModTime > eas[j].ModTime })
	return eas, nil
}
