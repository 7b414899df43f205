// Package store durably persists workflow state and its side-car result
// files, one JSON document per workflow under a runs directory, the way
// engine/state.py's StateManager does.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/eastress/robustness-pipeline/internal/domain"
	"go.uber.org/zap"
)

// Store owns the on-disk form of every workflow: one workflow_<id>.json
// document per workflow, plus large-result side-car files under
// <runsDir>/<workflowId>/<name>.json (optimization passes, backtest
// batches, dashboard data) that would otherwise bloat the state document.
type Store struct {
	mu      sync.Mutex
	logger  *zap.Logger
	runsDir string
}

// New builds a Store rooted at runsDir, creating it if absent.
func New(logger *zap.Logger, runsDir string) (*Store, error) {
	if err := os.MkdirAll(runsDir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create runs dir: %w", err)
	}
	return &Store{logger: logger.Named("store"), runsDir: runsDir}, nil
}

func (s *Store) statePath(workflowID string) string {
	return filepath.Join(s.runsDir, "workflow_"+workflowID+".json")
}

func (s *Store) resultsDir(workflowID string) string {
	return filepath.Join(s.runsDir, workflowID)
}

// Save persists state to its workflow_<id>.json document via a
// write-temp-then-rename, so a crash mid-write never leaves a truncated
// or corrupt state file for a later resume to trip over.
func (s *Store) Save(state *domain.WorkflowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal state: %w", err)
	}

	final := s.statePath(state.WorkflowID)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("store: write temp state file: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("store: rename state file: %w", err)
	}
	return nil
}

// Load reads back a workflow's state document.
func (s *Store) Load(workflowID string) (*domain.WorkflowState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.statePath(workflowID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("store: workflow not found: %s", workflowID)
		}
		return nil, fmt.Errorf("store: read state file: %w", err)
	}
	var state domain.WorkflowState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("store: parse state file: %w", err)
	}
	return &state, nil
}

// SaveResults writes a large side-car result document (optimization
// passes, backtest batches, dashboard data.json) under the workflow's own
// results directory, keeping the main state document small.
func (s *Store) SaveResults(workflowID, name string, data interface{}) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.resultsDir(workflowID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("store: create results dir: %w", err)
	}

	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("store: marshal results %q: %w", name, err)
	}

	final := filepath.Join(dir, name+".json")
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, encoded, 0o644); err != nil {
		return "", fmt.Errorf("store: write temp results file: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return "", fmt.Errorf("store: rename results file: %w", err)
	}
	return final, nil
}

// LoadResults reads back a side-car result document into dest.
func (s *Store) LoadResults(workflowID, name string, dest interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.resultsDir(workflowID), name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("store: read results %q: %w", name, err)
	}
	return json.Unmarshal(data, dest)
}

// writeStaticJSON atomically writes data as indented JSON to
// <runsDir>/<subdir>/data.json, the shape every aggregator-owned
// presentation artifact (dashboards, leaderboard, boards) shares.
func (s *Store) writeStaticJSON(subdir string, data interface{}) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.runsDir, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("store: create %s dir: %w", subdir, err)
	}

	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("store: marshal %s data: %w", subdir, err)
	}

	final := filepath.Join(dir, "data.json")
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, encoded, 0o644); err != nil {
		return "", fmt.Errorf("store: write temp %s file: %w", subdir, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return "", fmt.Errorf("store: rename %s file: %w", subdir, err)
	}
	return final, nil
}

// readStaticJSON is writeStaticJSON's read-side counterpart.
func (s *Store) readStaticJSON(subdir string, dest interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.runsDir, subdir, "data.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("store: read %s: %w", subdir, err)
	}
	return json.Unmarshal(data, dest)
}

// SaveDashboard persists a workflow's dashboard feed to
// runs/dashboards/<id>/data.json, the path the state-store layout
// reserves for presentation artifacts.
func (s *Store) SaveDashboard(workflowID string, data interface{}) (string, error) {
	return s.writeStaticJSON(filepath.Join("dashboards", workflowID), data)
}

// LoadDashboard reads back a workflow's persisted dashboard feed.
func (s *Store) LoadDashboard(workflowID string, dest interface{}) error {
	return s.readStaticJSON(filepath.Join("dashboards", workflowID), dest)
}

// SaveLeaderboard persists the cross-workflow pass leaderboard to
// runs/leaderboard/data.json.
func (s *Store) SaveLeaderboard(data interface{}) (string, error) {
	return s.writeStaticJSON("leaderboard", data)
}

// SaveBoards persists the workflow-summary board index to
// runs/boards/data.json.
func (s *Store) SaveBoards(data interface{}) (string, error) {
	return s.writeStaticJSON("boards", data)
}

// ListWorkflows enumerates every workflow_*.json document, newest
// (by CreatedAt) first. Each document is decoded in full.
func (s *Store) ListWorkflows() ([]domain.WorkflowState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.runsDir)
	if err != nil {
		return nil, fmt.Errorf("store: read runs dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), "workflow_") && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	states := make([]domain.WorkflowState, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(s.runsDir, name))
		if err != nil {
			s.logger.Warn("skipping unreadable workflow file", zap.String("file", name), zap.Error(err))
			continue
		}
		var st domain.WorkflowState
		if err := json.Unmarshal(data, &st); err != nil {
			s.logger.Warn("skipping corrupt workflow file", zap.String("file", name), zap.Error(err))
			continue
		}
		states = append(states, st)
	}
	sort.SliceStable(states, func(i, j int) bool { return states[i].CreatedAt.After(states[j].CreatedAt) })
	return states, nil
}
