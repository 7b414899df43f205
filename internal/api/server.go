// Package api exposes the workflow pipeline over HTTP and WebSocket:
// starting a run, resuming it past its three externally-supplied pauses
// (optimization ranges, pass selection, EA fix),
// inspecting status, and reading the cross-workflow leaderboard/board
// views the aggregator builds.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/eastress/robustness-pipeline/internal/aggregator"
	"github.com/eastress/robustness-pipeline/internal/domain"
	"github.com/eastress/robustness-pipeline/internal/gate"
	"github.com/eastress/robustness-pipeline/internal/metrics"
	"github.com/eastress/robustness-pipeline/internal/pipeline"
	"github.com/eastress/robustness-pipeline/internal/stage"
	"github.com/eastress/robustness-pipeline/internal/store"
)

// ServerConfig configures the HTTP/WebSocket listener.
type ServerConfig struct {
	Host         string
	Port         int
	WebSocketPath string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the HTTP/WebSocket API server for the robustness pipeline.
type Server struct {
	logger     *zap.Logger
	config     ServerConfig
	router     *mux.Router
	httpServer *http.Server
	upgrader   websocket.Upgrader

	executor   *pipeline.Executor
	store      *store.Store
	thresholds gate.Thresholds
	hub        *Hub
	metrics    *metrics.Metrics
}

func declaredStepNames() []string {
	names := make([]string, 0, len(stage.Ordered))
	for _, n := range stage.Ordered {
		names = append(names, string(n))
	}
	return names
}

// NewServer creates a new API server around an already-built pipeline
// executor and store.
func NewServer(logger *zap.Logger, config ServerConfig, executor *pipeline.Executor, st *store.Store, thresholds gate.Thresholds) *Server {
	server := &Server{
		logger:     logger,
		config:     config,
		router:     mux.NewRouter(),
		executor:   executor,
		store:      st,
		thresholds: thresholds,
		hub:        NewHub(logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	go server.hub.Run()
	server.setupRoutes()
	return server
}

// SetMetrics attaches a metrics sink and exposes it on GET /metrics.
// Optional: a server with none simply has no metrics endpoint.
func (s *Server) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
	s.router.Handle("/metrics", m.Handler()).Methods("GET")
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/v1/health", s.handleHealth).Methods("GET")

	s.router.HandleFunc("/api/v1/workflows", s.handleListWorkflows).Methods("GET")
	s.router.HandleFunc("/api/v1/workflows", s.handleStartWorkflow).Methods("POST")
	s.router.HandleFunc("/api/v1/workflows/{id}", s.handleGetWorkflow).Methods("GET")
	s.router.HandleFunc("/api/v1/workflows/{id}/summary", s.handleGetSummary).Methods("GET")
	s.router.HandleFunc("/api/v1/workflows/{id}/resume/params", s.handleResumeWithParams).Methods("POST")
	s.router.HandleFunc("/api/v1/workflows/{id}/resume/passes", s.handleResumeWithSelectedPasses).Methods("POST")
	s.router.HandleFunc("/api/v1/workflows/{id}/resume/eafix", s.handleResumeAfterEAFix).Methods("POST")
	s.router.HandleFunc("/api/v1/workflows/{id}/dashboard", s.handleGetDashboard).Methods("GET")

	s.router.HandleFunc("/api/v1/leaderboard", s.handleGetLeaderboard).Methods("GET")
	s.router.HandleFunc("/api/v1/boards", s.handleGetBoards).Methods("GET")

	s.router.HandleFunc(s.config.WebSocketPath, s.handleWebSocket)
}

// Start runs the HTTP server until it errors or is shut down.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	handler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("starting robustness pipeline API server", zap.String("addr", addr))
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	states, err := s.store.ListWorkflows()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"workflows": states,
		"count":     len(states),
	})
}

// startWorkflowRequest is the payload handleStartWorkflow decodes.
type startWorkflowRequest struct {
	WorkflowID     string `json:"workflowId"`
	EAName         string `json:"eaName"`
	EAPath         string `json:"eaPath"`
	TerminalID     string `json:"terminalId"`
	Symbol         string `json:"symbol"`
	Timeframe      string `json:"timeframe"`
	MaxFixAttempts int    `json:"maxFixAttempts"`
}

func (s *Server) handleStartWorkflow(w http.ResponseWriter, r *http.Request) {
	var req startWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.WorkflowID == "" {
		req.WorkflowID = uuid.New().String()
	}
	if req.MaxFixAttempts <= 0 {
		req.MaxFixAttempts = 3
	}

	state, err := s.executor.StartWorkflow(req.WorkflowID, req.EAName, req.EAPath, req.TerminalID, req.Symbol, req.Timeframe, req.MaxFixAttempts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.publishWorkflowEvent(state)
	writeJSON(w, http.StatusAccepted, state)
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	state, err := s.store.Load(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	state, err := s.store.Load(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, state.Summarize(declaredStepNames()))
}

func (s *Server) handleResumeWithParams(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var ranges []domain.OptimizationRange
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&ranges); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	state, err := s.executor.ResumeWithParams(id, ranges)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.publishWorkflowEvent(state)
	writeJSON(w, http.StatusOK, state)
}

type selectedPassesRequest struct {
	PassNumbers []int `json:"passNumbers"`
}

func (s *Server) handleResumeWithSelectedPasses(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req selectedPassesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	state, err := s.executor.ResumeWithSelectedPasses(id, req.PassNumbers)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.publishWorkflowEvent(state)
	writeJSON(w, http.StatusOK, state)
}

type eaFixRequest struct {
	Restart bool `json:"restart"`
}

func (s *Server) handleResumeAfterEAFix(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req eaFixRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	state, err := s.executor.ResumeAfterEAFix(id, req.Restart)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.publishWorkflowEvent(state)
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleGetDashboard(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var feed map[string]interface{}
	if err := s.store.LoadDashboard(id, &feed); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, feed)
}

func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := aggregator.BuildLeaderboard(s.store, s.thresholds, 0, time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (s *Server) handleGetBoards(w http.ResponseWriter, r *http.Request) {
	boards, err := aggregator.BuildBoards(s.store, declaredStepNames(), time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, boards)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(uuid.New().String(), s.hub, conn)
	s.hub.register <- client

	go client.WritePump()
	go client.ReadPump()
}

// publishWorkflowEvent notifies subscribers of "workflows" and
// "workflows:<id>" that a workflow's state changed, so a dashboard can
// poll the REST endpoints only on demand instead of continuously.
func (s *Server) publishWorkflowEvent(state *domain.WorkflowState) {
	s.hub.PublishToChannel("workflows", MsgTypeWorkflowUpdate, state)
	s.hub.PublishToChannel("workflows:"+state.WorkflowID, MsgTypeWorkflowUpdate, state)
}
