package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"trendradar/internal/observability"
	"trendradar/internal/orchestrator"
	"trendradar/internal/pipeline"
	"trendradar/internal/scheduler"
)

// Server holds the scheduled components and their reporting state.
type Server struct {
	logger    *zap.Logger
	reports   *pipeline.ReportPipeline
	scheduler *scheduler.Service
	started   time.Time
	clock     func() time.Time

	// State
	mu              sync.Mutex
	lastReportRun   time.Time
	lastDataVersion string
	lastReportError string
	reportRuns      int
}

// NewServer creates a server writing reports with reports.
func NewServer(logger *zap.Logger, reports *pipeline.ReportPipeline) *Server {
	return &Server{
		logger:  logger,
		reports: reports,
		started: time.Now(),
		clock:   time.Now,
	}
}

// afterRun logs the run outcome and regenerates the report files.
func (s *Server) afterRun(ctx context.Context, result *orchestrator.RunResult) {
	fields := []zap.Field{
		zap.String("run_id", result.RunID),
		zap.String("status", result.Status()),
		zap.Int("recategorized", result.Recategorized),
		zap.Int("keys_processed", result.KeysProcessed),
		zap.Int("failed_keys", len(result.FailedKeys)),
		zap.Int("breakout_metas", result.BreakoutMetas),
		zap.Duration("duration", result.Duration),
	}
	if result.Breakout != nil {
		fields = append(fields,
			zap.Int("clusters", len(result.Breakout.Clusters)),
			zap.Int("tokens_flagged", result.Breakout.TokensFlagged))
	}
	s.logger.Info("run completed", fields...)

	out, err := s.reports.Run(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReportRun = s.clock()
	if err != nil {
		s.lastReportError = err.Error()
		s.logger.Error("report generation failed", zap.Error(err))
		return
	}
	s.reportRuns++
	s.lastReportError = ""
	s.lastDataVersion = out.DataVersion
	s.logger.Info("report written", zap.Strings("files", out.Files), zap.String("data_version", out.DataVersion))
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	// Status endpoint
	mux.HandleFunc("/status", s.handleStatus)

	return mux
}

// ListenAndServe serves Handler on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("starting HTTP server", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status          string           `json:"status"`
	Uptime          string           `json:"uptime"`
	Started         time.Time        `json:"started"`
	Scheduler       scheduler.Status `json:"scheduler"`
	ReportRuns      int              `json:"report_runs"`
	LastReportRun   time.Time        `json:"last_report_run"`
	LastDataVersion string           `json:"last_data_version,omitempty"`
	LastReportError string           `json:"last_report_error,omitempty"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var sched scheduler.Status
	if s.scheduler != nil {
		sched = s.scheduler.Status()
	}

	s.mu.Lock()
	resp := StatusResponse{
		Status:          "running",
		Uptime:          s.clock().Sub(s.started).Round(time.Second).String(),
		Started:         s.started,
		Scheduler:       sched,
		ReportRuns:      s.reportRuns,
		LastReportRun:   s.lastReportRun,
		LastDataVersion: s.lastDataVersion,
		LastReportError: s.lastReportError,
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
