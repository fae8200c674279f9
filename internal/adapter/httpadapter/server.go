package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/traffic-analysis/internal/domain"
	"github.com/couchcryptid/traffic-analysis/internal/ml"
	"github.com/couchcryptid/traffic-analysis/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	maxRequestBytes = 1 << 20
	maxUploadBytes  = 64 << 20
)

// Analyzer is the pipeline surface the API serves.
type Analyzer interface {
	sharedobs.ReadinessChecker
	Analyze(ctx context.Context, path string, mode pipeline.Mode) (pipeline.Report, error)
	Latest() (pipeline.Report, bool)
	Models() []ml.Model
}

// Server exposes health, readiness, metrics and the analysis API.
type Server struct {
	httpServer *http.Server
	analyzer   Analyzer
	dataDir    string
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /api routes. Paths named in /api/analyze are resolved inside dataDir.
func NewServer(addr, dataDir string, analyzer Analyzer, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 2 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		analyzer: analyzer,
		dataDir:  dataDir,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(analyzer))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /api/upload-csv", s.handleUpload)
	mux.HandleFunc("GET /api/report", s.handleReport)
	mux.HandleFunc("GET /api/indicators", s.handleIndicators)
	mux.HandleFunc("GET /api/breakdown", s.handleBreakdown)
	mux.HandleFunc("GET /api/ml", s.handleModels)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type analyzeRequest struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
}

// handleAnalyze runs one analysis. A failed analysis is still a 200 carrying a
// success:false report; only malformed requests are rejected.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	if !filepath.IsLocal(req.Path) {
		writeError(w, http.StatusBadRequest, "path must be relative to the data directory")
		return
	}
	mode, err := pipeline.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.analyze(w, r, filepath.Join(s.dataDir, req.Path), mode)
}

// handleUpload analyzes a CSV sent as the request body. The mode comes from
// the "mode" query parameter.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	mode, err := pipeline.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	f, err := os.CreateTemp("", "traffic-upload-*.csv")
	if err != nil {
		s.logger.Error("create upload file failed", "error", err)
		writeError(w, http.StatusInternalServerError, "cannot store upload")
		return
	}
	defer os.Remove(f.Name())

	_, copyErr := io.Copy(f, http.MaxBytesReader(w, r.Body, maxUploadBytes))
	closeErr := f.Close()
	if copyErr != nil {
		writeError(w, http.StatusBadRequest, "read upload: "+copyErr.Error())
		return
	}
	if closeErr != nil {
		s.logger.Error("store upload failed", "error", closeErr)
		writeError(w, http.StatusInternalServerError, "cannot store upload")
		return
	}

	s.analyze(w, r, f.Name(), mode)
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request, path string, mode pipeline.Mode) {
	report, err := s.analyzer.Analyze(r.Context(), path, mode)
	if err != nil {
		s.logger.Warn("analysis request failed", "path", path, "error", err)
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleReport(w http.ResponseWriter, _ *http.Request) {
	report, ok := s.analyzer.Latest()
	if !ok {
		writeError(w, http.StatusNotFound, errNoReport.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleIndicators(w http.ResponseWriter, _ *http.Request) {
	report, _ := s.analyzer.Latest()
	writeJSON(w, http.StatusOK, report.Indicators)
}

func (s *Server) handleBreakdown(w http.ResponseWriter, _ *http.Request) {
	report, ok := s.analyzer.Latest()
	if !ok || report.Breakdown.Levels == nil {
		writeJSON(w, http.StatusOK, domain.EmptyBreakdown())
		return
	}
	writeJSON(w, http.StatusOK, report.Breakdown)
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	report, _ := s.analyzer.Latest()
	writeJSON(w, http.StatusOK, pipeline.Summaries(report.MLPerformance, s.analyzer.Models()))
}

var errNoReport = errors.New("no analysis has been run yet")

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}
