package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/himanishpuri/AutoPESQ/internal/observe"
	"github.com/himanishpuri/AutoPESQ/pkg/autopesq"
	"github.com/himanishpuri/AutoPESQ/pkg/logger"
	"github.com/himanishpuri/AutoPESQ/pkg/models"
	"github.com/himanishpuri/AutoPESQ/pkg/utils"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service autopesq.Service
	config  *ServerConfig
	log     autopesq.Logger
	metrics *observe.Metrics
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Addr           string
	DBPath         string
	UploadDir      string
	SampleRate     int
	MaxUploadMB    int
	ScoreTimeout   time.Duration
	AllowedOrigins []string
}

// NewServer creates a new server instance
func NewServer(service autopesq.Service, config *ServerConfig, metrics *observe.Metrics) *Server {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Server{
		service: service,
		config:  config,
		log:     logger.GetLogger().With("http"),
		metrics: metrics,
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// respondPipelineError maps a classified pipeline error onto a status code.
func (s *Server) respondPipelineError(w http.ResponseWriter, err error) {
	code := statusForError(err)
	resp := ErrorResponse{
		Error:   http.StatusText(code),
		Message: err.Error(),
		Code:    code,
	}
	if kind := models.KindOf(err); kind != 0 {
		resp.Kind = kind.String()
	}
	s.respondJSON(w, code, resp)
}

func statusForError(err error) int {
	switch models.KindOf(err) {
	case models.ConfigurationError:
		return http.StatusBadRequest
	case models.AlignmentError:
		return http.StatusUnprocessableEntity
	case models.ScoringError:
		return http.StatusBadGateway
	case models.TimeoutError:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "AutoPESQ API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":    "GET /health",
			"metrics":   "GET /metrics",
			"score":     "POST /api/score",
			"runs":      "GET /api/runs",
			"getRun":    "GET /api/runs/{id}",
			"deleteRun": "DELETE /api/runs/{id}",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"time":        time.Now().Format(time.RFC3339),
		"sample_rate": s.config.SampleRate,
		"mode":        models.ModeForRate(s.config.SampleRate).Flag(),
	})
}

// handleListRuns handles GET /api/runs
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	runs, err := s.service.ListRuns(limit)
	if err != nil {
		s.log.Errorf("Failed to list runs: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve runs")
		return
	}

	dtos := make([]RunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = newRunDTO(run)
	}
	s.respondJSON(w, http.StatusOK, ListRunsResponse{
		Runs:  dtos,
		Count: len(dtos),
	})
}

// handleGetRun handles GET /api/runs/{id}
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request, id string) {
	run, err := s.service.GetRun(id)
	if err != nil {
		s.respondLookupError(w, id, err)
		return
	}
	s.respondJSON(w, http.StatusOK, newRunDTO(*run))
}

// handleDeleteRun handles DELETE /api/runs/{id}
func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.service.DeleteRun(id); err != nil {
		s.respondLookupError(w, id, err)
		return
	}

	s.log.Infof("Deleted run %s", id)
	s.respondJSON(w, http.StatusOK, DeleteRunResponse{
		Message: "Run deleted successfully",
		ID:      id,
	})
}

func (s *Server) respondLookupError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, autopesq.ErrNotFound) {
		s.log.Warnf("Run not found: %s", id)
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("Run %s not found", id))
		return
	}
	s.log.Errorf("Run lookup %s failed: %v", id, err)
	s.respondError(w, http.StatusInternalServerError, "Failed to access run history")
}

// handleScore handles POST /api/score (multipart: reference, degraded)
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	timeout := s.config.ScoreTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	maxBytes := int64(s.config.MaxUploadMB) << 20
	if maxBytes <= 0 {
		maxBytes = 32 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		s.log.Errorf("Failed to parse form: %v", err)
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	refPath, refName, err := s.saveUpload(r, "reference")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	degPath, degName, err := s.saveUpload(r, "degraded")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.log.Infof("Scoring %s against %s", degName, refName)
	report, err := s.service.ScoreFiles(ctx, refPath, degPath)
	if err != nil {
		s.log.Warnf("Scoring failed: %v", err)
		s.respondPipelineError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, newScoreResponse(report, refName, degName))
}

// saveUpload copies the multipart file field into the upload directory and
// returns its path and the client's file name. Uploads are kept so the run
// history keeps pointing at real files.
func (s *Server) saveUpload(r *http.Request, field string) (path, name string, err error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", "", fmt.Errorf("%s file is required", field)
	}
	defer file.Close()

	name = filepath.Base(header.Filename)
	if err := utils.MakeDir(s.config.UploadDir); err != nil {
		return "", "", err
	}
	path = filepath.Join(s.config.UploadDir, fmt.Sprintf("%s_%d_%s", field, time.Now().UnixNano(), sanitize(name)))
	if err := copyUpload(path, file); err != nil {
		s.log.Errorf("Failed to save %s upload: %v", field, err)
		return "", "", fmt.Errorf("failed to save %s upload", field)
	}
	return path, name, nil
}

func copyUpload(path string, src multipart.File) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(path)
		return err
	}
	return out.Close()
}

// sanitize keeps letters, digits, dots, dashes and underscores.
func sanitize(name string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
	if clean == "" || clean == "." || clean == ".." {
		return "upload.wav"
	}
	return clean
}

// handleRuns routes requests to /api/runs
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListRuns(w, r)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleRun routes requests to /api/runs/{id}
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if id == "" || strings.Contains(id, "/") {
		s.respondError(w, http.StatusBadRequest, "Run ID required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetRun(w, r, id)
	case http.MethodDelete:
		s.handleDeleteRun(w, r, id)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleScoreRoute routes requests to /api/score
func (s *Server) handleScoreRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.handleScore(w, r)
}
