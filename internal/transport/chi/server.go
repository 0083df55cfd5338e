package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	chirouter "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/precis-labs/precis/internal/domain"
	logpkg "github.com/precis-labs/precis/internal/logger"
	"github.com/precis-labs/precis/internal/text"
	healthuc "github.com/precis-labs/precis/internal/usecase/health"
	pipelineuc "github.com/precis-labs/precis/internal/usecase/pipeline"
)

// Error codes returned in JSON error responses.
const (
	codeBadRequest           = "bad_request"
	codeInvalidRequest       = "invalid_request"
	codeFetchFailed          = "fetch_failed"
	codeExtractionEmpty      = "extraction_empty"
	codeProviderError        = "provider_error"
	codeMalformedModelOutput = "malformed_model_output"
	codeInternalError        = "internal_error"
)

// Pipeline runs summarization and answer requests.
type Pipeline interface {
	Summarize(ctx context.Context, req pipelineuc.Request) (domain.Summary, error)
	StreamSummary(ctx context.Context, req pipelineuc.Request, emitter pipelineuc.Emitter) error
	StreamAnswer(ctx context.Context, req pipelineuc.Request, emitter pipelineuc.Emitter) error
}

// Health aggregates component health checks.
type Health interface {
	Check(ctx context.Context) healthuc.Report
}

// Server exposes the summarization pipeline over HTTP.
type Server struct {
	pipeline Pipeline
	health   Health
	logger   *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(pipeline Pipeline, health Health, logger *zap.Logger) *Server {
	return &Server{pipeline: pipeline, health: health, logger: logger}
}

// Routes registers all endpoints on the given router.
func (s *Server) Routes(r chirouter.Router) {
	r.Post("/v1/summaries", s.handleSummarize)
	r.Post("/v1/summaries/stream", s.handleSummaryStream)
	r.Post("/v1/answers/stream", s.handleAnswerStream)
	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)
}

// summaryRequest is the JSON body shared by all three POST endpoints.
// Question is required only by the answers endpoint.
type summaryRequest struct {
	URL         string              `json:"url"`
	Title       string              `json:"title,omitempty"`
	DomSnapshot *domain.DomSnapshot `json:"domSnapshot,omitempty"`
	Question    string              `json:"question,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (pipelineuc.Request, bool) {
	var req summaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return pipelineuc.Request{}, false
	}
	if req.URL == "" || !text.IsHTTPProtocol(req.URL) {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "url must be reachable over http or https")
		return pipelineuc.Request{}, false
	}
	return pipelineuc.Request{
		URL:         req.URL,
		Title:       req.Title,
		DomSnapshot: req.DomSnapshot,
		Question:    req.Question,
	}, true
}

// handleSummarize handles POST /v1/summaries (strict structured mode).
func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	summary, err := s.pipeline.Summarize(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// handleSummaryStream handles POST /v1/summaries/stream (degraded text mode).
func (s *Server) handleSummaryStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}
	s.stream(w, r, req, s.pipeline.StreamSummary)
}

// handleAnswerStream handles POST /v1/answers/stream.
func (s *Server) handleAnswerStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "question is required")
		return
	}
	s.stream(w, r, req, s.pipeline.StreamAnswer)
}

func (s *Server) stream(
	w http.ResponseWriter,
	r *http.Request,
	req pipelineuc.Request,
	run func(context.Context, pipelineuc.Request, pipelineuc.Emitter) error,
) {
	sw, err := newStreamWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeInternalError, "streaming unsupported")
		return
	}

	// The pipeline emits the terminal event itself, error included.
	if err := run(r.Context(), req, sw); err != nil {
		logpkg.FromContext(r.Context()).Warn("Stream ended with error",
			zap.String("url", req.URL), zap.Error(err))
	}
}

// handleHealth handles GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// handleMetrics handles GET /metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
	case errors.Is(err, domain.ErrFetchFailed):
		writeError(w, http.StatusBadGateway, codeFetchFailed, domain.ErrFetchFailed.Error())
	case errors.Is(err, domain.ErrExtractionEmpty):
		writeError(w, http.StatusUnprocessableEntity, codeExtractionEmpty, domain.ErrExtractionEmpty.Error())
	case errors.Is(err, domain.ErrMalformedModelOutput):
		writeError(w, http.StatusBadGateway, codeMalformedModelOutput, domain.ErrMalformedModelOutput.Error())
	case errors.Is(err, domain.ErrProviderError):
		writeError(w, http.StatusBadGateway, codeProviderError, domain.ErrProviderError.Error())
	default:
		s.logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
