package chi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsight/internal/domain"
	domset "github.com/kailas-cloud/shopsight/internal/domain/settings"
	"github.com/kailas-cloud/shopsight/internal/metrics"
	healthuc "github.com/kailas-cloud/shopsight/internal/usecase/health"
	"github.com/kailas-cloud/shopsight/internal/usecase/imagesearch"
	telemetryuc "github.com/kailas-cloud/shopsight/internal/usecase/telemetry"
)

// Searcher runs an image search.
type Searcher interface {
	Search(ctx context.Context, in imagesearch.Input) (*imagesearch.Output, error)
}

// ConfigService reads and mutates the runtime tuning.
type ConfigService interface {
	Get() domset.AdminConfig
	Update(p domset.Patch) (domset.AdminConfig, error)
	Reset() domset.AdminConfig
}

// TelemetryService exposes the telemetry buffer.
type TelemetryService interface {
	List(limit int) []domain.TelemetryEvent
	Clear()
	Export() telemetryuc.Export
	AddFeedback(requestID string, fb domain.Feedback) error
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Options configure the HTTP surface.
type Options struct {
	AdminToken     string
	MaxUploadBytes int64
}

// Server holds the HTTP handlers.
type Server struct {
	search    Searcher
	config    ConfigService
	telemetry TelemetryService
	health    HealthChecker
	logger    *zap.Logger
	opts      Options
}

// NewServer creates an HTTP API server.
func NewServer(
	search Searcher,
	config ConfigService,
	telemetry TelemetryService,
	health HealthChecker,
	logger *zap.Logger,
	opts Options,
) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	return &Server{
		search:    search,
		config:    config,
		telemetry: telemetry,
		health:    health,
		logger:    logger,
		opts:      opts,
	}
}

// Router builds the chi router with the full middleware chain.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(JSONRecoverer(s.logger))
	r.Use(WideEvent(s.logger))
	r.Use(metrics.Middleware())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, domain.CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, domain.CodeValidation, "method not allowed")
	})

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api", func(r chi.Router) {
		r.Post("/search/image", s.SearchImage)
		r.Post("/search/feedback", s.SubmitFeedback)

		r.Route("/admin", func(r chi.Router) {
			r.Use(AdminAuthMiddleware(s.opts.AdminToken))
			r.Get("/config", s.GetConfig)
			r.Patch("/config", s.UpdateConfig)
			r.Post("/config/reset", s.ResetConfig)
			r.Get("/telemetry", s.ListTelemetry)
			r.Delete("/telemetry", s.ClearTelemetry)
			r.Get("/telemetry/export", s.ExportTelemetry)
		})
	})
	return r
}

// searchData is the data member of a successful search response.
type searchData struct {
	Query   imagesearch.Query        `json:"query"`
	Results []domain.ScoredCandidate `json:"results"`
}

// SearchImage handles POST /api/search/image.
func (s *Server) SearchImage(w http.ResponseWriter, r *http.Request) {
	form, err := parseSearchForm(w, r, s.opts.MaxUploadBytes)
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	out, err := s.search.Search(r.Context(), imagesearch.Input{
		Image:           form.image,
		Prompt:          form.prompt,
		RequestID:       chiMiddleware.GetReqID(r.Context()),
		FallbackSignals: form.fallback,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, searchData{Query: out.Query, Results: out.Results}, out.Meta)
}

// feedbackRequest is the body of POST /api/search/feedback.
type feedbackRequest struct {
	RequestID string        `json:"requestId" validate:"required"`
	ProductID string        `json:"productId" validate:"required"`
	Rating    domain.Rating `json:"rating" validate:"required,oneof=thumbs_up thumbs_down"`
}

// SubmitFeedback handles POST /api/search/feedback.
func (s *Server) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		handleDomainError(w, r, err)
		return
	}
	if err := domain.ValidateStruct(&req); err != nil {
		handleDomainError(w, r, err)
		return
	}

	fb := domain.Feedback{ProductID: req.ProductID, Rating: req.Rating}
	if err := s.telemetry.AddFeedback(req.RequestID, fb); err != nil {
		handleDomainError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, req, metaFor(r))
}

// GetConfig handles GET /api/admin/config.
func (s *Server) GetConfig(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, s.config.Get(), metaFor(r))
}

// UpdateConfig handles PATCH /api/admin/config.
func (s *Server) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var p domset.Patch
	if err := decodeJSON(r, &p); err != nil {
		handleDomainError(w, r, err)
		return
	}

	cfg, err := s.config.Update(p)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	s.logger.Info("admin config updated", zap.String("request_id", chiMiddleware.GetReqID(r.Context())))
	writeData(w, http.StatusOK, cfg, metaFor(r))
}

// ResetConfig handles POST /api/admin/config/reset.
func (s *Server) ResetConfig(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, s.config.Reset(), metaFor(r))
}

// ListTelemetry handles GET /api/admin/telemetry?limit=N.
func (s *Server) ListTelemetry(w http.ResponseWriter, r *http.Request) {
	var limit *int
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		handleDomainError(w, r, validationError("limit must be an integer"))
		return
	}
	n := 0
	if limit != nil {
		if *limit < 1 {
			handleDomainError(w, r, validationError("limit must be positive"))
			return
		}
		n = *limit
	}

	events := s.telemetry.List(n)
	meta := metaFor(r)
	count := len(events)
	meta.Count = &count
	writeData(w, http.StatusOK, events, meta)
}

// ClearTelemetry handles DELETE /api/admin/telemetry.
func (s *Server) ClearTelemetry(w http.ResponseWriter, _ *http.Request) {
	s.telemetry.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// ExportTelemetry handles GET /api/admin/telemetry/export as a JSON download.
func (s *Server) ExportTelemetry(w http.ResponseWriter, _ *http.Request) {
	export := s.telemetry.Export()
	filename := fmt.Sprintf("telemetry-export-%d.json", export.ExportedAt.Unix())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	writeJSON(w, http.StatusOK, export)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	report := s.health.Check(ctx)

	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.NewError(domain.ErrValidation, "invalid request body", err)
	}
	return nil
}
