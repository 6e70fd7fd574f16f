// Package httpapi exposes ingestion and question answering over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"edubot/internal/domain"
	"edubot/internal/service"
	"edubot/internal/session"
)

// Session is the HTTP-facing subset of the session.
type Session interface {
	IngestURLs(ctx context.Context, fields []string, progress service.ProgressFunc) (*domain.IngestReport, error)
	IngestUploads(ctx context.Context, uploads []domain.Upload, progress service.ProgressFunc) (*domain.IngestReport, error)
	Ask(ctx context.Context, question string) (*domain.Answer, error)
	State() session.State
	HasIndex() bool
}

// Server provides HTTP endpoints for edubot.
type Server struct {
	echo    *echo.Echo
	session Session
	logger  *zap.Logger
	config  *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host           string
	Port           int
	MaxUploadBytes int64
	// Gatherer backs /metrics. Nil selects the default registry.
	Gatherer prometheus.Gatherer
}

// NewServer creates a new HTTP server.
func NewServer(s Session, logger *zap.Logger, cfg *Config) (*Server, error) {
	if s == nil {
		return nil, fmt.Errorf("session cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "127.0.0.1", Port: 8501}
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 50 << 20
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return nil
		}
	})
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dK", max(1, cfg.MaxUploadBytes>>10))))

	srv := &Server{echo: e, session: s, logger: logger, config: cfg}
	srv.registerRoutes()
	return srv, nil
}

// Echo exposes the router for tests and extra routes.
func (s *Server) Echo() *echo.Echo { return s.echo }

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{})))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/session", s.handleSession)
	v1.POST("/ingest/urls", s.handleIngestURLs)
	v1.POST("/ingest/files", s.handleIngestFiles)
	v1.POST("/query", s.handleQuery)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// SessionResponse is the response body for GET /api/v1/session.
type SessionResponse struct {
	State    string `json:"state"`
	HasIndex bool   `json:"has_index"`
}

// IngestURLsRequest is the request body for POST /api/v1/ingest/urls.
type IngestURLsRequest struct {
	URLs []string `json:"urls"`
}

// IngestResponse describes a finished ingestion.
type IngestResponse struct {
	Kind       string   `json:"kind"`
	Stages     []string `json:"stages"`
	Documents  int      `json:"documents"`
	Chunks     int      `json:"chunks"`
	Sources    []string `json:"sources"`
	Summary    string   `json:"summary,omitempty"`
	IndexPath  string   `json:"index_path"`
	DurationMS int64    `json:"duration_ms"`
}

// QueryRequest is the request body for POST /api/v1/query.
type QueryRequest struct {
	Question string `json:"question"`
}

// QueryResponse carries either an answer or the no-index notice.
type QueryResponse struct {
	Answer    string   `json:"answer,omitempty"`
	Sources   []string `json:"sources,omitempty"`
	NoSources bool     `json:"no_sources,omitempty"`
	NoIndex   bool     `json:"no_index,omitempty"`
	Message   string   `json:"message,omitempty"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleSession(c echo.Context) error {
	return c.JSON(http.StatusOK, SessionResponse{
		State:    s.session.State().String(),
		HasIndex: s.session.HasIndex(),
	})
}

func (s *Server) handleIngestURLs(c echo.Context) error {
	var req IngestURLsRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid ingest request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	var stages []string
	report, err := s.session.IngestURLs(c.Request().Context(), req.URLs, func(st service.Stage) {
		stages = append(stages, st.String())
	})
	if err != nil {
		return s.toHTTPError(err)
	}
	return c.JSON(http.StatusOK, newIngestResponse(report, stages))
}

func (s *Server) handleIngestFiles(c echo.Context) error {
	uploads, err := readMultipart(c)
	if err != nil {
		return s.toHTTPError(err)
	}

	var stages []string
	report, err := s.session.IngestUploads(c.Request().Context(), uploads, func(st service.Stage) {
		stages = append(stages, st.String())
	})
	if err != nil {
		return s.toHTTPError(err)
	}
	return c.JSON(http.StatusOK, newIngestResponse(report, stages))
}

func readMultipart(c echo.Context) ([]domain.Upload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			return nil, domain.ErrNoUploads
		}
		return nil, fmt.Errorf("%w: read upload: %w", domain.ErrLoad, err)
	}
	files := form.File["files"]
	uploads := make([]domain.Upload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %w", domain.ErrLoad, fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", domain.ErrLoad, fh.Filename, err)
		}
		uploads = append(uploads, domain.Upload{Name: fh.Filename, Content: data})
	}
	return uploads, nil
}

func (s *Server) handleQuery(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid query request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	answer, err := s.session.Ask(c.Request().Context(), req.Question)
	if errors.Is(err, domain.ErrNoIndex) {
		return c.JSON(http.StatusOK, QueryResponse{NoIndex: true, Message: service.NoIndexNotice})
	}
	if err != nil {
		return s.toHTTPError(err)
	}

	resp := QueryResponse{Answer: answer.Text, Sources: answer.Sources}
	if len(answer.Sources) == 0 {
		resp.NoSources = true
		resp.Message = service.NoSourcesNotice
	}
	return c.JSON(http.StatusOK, resp)
}

func newIngestResponse(r *domain.IngestReport, stages []string) IngestResponse {
	return IngestResponse{
		Kind:       r.Kind,
		Stages:     stages,
		Documents:  r.Documents,
		Chunks:     r.Chunks,
		Sources:    r.Sources,
		Summary:    r.Summary,
		IndexPath:  r.IndexPath,
		DurationMS: r.Duration.Milliseconds(),
	}
}

// toHTTPError maps domain errors onto status codes. Anything unclassified
// is a 500 whose detail stays in the log.
func (s *Server) toHTTPError(err error) error {
	switch {
	case domain.IsInputError(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrBusy):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrLoad), errors.Is(err, domain.ErrService):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	case errors.Is(err, domain.ErrStorage):
		s.logger.Error("index write failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
