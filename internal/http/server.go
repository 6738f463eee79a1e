// Package http provides the HTTP API for insightd.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/insightd/internal/insight"
	"github.com/fyrsmithlabs/insightd/internal/logging"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = "1M"

// Extractor is the engine surface served over HTTP.
type Extractor interface {
	ExtractActions(ctx context.Context, conversationID string, forceRefresh bool) ([]insight.ExtractedAction, error)
	ExtractDecisions(ctx context.Context, conversationID string, forceRefresh bool) ([]insight.ExtractedDecision, error)
	PriorityMessages(ctx context.Context, conversationID string) ([]insight.PriorityMessage, error)
	ScorePriority(text string) insight.PriorityResult
	Invalidate(ctx context.Context, conversationID string, category insight.Category) error
}

// Server provides HTTP endpoints for insightd.
type Server struct {
	echo    *echo.Echo
	engine  Extractor
	logger  *zap.Logger
	config  *Config
	metrics *HTTPMetrics
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP server.
func NewServer(engine Extractor, logger *zap.Logger, cfg *Config) (*Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "127.0.0.1",
			Port: 9191,
		}
	}
	logger = logger.Named("http")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		engine:  engine,
		logger:  logger,
		config:  cfg,
		metrics: NewHTTPMetrics(logger),
	}

	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(maxBodyBytes))
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))
		},
	}))
	e.Use(s.metrics.MetricsMiddleware())
	e.Use(s.requestLogger)

	s.registerRoutes()
	return s, nil
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		logging.With(c.Request().Context(), s.logger).Info("http request",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
		)
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/conversations/:id/actions", s.handleActions)
	v1.GET("/conversations/:id/decisions", s.handleDecisions)
	v1.GET("/conversations/:id/priorities", s.handlePriorities)
	v1.DELETE("/conversations/:id/cache/:category", s.handleInvalidate)
	v1.POST("/priority", s.handleScorePriority)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleActions(c echo.Context) error {
	refresh, ok := parseRefresh(c.QueryParam("refresh"))
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "refresh must be a boolean"})
	}
	id := c.Param("id")
	items, err := s.engine.ExtractActions(c.Request().Context(), id, refresh)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, newListResponse(id, items))
}

func (s *Server) handleDecisions(c echo.Context) error {
	refresh, ok := parseRefresh(c.QueryParam("refresh"))
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "refresh must be a boolean"})
	}
	id := c.Param("id")
	items, err := s.engine.ExtractDecisions(c.Request().Context(), id, refresh)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, newListResponse(id, items))
}

func (s *Server) handlePriorities(c echo.Context) error {
	id := c.Param("id")
	items, err := s.engine.PriorityMessages(c.Request().Context(), id)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, newListResponse(id, items))
}

func (s *Server) handleInvalidate(c echo.Context) error {
	category, err := insight.ParseCategory(c.Param("category"))
	if err != nil {
		return s.fail(c, err)
	}
	if err := s.engine.Invalidate(c.Request().Context(), c.Param("id"), category); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleScorePriority(c echo.Context) error {
	var req ScoreRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	return c.JSON(http.StatusOK, s.engine.ScorePriority(req.Text))
}

func parseRefresh(raw string) (refresh, ok bool) {
	if raw == "" {
		return false, true
	}
	refresh, err := strconv.ParseBool(raw)
	return refresh, err == nil
}

// fail maps engine errors to responses.
func (s *Server) fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, insight.ErrEmptyConversationID), errors.Is(err, insight.ErrUnknownCategory):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, insight.ErrMessagesUnavailable):
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:     insight.ErrMessagesUnavailable.Error(),
			Retryable: true,
		})
	default:
		logging.With(c.Request().Context(), s.logger).Error("request failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
