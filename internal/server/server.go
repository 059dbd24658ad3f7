// Package server exposes an OCR engine over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/bytes"
	"github.com/rs/zerolog"

	"ocr-service/internal/logger"
	"ocr-service/internal/ocr"
)

// DefaultMaxBodySize bounds request bodies when Config.MaxBodySize is empty.
const DefaultMaxBodySize = "32M"

// Config holds the HTTP listener settings.
type Config struct {
	// Addr is the host:port to listen on.
	Addr string

	// MaxBodySize is the largest accepted request body, e.g. "32M".
	MaxBodySize string

	// Preprocess enables image enhancement before recognition.
	Preprocess bool
}

// Server is the application context: one engine, one router, built once at
// startup and shared by all requests.
type Server struct {
	cfg          Config
	engine       ocr.Engine
	echo         *echo.Echo
	httpServer   *http.Server
	maxBodyBytes int64
	log          zerolog.Logger
}

// New builds the router for engine. It does not start listening.
func New(cfg Config, engine ocr.Engine) (*Server, error) {
	if engine == nil {
		return nil, errors.New("server: nil OCR engine")
	}
	if cfg.MaxBodySize == "" {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	limit, err := bytes.Parse(cfg.MaxBodySize)
	if err != nil {
		return nil, fmt.Errorf("server: invalid max body size %q: %w", cfg.MaxBodySize, err)
	}

	s := &Server{
		cfg:          cfg,
		engine:       engine,
		maxBodyBytes: limit,
		log:          logger.WithComponent("server"),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			event := s.log.Info()
			if v.Status >= http.StatusInternalServerError {
				event = s.log.Error()
			}
			event.
				Str("request_id", v.RequestID).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("HTTP request")
			return nil
		},
	}))
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		DisableStackAll: true,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			s.log.Error().
				Err(err).
				Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
				Str("uri", c.Request().RequestURI).
				Bytes("stack", stack).
				Msg("Recovered from panic")
			return err
		},
	}))
	e.Use(middleware.CORS())

	s.echo = e
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/", s.Home)
	s.echo.POST("/ocr", s.OCR)
}

// Handler returns the router, for use with httptest or a custom listener.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// ListenAndServe blocks serving requests until Shutdown is called.
// Handlers have no write deadline: a slow engine keeps its request open.
func (s *Server) ListenAndServe() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.echo,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.log.Info().
		Str("addr", s.cfg.Addr).
		Str("engine", s.engine.Name()).
		Bool("preprocess", s.cfg.Preprocess).
		Msg("HTTP server starting")

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen on %s: %w", s.cfg.Addr, err)
	}
	s.log.Info().Msg("HTTP server closed")
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// handleError renders errors that escape handlers, including recovered
// panics, so every reply stays JSON. Router errors keep their status code.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) && he.Code != http.StatusInternalServerError {
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			msg = m
		}
		err = c.JSON(he.Code, badRequestResponse{Error: msg})
	} else {
		s.log.Error().Err(err).Str("uri", c.Request().RequestURI).Msg("Unhandled error")
		err = failure(c, err)
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to write error response")
	}
}
