// Package server exposes the pipeline over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/docent-ai/docent/internal/rag"
)

// Config holds HTTP server configuration.
type Config struct {
	Port string
	// MaxCrawlDepth is applied when a crawl request omits max_depth.
	MaxCrawlDepth int
}

// Server wires the echo router to the pipeline.
type Server struct {
	echo     *echo.Echo
	pipeline *rag.Pipeline
	config   *Config
	logger   *slog.Logger
}

// New creates the HTTP server with CORS, recovery, and request logging
// middleware, and registers all routes.
func New(pipeline *rag.Pipeline, cfg *Config, logger *slog.Logger) (*Server, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("pipeline cannot be nil")
	}
	if cfg == nil {
		cfg = &Config{Port: "8000", MaxCrawlDepth: 2}
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Info("http request",
				"method", c.Request().Method,
				"uri", c.Request().RequestURI,
				"status", c.Response().Status,
				"duration", time.Since(start),
			)

			return err
		}
	})

	s := &Server{
		echo:     e,
		pipeline: pipeline,
		config:   cfg,
		logger:   logger,
	}
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/", s.handleStatus)
	s.echo.POST("/crawl", s.handleCrawl)
	s.echo.POST("/chat", s.handleChat)
	s.echo.POST("/upload", s.handleUpload)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := ":" + s.config.Port
	s.logger.Info("starting http server", "addr", addr)
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
