// Package server exposes the transcription pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/fmueller/moji/internal/metrics"
	"github.com/fmueller/moji/internal/pipeline"
	"github.com/fmueller/moji/internal/progress"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	DefaultAddr           = "127.0.0.1:8080"
	DefaultMaxUploadBytes = 200 << 20

	healthPath  = "/healthz"
	metricsPath = "/metrics"
)

// Transcriber is the part of *pipeline.Orchestrator the handlers need.
type Transcriber interface {
	Transcribe(ctx context.Context, req pipeline.Request, sink progress.Sink) (string, error)
}

// ModelStatus reports the shared model's lifecycle state.
type ModelStatus interface {
	State() pipeline.ModelState
}

type Config struct {
	Addr string
	// MaxUploadBytes caps the multipart request body.
	MaxUploadBytes int64
	// UploadDir receives uploads for the duration of a request. Empty means
	// os.TempDir().
	UploadDir         string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

type Deps struct {
	Transcriber Transcriber
	Models      ModelStatus
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	Logger      *zap.Logger
}

type Server struct {
	cfg    Config
	router *gin.Engine
	logger *zap.Logger
}

func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Transcriber == nil {
		return nil, errors.New("transcriber is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 10 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	h := &handlers{
		transcriber:    deps.Transcriber,
		models:         deps.Models,
		metrics:        deps.Metrics,
		uploadDir:      cfg.UploadDir,
		maxUploadBytes: cfg.MaxUploadBytes,
		logger:         logger,
	}

	router := gin.New()
	router.Use(requestID(), accessLog(logger), instrument(deps.Metrics), gin.Recovery())

	router.GET(healthPath, h.health)
	if deps.Gatherer != nil {
		router.GET(metricsPath, gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/api/v1")
	v1.GET("/languages", h.languages)
	v1.POST("/transcriptions", h.createTranscription)

	return &Server{cfg: cfg, router: router, logger: logger}, nil
}

// Handler returns the router, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then drains in-flight requests for up to
// ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, listener)
}

func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", listener.Addr().String()))
		errCh <- httpServer.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
