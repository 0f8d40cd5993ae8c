package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/heimdex/heimdex-editor/internal/engine"
	"github.com/heimdex/heimdex-editor/internal/export"
	"github.com/heimdex/heimdex-editor/internal/history"
	"github.com/heimdex/heimdex-editor/internal/playback"
)

// DurationProber measures a source when a timeline is created from it.
type DurationProber interface {
	ProbeDuration(ctx context.Context, ref string) (float64, error)
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port           int
	Version        string
	Orchestrator   *export.Orchestrator
	Prober         DurationProber
	Doctor         *engine.CachedDoctor
	Repository     history.Repository
	Session        *Session
	PlaybackServer playback.Service
	Logger         *slog.Logger
	StartTime      time.Time
	DeviceID       string
	FrameRate      float64

	// JobContext parents every export started over the websocket. Jobs outlive
	// the connection that started them and stop when it is cancelled.
	JobContext context.Context
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting requests. Hijacked websocket connections are not
// tracked by http.Server; they end when the job context is cancelled.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
