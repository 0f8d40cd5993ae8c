package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/heimdex/heimdex-editor/internal/channel"
	"github.com/heimdex/heimdex-editor/internal/export"
	"github.com/heimdex/heimdex-editor/internal/logging"
)

const (
	wsWriteWait       = 30 * time.Second
	wsMaxMessageBytes = 1 << 20

	// kindBadRequest marks a request that could not be decoded at all.
	kindBadRequest = "BadRequest"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 64 * 1024,
	CheckOrigin:     checkOrigin,
}

// checkOrigin admits loopback browser origins and, for clients that send no
// Origin at all, loopback peers.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return isLoopbackRemoteAddr(r.RemoteAddr)
	}
	return isAllowedOrigin(origin)
}

// wsSink writes events to one websocket connection. gorilla allows a single
// concurrent writer, and job goroutines emit from several goroutines.
type wsSink struct {
	conn   *websocket.Conn
	logger *slog.Logger

	mu     sync.Mutex
	broken bool
}

func (s *wsSink) Emit(e channel.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken {
		return
	}
	s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := s.conn.WriteJSON(e); err != nil {
		s.broken = true
		s.logger.Warn("dropping events for closed channel", "type", e.Type, "job_id", e.JobID, "error", err)
	}
}

func wsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the HTTP error.
			cfg.Logger.Warn("websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		requestID, _ := r.Context().Value(RequestIDKey).(string)
		logger := logging.WithRequestID(logging.WithComponent(cfg.Logger, "channel"), requestID)
		sink := &wsSink{conn: conn, logger: logger}

		jobCtx := cfg.JobContext
		if jobCtx == nil {
			jobCtx = context.Background()
		}
		stop := context.AfterFunc(jobCtx, func() { conn.Close() })
		defer stop()

		logger.Info("channel opened", "remote", r.RemoteAddr)
		conn.SetReadLimit(wsMaxMessageBytes)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Warn("channel closed unexpectedly", "error", err)
				}
				logger.Info("channel closed")
				return
			}
			handleChannelRequest(jobCtx, cfg, data, sink, logger)
		}
	}
}

// handleChannelRequest answers one UI request. Anything refused before a job
// exists is reported as an exportRejected event; once started, the job itself
// emits exactly one exportComplete or exportFailed.
func handleChannelRequest(ctx context.Context, cfg ServerConfig, data []byte, sink channel.Sink, logger *slog.Logger) {
	req, err := channel.DecodeRequest(data)
	if err != nil {
		sink.Emit(channel.Rejected(kindBadRequest, err.Error()))
		return
	}

	switch req.Type {
	case channel.TypeCancelExport:
		if !cfg.Orchestrator.Cancel() {
			logger.Debug("cancel requested with no export running")
		}

	case channel.TypeStartExport:
		start := export.StartRequest{SourceRef: req.SourceRef}
		if len(req.Timeline) == 0 {
			_, tl, err := cfg.Session.Snapshot()
			if errors.Is(err, ErrNoTimeline) {
				sink.Emit(channel.Rejected(export.KindInvalidTimeline, "no timeline in request or session"))
				return
			}
			start.Timeline = tl
		} else if start.Timeline, err = req.BuildTimeline(); err != nil {
			sink.Emit(channel.Rejected(export.KindOf(err), err.Error()))
			return
		}

		jobID, err := cfg.Orchestrator.Start(ctx, start, sink)
		if err != nil {
			logger.Info("export rejected", "kind", export.KindOf(err), "error", err)
			sink.Emit(channel.Rejected(export.KindOf(err), err.Error()))
			return
		}
		logger.Info("export requested", "job_id", jobID, "source", logging.SanitizePath(req.SourceRef))
	}
}
