package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/heimdex/heimdex-editor/internal/export"
	"github.com/heimdex/heimdex-editor/internal/timeline"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))

		r.Route("/timeline", func(r chi.Router) {
			r.Post("/", createTimelineHandler(cfg))
			r.Get("/", getTimelineHandler(cfg))
			r.Post("/split", splitHandler(cfg))
			r.Post("/clips/{index}/toggle", toggleHandler(cfg))
			r.Get("/next-visible", nextVisibleHandler(cfg))
			r.Get("/edl", edlHandler(cfg))
		})

		r.Get("/exports", listExportsHandler(cfg))
		r.Post("/exports/cancel", cancelExportHandler(cfg))
		r.Get("/exports/{id}", getExportHandler(cfg))

		r.Get("/playback", playbackHandler(cfg))
		r.Head("/playback", playbackHandler(cfg))
		r.Get("/ws", wsHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  cfg.Version,
			UptimeS:  uptime,
			DeviceID: cfg.DeviceID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{State: "idle"}

		if cfg.Orchestrator != nil {
			if st, ok := cfg.Orchestrator.Status(); ok {
				job := StatusToResponse(st)
				switch {
				case !st.State.Terminal():
					resp.State = "exporting"
					resp.ActiveJob = &job
				case st.State == export.StateFailed:
					resp.State = "error"
					resp.LastError = st.ErrorMessage
					resp.LastJob = &job
				default:
					resp.LastJob = &job
				}
			}
		}

		if cfg.Doctor != nil {
			caps, err := cfg.Doctor.Get(r.Context())
			if err == nil && caps != nil {
				resp.Engine = &EngineStatusResponse{
					CanExport:      caps.CanExport(),
					CanProbe:       caps.CanProbe(),
					FFmpegVersion:  caps.FFmpeg.Version,
					FFprobeVersion: caps.FFprobe.Version,
					LastProbeAt:    caps.ProbedAt.Format(time.RFC3339),
				}
			}
		}

		if cfg.Session != nil {
			if src, tl, err := cfg.Session.Snapshot(); err == nil {
				resp.Timeline = &TimelineSummary{
					SourceRef:    src,
					Duration:     tl.Duration(),
					Clips:        tl.Len(),
					VisibleClips: len(tl.VisibleClipsInOrder()),
				}
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func createTimelineHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateTimelineRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		req.SourceRef = strings.TrimSpace(req.SourceRef)

		duration := req.Duration
		if duration == 0 {
			if req.SourceRef == "" {
				WriteError(w, http.StatusBadRequest, "duration or source_ref is required", "BAD_REQUEST")
				return
			}
			if cfg.Prober == nil {
				WriteError(w, http.StatusServiceUnavailable, "duration probing is unavailable", "ENGINE_UNAVAILABLE")
				return
			}
			d, err := cfg.Prober.ProbeDuration(r.Context(), req.SourceRef)
			if err != nil {
				cfg.Logger.Warn("duration probe failed", "error", err)
				WriteError(w, http.StatusUnprocessableEntity, "could not read source duration: "+err.Error(), "PROBE_FAILED")
				return
			}
			duration = d
		}

		tl, err := timeline.New(duration)
		if err != nil {
			writeEditError(w, err)
			return
		}
		cfg.Session.Reset(req.SourceRef, tl)
		WriteJSON(w, http.StatusCreated, TimelineToResponse(req.SourceRef, tl.Clone()))
	}
}

func getTimelineHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		src, tl, err := cfg.Session.Snapshot()
		if err != nil {
			writeEditError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, TimelineToResponse(src, tl))
	}
}

func splitHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SplitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.At == nil {
			WriteError(w, http.StatusBadRequest, "at is required", "BAD_REQUEST")
			return
		}

		src, tl, err := cfg.Session.Edit(func(tl *timeline.Timeline) error {
			return tl.Split(*req.At)
		})
		if err != nil {
			writeEditError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, TimelineToResponse(src, tl))
	}
}

func toggleHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			WriteError(w, http.StatusBadRequest, "clip index must be an integer", "BAD_REQUEST")
			return
		}

		src, tl, err := cfg.Session.Edit(func(tl *timeline.Timeline) error {
			return tl.ToggleVisibility(index)
		})
		if err != nil {
			writeEditError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, TimelineToResponse(src, tl))
	}
}

func nextVisibleHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		at, err := strconv.ParseFloat(r.URL.Query().Get("t"), 64)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "t must be a number", "BAD_REQUEST")
			return
		}
		_, tl, err := cfg.Session.Snapshot()
		if err != nil {
			writeEditError(w, err)
			return
		}

		resp := NextVisibleResponse{At: at}
		clip, idx, found := lo.FindIndexOf(tl.Clips(), func(c timeline.Clip) bool {
			return !c.Hidden && c.Range.Start > at
		})
		if found {
			c := ClipToResponse(clip, idx)
			resp.Clip = &c
		}
		if target, stop, ok := tl.SkipTarget(at); ok {
			resp.Skip = true
			resp.SkipTo = target
			resp.Stop = stop
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func edlHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		src, tl, err := cfg.Session.Snapshot()
		if err != nil {
			writeEditError(w, err)
			return
		}

		fps := cfg.FrameRate
		if v := r.URL.Query().Get("fps"); v != "" {
			if fps, err = strconv.ParseFloat(v, 64); err != nil || fps <= 0 {
				WriteError(w, http.StatusBadRequest, "fps must be a positive number", "BAD_REQUEST")
				return
			}
		}
		title := r.URL.Query().Get("title")
		if title == "" && src != "" {
			title = strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
		}

		body := export.GenerateEDL(tl.Clips(), export.EDLOptions{
			Title:      title,
			FrameRate:  fps,
			SourcePath: src,
		})

		name := export.SanitizeName(title, 120)
		if name == "" {
			name = "timeline"
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`.edl"`)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	}
}

func listExportsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				WriteError(w, http.StatusBadRequest, "limit must be a positive integer", "BAD_REQUEST")
				return
			}
			limit = n
		}

		jobs, err := cfg.Repository.ListJobs(r.Context(), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list exports", "INTERNAL_ERROR")
			return
		}

		resp := ExportJobsResponse{Jobs: make([]ExportJobResponse, len(jobs))}
		for i, j := range jobs {
			resp.Jobs[i] = JobToResponse(j)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		if cfg.Orchestrator != nil {
			if st, ok := cfg.Orchestrator.Status(); ok && st.ID == id {
				WriteJSON(w, http.StatusOK, StatusToResponse(st))
				return
			}
		}

		job, err := cfg.Repository.GetJob(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if job == nil {
			WriteError(w, http.StatusNotFound, "export not found", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, JobToResponse(job))
	}
}

func cancelExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, CancelResponse{Cancelled: cfg.Orchestrator.Cancel()})
	}
}

func playbackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		src, _, err := cfg.Session.Snapshot()
		if err != nil || src == "" {
			WriteError(w, http.StatusNotFound, "no source loaded", "NO_SOURCE")
			return
		}
		if err := cfg.PlaybackServer.ServeSource(w, r, src); err != nil {
			cfg.Logger.Error("playback error", "error", err)
		}
	}
}

// writeEditError reports a rejected edit. The code is the error kind, so a UI
// can tell an edit rejection from an export failure.
func writeEditError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNoTimeline) {
		WriteError(w, http.StatusNotFound, err.Error(), "NO_TIMELINE")
		return
	}
	kind := export.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case export.KindOutOfRange, export.KindIndexOutOfRange:
		status = http.StatusUnprocessableEntity
	case export.KindInvalidTimeline:
		status = http.StatusBadRequest
	case export.KindJobInProgress:
		status = http.StatusConflict
	}
	WriteError(w, status, err.Error(), kind)
}
