package api

import (
	"time"

	"github.com/samber/lo"

	"github.com/heimdex/heimdex-editor/internal/export"
	"github.com/heimdex/heimdex-editor/internal/history"
	"github.com/heimdex/heimdex-editor/internal/timeline"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	DeviceID string `json:"device_id"`
}

type StatusResponse struct {
	State     string                `json:"state"`
	LastError string                `json:"last_error,omitempty"`
	ActiveJob *ExportJobResponse    `json:"active_job,omitempty"`
	LastJob   *ExportJobResponse    `json:"last_job,omitempty"`
	Engine    *EngineStatusResponse `json:"engine,omitempty"`
	Timeline  *TimelineSummary      `json:"timeline,omitempty"`
}

type EngineStatusResponse struct {
	CanExport      bool   `json:"can_export"`
	CanProbe       bool   `json:"can_probe"`
	FFmpegVersion  string `json:"ffmpeg_version,omitempty"`
	FFprobeVersion string `json:"ffprobe_version,omitempty"`
	LastProbeAt    string `json:"last_probe_at,omitempty"`
}

type TimelineSummary struct {
	SourceRef    string  `json:"source_ref,omitempty"`
	Duration     float64 `json:"duration"`
	Clips        int     `json:"clips"`
	VisibleClips int     `json:"visible_clips"`
}

type CreateTimelineRequest struct {
	SourceRef string  `json:"source_ref,omitempty"`
	Duration  float64 `json:"duration,omitempty"`
}

type SplitRequest struct {
	At *float64 `json:"at"`
}

type ClipResponse struct {
	Index     int     `json:"index"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	IsHidden  bool    `json:"is_hidden"`
	DisplayID string  `json:"display_id"`
}

type TimelineResponse struct {
	SourceRef string         `json:"source_ref,omitempty"`
	Duration  float64        `json:"duration"`
	Clips     []ClipResponse `json:"clips"`
}

type NextVisibleResponse struct {
	At     float64       `json:"at"`
	Clip   *ClipResponse `json:"clip,omitempty"`
	Skip   bool          `json:"skip"`
	SkipTo float64       `json:"skip_to,omitempty"`
	Stop   bool          `json:"stop"`
}

type ExportJobResponse struct {
	ID           string `json:"id"`
	SourceRef    string `json:"source_ref"`
	State        string `json:"state"`
	VisibleClips int    `json:"visible_clips"`
	TrimsDone    int    `json:"trims_done"`
	OutputBytes  int64  `json:"output_bytes"`
	ErrorKind    string `json:"error_kind,omitempty"`
	Error        string `json:"error,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type ExportJobsResponse struct {
	Jobs []ExportJobResponse `json:"jobs"`
}

type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func TimelineToResponse(sourceRef string, tl *timeline.Timeline) TimelineResponse {
	return TimelineResponse{
		SourceRef: sourceRef,
		Duration:  tl.Duration(),
		Clips:     lo.Map(tl.Clips(), ClipToResponse),
	}
}

func ClipToResponse(c timeline.Clip, i int) ClipResponse {
	return ClipResponse{
		Index:     i,
		Start:     c.Range.Start,
		End:       c.Range.End,
		IsHidden:  c.Hidden,
		DisplayID: c.DisplayID,
	}
}

func StatusToResponse(s export.JobStatus) ExportJobResponse {
	return ExportJobResponse{
		ID:           s.ID,
		SourceRef:    s.SourceRef,
		State:        string(s.State),
		VisibleClips: s.VisibleClips,
		TrimsDone:    s.TrimsDone,
		OutputBytes:  s.OutputBytes,
		ErrorKind:    s.ErrorKind,
		Error:        s.ErrorMessage,
		CreatedAt:    s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    s.UpdatedAt.Format(time.RFC3339),
	}
}

func JobToResponse(j *history.Job) ExportJobResponse {
	return ExportJobResponse{
		ID:           j.ID,
		SourceRef:    j.SourceRef,
		State:        j.State,
		VisibleClips: j.VisibleClips,
		TrimsDone:    j.TrimsDone,
		OutputBytes:  j.OutputBytes,
		ErrorKind:    j.ErrorKind,
		Error:        j.ErrorMessage,
		CreatedAt:    j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    j.UpdatedAt.Format(time.RFC3339),
	}
}
