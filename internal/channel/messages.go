// Package channel defines the message contract between the editing UI and the
// export pipeline. Requests flow in, events flow out; the pipeline never
// touches UI state directly.
package channel

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/heimdex/heimdex-editor/internal/timeline"
)

// Message types.
const (
	TypeStartExport    = "startExport"
	TypeCancelExport   = "cancelExport"
	TypeExportComplete = "exportComplete"
	TypeExportFailed   = "exportFailed"
	TypeExportProgress = "exportProgress"
	TypeExportRejected = "exportRejected"
)

// ClipMessage is a clip as the UI sends it.
type ClipMessage struct {
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	IsHidden  bool    `json:"isHidden"`
	DisplayID string  `json:"displayId,omitempty"`
}

// Request is a message from the UI.
type Request struct {
	Type      string        `json:"type"`
	SourceRef string        `json:"sourceRef,omitempty"`
	Timeline  []ClipMessage `json:"timeline,omitempty"`
	// Duration of the source; when zero it is taken from the last clip's end.
	Duration float64 `json:"duration,omitempty"`
}

// ErrorPayload describes a failure by taxonomy kind.
type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Progress reports stage advancement of a running job.
type Progress struct {
	Stage     string `json:"stage"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
}

// Event is a message to the UI.
type Event struct {
	Type     string        `json:"type"`
	JobID    string        `json:"jobId,omitempty"`
	Binary   []byte        `json:"binary,omitempty"`
	Error    *ErrorPayload `json:"error,omitempty"`
	Progress *Progress     `json:"progress,omitempty"`
}

// Complete builds the exportComplete event.
func Complete(jobID string, data []byte) Event {
	return Event{Type: TypeExportComplete, JobID: jobID, Binary: data}
}

// Failed builds the exportFailed event.
func Failed(jobID, kind, message string) Event {
	return Event{Type: TypeExportFailed, JobID: jobID, Error: &ErrorPayload{Kind: kind, Message: message}}
}

// Rejected builds the event answering a start request that was refused before
// any job existed.
func Rejected(kind, message string) Event {
	return Event{Type: TypeExportRejected, Error: &ErrorPayload{Kind: kind, Message: message}}
}

// ProgressEvent builds an exportProgress event.
func ProgressEvent(jobID, stage string, completed, total int) Event {
	return Event{
		Type:     TypeExportProgress,
		JobID:    jobID,
		Progress: &Progress{Stage: stage, Completed: completed, Total: total},
	}
}

// Terminal reports whether e ends a job.
func (e Event) Terminal() bool {
	return e.Type == TypeExportComplete || e.Type == TypeExportFailed
}

// DecodeRequest parses and validates a UI request.
func DecodeRequest(data []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, fmt.Errorf("invalid request JSON: %w", err)
	}
	switch req.Type {
	case TypeStartExport:
		if strings.TrimSpace(req.SourceRef) == "" {
			return Request{}, errors.New("startExport requires sourceRef")
		}
	case TypeCancelExport:
	case "":
		return Request{}, errors.New("request type is required")
	default:
		return Request{}, fmt.Errorf("unknown request type %q", req.Type)
	}
	return req, nil
}

// BuildTimeline converts the request's clip list into a validated timeline.
func (r Request) BuildTimeline() (*timeline.Timeline, error) {
	if len(r.Timeline) == 0 {
		return nil, &timeline.InvalidTimelineError{Reason: "timeline has no clips"}
	}
	duration := r.Duration
	if duration == 0 {
		duration = r.Timeline[len(r.Timeline)-1].End
	}
	clips := lo.Map(r.Timeline, func(c ClipMessage, _ int) timeline.Clip {
		return timeline.Clip{
			Range:     timeline.Range{Start: c.Start, End: c.End},
			Hidden:    c.IsHidden,
			DisplayID: c.DisplayID,
		}
	})
	return timeline.FromClips(duration, clips)
}

// ClipMessages converts timeline clips to their wire form.
func ClipMessages(clips []timeline.Clip) []ClipMessage {
	return lo.Map(clips, func(c timeline.Clip, _ int) ClipMessage {
		return ClipMessage{
			Start:     c.Range.Start,
			End:       c.Range.End,
			IsHidden:  c.Hidden,
			DisplayID: c.DisplayID,
		}
	})
}
