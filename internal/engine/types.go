// Package engine drives the external transcoding engine (ffmpeg/ffprobe) as a
// subprocess. It exposes the two primitives the export pipeline needs, trim by
// time range and concatenate an ordered list of files, plus a duration probe
// and a cached capability check.
package engine

import (
	"context"
	"fmt"
	"time"
)

// Engine is the transcoding engine contract used by the export pipeline.
type Engine interface {
	// Trim writes the [Start, End) range of Input to Output.
	Trim(ctx context.Context, req TrimRequest) error

	// Concat joins Inputs, in the given order, into Output. ListPath is a
	// scratch file the engine may use for its input manifest.
	Concat(ctx context.Context, req ConcatRequest) error

	// ProbeDuration returns the media duration of ref in seconds. ref may be
	// a local path or a URL the engine can read directly.
	ProbeDuration(ctx context.Context, ref string) (float64, error)
}

// TrimRequest describes one trim invocation.
type TrimRequest struct {
	Input  string
	Output string
	Start  float64
	End    float64
}

// ConcatRequest describes one concatenation invocation.
type ConcatRequest struct {
	Inputs   []string
	ListPath string
	Output   string
}

// RunResult is the structured outcome of one engine subprocess.
type RunResult struct {
	ExitCode   int           `json:"exit_code"`
	StderrTail string        `json:"stderr_tail,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// IsSuccess returns true when the subprocess exited cleanly.
func (r RunResult) IsSuccess() bool { return r.ExitCode == 0 }

// RunError reports a failed engine subprocess.
type RunError struct {
	Op         string
	ExitCode   int
	StderrTail string
	Err        error
}

func (e *RunError) Error() string {
	tail := truncate(e.StderrTail, 512)
	if e.Err != nil {
		return fmt.Sprintf("%s failed (exit %d): %v: %s", e.Op, e.ExitCode, e.Err, tail)
	}
	return fmt.Sprintf("%s failed (exit %d): %s", e.Op, e.ExitCode, tail)
}

func (e *RunError) Unwrap() error { return e.Err }

// Capabilities reports which engine binaries are usable.
type Capabilities struct {
	FFmpeg   ToolInfo  `json:"ffmpeg"`
	FFprobe  ToolInfo  `json:"ffprobe"`
	ProbedAt time.Time `json:"probed_at"`
}

// CanExport reports whether the trim and concat primitives are available.
func (c Capabilities) CanExport() bool { return c.FFmpeg.Available }

// CanProbe reports whether durations can be probed.
func (c Capabilities) CanProbe() bool { return c.FFprobe.Available }

// ToolInfo is the availability status of a single binary.
type ToolInfo struct {
	Available bool   `json:"available"`
	Path      string `json:"path,omitempty"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}
