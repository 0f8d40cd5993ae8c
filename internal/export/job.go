package export

import (
	"context"
	"time"

	"github.com/heimdex/heimdex-editor/internal/scratch"
	"github.com/heimdex/heimdex-editor/internal/timeline"
)

// State is a step of the export state machine.
type State string

const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StateTrimming   State = "trimming"
	StateMerging    State = "merging"
	StateDelivering State = "delivering"
	StateCleaningUp State = "cleaning_up"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// Terminal reports whether s ends a job.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// transitions lists the legal moves. Every outcome passes through
// CleaningUp so artifact release happens in exactly one place.
var transitions = map[State][]State{
	StateIdle:       {StateFetching, StateCleaningUp},
	StateFetching:   {StateTrimming, StateDelivering, StateCleaningUp},
	StateTrimming:   {StateMerging, StateCleaningUp},
	StateMerging:    {StateDelivering, StateCleaningUp},
	StateDelivering: {StateCleaningUp},
	StateCleaningUp: {StateSucceeded, StateFailed},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ExportJob is the orchestrator's private record of one export.
type ExportJob struct {
	ID        string
	SourceRef string
	State     State

	// VisibleClips is the snapshot taken at start; TrimArtifactPaths is
	// index-aligned with it.
	VisibleClips       []timeline.Clip
	SourceArtifactPath string
	TrimArtifactPaths  []string
	MergedArtifactPath string

	Err         error
	OutputBytes int64
	CreatedAt   time.Time
	UpdatedAt   time.Time

	alloc     *scratch.Allocation
	completed int
}

// JobStatus is a read-only view of a job for callers outside the orchestrator.
type JobStatus struct {
	ID           string    `json:"id"`
	SourceRef    string    `json:"source_ref"`
	State        State     `json:"state"`
	VisibleClips int       `json:"visible_clips"`
	TrimsDone    int       `json:"trims_done"`
	OutputBytes  int64     `json:"output_bytes"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (j *ExportJob) status() JobStatus {
	s := JobStatus{
		ID:           j.ID,
		SourceRef:    j.SourceRef,
		State:        j.State,
		VisibleClips: len(j.VisibleClips),
		TrimsDone:    j.completed,
		OutputBytes:  j.OutputBytes,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
	}
	if j.Err != nil {
		s.ErrorKind = KindOf(j.Err)
		s.ErrorMessage = j.Err.Error()
	}
	return s
}

// Recorder persists job transitions. Errors are logged and never affect the job.
type Recorder interface {
	RecordTransition(ctx context.Context, status JobStatus) error
}
