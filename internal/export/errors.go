package export

import (
	"errors"
	"fmt"

	"github.com/heimdex/heimdex-editor/internal/scratch"
	"github.com/heimdex/heimdex-editor/internal/timeline"
)

// Error kinds reported to the UI.
const (
	KindFetch           = "FetchError"
	KindOutOfRange      = "OutOfRangeError"
	KindIndexOutOfRange = "IndexOutOfRangeError"
	KindInvalidTimeline = "InvalidTimelineError"
	KindTrimFailed      = "TrimFailedError"
	KindMergeFailed     = "MergeFailedError"
	KindNothingToExport = "NothingToExportError"
	KindJobInProgress   = "JobInProgressError"
	KindCleanupWarning  = "CleanupWarning"
	KindCancelled       = "CancelledError"
	KindDelivery        = "DeliveryError"
	KindInternal        = "InternalError"
)

// FetchError means the source could not be retrieved or read.
type FetchError struct {
	SourceRef string
	Cause     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.SourceRef, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// TrimFailedError reports the first trim that failed. ClipIndex is the
// position in the job's visible clip list.
type TrimFailedError struct {
	ClipIndex int
	Cause     error
}

func (e *TrimFailedError) Error() string {
	return fmt.Sprintf("trim of visible clip %d failed: %v", e.ClipIndex, e.Cause)
}

func (e *TrimFailedError) Unwrap() error { return e.Cause }

// MergeFailedError reports a concatenation failure.
type MergeFailedError struct {
	Cause error
}

func (e *MergeFailedError) Error() string {
	return fmt.Sprintf("merge failed: %v", e.Cause)
}

func (e *MergeFailedError) Unwrap() error { return e.Cause }

// NothingToExportError is returned when every clip is hidden.
type NothingToExportError struct{}

func (e *NothingToExportError) Error() string {
	return "nothing to export: every clip is hidden"
}

// JobInProgressError rejects a start while another job is live.
type JobInProgressError struct {
	JobID string
	State State
}

func (e *JobInProgressError) Error() string {
	return fmt.Sprintf("export job %s is still %s", e.JobID, e.State)
}

// CancelledError means the job context was cancelled from outside the job.
type CancelledError struct {
	Stage State
	Cause error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("export cancelled while %s", e.Stage)
}

func (e *CancelledError) Unwrap() error { return e.Cause }

// DeliveryError means the final artifact could not be read back.
type DeliveryError struct {
	Cause error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver output: %v", e.Cause)
}

func (e *DeliveryError) Unwrap() error { return e.Cause }

// KindOf maps err to its taxonomy kind. Unknown errors are KindInternal.
func KindOf(err error) string {
	var (
		cancelled   *CancelledError
		fetchErr    *FetchError
		trimErr     *TrimFailedError
		mergeErr    *MergeFailedError
		nothing     *NothingToExportError
		inProgress  *JobInProgressError
		delivery    *DeliveryError
		outOfRange  *timeline.OutOfRangeError
		badIndex    *timeline.IndexOutOfRangeError
		badTimeline *timeline.InvalidTimelineError
		warning     scratch.CleanupWarning
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &cancelled):
		return KindCancelled
	case errors.As(err, &fetchErr):
		return KindFetch
	case errors.As(err, &trimErr):
		return KindTrimFailed
	case errors.As(err, &mergeErr):
		return KindMergeFailed
	case errors.As(err, &nothing):
		return KindNothingToExport
	case errors.As(err, &inProgress):
		return KindJobInProgress
	case errors.As(err, &delivery):
		return KindDelivery
	case errors.As(err, &outOfRange):
		return KindOutOfRange
	case errors.As(err, &badIndex):
		return KindIndexOutOfRange
	case errors.As(err, &badTimeline):
		return KindInvalidTimeline
	case errors.As(err, &warning):
		return KindCleanupWarning
	default:
		return KindInternal
	}
}
