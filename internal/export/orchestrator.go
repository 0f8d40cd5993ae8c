package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/heimdex/heimdex-editor/internal/channel"
	"github.com/heimdex/heimdex-editor/internal/engine"
	"github.com/heimdex/heimdex-editor/internal/fetch"
	"github.com/heimdex/heimdex-editor/internal/logging"
	"github.com/heimdex/heimdex-editor/internal/scratch"
	"github.com/heimdex/heimdex-editor/internal/timeline"
)

// Config wires the orchestrator's collaborators.
type Config struct {
	Engine   engine.Engine
	Fetcher  fetch.Fetcher
	Store    *scratch.Store
	Recorder Recorder // optional

	// MaxParallelTrims caps concurrent trim subprocesses; 0 means one per
	// visible clip.
	MaxParallelTrims int
	Logger           *slog.Logger
}

// StartRequest is one export of a timeline over a source.
type StartRequest struct {
	SourceRef string
	Timeline  *timeline.Timeline
}

// Orchestrator drives export jobs through the state machine. At most one job
// is live at a time.
type Orchestrator struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	current *ExportJob
	last    *ExportJob
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Orchestrator{
		cfg:    cfg,
		logger: logging.WithComponent(cfg.Logger, "export"),
	}
}

// Start snapshots the timeline's visible clips and runs the job in the
// background. Events go to sink; exactly one terminal event is emitted. A
// start while another job is live fails with *JobInProgressError.
func (o *Orchestrator) Start(ctx context.Context, req StartRequest, sink channel.Sink) (string, error) {
	if req.Timeline == nil {
		return "", &timeline.InvalidTimelineError{Reason: "timeline is required"}
	}
	if sink == nil {
		sink = channel.Discard
	}

	o.mu.Lock()
	if o.current != nil {
		err := &JobInProgressError{JobID: o.current.ID, State: o.current.State}
		o.mu.Unlock()
		return "", err
	}

	now := time.Now().UTC()
	job := &ExportJob{
		ID:           uuid.NewString(),
		SourceRef:    req.SourceRef,
		State:        StateIdle,
		VisibleClips: req.Timeline.Clone().VisibleClipsInOrder(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	allVisible := !req.Timeline.HasHidden()

	jobCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	o.current = job
	o.cancel = cancel
	o.done = done
	o.mu.Unlock()

	o.record(job)
	go o.run(jobCtx, cancel, job, allVisible, sink, done)
	return job.ID, nil
}

// Run starts a job and waits for it to reach a terminal state.
func (o *Orchestrator) Run(ctx context.Context, req StartRequest, sink channel.Sink) (JobStatus, error) {
	if _, err := o.Start(ctx, req, sink); err != nil {
		return JobStatus{}, err
	}
	if err := o.Wait(context.Background()); err != nil {
		return JobStatus{}, err
	}
	status, _ := o.Status()
	if status.State == StateFailed {
		o.mu.Lock()
		err := o.last.Err
		o.mu.Unlock()
		return status, err
	}
	return status, nil
}

// Wait blocks until the live job, if any, has finished.
func (o *Orchestrator) Wait(ctx context.Context) error {
	o.mu.Lock()
	done := o.done
	o.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel cancels the live job. It takes the same failure path as a trim
// failure. Returns false when no job is live.
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil || o.cancel == nil {
		return false
	}
	o.cancel()
	return true
}

// Status returns the live job, or the most recent finished one. ok is false
// before the first job.
func (o *Orchestrator) Status() (JobStatus, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch {
	case o.current != nil:
		return o.current.status(), true
	case o.last != nil:
		return o.last.status(), true
	}
	return JobStatus{}, false
}

// Busy reports whether a job is live.
func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current != nil
}

func (o *Orchestrator) run(ctx context.Context, cancel context.CancelFunc, job *ExportJob, allVisible bool, sink channel.Sink, done chan struct{}) {
	defer close(done)
	defer cancel()

	logger := logging.WithJobID(o.logger, job.ID)
	start := time.Now()
	logger.Info("export started",
		"source", logging.SanitizePath(job.SourceRef),
		"visible_clips", len(job.VisibleClips),
	)

	data, err := o.execute(ctx, job, allVisible, sink, logger)
	if err != nil && ctx.Err() != nil {
		err = &CancelledError{Stage: o.state(job), Cause: err}
	}

	o.transition(job, StateCleaningUp, logger)
	if job.alloc != nil {
		for _, w := range job.alloc.ReleaseAll() {
			logger.Warn("cleanup warning", "kind", KindCleanupWarning, "path", w.Path, "error", w.Err)
		}
	}

	var event channel.Event
	if err != nil {
		o.fail(job, err)
		o.transition(job, StateFailed, logger)
		logger.Error("export failed",
			"kind", KindOf(err),
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		event = channel.Failed(job.ID, KindOf(err), err.Error())
	} else {
		o.transition(job, StateSucceeded, logger)
		logger.Info("export succeeded",
			"bytes", len(data),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		event = channel.Complete(job.ID, data)
	}

	o.mu.Lock()
	o.last = job
	o.current = nil
	o.cancel = nil
	o.mu.Unlock()

	sink.Emit(event)
}

// execute walks the job from Idle to Delivering and returns the output bytes.
func (o *Orchestrator) execute(ctx context.Context, job *ExportJob, allVisible bool, sink channel.Sink, logger *slog.Logger) ([]byte, error) {
	if len(job.VisibleClips) == 0 {
		return nil, &NothingToExportError{}
	}

	o.transition(job, StateFetching, logger)
	sink.Emit(channel.ProgressEvent(job.ID, string(StateFetching), 0, 1))

	alloc, err := o.cfg.Store.Begin(job.ID, fetch.Ext(job.SourceRef))
	if err != nil {
		return nil, fmt.Errorf("allocate scratch space: %w", err)
	}
	job.alloc = alloc

	src, err := alloc.Reserve(scratch.KindSource, 0)
	if err != nil {
		return nil, fmt.Errorf("reserve source artifact: %w", err)
	}
	o.update(job, func() { job.SourceArtifactPath = src })

	n, err := o.cfg.Fetcher.Fetch(ctx, job.SourceRef, src)
	if err != nil {
		return nil, &FetchError{SourceRef: job.SourceRef, Cause: err}
	}
	logger.Debug("source fetched", "bytes", n)
	sink.Emit(channel.ProgressEvent(job.ID, string(StateFetching), 1, 1))

	output := src
	if allVisible {
		logger.Info("no hidden clips, delivering source unchanged")
	} else {
		trims := make([]string, len(job.VisibleClips))
		for i := range job.VisibleClips {
			if trims[i], err = alloc.Reserve(scratch.KindTrim, i); err != nil {
				return nil, fmt.Errorf("reserve trim artifact: %w", err)
			}
		}
		o.update(job, func() { job.TrimArtifactPaths = trims })

		o.transition(job, StateTrimming, logger)
		sink.Emit(channel.ProgressEvent(job.ID, string(StateTrimming), 0, len(trims)))
		if err := o.trimAll(ctx, job, sink); err != nil {
			return nil, err
		}

		o.transition(job, StateMerging, logger)
		sink.Emit(channel.ProgressEvent(job.ID, string(StateMerging), 0, 1))
		if output, err = o.merge(ctx, job); err != nil {
			return nil, err
		}
		o.update(job, func() { job.MergedArtifactPath = output })
		sink.Emit(channel.ProgressEvent(job.ID, string(StateMerging), 1, 1))
	}

	o.transition(job, StateDelivering, logger)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(output)
	if err != nil {
		return nil, &DeliveryError{Cause: err}
	}
	o.update(job, func() { job.OutputBytes = int64(len(data)) })
	return data, nil
}

func (o *Orchestrator) transition(job *ExportJob, to State, logger *slog.Logger) {
	o.mu.Lock()
	from := job.State
	if !canTransition(from, to) {
		o.mu.Unlock()
		logger.Error("illegal export state transition", "from", from, "to", to)
		return
	}
	job.State = to
	job.UpdatedAt = time.Now().UTC()
	o.mu.Unlock()

	logger.Debug("export state", "from", from, "to", to)
	o.record(job)
}

func (o *Orchestrator) update(job *ExportJob, fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn()
}

func (o *Orchestrator) fail(job *ExportJob, err error) {
	o.update(job, func() { job.Err = err })
}

func (o *Orchestrator) state(job *ExportJob) State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return job.State
}

func (o *Orchestrator) record(job *ExportJob) {
	if o.cfg.Recorder == nil {
		return
	}
	o.mu.Lock()
	status := job.status()
	o.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.cfg.Recorder.RecordTransition(ctx, status); err != nil {
		o.logger.Warn("failed to record export transition", "job_id", job.ID, "state", status.State, "error", err)
	}
}
