package export

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/heimdex/heimdex-editor/internal/channel"
	"github.com/heimdex/heimdex-editor/internal/engine"
)

// trimAll runs one trim per visible clip and joins on all of them. The first
// failure cancels the group context, which kills sibling subprocesses.
func (o *Orchestrator) trimAll(ctx context.Context, job *ExportJob, sink channel.Sink) error {
	g, gctx := errgroup.WithContext(ctx)
	if o.cfg.MaxParallelTrims > 0 {
		g.SetLimit(o.cfg.MaxParallelTrims)
	}

	total := len(job.VisibleClips)
	for i, clip := range job.VisibleClips {
		req := engine.TrimRequest{
			Input:  job.SourceArtifactPath,
			Output: job.TrimArtifactPaths[i],
			Start:  clip.Range.Start,
			End:    clip.Range.End,
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return &TrimFailedError{ClipIndex: i, Cause: err}
			}
			if err := o.cfg.Engine.Trim(gctx, req); err != nil {
				return &TrimFailedError{ClipIndex: i, Cause: err}
			}
			done := o.trimDone(job)
			sink.Emit(channel.ProgressEvent(job.ID, string(StateTrimming), done, total))
			return nil
		})
	}
	return g.Wait()
}

func (o *Orchestrator) trimDone(job *ExportJob) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	job.completed++
	return job.completed
}
