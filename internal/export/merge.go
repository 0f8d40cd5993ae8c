package export

import (
	"context"

	"github.com/heimdex/heimdex-editor/internal/engine"
	"github.com/heimdex/heimdex-editor/internal/scratch"
)

// merge concatenates the trims in visible-clip order. TrimArtifactPaths is
// index-aligned with VisibleClips, so completion order never leaks in. A
// single trim is already the final artifact.
func (o *Orchestrator) merge(ctx context.Context, job *ExportJob) (string, error) {
	if len(job.TrimArtifactPaths) == 1 {
		return job.TrimArtifactPaths[0], nil
	}

	out, err := job.alloc.Reserve(scratch.KindMerged, 0)
	if err != nil {
		return "", &MergeFailedError{Cause: err}
	}
	list, err := job.alloc.Reserve(scratch.KindConcatList, 0)
	if err != nil {
		return "", &MergeFailedError{Cause: err}
	}

	inputs := append([]string(nil), job.TrimArtifactPaths...)
	if err := o.cfg.Engine.Concat(ctx, engine.ConcatRequest{Inputs: inputs, ListPath: list, Output: out}); err != nil {
		return "", &MergeFailedError{Cause: err}
	}
	return out, nil
}
