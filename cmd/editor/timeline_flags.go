package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-editor/internal/channel"
	"github.com/heimdex/heimdex-editor/internal/timeline"
)

type durationProber interface {
	ProbeDuration(ctx context.Context, ref string) (float64, error)
}

// timelineFlags describes a timeline on the command line, either as cut
// points plus hidden clip indexes or as a JSON clip list in the channel wire
// format.
type timelineFlags struct {
	duration float64
	cuts     []float64
	hide     []int
	file     string
}

func (f *timelineFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.duration, "duration", 0, "Source duration in seconds (probed with ffprobe when omitted)")
	cmd.Flags().Float64SliceVar(&f.cuts, "cut", nil, "Split point in seconds (repeatable)")
	cmd.Flags().IntSliceVar(&f.hide, "hide", nil, "Index of a clip to hide, counted after all cuts (repeatable)")
	cmd.Flags().StringVar(&f.file, "timeline", "", "JSON file holding {\"duration\": ..., \"timeline\": [clips]}")
}

func (f *timelineFlags) build(ctx context.Context, prober durationProber, sourceRef string) (*timeline.Timeline, error) {
	if f.file != "" {
		if len(f.cuts) > 0 || len(f.hide) > 0 {
			return nil, errors.New("--timeline cannot be combined with --cut or --hide")
		}
		return readTimelineFile(f.file)
	}

	duration := f.duration
	if duration == 0 {
		if prober == nil {
			return nil, errors.New("--duration is required")
		}
		d, err := prober.ProbeDuration(ctx, sourceRef)
		if err != nil {
			return nil, fmt.Errorf("probe source duration: %w", err)
		}
		duration = d
	}

	tl, err := timeline.New(duration)
	if err != nil {
		return nil, err
	}
	cuts := slices.Clone(f.cuts)
	slices.Sort(cuts)
	for _, at := range cuts {
		if err := tl.Split(at); err != nil {
			return nil, fmt.Errorf("--cut %v: %w", at, err)
		}
	}
	for _, i := range lo.Uniq(f.hide) {
		if err := tl.ToggleVisibility(i); err != nil {
			return nil, fmt.Errorf("--hide %d: %w", i, err)
		}
	}
	return tl, nil
}

func readTimelineFile(path string) (*timeline.Timeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read timeline file: %w", err)
	}
	var req channel.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("parse timeline file: %w", err)
	}
	return req.BuildTimeline()
}
