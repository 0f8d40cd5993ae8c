// Package timeline holds the clip/timeline data model of an edit session.
// A Timeline partitions [0, duration] of a single source video into ordered,
// contiguous clips. It is only mutated through Split and ToggleVisibility and
// every mutation is all-or-nothing.
package timeline

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Range is a half-open interval of source time, in seconds.
type Range struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns End - Start.
func (r Range) Duration() float64 {
	return r.End - r.Start
}

// StrictlyContains reports whether t lies inside the range, excluding both boundaries.
func (r Range) StrictlyContains(t float64) bool {
	return t > r.Start && t < r.End
}

// Clip is one segment of the timeline.
type Clip struct {
	Range     Range  `json:"range"`
	Hidden    bool   `json:"is_hidden"`
	DisplayID string `json:"display_id"`
}

// NewDisplayID returns a fresh opaque identity token for a clip.
func NewDisplayID() string {
	return uuid.NewString()
}

// Timeline is the ordered, gapless partition of the source duration.
type Timeline struct {
	duration float64
	clips    []Clip
}

// New creates a timeline holding one visible clip spanning [0, duration].
func New(duration float64) (*Timeline, error) {
	if !(duration > 0) {
		return nil, &InvalidTimelineError{Reason: fmt.Sprintf("duration must be positive, got %v", duration)}
	}
	return &Timeline{
		duration: duration,
		clips: []Clip{{
			Range:     Range{Start: 0, End: duration},
			DisplayID: NewDisplayID(),
		}},
	}, nil
}

// FromClips rebuilds a timeline from a clip list, typically one received from
// the UI. The list must satisfy the timeline invariant exactly.
func FromClips(duration float64, clips []Clip) (*Timeline, error) {
	t := &Timeline{duration: duration, clips: append([]Clip(nil), clips...)}
	for i := range t.clips {
		if t.clips[i].DisplayID == "" {
			t.clips[i].DisplayID = NewDisplayID()
		}
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Duration returns the fixed total duration.
func (t *Timeline) Duration() float64 {
	return t.duration
}

// Len returns the number of clips.
func (t *Timeline) Len() int {
	return len(t.clips)
}

// Clips returns a copy of the clips in timeline order.
func (t *Timeline) Clips() []Clip {
	return append([]Clip(nil), t.clips...)
}

// Clip returns the clip at index i.
func (t *Timeline) Clip(i int) (Clip, error) {
	if i < 0 || i >= len(t.clips) {
		return Clip{}, &IndexOutOfRangeError{Index: i, Len: len(t.clips)}
	}
	return t.clips[i], nil
}

// Clone returns a deep copy that shares no state with t.
func (t *Timeline) Clone() *Timeline {
	return &Timeline{duration: t.duration, clips: t.Clips()}
}

// Split cuts the clip strictly containing at into [start, at) and [at, end).
// The left part keeps its identity and visibility. The right part gets a new
// DisplayID and always starts visible, even when the original was hidden.
func (t *Timeline) Split(at float64) error {
	idx := t.indexContaining(at)
	if idx < 0 {
		return &OutOfRangeError{At: at, Duration: t.duration}
	}

	orig := t.clips[idx]
	left := orig
	left.Range.End = at
	right := Clip{
		Range:     Range{Start: at, End: orig.Range.End},
		DisplayID: NewDisplayID(),
	}

	clips := make([]Clip, 0, len(t.clips)+1)
	clips = append(clips, t.clips[:idx]...)
	clips = append(clips, left, right)
	clips = append(clips, t.clips[idx+1:]...)
	t.clips = clips
	return nil
}

// ToggleVisibility flips the hidden flag of the clip at index i.
func (t *Timeline) ToggleVisibility(i int) error {
	if i < 0 || i >= len(t.clips) {
		return &IndexOutOfRangeError{Index: i, Len: len(t.clips)}
	}
	t.clips[i].Hidden = !t.clips[i].Hidden
	return nil
}

// ClipContaining returns the clip whose range strictly contains at.
func (t *Timeline) ClipContaining(at float64) (Clip, bool) {
	idx := t.indexContaining(at)
	if idx < 0 {
		return Clip{}, false
	}
	return t.clips[idx], true
}

// NextVisibleClipAfter returns the first visible clip starting after at.
func (t *Timeline) NextVisibleClipAfter(at float64) (Clip, bool) {
	return lo.Find(t.clips, func(c Clip) bool {
		return !c.Hidden && c.Range.Start > at
	})
}

// VisibleClipsInOrder returns the visible clips, preserving timeline order.
// This is exactly the sequence an export renders.
func (t *Timeline) VisibleClipsInOrder() []Clip {
	return lo.Filter(t.clips, func(c Clip, _ int) bool {
		return !c.Hidden
	})
}

// HasHidden reports whether at least one clip is hidden.
func (t *Timeline) HasHidden() bool {
	return lo.SomeBy(t.clips, func(c Clip) bool { return c.Hidden })
}

// SkipTarget tells a player positioned at `at` where to go. When `at` falls in
// a hidden clip it returns the start of the next visible clip; if none
// follows, stop is true and playback should rewind to 0. ok is false when no
// skip is needed.
func (t *Timeline) SkipTarget(at float64) (target float64, stop bool, ok bool) {
	cur, found := t.ClipContaining(at)
	if !found || !cur.Hidden {
		return 0, false, false
	}
	next, found := t.NextVisibleClipAfter(at)
	if !found {
		return 0, true, true
	}
	return next.Range.Start, false, true
}

// Validate checks the ordering, contiguity and coverage invariant.
func (t *Timeline) Validate() error {
	if !(t.duration > 0) {
		return &InvalidTimelineError{Reason: fmt.Sprintf("duration must be positive, got %v", t.duration)}
	}
	if len(t.clips) == 0 {
		return &InvalidTimelineError{Reason: "timeline has no clips"}
	}
	if t.clips[0].Range.Start != 0 {
		return &InvalidTimelineError{Reason: fmt.Sprintf("first clip starts at %v, want 0", t.clips[0].Range.Start)}
	}
	for i, c := range t.clips {
		if !(c.Range.Start < c.Range.End) {
			return &InvalidTimelineError{Reason: fmt.Sprintf("clip %d has empty or inverted range [%v, %v)", i, c.Range.Start, c.Range.End)}
		}
		if i > 0 && t.clips[i-1].Range.End != c.Range.Start {
			return &InvalidTimelineError{Reason: fmt.Sprintf("clip %d starts at %v but clip %d ends at %v", i, c.Range.Start, i-1, t.clips[i-1].Range.End)}
		}
	}
	if last := t.clips[len(t.clips)-1].Range.End; last != t.duration {
		return &InvalidTimelineError{Reason: fmt.Sprintf("last clip ends at %v, want %v", last, t.duration)}
	}
	return nil
}

func (t *Timeline) indexContaining(at float64) int {
	_, idx, found := lo.FindIndexOf(t.clips, func(c Clip) bool {
		return c.Range.StrictlyContains(at)
	})
	if !found {
		return -1
	}
	return idx
}
