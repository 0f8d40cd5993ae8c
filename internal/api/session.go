package api

import (
	"errors"
	"sync"

	"github.com/heimdex/heimdex-editor/internal/timeline"
)

// ErrNoTimeline is returned when the session has not been started.
var ErrNoTimeline = errors.New("no timeline loaded")

// Session is the server's single editing session: one source and its
// timeline. Exports always take a clone, so edits never reach a running job.
type Session struct {
	mu        sync.Mutex
	sourceRef string
	tl        *timeline.Timeline
}

func NewSession() *Session {
	return &Session{}
}

// Reset replaces the session with a fresh timeline.
func (s *Session) Reset(sourceRef string, tl *timeline.Timeline) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sourceRef = sourceRef
	s.tl = tl
}

// Snapshot returns the source reference and a private copy of the timeline.
func (s *Session) Snapshot() (string, *timeline.Timeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tl == nil {
		return "", nil, ErrNoTimeline
	}
	return s.sourceRef, s.tl.Clone(), nil
}

// Edit applies fn to the live timeline under the session lock and returns a
// copy of the result. Timeline operations are all-or-nothing, so a failed
// edit leaves the session unchanged.
func (s *Session) Edit(fn func(*timeline.Timeline) error) (string, *timeline.Timeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tl == nil {
		return "", nil, ErrNoTimeline
	}
	if err := fn(s.tl); err != nil {
		return "", nil, err
	}
	return s.sourceRef, s.tl.Clone(), nil
}
