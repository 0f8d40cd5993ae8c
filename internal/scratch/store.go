// Package scratch manages the temporary on-disk artifacts of an export job:
// the fetched source copy, one file per trimmed clip, the concat manifest and
// the merged result. Each job gets its own directory under a base directory
// that is locked for the lifetime of the Store.
package scratch

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
)

const lockFilename = ".scratch.lock"

var (
	// ErrNamespaceLocked means another process holds the scratch directory.
	ErrNamespaceLocked = errors.New("scratch directory is locked by another process")
	// ErrAllocationActive means a job allocation has not been released yet.
	ErrAllocationActive = errors.New("a scratch allocation is already active")
	// ErrReleased is returned by Reserve after ReleaseAll.
	ErrReleased = errors.New("scratch allocation already released")
)

// Kind identifies a class of scratch artifact.
type Kind string

const (
	KindSource     Kind = "source"
	KindTrim       Kind = "trim"
	KindMerged     Kind = "merged"
	KindConcatList Kind = "concat-list"
)

// Store owns the scratch base directory.
type Store struct {
	baseDir string
	lock    *flock.Flock
	logger  *slog.Logger

	mu     sync.Mutex
	active *Allocation
}

// Open creates baseDir if needed and takes an exclusive lock on it.
func Open(baseDir string, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("scratch base directory is required")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	lock := flock.New(filepath.Join(baseDir, lockFilename))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire scratch lock: %w", err)
	}
	if !ok {
		return nil, ErrNamespaceLocked
	}

	return &Store{baseDir: baseDir, lock: lock, logger: logger}, nil
}

// BaseDir returns the scratch base directory.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// Close releases the directory lock. A live allocation is released first.
func (s *Store) Close() error {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()
	if active != nil {
		active.ReleaseAll()
	}
	return s.lock.Unlock()
}

// Begin starts the allocation for one job. ext is the media file extension
// used for source, trim and merged artifacts (".mp4" when empty).
func (s *Store) Begin(jobID, ext string) (*Allocation, error) {
	if jobID == "" || strings.ContainsAny(jobID, `/\`) || jobID == "." || jobID == ".." {
		return nil, fmt.Errorf("invalid job id %q", jobID)
	}
	if ext == "" {
		ext = ".mp4"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		return nil, ErrAllocationActive
	}

	dir := filepath.Join(s.baseDir, jobID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create job scratch dir: %w", err)
	}

	a := &Allocation{
		store:    s,
		jobID:    jobID,
		dir:      dir,
		ext:      ext,
		reserved: make(map[string]struct{}),
		logger:   s.logger.With("component", "scratch", "job_id", jobID),
	}
	s.active = a
	return a, nil
}

func (s *Store) finish(a *Allocation) {
	s.mu.Lock()
	if s.active == a {
		s.active = nil
	}
	s.mu.Unlock()
}
