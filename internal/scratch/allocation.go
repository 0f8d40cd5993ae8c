package scratch

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// CleanupWarning records an artifact that could not be deleted. Warnings are
// logged and never change the outcome of the job that produced them.
type CleanupWarning struct {
	Path string
	Err  error
}

func (w CleanupWarning) Error() string {
	return fmt.Sprintf("cleanup of %s failed: %v", w.Path, w.Err)
}

// Allocation tracks the artifacts reserved for a single job.
type Allocation struct {
	store  *Store
	jobID  string
	dir    string
	ext    string
	logger *slog.Logger

	mu       sync.Mutex
	reserved map[string]struct{}
	released bool
}

// JobID returns the job the allocation belongs to.
func (a *Allocation) JobID() string {
	return a.jobID
}

// Dir returns the job's scratch directory.
func (a *Allocation) Dir() string {
	return a.dir
}

// Reserve returns the deterministic path for an artifact and records it for
// cleanup. index is only meaningful for KindTrim.
func (a *Allocation) Reserve(kind Kind, index int) (string, error) {
	var name string
	switch kind {
	case KindSource:
		name = "source" + a.ext
	case KindTrim:
		if index < 0 {
			return "", fmt.Errorf("trim index must be >= 0, got %d", index)
		}
		name = fmt.Sprintf("trim-%03d%s", index, a.ext)
	case KindMerged:
		name = "merged" + a.ext
	case KindConcatList:
		name = "concat.txt"
	default:
		return "", fmt.Errorf("unknown artifact kind %q", kind)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		return "", ErrReleased
	}

	path := filepath.Join(a.dir, name)
	a.reserved[path] = struct{}{}
	return path, nil
}

// Reserved returns the reserved paths in lexical order.
func (a *Allocation) Reserved() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	paths := make([]string, 0, len(a.reserved))
	for p := range a.reserved {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// ReleaseAll deletes every reserved artifact and the job directory. Only the
// first call does any work. Deletion failures are logged and returned as
// warnings.
func (a *Allocation) ReleaseAll() []CleanupWarning {
	a.mu.Lock()
	if a.released {
		a.mu.Unlock()
		a.logger.Debug("scratch allocation already released")
		return nil
	}
	a.released = true
	paths := make([]string, 0, len(a.reserved))
	for p := range a.reserved {
		paths = append(paths, p)
	}
	a.mu.Unlock()
	defer a.store.finish(a)

	sort.Strings(paths)
	var warnings []CleanupWarning
	for _, p := range paths {
		if err := removeFile(p); err != nil {
			warnings = append(warnings, CleanupWarning{Path: p, Err: err})
		}
	}
	// Anything the engine left next to our artifacts goes with the directory.
	if err := os.RemoveAll(a.dir); err != nil {
		warnings = append(warnings, CleanupWarning{Path: a.dir, Err: err})
	}

	for _, w := range warnings {
		a.logger.Warn("failed to remove scratch artifact", "path", w.Path, "error", w.Err)
	}
	a.logger.Debug("scratch allocation released", "artifacts", len(paths), "warnings", len(warnings))
	return warnings
}

func removeFile(path string) error {
	err := os.Remove(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
