package scratch

import (
	"os"
	"path/filepath"
	"time"
)

// CleanStaleResult is the outcome of CleanStale.
type CleanStaleResult struct {
	Removed  []string
	Warnings []CleanupWarning
}

// CleanStale removes job directories older than maxAge. They are leftovers
// from a process that died before it could release its allocation. The live
// allocation, if any, is never touched.
func (s *Store) CleanStale(maxAge time.Duration) CleanStaleResult {
	result := CleanStaleResult{}

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Warnings = append(result.Warnings, CleanupWarning{Path: s.baseDir, Err: err})
		}
		return result
	}

	s.mu.Lock()
	activeDir := ""
	if s.active != nil {
		activeDir = s.active.dir
	}
	s.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dirPath := filepath.Join(s.baseDir, entry.Name())
		if dirPath == activeDir {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			result.Warnings = append(result.Warnings, CleanupWarning{Path: dirPath, Err: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.RemoveAll(dirPath); err != nil {
			result.Warnings = append(result.Warnings, CleanupWarning{Path: dirPath, Err: err})
			s.logger.Warn("failed to remove stale scratch directory", "path", dirPath, "error", err)
			continue
		}
		result.Removed = append(result.Removed, dirPath)
		s.logger.Info("removed stale scratch directory", "path", dirPath, "age", time.Since(info.ModTime()).String())
	}

	return result
}
