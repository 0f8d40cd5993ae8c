// Package playback serves the editing session's source video for preview,
// honoring byte-range requests so the UI player can seek.
package playback

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/heimdex/heimdex-editor/internal/fetch"
	"github.com/heimdex/heimdex-editor/internal/logging"
)

// Service serves a source reference to an HTTP client.
type Service interface {
	ServeSource(w http.ResponseWriter, r *http.Request, sourceRef string) error
}

type Server struct {
	logger *slog.Logger
}

func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{logger: logging.WithComponent(logger, "playback")}
}

// ServeSource streams a local source with range support. Remote sources are
// already reachable by the player, so it is redirected to them instead.
func (s *Server) ServeSource(w http.ResponseWriter, r *http.Request, sourceRef string) error {
	path, local := fetch.IsLocal(sourceRef)
	if !local {
		http.Redirect(w, r, sourceRef, http.StatusTemporaryRedirect)
		return nil
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		http.Error(w, "source not found", http.StatusNotFound)
		return nil
	}
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if info.IsDir() {
		http.Error(w, "source not found", http.StatusNotFound)
		return nil
	}
	size := info.Size()

	h := w.Header()
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Type", contentType(path))

	span, err := ParseRange(r.Header.Get("Range"), size)
	switch {
	case errors.Is(err, ErrUnsatisfiable):
		h.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "range not satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	case errors.Is(err, ErrMalformedRange):
		s.logger.Debug("ignoring malformed range", "range", r.Header.Get("Range"))
		span = nil
	}

	status, offset, length := http.StatusOK, int64(0), size
	if span != nil {
		status, offset, length = http.StatusPartialContent, span.First, span.Length()
		h.Set("Content-Range", span.ContentRange(size))
	}
	h.Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(status)

	if r.Method == http.MethodHead || length == 0 {
		return nil
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek source: %w", err)
	}
	if _, err := io.CopyN(w, f, length); err != nil {
		// Players abort range reads constantly while seeking.
		s.logger.Debug("playback copy interrupted", "error", err)
	}
	return nil
}

// videoTypes covers containers missing from minimal system mime tables.
var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
}

func contentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ct, ok := videoTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
