package playback

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func testServer() *Server {
	return NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func writeSource(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte("0123456789"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestServeSource_Full(t *testing.T) {
	path := writeSource(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/playback", nil)

	if err := testServer().ServeSource(rr, req, path); err != nil {
		t.Fatalf("ServeSource() error = %v", err)
	}
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if rr.Body.String() != "0123456789" {
		t.Errorf("body = %q", rr.Body.String())
	}
	if got := rr.Header().Get("Content-Type"); got != "video/mp4" {
		t.Errorf("Content-Type = %q, want video/mp4", got)
	}
	if got := rr.Header().Get("Accept-Ranges"); got != "bytes" {
		t.Errorf("Accept-Ranges = %q", got)
	}
}

func TestServeSource_Range(t *testing.T) {
	path := writeSource(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/playback", nil)
	req.Header.Set("Range", "bytes=2-5")

	if err := testServer().ServeSource(rr, req, "file://"+path); err != nil {
		t.Fatalf("ServeSource() error = %v", err)
	}
	if rr.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", rr.Code)
	}
	if rr.Body.String() != "2345" {
		t.Errorf("body = %q, want 2345", rr.Body.String())
	}
	if got := rr.Header().Get("Content-Range"); got != "bytes 2-5/10" {
		t.Errorf("Content-Range = %q", got)
	}
}

func TestServeSource_Unsatisfiable(t *testing.T) {
	path := writeSource(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/playback", nil)
	req.Header.Set("Range", "bytes=50-")

	if err := testServer().ServeSource(rr, req, path); err != nil {
		t.Fatalf("ServeSource() error = %v", err)
	}
	if rr.Code != http.StatusRequestedRangeNotSatisfiable {
		t.Fatalf("status = %d, want 416", rr.Code)
	}
	if got := rr.Header().Get("Content-Range"); got != "bytes */10" {
		t.Errorf("Content-Range = %q", got)
	}
}

func TestServeSource_Head(t *testing.T) {
	path := writeSource(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodHead, "/playback", nil)

	if err := testServer().ServeSource(rr, req, path); err != nil {
		t.Fatalf("ServeSource() error = %v", err)
	}
	if rr.Body.Len() != 0 {
		t.Errorf("HEAD body length = %d, want 0", rr.Body.Len())
	}
	if got := rr.Header().Get("Content-Length"); got != "10" {
		t.Errorf("Content-Length = %q, want 10", got)
	}
}

func TestServeSource_Missing(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/playback", nil)

	if err := testServer().ServeSource(rr, req, filepath.Join(t.TempDir(), "nope.mp4")); err != nil {
		t.Fatalf("ServeSource() error = %v", err)
	}
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestServeSource_RemoteRedirects(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/playback", nil)

	if err := testServer().ServeSource(rr, req, "https://cdn.example.com/v.mp4"); err != nil {
		t.Fatalf("ServeSource() error = %v", err)
	}
	if rr.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want 307", rr.Code)
	}
	if got := rr.Header().Get("Location"); got != "https://cdn.example.com/v.mp4" {
		t.Errorf("Location = %q", got)
	}
}
