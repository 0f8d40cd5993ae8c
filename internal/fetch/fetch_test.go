package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func testFetcher() *SourceFetcher {
	return New(Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
}

func TestFetch_HTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/video.mp4" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("fake-video-bytes"))
	}))
	defer server.Close()

	dst := filepath.Join(t.TempDir(), "job", "source.mp4")
	n, err := testFetcher().Fetch(context.Background(), server.URL+"/video.mp4", dst)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if n != int64(len("fake-video-bytes")) {
		t.Errorf("bytes = %d", n)
	}
	got, _ := os.ReadFile(dst)
	if string(got) != "fake-video-bytes" {
		t.Errorf("content = %q", got)
	}
}

func TestFetch_HTTPStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	dst := filepath.Join(t.TempDir(), "source.mp4")
	_, err := testFetcher().Fetch(context.Background(), server.URL+"/missing.mp4", dst)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("error = %v, want StatusError 404", err)
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Errorf("error body left on disk")
	}
}

func TestFetch_LocalPathAndFileURI(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.mov")
	os.WriteFile(src, []byte("local"), 0o644)

	for _, ref := range []string{src, "file://" + src} {
		dst := filepath.Join(t.TempDir(), "source.mov")
		n, err := testFetcher().Fetch(context.Background(), ref, dst)
		if err != nil {
			t.Fatalf("Fetch(%q) error = %v", ref, err)
		}
		if n != 5 {
			t.Errorf("Fetch(%q) bytes = %d, want 5", ref, n)
		}
	}
}

func TestFetch_Errors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.mp4")
	os.WriteFile(empty, nil, 0o644)

	tests := map[string]string{
		"missing file":       filepath.Join(dir, "nope.mp4"),
		"directory":          dir,
		"empty file":         empty,
		"unsupported scheme": "ftp://example.com/a.mp4",
	}
	for name, ref := range tests {
		t.Run(name, func(t *testing.T) {
			dst := filepath.Join(t.TempDir(), "source.mp4")
			if _, err := testFetcher().Fetch(context.Background(), ref, dst); err == nil {
				t.Fatalf("Fetch(%q) expected error", ref)
			}
		})
	}
}

func TestFetch_CancelledContext(t *testing.T) {
	src := filepath.Join(t.TempDir(), "in.mp4")
	os.WriteFile(src, []byte("data"), 0o644)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testFetcher().Fetch(ctx, src, filepath.Join(t.TempDir(), "o.mp4"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestExt(t *testing.T) {
	tests := map[string]string{
		"https://cdn.example.com/v/video.mp4?x=1": ".mp4",
		"https://cdn.example.com/v/clip.MOV":      ".mov",
		"/media/movie.mkv":                        ".mkv",
		"https://cdn.example.com/stream":          ".mp4",
		"file:///tmp/a.webm":                      ".webm",
	}
	for in, want := range tests {
		if got := Ext(in); got != want {
			t.Errorf("Ext(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsLocal(t *testing.T) {
	if p, ok := IsLocal("file:///tmp/a.mp4"); !ok || p != "/tmp/a.mp4" {
		t.Errorf("IsLocal(file URI) = %q, %v", p, ok)
	}
	if p, ok := IsLocal("/tmp/a.mp4"); !ok || p != "/tmp/a.mp4" {
		t.Errorf("IsLocal(path) = %q, %v", p, ok)
	}
	if _, ok := IsLocal("https://example.com/a.mp4"); ok {
		t.Errorf("IsLocal(https) = true")
	}
}
