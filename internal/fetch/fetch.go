// Package fetch copies an export's source media into the scratch store. Remote
// sources (http, https) are downloaded with resty; local sources (file:// URIs
// or plain paths) are copied.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Fetcher persists a source reference to a local path.
type Fetcher interface {
	Fetch(ctx context.Context, sourceRef, dst string) (int64, error)
}

// StatusError is returned when a remote source answers with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.StatusCode)
}

// Config configures the default fetcher.
type Config struct {
	Timeout    time.Duration
	RetryCount int
	Logger     *slog.Logger
}

// SourceFetcher is the production Fetcher.
type SourceFetcher struct {
	client *resty.Client
	logger *slog.Logger
}

// New creates a fetcher with a dedicated resty client.
func New(cfg Config) *SourceFetcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	client := resty.New().
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("User-Agent", "heimdex-editor")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	return &SourceFetcher{client: client, logger: cfg.Logger}
}

// Fetch writes the media at sourceRef to dst and returns the byte count.
func (f *SourceFetcher) Fetch(ctx context.Context, sourceRef, dst string) (int64, error) {
	u, err := url.Parse(strings.TrimSpace(sourceRef))
	if err != nil {
		return 0, fmt.Errorf("invalid source reference: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return 0, fmt.Errorf("create destination dir: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return f.fetchHTTP(ctx, u.String(), dst)
	case "file":
		return copyLocal(ctx, u.Path, dst)
	case "":
		return copyLocal(ctx, sourceRef, dst)
	default:
		return 0, fmt.Errorf("unsupported source scheme %q", u.Scheme)
	}
}

func (f *SourceFetcher) fetchHTTP(ctx context.Context, rawURL, dst string) (int64, error) {
	start := time.Now()
	resp, err := f.client.R().
		SetContext(ctx).
		SetOutput(dst).
		Get(rawURL)
	if err != nil {
		return 0, fmt.Errorf("http request failed: %w", err)
	}
	if resp.IsError() {
		_ = os.Remove(dst)
		return 0, &StatusError{URL: rawURL, StatusCode: resp.StatusCode()}
	}

	info, err := os.Stat(dst)
	if err != nil {
		return 0, fmt.Errorf("stat downloaded source: %w", err)
	}
	if info.Size() == 0 {
		return 0, errors.New("source is empty")
	}

	f.logger.Info("source downloaded",
		"url", rawURL,
		"bytes", info.Size(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return info.Size(), nil
}

func copyLocal(ctx context.Context, src, dst string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("source %s is a directory", src)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	n, err := io.Copy(out, &ctxReader{ctx: ctx, r: in})
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, errors.New("source is empty")
	}
	return n, out.Close()
}

// Ext returns the media extension of a source reference, ".mp4" when none.
func Ext(sourceRef string) string {
	p := sourceRef
	if u, err := url.Parse(sourceRef); err == nil && u.Path != "" {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	if ext == "" || len(ext) > 6 || strings.ContainsAny(ext, `/\`) {
		return ".mp4"
	}
	return ext
}

// IsLocal reports whether sourceRef names a local file.
func IsLocal(sourceRef string) (string, bool) {
	u, err := url.Parse(sourceRef)
	if err != nil {
		return "", false
	}
	switch strings.ToLower(u.Scheme) {
	case "file":
		return u.Path, true
	case "":
		return sourceRef, true
	}
	return "", false
}

// ctxReader stops a local copy when the context is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
