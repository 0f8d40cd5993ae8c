package engine

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const defaultCacheTTL = 5 * time.Minute

// Prober produces a fresh capability report.
type Prober interface {
	ProbeCapabilities(ctx context.Context) (*Capabilities, error)
}

// ProbeCapabilities resolves and runs `<bin> -version` for ffmpeg and ffprobe.
func (f *FFmpeg) ProbeCapabilities(ctx context.Context) (*Capabilities, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.ProbeTimeout)
	defer cancel()

	caps := &Capabilities{
		FFmpeg:   probeTool(ctx, f.cfg.FFmpegPath),
		FFprobe:  probeTool(ctx, f.cfg.FFprobePath),
		ProbedAt: time.Now(),
	}

	f.cfg.Logger.Info("engine probe complete",
		"ffmpeg", caps.FFmpeg.Available,
		"ffprobe", caps.FFprobe.Available,
		"ffmpeg_version", caps.FFmpeg.Version,
	)
	return caps, nil
}

func probeTool(ctx context.Context, bin string) ToolInfo {
	path, err := resolveBinary(bin)
	if err != nil {
		return ToolInfo{Error: err.Error()}
	}

	out, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return ToolInfo{Path: path, Error: fmt.Sprintf("%s -version: %v", path, err)}
	}
	return ToolInfo{Available: true, Path: path, Version: parseVersion(out)}
}

// resolveBinary finds a usable binary, preferring the configured value.
func resolveBinary(preferred string) (string, error) {
	if strings.TrimSpace(preferred) == "" {
		return "", fmt.Errorf("no binary configured")
	}
	p, err := exec.LookPath(preferred)
	if err != nil {
		return "", fmt.Errorf("binary %q not found", preferred)
	}
	return p, nil
}

// parseVersion extracts "6.1.1" from "ffmpeg version 6.1.1 Copyright ...".
func parseVersion(out []byte) string {
	sc := bufio.NewScanner(bytes.NewReader(out))
	if !sc.Scan() {
		return ""
	}
	fields := strings.Fields(sc.Text())
	for i, f := range fields {
		if f == "version" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return ""
}

// CachedDoctor caches capability probes with a TTL so status requests do not
// spawn subprocesses each time.
type CachedDoctor struct {
	prober Prober
	ttl    time.Duration
	logger *slog.Logger

	mu     sync.RWMutex
	cached *Capabilities
}

// NewCachedDoctor creates a caching wrapper around capability probes.
func NewCachedDoctor(prober Prober, logger *slog.Logger) *CachedDoctor {
	return &CachedDoctor{
		prober: prober,
		ttl:    defaultCacheTTL,
		logger: logger,
	}
}

// Get returns cached capabilities if fresh, otherwise re-probes.
func (d *CachedDoctor) Get(ctx context.Context) (*Capabilities, error) {
	d.mu.RLock()
	if d.cached != nil && time.Since(d.cached.ProbedAt) < d.ttl {
		caps := d.cached
		d.mu.RUnlock()
		return caps, nil
	}
	d.mu.RUnlock()

	return d.Refresh(ctx)
}

// Peek returns the cached report without probing.
func (d *CachedDoctor) Peek() *Capabilities {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cached
}

// Refresh forces a new probe regardless of cache freshness.
func (d *CachedDoctor) Refresh(ctx context.Context) (*Capabilities, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	caps, err := d.prober.ProbeCapabilities(ctx)
	if err != nil {
		d.logger.Warn("engine probe failed", "error", err)
		if d.cached != nil {
			d.logger.Info("returning stale capabilities cache")
			return d.cached, nil
		}
		return nil, err
	}

	d.cached = caps
	return caps, nil
}

// Invalidate clears the cached capabilities.
func (d *CachedDoctor) Invalidate() {
	d.mu.Lock()
	d.cached = nil
	d.mu.Unlock()
}
