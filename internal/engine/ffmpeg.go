package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics

	// Grace period for stderr to drain after a cancelled process is killed.
	waitDelay = 5 * time.Second

	// CodecCopy selects stream copy instead of re-encoding trims.
	CodecCopy = "copy"
)

// Config holds the ffmpeg engine configuration.
type Config struct {
	FFmpegPath   string        // empty = "ffmpeg" from PATH
	FFprobePath  string        // empty = "ffprobe" from PATH
	VideoCodec   string        // trim video codec, or "copy"
	AudioCodec   string        // trim audio codec
	TrimTimeout  time.Duration // per trim subprocess
	MergeTimeout time.Duration // concat subprocess
	ProbeTimeout time.Duration // ffprobe and -version calls
	Logger       *slog.Logger
	DebugPaths   bool // if true, log full file paths; otherwise sanitise
}

// DefaultConfig returns production defaults.
func DefaultConfig(logger *slog.Logger) Config {
	return Config{
		FFmpegPath:   "ffmpeg",
		FFprobePath:  "ffprobe",
		VideoCodec:   "libx264",
		AudioCodec:   "aac",
		TrimTimeout:  30 * time.Minute,
		MergeTimeout: 30 * time.Minute,
		ProbeTimeout: 30 * time.Second,
		Logger:       logger,
	}
}

// FFmpeg is the production Engine backed by the ffmpeg and ffprobe CLIs.
type FFmpeg struct {
	cfg Config
}

// NewFFmpeg creates an ffmpeg-backed engine. Binaries are resolved when they
// are run so a missing install surfaces through the doctor, not at startup.
func NewFFmpeg(cfg Config) *FFmpeg {
	defaults := DefaultConfig(cfg.Logger)
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = defaults.FFmpegPath
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = defaults.FFprobePath
	}
	if cfg.VideoCodec == "" {
		cfg.VideoCodec = defaults.VideoCodec
	}
	if cfg.AudioCodec == "" {
		cfg.AudioCodec = defaults.AudioCodec
	}
	if cfg.TrimTimeout <= 0 {
		cfg.TrimTimeout = defaults.TrimTimeout
	}
	if cfg.MergeTimeout <= 0 {
		cfg.MergeTimeout = defaults.MergeTimeout
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaults.ProbeTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &FFmpeg{cfg: cfg}
}

// Trim runs `ffmpeg -ss start -i input -t duration ... output`.
func (f *FFmpeg) Trim(ctx context.Context, req TrimRequest) error {
	if !(req.End > req.Start) || req.Start < 0 {
		return fmt.Errorf("invalid trim range [%v, %v)", req.Start, req.End)
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.TrimTimeout)
	defer cancel()

	result, err := f.exec(ctx, f.cfg.FFmpegPath, req.Output, trimArgs(req, f.cfg.VideoCodec, f.cfg.AudioCodec)...)
	return asRunError("trim", result, err)
}

// Concat writes the concat demuxer manifest to ListPath and stream-copies
// Inputs into Output.
func (f *FFmpeg) Concat(ctx context.Context, req ConcatRequest) error {
	if len(req.Inputs) == 0 {
		return errors.New("concat requires at least one input")
	}
	if req.ListPath == "" {
		return errors.New("concat requires a list path")
	}
	if err := os.WriteFile(req.ListPath, []byte(concatList(req.Inputs)), 0644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.MergeTimeout)
	defer cancel()

	result, err := f.exec(ctx, f.cfg.FFmpegPath, req.Output, concatArgs(req.ListPath, req.Output)...)
	return asRunError("concat", result, err)
}

// ProbeDuration asks ffprobe for the container duration.
func (f *FFmpeg) ProbeDuration(ctx context.Context, ref string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.ProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, f.cfg.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		ref,
	)
	var stderrBuf bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}
	out, err := cmd.Output()
	if err != nil {
		return 0, &RunError{Op: "probe", ExitCode: exitCode(err), StderrTail: stderrBuf.String(), Err: err}
	}
	return parseProbeDuration(out)
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func parseProbeDuration(data []byte) (float64, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return 0, fmt.Errorf("cannot parse ffprobe JSON: %w", err)
	}
	if out.Format.Duration == "" {
		return 0, errors.New("ffprobe reported no duration")
	}
	d, err := strconv.ParseFloat(out.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid ffprobe duration %q: %w", out.Format.Duration, err)
	}
	if !(d > 0) {
		return 0, fmt.Errorf("ffprobe duration must be positive, got %v", d)
	}
	return d, nil
}

func trimArgs(req TrimRequest, videoCodec, audioCodec string) []string {
	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-ss", formatSeconds(req.Start),
		"-i", req.Input,
		"-t", formatSeconds(req.End - req.Start),
	}
	if videoCodec == CodecCopy {
		args = append(args, "-c", "copy")
	} else {
		args = append(args, "-c:v", videoCodec, "-c:a", audioCodec)
	}
	return append(args, "-avoid_negative_ts", "make_zero", req.Output)
}

func concatArgs(listPath, output string) []string {
	return []string{
		"-hide_banner", "-nostdin", "-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		output,
	}
}

// concatList renders the concat demuxer manifest. Single quotes inside paths
// are closed, escaped and reopened as the demuxer requires.
func concatList(inputs []string) string {
	var b strings.Builder
	for _, in := range inputs {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(in, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

// exec is the core subprocess execution helper.
func (f *FFmpeg) exec(ctx context.Context, bin, outPath string, args ...string) (RunResult, error) {
	start := time.Now()

	if outPath != "" {
		if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
			return RunResult{ExitCode: -1, StderrTail: err.Error(), Duration: time.Since(start)}, err
		}
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.WaitDelay = waitDelay

	// Capture stderr with bounded buffer
	var stderrBuf bytes.Buffer
	cmd.Stderr = io.Writer(&limitedWriter{w: &stderrBuf, limit: maxStderrBytes})
	cmd.Stdout = io.Discard

	f.cfg.Logger.Debug("executing engine command", "bin", bin, "args", args)

	err := cmd.Run()
	elapsed := time.Since(start)

	result := RunResult{
		ExitCode:   exitCode(err),
		StderrTail: stderrBuf.String(),
		Duration:   elapsed,
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		f.cfg.Logger.Warn("engine command failed",
			"bin", filepath.Base(bin),
			"exit_code", result.ExitCode,
			"duration_ms", elapsed.Milliseconds(),
			"error", err,
			"stderr_tail", truncate(result.StderrTail, 512),
		)
		return result, err
	}

	f.cfg.Logger.Info("engine command succeeded",
		"bin", filepath.Base(bin),
		"duration_ms", elapsed.Milliseconds(),
		"output", f.safePath(outPath),
	)
	return result, nil
}

func asRunError(op string, result RunResult, err error) error {
	if err == nil && result.IsSuccess() {
		return nil
	}
	return &RunError{Op: op, ExitCode: result.ExitCode, StderrTail: result.StderrTail, Err: err}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func (f *FFmpeg) safePath(path string) string {
	if f.cfg.DebugPaths {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Base(path)
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return filepath.Base(path)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		// Keep only the tail
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}
