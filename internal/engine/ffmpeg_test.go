package engine

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeScript creates an executable shell script standing in for ffmpeg.
func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fakes require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

// recordingFFmpeg records its arguments and creates the output (last argument).
func recordingFFmpeg(t *testing.T) (bin, argsFile string) {
	t.Helper()
	argsFile = filepath.Join(t.TempDir(), "args.txt")
	bin = writeScript(t, "ffmpeg", `printf '%s\n' "$@" > '`+argsFile+`'
for last; do :; done
echo media > "$last"
`)
	return bin, argsFile
}

func readArgs(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestTrimArgs(t *testing.T) {
	req := TrimRequest{Input: "/in.mp4", Output: "/out.mp4", Start: 10, End: 25.5}

	got := strings.Join(trimArgs(req, "libx264", "aac"), " ")
	want := "-hide_banner -nostdin -y -ss 10.000 -i /in.mp4 -t 15.500 -c:v libx264 -c:a aac -avoid_negative_ts make_zero /out.mp4"
	if got != want {
		t.Errorf("trimArgs() = %q\nwant %q", got, want)
	}

	got = strings.Join(trimArgs(req, CodecCopy, "aac"), " ")
	if !strings.Contains(got, "-c copy") || strings.Contains(got, "-c:v") {
		t.Errorf("copy codec args = %q", got)
	}
}

func TestConcatList_EscapesQuotes(t *testing.T) {
	got := concatList([]string{"/tmp/a.mp4", "/tmp/it's.mp4"})
	want := "file '/tmp/a.mp4'\nfile '/tmp/it'\\''s.mp4'\n"
	if got != want {
		t.Errorf("concatList() = %q, want %q", got, want)
	}
}

func TestParseProbeDuration(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    float64
		wantErr bool
	}{
		{"valid", `{"format":{"duration":"30.500000"}}`, 30.5, false},
		{"missing", `{"format":{}}`, 0, true},
		{"garbage", `not json`, 0, true},
		{"zero", `{"format":{"duration":"0"}}`, 0, true},
		{"not a number", `{"format":{"duration":"N/A"}}`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseProbeDuration([]byte(tt.in))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFFmpeg_Trim(t *testing.T) {
	bin, argsFile := recordingFFmpeg(t)
	f := NewFFmpeg(Config{FFmpegPath: bin, Logger: testLogger()})
	out := filepath.Join(t.TempDir(), "nested", "trim-000.mp4")

	err := f.Trim(context.Background(), TrimRequest{Input: "/src.mp4", Output: out, Start: 0, End: 10})
	if err != nil {
		t.Fatalf("Trim() error = %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("output not created: %v", err)
	}
	args := readArgs(t, argsFile)
	if args[len(args)-1] != out {
		t.Errorf("last arg = %q, want %q", args[len(args)-1], out)
	}
}

func TestFFmpeg_TrimRejectsInvalidRange(t *testing.T) {
	f := NewFFmpeg(Config{FFmpegPath: "/nonexistent", Logger: testLogger()})
	for _, r := range [][2]float64{{5, 5}, {10, 2}, {-1, 3}} {
		if err := f.Trim(context.Background(), TrimRequest{Start: r[0], End: r[1]}); err == nil {
			t.Errorf("Trim(%v) expected error", r)
		}
	}
}

func TestFFmpeg_TrimFailureCarriesStderr(t *testing.T) {
	bin := writeScript(t, "ffmpeg", "echo 'Invalid data found when processing input' >&2\nexit 1\n")
	f := NewFFmpeg(Config{FFmpegPath: bin, Logger: testLogger()})

	err := f.Trim(context.Background(), TrimRequest{Input: "/src.mp4", Output: filepath.Join(t.TempDir(), "o.mp4"), Start: 0, End: 1})
	var runErr *RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("error = %v, want *RunError", err)
	}
	if runErr.ExitCode != 1 || runErr.Op != "trim" {
		t.Errorf("RunError = %+v", runErr)
	}
	if !strings.Contains(runErr.StderrTail, "Invalid data") {
		t.Errorf("stderr tail = %q", runErr.StderrTail)
	}
}

func TestFFmpeg_TrimCancelled(t *testing.T) {
	bin := writeScript(t, "ffmpeg", "exec sleep 30\n")
	f := NewFFmpeg(Config{FFmpegPath: bin, Logger: testLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	err := f.Trim(ctx, TrimRequest{Input: "/src.mp4", Output: filepath.Join(t.TempDir(), "o.mp4"), Start: 0, End: 1})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if time.Since(start) > 10*time.Second {
		t.Fatalf("cancellation did not kill the subprocess promptly")
	}
}

func TestFFmpeg_Concat(t *testing.T) {
	bin, argsFile := recordingFFmpeg(t)
	f := NewFFmpeg(Config{FFmpegPath: bin, Logger: testLogger()})
	dir := t.TempDir()
	list := filepath.Join(dir, "concat.txt")
	out := filepath.Join(dir, "merged.mp4")

	err := f.Concat(context.Background(), ConcatRequest{
		Inputs:   []string{"/a.mp4", "/c.mp4"},
		ListPath: list,
		Output:   out,
	})
	if err != nil {
		t.Fatalf("Concat() error = %v", err)
	}

	manifest, _ := os.ReadFile(list)
	if string(manifest) != "file '/a.mp4'\nfile '/c.mp4'\n" {
		t.Errorf("manifest = %q", manifest)
	}
	args := strings.Join(readArgs(t, argsFile), " ")
	if !strings.Contains(args, "-f concat -safe 0 -i "+list+" -c copy "+out) {
		t.Errorf("args = %q", args)
	}
}

func TestFFmpeg_ConcatValidation(t *testing.T) {
	f := NewFFmpeg(Config{FFmpegPath: "/nonexistent", Logger: testLogger()})
	if err := f.Concat(context.Background(), ConcatRequest{ListPath: "x"}); err == nil {
		t.Errorf("expected error for empty inputs")
	}
	if err := f.Concat(context.Background(), ConcatRequest{Inputs: []string{"a"}}); err == nil {
		t.Errorf("expected error for missing list path")
	}
}

func TestFFmpeg_ProbeDuration(t *testing.T) {
	bin := writeScript(t, "ffprobe", `echo '{"format":{"duration":"30.000000"}}'`+"\n")
	f := NewFFmpeg(Config{FFprobePath: bin, Logger: testLogger()})

	d, err := f.ProbeDuration(context.Background(), "/src.mp4")
	if err != nil {
		t.Fatalf("ProbeDuration() error = %v", err)
	}
	if d != 30 {
		t.Errorf("duration = %v, want 30", d)
	}
}

func TestFFmpeg_ProbeCapabilities(t *testing.T) {
	ffmpegBin := writeScript(t, "ffmpeg", "echo 'ffmpeg version 6.1.1 Copyright (c) 2000-2023'\n")
	f := NewFFmpeg(Config{FFmpegPath: ffmpegBin, FFprobePath: "/nonexistent/ffprobe", Logger: testLogger()})

	caps, err := f.ProbeCapabilities(context.Background())
	if err != nil {
		t.Fatalf("ProbeCapabilities() error = %v", err)
	}
	if !caps.CanExport() || caps.FFmpeg.Version != "6.1.1" {
		t.Errorf("ffmpeg info = %+v", caps.FFmpeg)
	}
	if caps.CanProbe() || caps.FFprobe.Error == "" {
		t.Errorf("ffprobe info = %+v", caps.FFprobe)
	}
}

func TestRunResult_IsSuccess(t *testing.T) {
	tests := []struct {
		exitCode int
		want     bool
	}{
		{0, true},
		{1, false},
		{-1, false},
	}
	for _, tt := range tests {
		r := RunResult{ExitCode: tt.exitCode}
		if got := r.IsSuccess(); got != tt.want {
			t.Errorf("RunResult{ExitCode: %d}.IsSuccess() = %v, want %v", tt.exitCode, got, tt.want)
		}
	}
}

func TestLimitedWriter_KeepsOnlyTail(t *testing.T) {
	var buf bytes.Buffer
	lw := &limitedWriter{w: &buf, limit: 10}

	lw.Write([]byte("hello"))
	if buf.String() != "hello" {
		t.Errorf("after short write got %q, want %q", buf.String(), "hello")
	}

	lw.Write([]byte(" world of test data"))
	if got := buf.String(); got != " test data" {
		t.Errorf("after overflow got %q, want %q", got, " test data")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate("abcdefghij", 4); got != "...ghij" {
		t.Errorf("truncate long = %q", got)
	}
}

func TestSafePath(t *testing.T) {
	f := NewFFmpeg(Config{Logger: testLogger(), DebugPaths: true})
	if got := f.safePath("/a/b/c.mp4"); got != "/a/b/c.mp4" {
		t.Errorf("debug safePath = %q", got)
	}
	f = NewFFmpeg(Config{Logger: testLogger()})
	if got := f.safePath("/opt/media/c.mp4"); got != "c.mp4" {
		t.Errorf("production safePath = %q", got)
	}
}
