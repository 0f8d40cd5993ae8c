// Package config provides configuration management for the Heimdex editor.
// Values come from built-in defaults, an optional TOML file and environment
// variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	// Default values
	DefaultPort             = 8788
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "auto"
	DefaultDataDir          = ".heimdex-editor"
	DefaultFFmpegPath       = "ffmpeg"
	DefaultFFprobePath      = "ffprobe"
	DefaultVideoCodec       = "libx264"
	DefaultAudioCodec       = "aac"
	DefaultMaxParallelTrims = 0    // one subprocess per visible clip
	DefaultFetchTimeout     = 600  // seconds
	DefaultTrimTimeout      = 1800 // seconds
	DefaultMergeTimeout     = 1800 // seconds
	DefaultStaleScratchAge  = 24   // hours

	// Environment variable names
	EnvConfigFile       = "HEIMDEX_EDITOR_CONFIG"
	EnvPort             = "HEIMDEX_EDITOR_PORT"
	EnvLogLevel         = "HEIMDEX_EDITOR_LOG_LEVEL"
	EnvLogFormat        = "HEIMDEX_EDITOR_LOG_FORMAT"
	EnvDataDir          = "HEIMDEX_EDITOR_DATA_DIR"
	EnvFFmpegPath       = "HEIMDEX_EDITOR_FFMPEG_PATH"
	EnvFFprobePath      = "HEIMDEX_EDITOR_FFPROBE_PATH"
	EnvMaxParallelTrims = "HEIMDEX_EDITOR_MAX_PARALLEL_TRIMS"
	EnvFetchTimeout     = "HEIMDEX_EDITOR_FETCH_TIMEOUT_SECONDS"
	EnvTrimTimeout      = "HEIMDEX_EDITOR_TRIM_TIMEOUT_SECONDS"
	EnvMergeTimeout     = "HEIMDEX_EDITOR_MERGE_TIMEOUT_SECONDS"
	EnvVideoCodec       = "HEIMDEX_EDITOR_VIDEO_CODEC"
	EnvAudioCodec       = "HEIMDEX_EDITOR_AUDIO_CODEC"
	EnvStaleScratchAge  = "HEIMDEX_EDITOR_STALE_SCRATCH_HOURS"

	// Database filename
	DBFilename = "editor.db"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	LogFormat() string
	DataDir() string
	DBPath() string
	ScratchDir() string
	FFmpegPath() string
	FFprobePath() string
	VideoCodec() string
	AudioCodec() string
	MaxParallelTrims() int
	FetchTimeout() time.Duration
	TrimTimeout() time.Duration
	MergeTimeout() time.Duration
	StaleScratchAge() time.Duration
}

// fileConfig mirrors the TOML file. Zero values leave the default in place.
type fileConfig struct {
	Port                int    `toml:"port"`
	LogLevel            string `toml:"log_level"`
	LogFormat           string `toml:"log_format"`
	DataDir             string `toml:"data_dir"`
	FFmpegPath          string `toml:"ffmpeg_path"`
	FFprobePath         string `toml:"ffprobe_path"`
	MaxParallelTrims    *int   `toml:"max_parallel_trims"`
	FetchTimeoutSeconds int    `toml:"fetch_timeout_seconds"`
	TrimTimeoutSeconds  int    `toml:"trim_timeout_seconds"`
	MergeTimeoutSeconds int    `toml:"merge_timeout_seconds"`
	VideoCodec          string `toml:"video_codec"`
	AudioCodec          string `toml:"audio_codec"`
	StaleScratchHours   int    `toml:"stale_scratch_hours"`
}

// EnvConfig holds the resolved configuration.
type EnvConfig struct {
	port             int
	logLevel         string
	logFormat        string
	dataDir          string
	ffmpegPath       string
	ffprobePath      string
	videoCodec       string
	audioCodec       string
	maxParallelTrims int
	fetchTimeout     int
	trimTimeout      int
	mergeTimeout     int
	staleScratchAge  int

	file string
}

// New loads configuration from the file named by HEIMDEX_EDITOR_CONFIG, if any,
// and the environment.
func New() (*EnvConfig, error) {
	return Load(os.Getenv(EnvConfigFile))
}

// Load reads the TOML file at path (skipped when empty) and then applies
// environment overrides. A named file that does not exist is an error.
func Load(path string) (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:             DefaultPort,
		logLevel:         DefaultLogLevel,
		logFormat:        DefaultLogFormat,
		dataDir:          defaultDataDir(),
		ffmpegPath:       DefaultFFmpegPath,
		ffprobePath:      DefaultFFprobePath,
		videoCodec:       DefaultVideoCodec,
		audioCodec:       DefaultAudioCodec,
		maxParallelTrims: DefaultMaxParallelTrims,
		fetchTimeout:     DefaultFetchTimeout,
		trimTimeout:      DefaultTrimTimeout,
		mergeTimeout:     DefaultMergeTimeout,
		staleScratchAge:  DefaultStaleScratchAge,
	}

	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *EnvConfig) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file %s does not exist", path)
		}
		return fmt.Errorf("read config: %w", err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setInt(&c.port, fc.Port)
	setString(&c.logLevel, fc.LogLevel)
	setString(&c.logFormat, fc.LogFormat)
	setString(&c.dataDir, fc.DataDir)
	setString(&c.ffmpegPath, fc.FFmpegPath)
	setString(&c.ffprobePath, fc.FFprobePath)
	setString(&c.videoCodec, fc.VideoCodec)
	setString(&c.audioCodec, fc.AudioCodec)
	if fc.MaxParallelTrims != nil {
		c.maxParallelTrims = *fc.MaxParallelTrims
	}
	setInt(&c.fetchTimeout, fc.FetchTimeoutSeconds)
	setInt(&c.trimTimeout, fc.TrimTimeoutSeconds)
	setInt(&c.mergeTimeout, fc.MergeTimeoutSeconds)
	setInt(&c.staleScratchAge, fc.StaleScratchHours)
	c.file = path
	return nil
}

func (c *EnvConfig) applyEnv() error {
	strs := map[string]*string{
		EnvLogLevel:    &c.logLevel,
		EnvLogFormat:   &c.logFormat,
		EnvDataDir:     &c.dataDir,
		EnvFFmpegPath:  &c.ffmpegPath,
		EnvFFprobePath: &c.ffprobePath,
		EnvVideoCodec:  &c.videoCodec,
		EnvAudioCodec:  &c.audioCodec,
	}
	for name, dst := range strs {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		EnvPort:             &c.port,
		EnvMaxParallelTrims: &c.maxParallelTrims,
		EnvFetchTimeout:     &c.fetchTimeout,
		EnvTrimTimeout:      &c.trimTimeout,
		EnvMergeTimeout:     &c.mergeTimeout,
		EnvStaleScratchAge:  &c.staleScratchAge,
	}
	for name, dst := range ints {
		v := strings.TrimSpace(os.Getenv(name))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		*dst = n
	}
	return nil
}

func (c *EnvConfig) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", c.port)
	}
	if c.maxParallelTrims < 0 {
		return fmt.Errorf("max_parallel_trims must be >= 0, got %d", c.maxParallelTrims)
	}
	for name, v := range map[string]int{
		"fetch_timeout_seconds": c.fetchTimeout,
		"trim_timeout_seconds":  c.trimTimeout,
		"merge_timeout_seconds": c.mergeTimeout,
		"stale_scratch_hours":   c.staleScratchAge,
	} {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, v)
		}
	}
	switch strings.ToLower(c.logFormat) {
	case "auto", "json", "text":
	default:
		return fmt.Errorf("log_format must be auto, json or text, got %q", c.logFormat)
	}
	return nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// LogFormat returns auto, json or text.
func (c *EnvConfig) LogFormat() string {
	return strings.ToLower(c.logFormat)
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// ScratchDir returns the export scratch namespace.
func (c *EnvConfig) ScratchDir() string {
	return filepath.Join(c.dataDir, "scratch")
}

func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpegPath
}

func (c *EnvConfig) FFprobePath() string {
	return c.ffprobePath
}

func (c *EnvConfig) VideoCodec() string {
	return c.videoCodec
}

func (c *EnvConfig) AudioCodec() string {
	return c.audioCodec
}

func (c *EnvConfig) MaxParallelTrims() int {
	return c.maxParallelTrims
}

func (c *EnvConfig) FetchTimeout() time.Duration {
	return time.Duration(c.fetchTimeout) * time.Second
}

func (c *EnvConfig) TrimTimeout() time.Duration {
	return time.Duration(c.trimTimeout) * time.Second
}

func (c *EnvConfig) MergeTimeout() time.Duration {
	return time.Duration(c.mergeTimeout) * time.Second
}

func (c *EnvConfig) StaleScratchAge() time.Duration {
	return time.Duration(c.staleScratchAge) * time.Hour
}

// File returns the config file that was loaded, or "".
func (c *EnvConfig) File() string {
	return c.file
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
