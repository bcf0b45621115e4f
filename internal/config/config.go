// Package config loads replaycast settings: defaults, then an optional YAML
// file, then REPLAYCAST_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/forPelevin/replaycast/internal/dispatch"
	"github.com/forPelevin/replaycast/internal/ingest"
	"github.com/forPelevin/replaycast/internal/media"
	"github.com/forPelevin/replaycast/internal/ports/adapters/transcribeapi"
	"github.com/forPelevin/replaycast/internal/server"
)

const DefaultPath = "replaycast.yaml"

type Config struct {
	BaseURL      string   `yaml:"base_url"`
	AllowedHosts []string `yaml:"allowed_hosts"`
	// APIKey is only read from the environment.
	APIKey string `yaml:"-"`

	Interval       time.Duration `yaml:"interval"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	AcceptedTypes  []string      `yaml:"accepted_types"`
	Playback       bool          `yaml:"playback"`

	Server struct {
		Addr           string        `yaml:"addr"`
		MaxDuration    time.Duration `yaml:"max_duration"`
		MaxUploadBytes int64         `yaml:"max_upload_bytes"`
		TempDir        string        `yaml:"temp_dir"`
	} `yaml:"server"`

	Tools struct {
		FFmpeg       string `yaml:"ffmpeg"`
		FFprobe      string `yaml:"ffprobe"`
		FFplay       string `yaml:"ffplay"`
		YtDlp        string `yaml:"yt_dlp"`
		WhisperBin   string `yaml:"whisper_bin"`
		WhisperModel string `yaml:"whisper_model"`
	} `yaml:"tools"`
}

func Default() *Config {
	c := &Config{}
	c.BaseURL = transcribeapi.DefaultBaseURL
	c.Interval = dispatch.DefaultInterval
	c.RequestTimeout = ingest.DefaultRequestTimeout
	c.AcceptedTypes = append([]string(nil), media.DefaultAccepted...)
	c.Playback = true

	c.Server.Addr = "127.0.0.1:8000"
	c.Server.MaxDuration = server.DefaultMaxDuration
	c.Server.MaxUploadBytes = server.DefaultMaxUploadBytes

	c.Tools.FFmpeg = "ffmpeg"
	c.Tools.FFprobe = "ffprobe"
	c.Tools.FFplay = "ffplay"
	c.Tools.YtDlp = "yt-dlp"
	c.Tools.WhisperBin = ".cache/bin/whisper.cpp"
	c.Tools.WhisperModel = ".cache/models/ggml-base.bin"
	return c
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is fine unless mustExist is set.
func Load(path string, mustExist bool) (*Config, error) {
	return load(path, mustExist, os.Getenv)
}

func load(path string, mustExist bool, getenv func(string) string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !mustExist:
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	c.BaseURL = getenvDefault(getenv, "REPLAYCAST_BASE_URL", c.BaseURL)
	c.APIKey = getenvDefault(getenv, "REPLAYCAST_API_KEY", c.APIKey)
	c.Server.Addr = getenvDefault(getenv, "REPLAYCAST_ADDR", c.Server.Addr)
	c.Tools.WhisperBin = getenvDefault(getenv, "REPLAYCAST_WHISPER_BIN", c.Tools.WhisperBin)
	c.Tools.WhisperModel = getenvDefault(getenv, "REPLAYCAST_WHISPER_MODEL", c.Tools.WhisperModel)

	if v := getenv("REPLAYCAST_ALLOWED_HOSTS"); v != "" {
		c.AllowedHosts = strings.Split(v, ",")
	}
	if v := getenv("REPLAYCAST_INTERVAL"); v != "" {
		d, err := ParseDuration(v)
		if err != nil {
			return fmt.Errorf("REPLAYCAST_INTERVAL: %w", err)
		}
		c.Interval = d
	}
	if v := getenv("REPLAYCAST_REQUEST_TIMEOUT"); v != "" {
		d, err := ParseDuration(v)
		if err != nil {
			return fmt.Errorf("REPLAYCAST_REQUEST_TIMEOUT: %w", err)
		}
		c.RequestTimeout = d
	}
	return nil
}

func (c *Config) normalize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")

	hosts := c.AllowedHosts[:0]
	for _, h := range c.AllowedHosts {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	c.AllowedHosts = hosts

	types := c.AcceptedTypes[:0]
	for _, t := range c.AcceptedTypes {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			types = append(types, t)
		}
	}
	if len(types) == 0 {
		types = append(types, media.DefaultAccepted...)
	}
	c.AcceptedTypes = types
}

func (c *Config) Validate() error {
	if c.Interval < 0 {
		return fmt.Errorf("interval must be >= 0, got %s", c.Interval)
	}
	if c.Server.MaxUploadBytes < 0 {
		return fmt.Errorf("server.max_upload_bytes must be >= 0")
	}
	for _, t := range c.AcceptedTypes {
		if !strings.Contains(t, "/") {
			return fmt.Errorf("accepted type %q is not a media type", t)
		}
	}
	return transcribeapi.ValidateBaseURL(c.BaseURL, c.AllowedHosts)
}

// ParseDuration accepts Go duration syntax ("20s", "1m30s") or a bare integer
// number of milliseconds.
func ParseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return d, nil
}

func getenvDefault(getenv func(string) string, k, def string) string {
	v := getenv(k)
	if v == "" {
		return def
	}
	return v
}
