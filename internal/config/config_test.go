package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := load(filepath.Join(t.TempDir(), "none.yaml"), false, envMap(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Interval != 20*time.Second {
		t.Fatalf("interval = %s", cfg.Interval)
	}
	if cfg.RequestTimeout != 2*time.Minute {
		t.Fatalf("request timeout = %s", cfg.RequestTimeout)
	}
	if !reflect.DeepEqual(cfg.AcceptedTypes, []string{"video/mp4", "audio/*"}) {
		t.Fatalf("accepted = %v", cfg.AcceptedTypes)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoad_MissingFileRequired(t *testing.T) {
	if _, err := load(filepath.Join(t.TempDir(), "none.yaml"), true, envMap(nil)); err == nil {
		t.Fatalf("expected error for a required missing file")
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replaycast.yaml")
	yml := `
base_url: "https://transcribe.internal/"
allowed_hosts: ["transcribe.internal", " "]
interval: 5s
accepted_types: [" Audio/* "]
playback: false
server:
  addr: ":9000"
  max_duration: 30m
tools:
  yt_dlp: /opt/yt-dlp
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := load(path, true, envMap(map[string]string{
		"REPLAYCAST_REQUEST_TIMEOUT": "1500",
		"REPLAYCAST_ADDR":            "127.0.0.1:7000",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.BaseURL != "https://transcribe.internal" {
		t.Fatalf("base url = %q", cfg.BaseURL)
	}
	if !reflect.DeepEqual(cfg.AllowedHosts, []string{"transcribe.internal"}) {
		t.Fatalf("allowed hosts = %v", cfg.AllowedHosts)
	}
	if cfg.Interval != 5*time.Second || cfg.RequestTimeout != 1500*time.Millisecond {
		t.Fatalf("durations = %s, %s", cfg.Interval, cfg.RequestTimeout)
	}
	if !reflect.DeepEqual(cfg.AcceptedTypes, []string{"audio/*"}) {
		t.Fatalf("accepted = %v", cfg.AcceptedTypes)
	}
	if cfg.Playback {
		t.Fatalf("playback should be disabled")
	}
	if cfg.Server.Addr != "127.0.0.1:7000" || cfg.Server.MaxDuration != 30*time.Minute {
		t.Fatalf("server = %+v", cfg.Server)
	}
	if cfg.Tools.YtDlp != "/opt/yt-dlp" || cfg.Tools.FFmpeg != "ffmpeg" {
		t.Fatalf("tools = %+v", cfg.Tools)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validate error: %v", err)
	}
}

func TestLoad_BadInput(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("interval: [1, 2"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := load(bad, true, envMap(nil)); err == nil {
		t.Fatalf("expected yaml error")
	}
	if _, err := load(filepath.Join(dir, "none.yaml"), false, envMap(map[string]string{"REPLAYCAST_INTERVAL": "soon"})); err == nil {
		t.Fatalf("expected env duration error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero interval", func(c *Config) { c.Interval = 0 }, false},
		{"negative interval", func(c *Config) { c.Interval = -time.Second }, true},
		{"negative timeout means unbounded", func(c *Config) { c.RequestTimeout = -1 }, false},
		{"remote http", func(c *Config) {
			c.BaseURL = "http://transcribe.internal"
			c.AllowedHosts = []string{"transcribe.internal"}
		}, true},
		{"unknown host", func(c *Config) { c.BaseURL = "https://evil.example" }, true},
		{"bad accepted type", func(c *Config) { c.AcceptedTypes = []string{"mp4"} }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := map[string]time.Duration{
		"20000":  20 * time.Second,
		"20s":    20 * time.Second,
		" 1m30s": 90 * time.Second,
		"0":      0,
	}
	for in, want := range tests {
		got, err := ParseDuration(in)
		if err != nil || got != want {
			t.Fatalf("ParseDuration(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
}
