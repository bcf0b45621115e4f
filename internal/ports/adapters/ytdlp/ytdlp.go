// Package ytdlp discovers and downloads caption tracks with yt-dlp.
package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"sort"
	"strings"
	"time"
)

const (
	fetchTimeout = 10 * time.Second
	maxTrackBody = 8 << 20
)

var ErrNoCaptions = errors.New("ytdlp: no caption track could be fetched")

type Adapter struct {
	bin    string
	client *http.Client
	run    func(ctx context.Context, name string, args ...string) ([]byte, error)
	Logf   func(format string, args ...any)
}

func New(binPath string) *Adapter {
	if binPath == "" {
		binPath = "yt-dlp"
	}
	return &Adapter{
		bin:    binPath,
		client: &http.Client{Timeout: fetchTimeout},
		run:    runCommand,
	}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w\n%s", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// Captions returns the raw text of the first caption track that downloads
// with a non-empty body. Tracks are tried in this order: uploaded subtitles in
// language preference order, automatic captions in language preference order,
// then every remaining track.
func (a *Adapter) Captions(ctx context.Context, videoID string, languages []string) (string, error) {
	args := []string{
		"--no-config",
		"--no-warnings",
		"--quiet",
		"--skip-download",
		"--write-subs",
		"--write-auto-subs",
		"-j",
	}
	if len(languages) > 0 {
		args = append(args, "--sub-langs", strings.Join(languages, ","))
	}
	args = append(args, "https://www.youtube.com/watch?v="+videoID)

	out, err := a.run(ctx, a.bin, args...)
	if err != nil {
		return "", fmt.Errorf("yt-dlp info: %w", err)
	}
	var info videoInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return "", fmt.Errorf("decode yt-dlp info: %w", err)
	}

	for _, u := range pickTracks(info, languages) {
		text, err := a.fetch(ctx, u)
		if err != nil {
			a.logf("caption track skipped: %v", err)
			continue
		}
		if strings.TrimSpace(text) != "" {
			return text, nil
		}
	}
	return "", ErrNoCaptions
}

func (a *Adapter) fetch(ctx context.Context, u string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("caption track status %s", resp.Status)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxTrackBody))
	if err != nil {
		return "", fmt.Errorf("read caption track: %w", err)
	}
	return string(b), nil
}

func (a *Adapter) logf(format string, args ...any) {
	if a.Logf != nil {
		a.Logf(format, args...)
	}
}

type videoInfo struct {
	RequestedSubtitles map[string]json.RawMessage `json:"requested_subtitles"`
	AutomaticCaptions  map[string]json.RawMessage `json:"automatic_captions"`
}

type trackFormat struct {
	Ext string `json:"ext"`
	URL string `json:"url"`
}

// trackURL reads an entry that is either one format object or a list of
// formats. From a list, a vtt format is preferred.
func trackURL(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '{':
		var f trackFormat
		if err := json.Unmarshal(raw, &f); err == nil {
			return f.URL
		}
	case '[':
		var fs []trackFormat
		if err := json.Unmarshal(raw, &fs); err != nil || len(fs) == 0 {
			return ""
		}
		for _, f := range fs {
			if f.Ext == "vtt" && f.URL != "" {
				return f.URL
			}
		}
		return fs[0].URL
	}
	return ""
}

func pickTracks(info videoInfo, languages []string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(raw json.RawMessage) {
		u := trackURL(raw)
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		out = append(out, u)
	}

	for _, lang := range languages {
		add(info.RequestedSubtitles[lang])
	}
	for _, lang := range languages {
		add(info.AutomaticCaptions[lang])
	}
	for _, m := range []map[string]json.RawMessage{info.RequestedSubtitles, info.AutomaticCaptions} {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			add(m[k])
		}
	}
	return out
}
