package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

type Adapter struct {
	ffmpeg  string
	ffprobe string
	ffplay  string

	// Resolve maps a media URL to a local path for playback.
	Resolve func(mediaURL string) (string, bool)
	Logf    func(format string, args ...any)
}

func New(ffmpegPath, ffprobePath, ffplayPath string) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if ffplayPath == "" {
		ffplayPath = "ffplay"
	}
	return &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath, ffplay: ffplayPath}
}

func (a *Adapter) ExtractAudioMono16k(ctx context.Context, in, outWav string) error {
	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-y",
		"-i", in,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		outWav,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg extract audio: %w\n%s", err, string(b))
	}
	return nil
}

func (a *Adapter) ProbeDuration(ctx context.Context, in string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		in,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w\n%s", err, string(b))
	}
	return parseDuration(string(b))
}

func parseDuration(out string) (time.Duration, error) {
	s := strings.TrimSpace(out)
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	if sec < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return time.Duration(sec * float64(time.Second)), nil
}

// PlayMuted starts a muted preview of mediaURL and returns once the player is
// running. The player exits at end of media or when ctx is done.
func (a *Adapter) PlayMuted(ctx context.Context, mediaURL string) error {
	path := mediaURL
	if a.Resolve != nil {
		p, ok := a.Resolve(mediaURL)
		if !ok {
			return fmt.Errorf("play %s: media url is not live", mediaURL)
		}
		path = p
	}

	cmd := exec.CommandContext(ctx, a.ffplay, playArgs(path)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffplay start: %w", err)
	}
	go func() {
		if err := cmd.Wait(); err != nil && ctx.Err() == nil && a.Logf != nil {
			a.Logf("ffplay exited: %v", err)
		}
	}()
	return nil
}

func playArgs(path string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-an",
		"-autoexit",
		"-window_title", "replaycast preview",
		path,
	}
}
