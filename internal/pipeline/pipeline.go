package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/forPelevin/replaycast/internal/media"
	"github.com/forPelevin/replaycast/internal/ports"
	"github.com/forPelevin/replaycast/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/replaycast/internal/ports/adapters/transcribeapi"
	"github.com/forPelevin/replaycast/internal/ports/adapters/whispercpp"
	"github.com/forPelevin/replaycast/internal/ports/adapters/ytdlp"
	"github.com/forPelevin/replaycast/internal/server"
	"github.com/forPelevin/replaycast/internal/types"
)

// Config drives one replay: a local media file or a video reference is
// transcribed and its segments are replayed until the timeline ends.
type Config struct {
	InputFile string
	Reference string

	Interval       time.Duration
	RequestTimeout time.Duration
	Accepted       []string

	BaseURL      string
	AllowedHosts []string
	APIKey       string

	Playback   bool
	FFplayPath string

	Logf   func(format string, args ...any)
	Notify func(msg string)
	// OnText receives every dispatched segment with its 1-based position.
	OnText func(n int, text string)
}

func (c Config) Validate() error {
	switch {
	case c.InputFile == "" && strings.TrimSpace(c.Reference) == "":
		return errors.New("input is empty")
	case c.InputFile != "" && c.Reference != "":
		return errors.New("give either a media file or a video reference, not both")
	}
	if c.InputFile != "" {
		if _, err := os.Stat(c.InputFile); err != nil {
			return fmt.Errorf("stat input: %w", err)
		}
	}
	if c.Interval < 0 {
		return fmt.Errorf("interval must be >= 0")
	}
	return transcribeapi.ValidateBaseURL(c.BaseURL, c.AllowedHosts)
}

func Run(ctx context.Context, cfg Config) error {
	logf := cfg.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}
	notify := cfg.Notify
	if notify == nil {
		notify = func(string) {}
	}

	// adapters
	reg := media.NewRegistry()
	client := transcribeapi.New(cfg.BaseURL, cfg.APIKey)
	var player ports.Player
	if cfg.Playback && cfg.InputFile != "" {
		ff := ffmpeg.New("", "", cfg.FFplayPath)
		ff.Resolve = reg.Resolve
		ff.Logf = logf
		player = ff
	}

	sess := NewSession(SessionDeps{
		Transcriber: client,
		Player:      player,
		Notifier:    ports.NotifierFunc(notify),
		Media:       reg,
		Logf:        logf,
	}, SessionOptions{
		Interval:       cfg.Interval,
		RequestTimeout: cfg.RequestTimeout,
		Accepted:       cfg.Accepted,
	})
	defer sess.Close()

	if cfg.OnText != nil {
		unsubscribe := sess.Store().Subscribe(func(st types.State) {
			cfg.OnText(st.Dispatched, st.SpokenLanguageText)
		})
		defer unsubscribe()
	}

	logf("transcription service: %s", client.BaseURL())
	if err := submit(ctx, sess, cfg); err != nil {
		return err
	}

	select {
	case <-sess.Scheduler().Done():
		logf("replay finished: %d segments dispatched", sess.Scheduler().Cursor())
	case <-ctx.Done():
		logf("replay interrupted after %d segments", sess.Scheduler().Cursor())
	}
	return nil
}

func submit(ctx context.Context, sess *Session, cfg Config) error {
	if cfg.InputFile == "" {
		if err := sess.SubmitVideoReference(ctx, cfg.Reference); err != nil {
			return fmt.Errorf("lookup: %w", err)
		}
		return nil
	}

	f, err := media.Detect(cfg.InputFile)
	if err != nil {
		return fmt.Errorf("inspect input: %w", err)
	}
	if err := sess.SubmitFile(ctx, f); err != nil {
		return fmt.Errorf("transcribe %s: %w", f.Name, err)
	}
	return nil
}

// ServerConfig drives the transcription server.
type ServerConfig struct {
	Addr           string
	MaxDuration    time.Duration
	MaxUploadBytes int64
	Accepted       []string
	TempDir        string

	FFmpegPath   string
	FFprobePath  string
	YtDlpPath    string
	WhisperBin   string
	WhisperModel string

	Logf func(format string, args ...any)
}

func (c ServerConfig) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return errors.New("listen address is empty")
	}
	if c.WhisperModel == "" {
		return fmt.Errorf("whisper model path is required")
	}
	return nil
}

func RunServer(ctx context.Context, cfg ServerConfig) error {
	logf := cfg.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}

	v := ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath, "")
	asr := whispercpp.New(cfg.WhisperBin, cfg.WhisperModel)
	yt := ytdlp.New(cfg.YtDlpPath)
	yt.Logf = logf

	srv := server.New(server.Deps{
		Video:    v,
		ASR:      asr,
		Captions: yt,
		Logf:     logf,
	}, server.Options{
		MaxDuration:    cfg.MaxDuration,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Accepted:       cfg.Accepted,
		TempDir:        cfg.TempDir,
	})
	return server.Serve(ctx, cfg.Addr, srv.Handler(), logf)
}

// ensure adapters implement ports
var _ ports.Transcriber = (*transcribeapi.Adapter)(nil)
var _ ports.VideoTool = (*ffmpeg.Adapter)(nil)
var _ ports.Player = (*ffmpeg.Adapter)(nil)
var _ ports.ASR = (*whispercpp.Adapter)(nil)
var _ ports.CaptionSource = (*ytdlp.Adapter)(nil)
