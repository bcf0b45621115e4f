package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/forPelevin/replaycast/internal/media"
	"github.com/forPelevin/replaycast/internal/ports"
	"github.com/forPelevin/replaycast/internal/types"
)

const (
	DefaultInterval       = 20 * time.Second
	DefaultRequestTimeout = 2 * time.Minute
)

const (
	msgUnsupported   = "Only MP4 or audio files are supported."
	msgFileFailed    = "Transcription failed"
	msgLookupFailed  = "Failed to fetch the transcript."
	msgStartedFormat = "Transcript fetching started. Items will dispatch every %s."
)

// ErrSuperseded is returned for a response that arrived after a newer
// submission (or Close) replaced it. The response is discarded.
var ErrSuperseded = errors.New("ingest: submission superseded")

type Deps struct {
	Transcriber ports.Transcriber
	Scheduler   ports.Scheduler
	Player      ports.Player
	Notifier    ports.Notifier
	Media       *media.Registry
	Logf        func(format string, args ...any)
}

type Options struct {
	Interval time.Duration
	// RequestTimeout bounds one transcription call. Zero means
	// DefaultRequestTimeout; negative means no bound.
	RequestTimeout time.Duration
	Accepted       []string
}

type Coordinator struct {
	d    Deps
	opts Options

	mu       sync.Mutex
	gen      uint64
	state    types.UploadState
	cancelRq context.CancelFunc
}

func New(d Deps, opts Options) *Coordinator {
	if d.Logf == nil {
		d.Logf = func(string, ...any) {}
	}
	if d.Notifier == nil {
		d.Notifier = ports.NotifierFunc(func(string) {})
	}
	if d.Media == nil {
		d.Media = media.NewRegistry()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if len(opts.Accepted) == 0 {
		opts.Accepted = media.DefaultAccepted
	}
	return &Coordinator{d: d, opts: opts}
}

func (c *Coordinator) State() types.UploadState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SubmitFile validates f, then transcribes it and hands the result to the
// scheduler. It blocks until the transcription call resolves.
func (c *Coordinator) SubmitFile(ctx context.Context, f types.MediaFile) error {
	if !media.Accepts(f.ContentType, c.opts.Accepted) {
		c.d.Notifier.Notify(msgUnsupported)
		return &types.UnsupportedMediaError{ContentType: f.ContentType}
	}

	gen, reqCtx, mediaURL := c.begin(ctx, &f)
	defer c.endRequest(gen)
	c.d.Logf("uploading %s (%s, %d bytes)", f.Name, f.ContentType, f.Size)

	c.setPhase(gen, types.PhaseTranscribing)
	body, err := c.d.Transcriber.TranscribeFile(reqCtx, f)
	return c.finish(ctx, gen, body, err, mediaURL, msgFileFailed)
}

// SubmitVideoReference looks a transcript up by reference (a URL or id).
func (c *Coordinator) SubmitVideoReference(ctx context.Context, reference string) error {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return errors.New("video reference is empty")
	}

	gen, reqCtx, _ := c.begin(ctx, nil)
	defer c.endRequest(gen)
	c.d.Logf("looking up transcript for %s", reference)

	c.setPhase(gen, types.PhaseTranscribing)
	body, err := c.d.Transcriber.TranscribeReference(reqCtx, reference)
	return c.finish(ctx, gen, body, err, "", msgLookupFailed)
}

// Close tears the view down: the in-flight request and the live timeline are
// cancelled and the media URL is released. Safe to call more than once.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.supersedeLocked()
	c.state = types.UploadState{Phase: types.PhaseIdle}
}

// begin invalidates whatever the previous submission left behind and opens a
// new generation.
func (c *Coordinator) begin(ctx context.Context, f *types.MediaFile) (uint64, context.Context, string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	c.supersedeLocked()

	var mediaURL string
	if f != nil {
		mediaURL = c.d.Media.Create(*f)
	}
	c.state = types.UploadState{Phase: types.PhaseUploading, MediaURL: mediaURL}

	var (
		reqCtx context.Context
		cancel context.CancelFunc
	)
	if c.opts.RequestTimeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, c.opts.RequestTimeout)
	} else {
		reqCtx, cancel = context.WithCancel(ctx)
	}
	c.cancelRq = cancel
	return c.gen, reqCtx, mediaURL
}

func (c *Coordinator) supersedeLocked() {
	if c.cancelRq != nil {
		c.cancelRq()
		c.cancelRq = nil
	}
	c.d.Scheduler.Cancel()
	if c.state.MediaURL != "" {
		c.d.Media.Revoke(c.state.MediaURL)
		c.state.MediaURL = ""
	}
}

func (c *Coordinator) endRequest(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen == gen && c.cancelRq != nil {
		c.cancelRq()
		c.cancelRq = nil
	}
}

func (c *Coordinator) setPhase(gen uint64, p types.UploadPhase) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.state.Phase = p
	return true
}

func (c *Coordinator) finish(ctx context.Context, gen uint64, body []byte, callErr error, mediaURL, genericMsg string) error {
	var seq types.Sequence
	err := callErr
	if err == nil {
		seq, err = ParseTranscript(body)
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		c.d.Logf("discarding response of a superseded submission")
		return ErrSuperseded
	}
	if err != nil {
		c.state.Phase = types.PhaseFailed
		c.mu.Unlock()

		c.d.Logf("transcription failed: %v", err)
		c.d.Notifier.Notify(userMessage(err, genericMsg))
		return err
	}

	c.state.Phase = types.PhaseReady
	// started under the lock so a superseded response can never start a
	// second timeline
	startErr := c.d.Scheduler.Start(seq, c.opts.Interval)
	c.mu.Unlock()
	if startErr != nil {
		return fmt.Errorf("start dispatch: %w", startErr)
	}

	c.d.Logf("transcript received: %d segments", len(seq))
	if mediaURL != "" && c.d.Player != nil {
		if err := c.d.Player.PlayMuted(ctx, mediaURL); err != nil {
			c.d.Logf("autoplay blocked: %v", err)
		}
	}
	c.d.Notifier.Notify(fmt.Sprintf(msgStartedFormat, formatInterval(c.opts.Interval)))
	return nil
}

func userMessage(err error, generic string) string {
	var tre *types.TranscriptionRequestError
	if errors.As(err, &tre) && strings.TrimSpace(tre.Detail) != "" {
		return tre.Detail
	}
	return generic
}

func formatInterval(d time.Duration) string {
	if d%time.Second == 0 {
		return fmt.Sprintf("%ds", int64(d/time.Second))
	}
	return d.String()
}
