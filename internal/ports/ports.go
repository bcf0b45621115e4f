package ports

import (
	"context"
	"time"

	"github.com/forPelevin/replaycast/internal/types"
)

// Transcriber talks to the external transcription endpoints. Both methods
// return the raw success body; parsing belongs to the caller.
type Transcriber interface {
	TranscribeFile(ctx context.Context, f types.MediaFile) ([]byte, error)
	TranscribeReference(ctx context.Context, reference string) ([]byte, error)
}

type Store interface {
	Dispatch(a types.Action)
	State() types.State
}

type Timer interface {
	Stop() bool
}

type Clock interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

type Scheduler interface {
	Start(seq types.Sequence, interval time.Duration) error
	Cancel()
}

type Player interface {
	PlayMuted(ctx context.Context, mediaURL string) error
}

// Notifier surfaces one-shot, user-visible messages.
type Notifier interface {
	Notify(msg string)
}

type NotifierFunc func(msg string)

func (f NotifierFunc) Notify(msg string) { f(msg) }

type VideoTool interface {
	ExtractAudioMono16k(ctx context.Context, in, outWav string) error
	ProbeDuration(ctx context.Context, in string) (time.Duration, error)
}

type ASR interface {
	Transcribe(ctx context.Context, wavPath, cacheDir string) (types.Transcript, error)
}

// CaptionSource returns the raw caption text (usually WebVTT) of a video.
type CaptionSource interface {
	Captions(ctx context.Context, videoID string, languages []string) (string, error)
}
