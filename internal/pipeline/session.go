package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/forPelevin/replaycast/internal/clock"
	"github.com/forPelevin/replaycast/internal/dispatch"
	"github.com/forPelevin/replaycast/internal/drag"
	"github.com/forPelevin/replaycast/internal/ingest"
	"github.com/forPelevin/replaycast/internal/media"
	"github.com/forPelevin/replaycast/internal/ports"
	"github.com/forPelevin/replaycast/internal/state"
	"github.com/forPelevin/replaycast/internal/types"
)

type SessionDeps struct {
	Transcriber ports.Transcriber
	Player      ports.Player
	Notifier    ports.Notifier
	// Clock defaults to the system clock.
	Clock ports.Clock
	// Media defaults to a fresh registry. Share it with a Player that needs to
	// resolve media URLs.
	Media *media.Registry
	Logf  func(format string, args ...any)
}

type SessionOptions struct {
	Interval       time.Duration
	RequestTimeout time.Duration
	Accepted       []string
}

// Session is one hosting view: a state store, a dispatch timeline fed by
// ingestion, and a draggable preview surface. Close releases all of it.
type Session struct {
	store   *state.Store
	sched   *dispatch.Scheduler
	media   *media.Registry
	coord   *ingest.Coordinator
	doc     *drag.Document
	drag    *drag.Controller
	preview *previewSurface
}

func NewSession(d SessionDeps, opts SessionOptions) *Session {
	if d.Clock == nil {
		d.Clock = clock.System{}
	}
	if d.Media == nil {
		d.Media = media.NewRegistry()
	}
	if d.Logf == nil {
		d.Logf = func(string, ...any) {}
	}

	s := &Session{
		store:   state.New(types.State{}),
		media:   d.Media,
		doc:     drag.NewDocument(),
		preview: &previewSurface{},
	}
	s.sched = dispatch.New(s.store, d.Clock, dispatch.Options{Logf: d.Logf})
	s.coord = ingest.New(ingest.Deps{
		Transcriber: d.Transcriber,
		Scheduler:   s.sched,
		Player:      d.Player,
		Notifier:    d.Notifier,
		Media:       d.Media,
		Logf:        d.Logf,
	}, ingest.Options{
		Interval:       opts.Interval,
		RequestTimeout: opts.RequestTimeout,
		Accepted:       opts.Accepted,
	})
	s.drag = drag.NewController(s.doc, s.preview)
	return s
}

func (s *Session) SubmitFile(ctx context.Context, f types.MediaFile) error {
	return s.coord.SubmitFile(ctx, f)
}

func (s *Session) SubmitVideoReference(ctx context.Context, ref string) error {
	return s.coord.SubmitVideoReference(ctx, ref)
}

// Close cancels the timeline and any in-flight request, releases the media
// URL and ends an active drag. Nothing is dispatched afterwards.
func (s *Session) Close() {
	s.coord.Close()
	s.drag.End()
}

func (s *Session) Store() *state.Store            { return s.store }
func (s *Session) Scheduler() *dispatch.Scheduler { return s.sched }
func (s *Session) Upload() types.UploadState      { return s.coord.State() }
func (s *Session) Drag() *drag.Controller         { return s.drag }

// Input is where hosts forward raw pointer events while a drag is active.
func (s *Session) Input() *drag.Document { return s.doc }

// PreviewTransform is the CSS transform currently applied to the preview.
func (s *Session) PreviewTransform() string { return s.preview.transform() }

type previewSurface struct {
	mu  sync.Mutex
	css string
}

func (p *previewSurface) Translate(offset drag.Point) {
	p.mu.Lock()
	p.css = offset.Transform()
	p.mu.Unlock()
}

func (p *previewSurface) transform() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.css == "" {
		return drag.Point{}.Transform()
	}
	return p.css
}
