// Package server exposes the transcription endpoints the client talks to:
// upload transcription and caption lookup by video reference.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/forPelevin/replaycast/internal/domain/captions"
	"github.com/forPelevin/replaycast/internal/media"
	"github.com/forPelevin/replaycast/internal/ports"
)

const (
	DefaultMaxDuration    = time.Hour
	DefaultMaxUploadBytes = 512 << 20
	DefaultLanguages      = "en,hi"

	maxLookupBody = 64 << 10
	formMemory    = 32 << 20
)

type Deps struct {
	Video    ports.VideoTool
	ASR      ports.ASR
	Captions ports.CaptionSource
	Logf     func(format string, args ...any)
}

type Options struct {
	// MaxDuration rejects longer uploads. Zero means DefaultMaxDuration;
	// negative disables the check.
	MaxDuration    time.Duration
	MaxUploadBytes int64
	Accepted       []string
	TempDir        string
}

type Server struct {
	d    Deps
	opts Options
}

func New(d Deps, opts Options) *Server {
	if d.Logf == nil {
		d.Logf = func(string, ...any) {}
	}
	if opts.MaxDuration == 0 {
		opts.MaxDuration = DefaultMaxDuration
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if len(opts.Accepted) == 0 {
		opts.Accepted = media.DefaultAccepted
	}
	return &Server{d: d, opts: opts}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/transcribe", s.handleTranscribe)
	r.Post("/youtube_transcript/", s.handleLookup)
	r.Post("/youtube_transcript", s.handleLookup)
	return r
}

// Serve runs the HTTP server until ctx is done, then shuts it down gracefully.
func Serve(ctx context.Context, addr string, h http.Handler, logf func(format string, args ...any)) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logf("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	chunkSize, err := intParam(q.Get("chunk_size"), captions.DefaultChunkSize)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "chunk_size must be an integer")
		return
	}
	chunkOverlap, err := intParam(q.Get("chunk_overlap"), captions.DefaultChunkOverlap)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "chunk_overlap must be an integer")
		return
	}
	languages := splitLanguages(q.Get("languages"))

	var body struct {
		Video any `json:"video"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLookupBody)).Decode(&body); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	ref, _ := body.Video.(string)
	if strings.TrimSpace(ref) == "" {
		writeDetail(w, http.StatusBadRequest, "Missing 'video' in request body")
		return
	}
	id, ok := captions.ExtractVideoID(ref)
	if !ok {
		writeDetail(w, http.StatusBadRequest, "Invalid YouTube URL or ID")
		return
	}

	raw, err := s.d.Captions.Captions(r.Context(), id, languages)
	if err != nil {
		s.d.Logf("captions %s: %v", id, err)
		writeDetail(w, http.StatusBadGateway, "Transcript could not be retrieved")
		return
	}
	text := captions.Clean(raw)
	if text == "" {
		writeDetail(w, http.StatusBadGateway, "Transcript could not be retrieved")
		return
	}

	chunks := captions.Chunk(text, chunkSize, chunkOverlap)
	if chunks == nil {
		chunks = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"transcript": chunks})
}

type textItem struct {
	Text string `json:"text"`
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(formMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDetail(w, http.StatusRequestEntityTooLarge, "Upload is too large")
			return
		}
		writeDetail(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Missing 'file' in form data")
		return
	}
	defer file.Close()

	if !media.Accepts(hdr.Header.Get("Content-Type"), s.opts.Accepted) {
		writeDetail(w, http.StatusUnsupportedMediaType, "Only MP4 or audio files are supported.")
		return
	}

	work, err := os.MkdirTemp(s.opts.TempDir, "replaycast-")
	if err != nil {
		s.d.Logf("temp dir: %v", err)
		writeDetail(w, http.StatusInternalServerError, "Transcription failed")
		return
	}
	defer os.RemoveAll(work)

	in := filepath.Join(work, "input"+filepath.Ext(filepath.Base(hdr.Filename)))
	if err := saveUpload(file, in); err != nil {
		s.d.Logf("save upload: %v", err)
		writeDetail(w, http.StatusInternalServerError, "Transcription failed")
		return
	}

	ctx := r.Context()
	if s.opts.MaxDuration > 0 {
		d, err := s.d.Video.ProbeDuration(ctx, in)
		if err != nil {
			s.d.Logf("probe %s: %v", hdr.Filename, err)
			writeDetail(w, http.StatusBadRequest, "Could not read media duration")
			return
		}
		if d > s.opts.MaxDuration {
			writeDetail(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("Media is %s long; the limit is %s", d.Round(time.Second), s.opts.MaxDuration))
			return
		}
	}

	wav := filepath.Join(work, "audio.wav")
	if err := s.d.Video.ExtractAudioMono16k(ctx, in, wav); err != nil {
		s.d.Logf("extract audio: %v", err)
		writeDetail(w, http.StatusInternalServerError, "Transcription failed")
		return
	}
	tr, err := s.d.ASR.Transcribe(ctx, wav, work)
	if err != nil {
		s.d.Logf("asr: %v", err)
		writeDetail(w, http.StatusInternalServerError, "Transcription failed")
		return
	}

	seq := tr.Sequence()
	items := make([]textItem, 0, len(seq))
	for _, seg := range seq {
		items = append(items, textItem{Text: seg.Text})
	}
	s.d.Logf("transcribed %s: %d segments", hdr.Filename, len(items))
	writeJSON(w, http.StatusOK, map[string]any{"transcript": items})
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.d.Logf("[%s] %s %s -> %d (%s)",
			middleware.GetReqID(r.Context()), r.Method, r.URL.Path, ww.Status(), time.Since(start).Round(time.Millisecond))
	})
}

func intParam(v string, def int) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func splitLanguages(v string) []string {
	if strings.TrimSpace(v) == "" {
		v = DefaultLanguages
	}
	var out []string
	for _, l := range strings.Split(v, ",") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
