package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/forPelevin/replaycast/internal/types"
)

type fakeVideo struct {
	duration  time.Duration
	probeErr  error
	extracted []string
}

func (f *fakeVideo) ExtractAudioMono16k(_ context.Context, in, outWav string) error {
	f.extracted = append(f.extracted, in)
	return os.WriteFile(outWav, []byte("RIFF"), 0o644)
}

func (f *fakeVideo) ProbeDuration(context.Context, string) (time.Duration, error) {
	return f.duration, f.probeErr
}

type fakeASR struct {
	tr  types.Transcript
	err error
}

func (f *fakeASR) Transcribe(_ context.Context, wavPath, _ string) (types.Transcript, error) {
	if _, err := os.Stat(wavPath); err != nil {
		return types.Transcript{}, err
	}
	return f.tr, f.err
}

type fakeCaptions struct {
	text      string
	err       error
	gotID     string
	gotLangs  []string
	callCount int
}

func (f *fakeCaptions) Captions(_ context.Context, id string, langs []string) (string, error) {
	f.callCount++
	f.gotID = id
	f.gotLangs = langs
	return f.text, f.err
}

func newTestServer(v *fakeVideo, a *fakeASR, c *fakeCaptions) *httptest.Server {
	s := New(Deps{Video: v, ASR: a, Captions: c}, Options{})
	return httptest.NewServer(s.Handler())
}

func decode(t *testing.T, resp *http.Response) map[string]json.RawMessage {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func detailOf(t *testing.T, resp *http.Response) string {
	t.Helper()
	var d string
	if err := json.Unmarshal(decode(t, resp)["detail"], &d); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	return d
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestLookup_ReturnsCleanedChunks(t *testing.T) {
	c := &fakeCaptions{text: "WEBVTT\n\n00:00:00.000 --> 00:00:02.000\nthank you thank you world\n"}
	srv := newTestServer(&fakeVideo{}, &fakeASR{}, c)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/youtube_transcript/?chunk_size=10&languages=de,+en", `{"video":"https://youtu.be/dQw4w9WgXcQ"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var chunks []string
	if err := json.Unmarshal(decode(t, resp)["transcript"], &chunks); err != nil {
		t.Fatal(err)
	}
	want := []string{"thank you", "world"}
	if !reflect.DeepEqual(chunks, want) {
		t.Fatalf("chunks = %q, want %q", chunks, want)
	}
	if c.gotID != "dQw4w9WgXcQ" || !reflect.DeepEqual(c.gotLangs, []string{"de", "en"}) {
		t.Fatalf("unexpected captions call: %q %v", c.gotID, c.gotLangs)
	}
}

func TestLookup_DefaultLanguages(t *testing.T) {
	c := &fakeCaptions{text: "some words"}
	srv := newTestServer(&fakeVideo{}, &fakeASR{}, c)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/youtube_transcript/", `{"video":"dQw4w9WgXcQ"}`)
	resp.Body.Close()
	if !reflect.DeepEqual(c.gotLangs, []string{"en", "hi"}) {
		t.Fatalf("languages = %v", c.gotLangs)
	}
}

func TestLookup_Errors(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		body       string
		captions   *fakeCaptions
		wantStatus int
		wantDetail string
	}{
		{"missing video", "", `{}`, &fakeCaptions{}, 400, "Missing 'video' in request body"},
		{"empty video", "", `{"video":"  "}`, &fakeCaptions{}, 400, "Missing 'video' in request body"},
		{"non-string video", "", `{"video":12}`, &fakeCaptions{}, 400, "Missing 'video' in request body"},
		{"bad json", "", `{`, &fakeCaptions{}, 400, "Invalid JSON body"},
		{"bad id", "", `{"video":"https://example.com/x"}`, &fakeCaptions{}, 400, "Invalid YouTube URL or ID"},
		{"no captions", "", `{"video":"dQw4w9WgXcQ"}`, &fakeCaptions{err: errors.New("none")}, 502, "Transcript could not be retrieved"},
		{"only scaffolding", "", `{"video":"dQw4w9WgXcQ"}`, &fakeCaptions{text: "WEBVTT\n\n1\n"}, 502, "Transcript could not be retrieved"},
		{"bad chunk size", "?chunk_size=big", `{"video":"dQw4w9WgXcQ"}`, &fakeCaptions{}, 422, "chunk_size must be an integer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&fakeVideo{}, &fakeASR{}, tt.captions)
			defer srv.Close()

			resp := postJSON(t, srv.URL+"/youtube_transcript/"+tt.query, tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if got := detailOf(t, resp); got != tt.wantDetail {
				t.Fatalf("detail = %q, want %q", got, tt.wantDetail)
			}
		})
	}
}

func multipartBody(t *testing.T, field, filename, contentType string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()
	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.Copy(part, bytes.NewReader(payload)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return &b, w.FormDataContentType()
}

func TestTranscribe_ReturnsTextItems(t *testing.T) {
	v := &fakeVideo{duration: 90 * time.Second}
	a := &fakeASR{tr: types.Transcript{Segments: []types.TimedSegment{
		{Start: 0, End: 1, Text: "a"},
		{Start: 1, End: 2, Text: ""},
		{Start: 2, End: 3, Text: "b"},
	}}}
	srv := newTestServer(v, a, &fakeCaptions{})
	defer srv.Close()

	body, ct := multipartBody(t, "file", "clip.mp4", "video/mp4", []byte("data"))
	resp, err := http.Post(srv.URL+"/transcribe", ct, body)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var items []textItem
	if err := json.Unmarshal(decode(t, resp)["transcript"], &items); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(items, []textItem{{Text: "a"}, {Text: "b"}}) {
		t.Fatalf("items = %+v", items)
	}
	if len(v.extracted) != 1 || !strings.HasSuffix(v.extracted[0], ".mp4") {
		t.Fatalf("expected one extraction of the saved upload, got %v", v.extracted)
	}
}

func TestTranscribe_Errors(t *testing.T) {
	tests := []struct {
		name       string
		field      string
		ct         string
		video      *fakeVideo
		asr        *fakeASR
		wantStatus int
	}{
		{"wrong field", "upload", "video/mp4", &fakeVideo{}, &fakeASR{}, 400},
		{"unsupported type", "file", "video/webm", &fakeVideo{}, &fakeASR{}, 415},
		{"too long", "file", "audio/mpeg", &fakeVideo{duration: 2 * time.Hour}, &fakeASR{}, 413},
		{"probe fails", "file", "audio/mpeg", &fakeVideo{probeErr: errors.New("bad")}, &fakeASR{}, 400},
		{"asr fails", "file", "audio/mpeg", &fakeVideo{}, &fakeASR{err: errors.New("boom")}, 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(tt.video, tt.asr, &fakeCaptions{})
			defer srv.Close()

			body, ct := multipartBody(t, tt.field, "in.bin", tt.ct, []byte("data"))
			resp, err := http.Post(srv.URL+"/transcribe", ct, body)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if detailOf(t, resp) == "" {
				t.Fatalf("expected a detail message")
			}
		})
	}
}

func TestCORS_AllowsAnyOrigin(t *testing.T) {
	srv := newTestServer(&fakeVideo{}, &fakeASR{}, &fakeCaptions{})
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/transcribe", nil)
	req.Header.Set("Origin", "http://app.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestServe_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- Serve(ctx, "127.0.0.1:0", http.NotFoundHandler(), func(string, ...any) {})
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
}
