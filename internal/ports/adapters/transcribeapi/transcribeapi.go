// Package transcribeapi is the HTTP client for the transcription service.
package transcribeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/forPelevin/replaycast/internal/types"
)

const (
	transcribePath = "/transcribe"
	lookupPath     = "/youtube_transcript/"

	maxErrBody     = 4096
	maxDetailRunes = 400
	maxBody        = 32 << 20
)

type Adapter struct {
	key     string
	baseURL string
	client  *http.Client
}

// New returns a client for baseURL. apiKey is optional; when set it is sent as
// a bearer token. Request deadlines come from the caller's context.
func New(baseURL, apiKey string) *Adapter {
	return &Adapter{
		key:     apiKey,
		baseURL: normalizeBaseURL(baseURL),
		client:  &http.Client{Timeout: 10 * time.Minute},
	}
}

func (a *Adapter) BaseURL() string { return a.baseURL }

func (a *Adapter) TranscribeFile(ctx context.Context, f types.MediaFile) ([]byte, error) {
	fd, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Path, err)
	}
	defer fd.Close()

	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName(f)))
	h.Set("Content-Type", f.ContentType)
	fw, err := w.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(fw, fd); err != nil {
		return nil, fmt.Errorf("copy media: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	return a.post(ctx, transcribePath, w.FormDataContentType(), &b)
}

func (a *Adapter) TranscribeReference(ctx context.Context, reference string) ([]byte, error) {
	body, err := json.Marshal(map[string]string{"video": reference})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return a.post(ctx, lookupPath, "application/json", bytes.NewReader(body))
}

func (a *Adapter) post(ctx context.Context, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, body)
	if err != nil {
		return nil, &types.TranscriptionRequestError{Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if a.key != "" {
		req.Header.Set("Authorization", "Bearer "+a.key)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &types.TranscriptionRequestError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
		return nil, &types.TranscriptionRequestError{
			StatusCode: resp.StatusCode,
			Detail:     truncate(redactSecrets(errorDetail(rb), a.key), maxDetailRunes),
		}
	}

	rb, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, &types.TranscriptionRequestError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	return rb, nil
}

// errorDetail pulls the "detail" message out of an error body. Structured
// details (validation error lists) are rendered as JSON. Non-JSON bodies yield
// nothing so the caller falls back to its generic message.
func errorDetail(body []byte) string {
	var env struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &env); err != nil || len(env.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(env.Detail, &s); err == nil {
		return strings.TrimSpace(s)
	}
	if string(env.Detail) == "null" {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, env.Detail); err != nil {
		return ""
	}
	return buf.String()
}

func fileName(f types.MediaFile) string {
	if f.Name != "" {
		return f.Name
	}
	return "upload"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var bearerTokenRE = regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._-]+\b`)

func redactSecrets(s, apiKey string) string {
	if s == "" {
		return s
	}
	if apiKey != "" {
		s = strings.ReplaceAll(s, apiKey, "[REDACTED]")
	}
	return bearerTokenRE.ReplaceAllString(s, "Bearer [REDACTED]")
}
