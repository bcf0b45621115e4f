package types

import (
	"fmt"
	"strings"
)

type UnsupportedMediaError struct {
	ContentType string
}

func (e *UnsupportedMediaError) Error() string {
	ct := strings.TrimSpace(e.ContentType)
	if ct == "" {
		ct = "unknown"
	}
	return fmt.Sprintf("unsupported media type %q: only video/mp4 or audio/* are accepted", ct)
}

// TranscriptionRequestError is a network or server failure from a transcription
// endpoint. Detail holds the server-provided message when the body had one.
type TranscriptionRequestError struct {
	StatusCode int
	Detail     string
	Err        error
}

func (e *TranscriptionRequestError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Detail != "":
		return fmt.Sprintf("transcription request: status %d: %s", e.StatusCode, e.Detail)
	case e.StatusCode != 0:
		return fmt.Sprintf("transcription request: status %d", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("transcription request: %v", e.Err)
	default:
		return "transcription request failed"
	}
}

func (e *TranscriptionRequestError) Unwrap() error { return e.Err }

type MalformedResponseError struct {
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed transcription response: %s: %v", e.Reason, e.Err)
	}
	return "malformed transcription response: " + e.Reason
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }
