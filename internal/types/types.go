package types

import "fmt"

// Segment is one unit of transcribed text. Segments carry no timestamp; playback
// spaces them evenly.
type Segment struct {
	Text string `json:"text"`
}

// Sequence is the ordered, read-only result of one ingestion.
type Sequence []Segment

func (s Sequence) Texts() []string {
	out := make([]string, len(s))
	for i, seg := range s {
		out[i] = seg.Text
	}
	return out
}

// Transcript is timed ASR output. Only the transcription server uses it; the
// client side works on Sequence.
type Transcript struct {
	Segments []TimedSegment `json:"segments"`
}

type TimedSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Sequence drops timing and empty text.
func (t Transcript) Sequence() Sequence {
	out := make(Sequence, 0, len(t.Segments))
	for _, s := range t.Segments {
		if s.Text == "" {
			continue
		}
		out = append(out, Segment{Text: s.Text})
	}
	return out
}

type MediaFile struct {
	Path        string
	Name        string
	ContentType string
	Size        int64
}

type UploadPhase int

const (
	PhaseIdle UploadPhase = iota
	PhaseUploading
	PhaseTranscribing
	PhaseReady
	PhaseFailed
)

func (p UploadPhase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseUploading:
		return "uploading"
	case PhaseTranscribing:
		return "transcribing"
	case PhaseReady:
		return "ready"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

type UploadState struct {
	Phase    UploadPhase
	MediaURL string
}

// State is the shared application state the dispatch timeline writes into.
type State struct {
	SpokenToSigned     bool
	SpokenLanguageText string
	Dispatched         int
}

type Action interface {
	ActionType() string
}

type SetSpokenLanguageText struct {
	Text string
}

func (SetSpokenLanguageText) ActionType() string { return "[Translate] Set Spoken Language Text" }

type SetSpokenToSigned struct {
	Value bool
}

func (SetSpokenToSigned) ActionType() string { return "[Translate] Set Spoken To Signed" }
