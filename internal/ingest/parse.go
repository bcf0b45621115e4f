package ingest

import (
	"bytes"
	"encoding/json"

	"github.com/forPelevin/replaycast/internal/types"
)

// ParseTranscript reads the "transcript" field of a transcription response.
//
// A list yields one segment per item. Any other value is wrapped as a single
// segment. Items are {"text": ...} objects or bare strings; anything else is
// rendered as its JSON text.
func ParseTranscript(body []byte) (types.Sequence, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &types.MalformedResponseError{Reason: "decode body", Err: err}
	}

	raw, ok := envelope["transcript"]
	raw = bytes.TrimSpace(raw)
	if !ok || len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, &types.MalformedResponseError{Reason: `missing "transcript" field`}
	}

	if raw[0] != '[' {
		return types.Sequence{segmentFrom(raw)}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &types.MalformedResponseError{Reason: "decode transcript list", Err: err}
	}
	seq := make(types.Sequence, 0, len(items))
	for _, it := range items {
		seq = append(seq, segmentFrom(it))
	}
	return seq, nil
}

func segmentFrom(raw json.RawMessage) types.Segment {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return types.Segment{}
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return types.Segment{Text: s}
		}
	case '{':
		var obj struct {
			Text *json.RawMessage `json:"text"`
		}
		if err := json.Unmarshal(raw, &obj); err == nil && obj.Text != nil && !bytes.Equal(*obj.Text, []byte("null")) {
			return segmentFrom(*obj.Text)
		}
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return types.Segment{Text: string(raw)}
	}
	return types.Segment{Text: buf.String()}
}
