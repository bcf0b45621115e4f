// Package captions turns raw caption tracks into plain transcript chunks.
package captions

import (
	"regexp"
	"strings"
)

const (
	DefaultChunkSize    = 50
	DefaultChunkOverlap = 0

	maxPhraseWords = 10
	minPhraseWords = 2
)

var (
	videoIDInURLRE = regexp.MustCompile(`(?:v=|youtu\.be/|/watch\?v=|/v/|/embed/)([A-Za-z0-9_-]{11})`)
	bareVideoIDRE  = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
)

// ExtractVideoID returns the 11 character video id in a watch URL, short URL,
// embed URL or a bare id.
func ExtractVideoID(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	if m := videoIDInURLRE.FindStringSubmatch(ref); m != nil {
		return m[1], true
	}
	if bareVideoIDRE.MatchString(ref) {
		return ref, true
	}
	return "", false
}

// cleanup steps run in order; later patterns assume the earlier ones ran
var cleanSteps = []*regexp.Regexp{
	regexp.MustCompile(`(?i)webvtt[^\n]*\n?`),
	regexp.MustCompile(`\d{2}:\d{2}:\d{2}\.\d{3}\s*-->\s*\d{2}:\d{2}:\d{2}\.\d{3}`),
	regexp.MustCompile(`<\d{2}:\d{2}:\d{2}\.\d{3}>`),
	regexp.MustCompile(`(?m)^\s*\d+\s*$`),
	regexp.MustCompile(`</?c[^>]*>`),
	regexp.MustCompile(`<[^>]+>`),
	regexp.MustCompile(`(?mi)^\s*(kind|language)\s*:\s*[^\n]+\n?`),
	regexp.MustCompile(`\d{2}:\d{2}:\d{2}`),
	regexp.MustCompile(`(?i)\b(?:align|position|region|vertical|line|size|voice)\s*:\s*\S+\b`),
	regexp.MustCompile(`(?i)position:\s*\d+%`),
}

var (
	entityRE = regexp.MustCompile(`&[a-zA-Z]+;`)
	spaceRE  = regexp.MustCompile(`\s+`)
)

// Clean strips WebVTT scaffolding (header, cue timings, cue numbers, inline
// tags, cue settings, entities) and collapses stuttered phrases that rolling
// auto-captions repeat.
func Clean(text string) string {
	if text == "" {
		return ""
	}
	for _, re := range cleanSteps {
		text = re.ReplaceAllString(text, " ")
	}
	text = strings.ReplaceAll(text, "%", " ")
	text = entityRE.ReplaceAllString(text, " ")
	text = strings.TrimSpace(spaceRE.ReplaceAllString(text, " "))
	return CollapseRepeatedPhrases(text)
}

// CollapseRepeatedPhrases keeps one copy of any phrase of 2 to 10 words that
// repeats back to back. Longer phrases win.
func CollapseRepeatedPhrases(text string) string {
	tokens := strings.Fields(text)
	n := len(tokens)
	out := make([]string, 0, n)

	for i := 0; i < n; {
		skipped := false
		for l := maxPhraseWords; l >= minPhraseWords; l-- {
			if i+2*l > n {
				continue
			}
			reps := 1
			for i+l*(reps+1) <= n && equalTokens(tokens[i:i+l], tokens[i+l*reps:i+l*(reps+1)]) {
				reps++
			}
			if reps > 1 {
				out = append(out, tokens[i:i+l]...)
				i += l * reps
				skipped = true
				break
			}
		}
		if !skipped {
			out = append(out, tokens[i])
			i++
		}
	}
	return strings.Join(out, " ")
}

func equalTokens(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Chunk splits text into windows of size characters advancing by
// size-overlap. Windows are trimmed and blank ones dropped. A non-positive
// size returns the text whole.
func Chunk(text string, size, overlap int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		return []string{text}
	}
	step := size - overlap
	if step < 1 {
		step = 1
	}

	r := []rune(text)
	var out []string
	for i := 0; i < len(r); i += step {
		end := i + size
		if end > len(r) {
			end = len(r)
		}
		if part := strings.TrimSpace(string(r[i:end])); part != "" {
			out = append(out, part)
		}
	}
	return out
}
