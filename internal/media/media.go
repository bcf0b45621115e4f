package media

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/forPelevin/replaycast/internal/types"
	"github.com/google/uuid"
)

const urlPrefix = "blob:replaycast/"

// DefaultAccepted is the closed set of playable upload types.
var DefaultAccepted = []string{"video/mp4", "audio/*"}

// Accepts reports whether contentType matches one of patterns. A pattern is an
// exact type or a "family/*" wildcard. Parameters and case are ignored.
func Accepts(contentType string, patterns []string) bool {
	if len(patterns) == 0 {
		patterns = DefaultAccepted
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if family, ok := strings.CutSuffix(p, "/*"); ok {
			if strings.HasPrefix(mt, family+"/") {
				return true
			}
			continue
		}
		if mt == p {
			return true
		}
	}
	return false
}

// Detect builds a MediaFile for path. The type comes from content sniffing,
// falling back to the file extension when sniffing is inconclusive.
func Detect(path string) (types.MediaFile, error) {
	st, err := os.Stat(path)
	if err != nil {
		return types.MediaFile{}, err
	}
	if st.IsDir() {
		return types.MediaFile{}, fmt.Errorf("%s is a directory", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return types.MediaFile{}, err
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return types.MediaFile{}, fmt.Errorf("read %s: %w", path, err)
	}

	return types.MediaFile{
		Path:        path,
		Name:        filepath.Base(path),
		ContentType: sniff(head[:n], filepath.Ext(path)),
		Size:        st.Size(),
	}, nil
}

func sniff(head []byte, ext string) string {
	ct := http.DetectContentType(head)
	if ct != "application/octet-stream" && !strings.HasPrefix(ct, "text/plain") {
		return ct
	}
	if byExt := mime.TypeByExtension(strings.ToLower(ext)); byExt != "" {
		return byExt
	}
	switch strings.ToLower(ext) {
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".m4a":
		return "audio/mp4"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".ogg", ".oga":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	}
	return ct
}

// Registry hands out scoped object URLs for local media files.
type Registry struct {
	mu      sync.Mutex
	objects map[string]string
}

func NewRegistry() *Registry {
	return &Registry{objects: make(map[string]string)}
}

func (r *Registry) Create(f types.MediaFile) string {
	u := urlPrefix + uuid.NewString()
	r.mu.Lock()
	r.objects[u] = f.Path
	r.mu.Unlock()
	return u
}

func (r *Registry) Resolve(u string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.objects[u]
	return p, ok
}

// Revoke releases u. It reports false if u was unknown or already released.
func (r *Registry) Revoke(u string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.objects[u]; !ok {
		return false
	}
	delete(r.objects, u)
	return true
}

func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.objects)
}
