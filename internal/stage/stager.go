package stage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Handle references a staged temporary file.
type Handle struct {
	path string
}

// Path returns the staged file location.
func (h Handle) Path() string { return h.path }

// Stager writes raw capture payloads to uniquely named temporary files so
// capability backends can consume them, and guarantees cleanup.
type Stager struct {
	dir string
}

// NewStager builds a stager rooted at dir; an empty dir falls back to the
// system temp directory.
func NewStager(dir string) *Stager {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Stager{dir: dir}
}

// StageForTranscription writes payload to a fresh temp file. The name
// combines a nanosecond timestamp with the original filename so concurrent
// requests never collide.
func (s *Stager) StageForTranscription(payload []byte, originalName string) (Handle, error) {
	name := fmt.Sprintf("lead_%d_%s", time.Now().UnixNano(), filepath.Base(originalName))
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return Handle{}, fmt.Errorf("stage audio payload: %w", err)
	}
	return Handle{path: path}, nil
}

// Release removes the staged file. Releasing an already-removed or zero
// handle is a no-op; callers defer it on every exit path.
func (s *Stager) Release(h Handle) {
	if h.path == "" {
		return
	}
	_ = os.Remove(h.path)
}
