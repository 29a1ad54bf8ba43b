package goicon

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// Artifact is a generated icon file ready to be saved.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

// DataURL returns the artifact as a base64 data URL.
func (a *Artifact) DataURL() string {
	return "data:" + a.ContentType + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
}

// Saver delivers an artifact to the user, e.g. as a file download.
type Saver interface {
	Save(ctx context.Context, a *Artifact) error
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(ctx context.Context, a *Artifact) error

func (f SaverFunc) Save(ctx context.Context, a *Artifact) error { return f(ctx, a) }

// DirSaver writes artifacts into a directory, creating it if needed.
type DirSaver struct {
	Dir string
}

func (d DirSaver) Save(_ context.Context, a *Artifact) error {
	dir := d.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(a.Filename))
	if err := os.WriteFile(path, a.Data, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// AttachmentSaver writes artifacts to an HTTP response as a download.
type AttachmentSaver struct {
	W http.ResponseWriter
}

func (s AttachmentSaver) Save(_ context.Context, a *Artifact) error {
	h := s.W.Header()
	h.Set("Content-Type", a.ContentType)
	h.Set("Content-Length", strconv.Itoa(len(a.Data)))
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename}))
	h.Set("Cache-Control", "no-store")
	s.W.WriteHeader(http.StatusOK)
	if _, err := s.W.Write(a.Data); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

// ExportFormat selects the artifact encoding.
type ExportFormat int

const (
	FormatPNG ExportFormat = iota
	FormatICO
)

// ParseExportFormat parses "png" or "ico".
func ParseExportFormat(s string) (ExportFormat, error) {
	switch s {
	case "", "png":
		return FormatPNG, nil
	case "ico":
		return FormatICO, nil
	default:
		return FormatPNG, fmt.Errorf("unknown export format %q: must be png or ico", s)
	}
}

func (f ExportFormat) String() string {
	if f == FormatICO {
		return "ico"
	}
	return "png"
}

func (f ExportFormat) contentType() string {
	if f == FormatICO {
		return ContentTypeICO
	}
	return ContentTypePNG
}

// DefaultFilenamePrefix is the prefix of generated filenames.
const DefaultFilenamePrefix = "custom"

// filenamer generates "<prefix>-icon-<unix-millis>.<ext>" names whose
// timestamps strictly increase, even for calls in the same millisecond.
type filenamer struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

func (f *filenamer) next(prefix string, format ExportFormat) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now
	if f.now != nil {
		now = f.now
	}
	stamp := now().UnixMilli()
	if stamp <= f.last {
		stamp = f.last + 1
	}
	f.last = stamp
	if prefix == "" {
		prefix = DefaultFilenamePrefix
	}
	return fmt.Sprintf("%s-icon-%d.%s", prefix, stamp, format)
}
