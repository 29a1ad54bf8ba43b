package goicon

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
)

func solidImage(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

// near reports whether two 8-bit channels differ by at most tol.
func near(a, b uint8, tol int) bool {
	d := int(a) - int(b)
	if d < 0 {
		d = -d
	}
	return d <= tol
}

func assertPixel(t *testing.T, img *image.NRGBA, x, y int, want color.NRGBA) {
	t.Helper()
	got := img.NRGBAAt(x, y)
	if !near(got.R, want.R, 2) || !near(got.G, want.G, 2) || !near(got.B, want.B, 2) || !near(got.A, want.A, 2) {
		t.Errorf("pixel (%d,%d) = %v, want %v", x, y, got, want)
	}
}

func assertTransparent(t *testing.T, img *image.NRGBA, x, y int) {
	t.Helper()
	if a := img.NRGBAAt(x, y).A; a != 0 {
		t.Errorf("pixel (%d,%d) alpha = %d, want 0", x, y, a)
	}
}

var red = color.NRGBA{R: 0xff, A: 0xff}

// staticLoader returns the same source for every URL.
func staticLoader(src *SourceImage) ImageLoader {
	return ImageLoaderFunc(func(context.Context, string) (*SourceImage, error) {
		return src, nil
	})
}

type recordingNotifier struct {
	mu   sync.Mutex
	seen []Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, n)
}

func (r *recordingNotifier) all() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.seen))
	copy(out, r.seen)
	return out
}

type memorySaver struct {
	mu        sync.Mutex
	artifacts []*Artifact
}

func (m *memorySaver) Save(_ context.Context, a *Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifacts = append(m.artifacts, a)
	return nil
}

func (m *memorySaver) saved() []*Artifact {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Artifact, len(m.artifacts))
	copy(out, m.artifacts)
	return out
}
