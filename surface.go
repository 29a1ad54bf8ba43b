package goicon

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	ico "github.com/sergeymakinen/go-ico"
	"github.com/srwiley/rasterx"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// MaxSurfaceSize is the largest supported surface edge in pixels.
const MaxSurfaceSize = 16384

// icoSize is the edge of the single image stored in exported .ico files.
const icoSize = 256

// Surface is an offscreen square raster with an optional clip mask.
type Surface struct {
	img     *image.NRGBA
	clip    *image.Alpha
	tainted bool
}

// NewSurface allocates a transparent size×size surface.
func NewSurface(size int) (*Surface, error) {
	if size <= 0 || size > MaxSurfaceSize {
		return nil, fmt.Errorf("%w: size %d outside 1-%d", ErrSurfaceUnavailable, size, MaxSurfaceSize)
	}
	return &Surface{img: image.NewNRGBA(image.Rect(0, 0, size, size))}, nil
}

// Size returns the surface edge in pixels.
func (s *Surface) Size() int { return s.img.Rect.Dx() }

// Image returns the backing image.
func (s *Surface) Image() *image.NRGBA { return s.img }

// Tainted reports whether cross-origin pixels without a CORS grant were
// drawn onto the surface.
func (s *Surface) Tainted() bool { return s.tainted }

// Clip restricts subsequent drawing to the inside of p. Clips intersect
// like canvas clip regions.
func (s *Surface) Clip(p *Path) {
	size := s.Size()
	mask := p.Mask(size, size)
	if s.clip != nil {
		for i := range mask.Pix {
			mask.Pix[i] = uint8(uint16(mask.Pix[i]) * uint16(s.clip.Pix[i]) / 0xff)
		}
	}
	s.clip = mask
}

// ResetClip removes the clip.
func (s *Surface) ResetClip() { s.clip = nil }

func (s *Surface) mask() image.Image {
	if s.clip == nil {
		return nil
	}
	return s.clip
}

// Fill paints c over the clipped area.
func (s *Surface) Fill(c color.Color) {
	xdraw.DrawMask(s.img, s.img.Bounds(), image.NewUniform(c), image.Point{}, s.mask(), image.Point{}, xdraw.Over)
}

// DrawImage draws src scaled into the w×h box at (x, y). The box may lie
// partly outside the surface; non-positive sizes draw nothing.
func (s *Surface) DrawImage(src *SourceImage, x, y, w, h float64) {
	if src == nil || w <= 0 || h <= 0 {
		return
	}
	if src.Tainted {
		s.tainted = true
	}
	if src.svg != nil {
		s.drawVector(src, x, y, w, h)
		return
	}
	if src.Image == nil {
		return
	}
	sr := src.Image.Bounds()
	if sr.Empty() {
		return
	}
	sx := w / float64(sr.Dx())
	sy := h / float64(sr.Dy())
	s2d := f64.Aff3{
		sx, 0, x - sx*float64(sr.Min.X),
		0, sy, y - sy*float64(sr.Min.Y),
	}
	opts := &xdraw.Options{DstMask: s.mask()}
	xdraw.CatmullRom.Transform(s.img, s2d, src.Image, sr, xdraw.Over, opts)
}

func (s *Surface) drawVector(src *SourceImage, x, y, w, h float64) {
	size := s.Size()
	layer := image.NewRGBA(image.Rect(0, 0, size, size))
	src.svg.SetTarget(x, y, w, h)
	scanner := rasterx.NewScannerGV(size, size, layer, layer.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	src.svg.Draw(raster, 1.0)
	s.drawLayer(layer)
}

// drawLayer composites a full-size layer onto the surface through the clip.
func (s *Surface) drawLayer(layer image.Image) {
	xdraw.DrawMask(s.img, s.img.Bounds(), layer, image.Point{}, s.mask(), image.Point{}, xdraw.Over)
}

// EncodePNG serializes the surface as PNG.
func (s *Surface) EncodePNG() ([]byte, error) {
	if s.tainted {
		return nil, ErrSerializationTainted
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, s.img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeICO serializes the surface as a 256×256 Windows icon.
func (s *Surface) EncodeICO() ([]byte, error) {
	if s.tainted {
		return nil, ErrSerializationTainted
	}
	var m image.Image = s.img
	if s.Size() != icoSize {
		dst := image.NewNRGBA(image.Rect(0, 0, icoSize, icoSize))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), s.img, s.img.Bounds(), xdraw.Src, nil)
		m = dst
	}
	var buf bytes.Buffer
	if err := ico.Encode(&buf, m); err != nil {
		return nil, fmt.Errorf("encode ico: %w", err)
	}
	return buf.Bytes(), nil
}
