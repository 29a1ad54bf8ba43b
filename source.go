package goicon

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/srwiley/oksvg"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Supported source content types.
const (
	ContentTypePNG  = "image/png"
	ContentTypeJPEG = "image/jpeg"
	ContentTypeGIF  = "image/gif"
	ContentTypeWebP = "image/webp"
	ContentTypeBMP  = "image/bmp"
	ContentTypeSVG  = "image/svg+xml"
	ContentTypeICO  = "image/x-icon"
)

var allowedSourceTypes = map[string]bool{
	ContentTypePNG:  true,
	ContentTypeJPEG: true,
	ContentTypeGIF:  true,
	ContentTypeWebP: true,
	ContentTypeBMP:  true,
	ContentTypeSVG:  true,
}

// IsSupportedSourceType reports whether contentType (parameters ignored)
// can be decoded as a base image.
func IsSupportedSourceType(contentType string) bool {
	return allowedSourceTypes[normalizeContentType(contentType)]
}

func normalizeContentType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	ct = strings.ToLower(strings.TrimSpace(ct))
	if ct == "image/jpg" || ct == "image/pjpeg" {
		return ContentTypeJPEG
	}
	return ct
}

// SourceImage is a decoded base image. Vector sources keep their SVG
// description so they can be re-rendered at the target resolution.
type SourceImage struct {
	Image       image.Image
	ContentType string
	URL         string
	// Tainted marks pixel data obtained cross-origin without a CORS grant.
	Tainted bool

	svg *oksvg.SvgIcon
}

// NewSourceImage wraps an already decoded raster image.
func NewSourceImage(img image.Image) *SourceImage {
	return &SourceImage{Image: img, ContentType: ContentTypePNG}
}

// IsVector reports whether the source is an SVG document.
func (s *SourceImage) IsVector() bool { return s.svg != nil }

// Size returns the intrinsic pixel size of the source.
func (s *SourceImage) Size() (w, h int) {
	if s.svg != nil {
		return int(s.svg.ViewBox.W), int(s.svg.ViewBox.H)
	}
	if s.Image == nil {
		return 0, 0
	}
	b := s.Image.Bounds()
	return b.Dx(), b.Dy()
}

// DecodeSource decodes data of the given content type. An empty content
// type is sniffed from the data.
func DecodeSource(data []byte, contentType string) (*SourceImage, error) {
	ct := normalizeContentType(contentType)
	if ct == "" || ct == "application/octet-stream" {
		ct = sniffContentType(data)
	}
	if ct == ContentTypeSVG {
		icon, err := oksvg.ReadIconStream(bytes.NewReader(data), oksvg.IgnoreErrorMode)
		if err != nil {
			return nil, fmt.Errorf("decode svg: %w", err)
		}
		if icon.ViewBox.W <= 0 || icon.ViewBox.H <= 0 {
			return nil, fmt.Errorf("decode svg: empty view box")
		}
		return &SourceImage{ContentType: ct, svg: icon}, nil
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return &SourceImage{Image: img, ContentType: ct}, nil
}

func sniffContentType(data []byte) string {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	trimmed := bytes.TrimSpace(head)
	if bytes.HasPrefix(trimmed, []byte("<svg")) ||
		(bytes.HasPrefix(trimmed, []byte("<?xml")) && bytes.Contains(head, []byte("<svg"))) {
		return ContentTypeSVG
	}
	return normalizeContentType(http.DetectContentType(data))
}
