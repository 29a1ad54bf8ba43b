package goicon

import (
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// RenderOptions configures icon compositing.
type RenderOptions struct {
	// Size is the output edge in pixels. Default: DefaultExportSize.
	Size int
	// CornerRadiusFraction is the rounded-square corner radius relative to
	// Size. Default: DefaultCornerRadiusFraction.
	CornerRadiusFraction float64
	// Limits clamps the scale percentage before drawing.
	// Default: DefaultScaleLimits.
	Limits ScaleLimits
	// Fonts supplies TrueType faces for placeholder text. When nil, or
	// when none of PlaceholderFonts is found, basicfont is used.
	Fonts            *FontCache
	PlaceholderFonts []string
}

// DefaultRenderOptions returns options for export-resolution rendering.
func DefaultRenderOptions() *RenderOptions {
	return &RenderOptions{
		Size:                 DefaultExportSize,
		CornerRadiusFraction: DefaultCornerRadiusFraction,
		Limits:               DefaultScaleLimits,
	}
}

// PreviewRenderOptions returns options for on-screen preview rendering.
func PreviewRenderOptions() *RenderOptions {
	opts := DefaultRenderOptions()
	opts.Size = DefaultPreviewSize
	return opts
}

func (o *RenderOptions) normalized() RenderOptions {
	out := *DefaultRenderOptions()
	if o == nil {
		return out
	}
	if o.Size != 0 {
		out.Size = o.Size
	}
	if o.CornerRadiusFraction > 0 {
		out.CornerRadiusFraction = o.CornerRadiusFraction
	}
	if o.Limits != (ScaleLimits{}) {
		out.Limits = o.Limits
	}
	out.Fonts = o.Fonts
	out.PlaceholderFonts = o.PlaceholderFonts
	if len(out.PlaceholderFonts) == 0 {
		out.PlaceholderFonts = DefaultPlaceholderFonts
	}
	return out
}

// Composite renders src as an icon: the shape is clipped, filled with the
// background color, and the scaled image is drawn centered inside it.
// Preview and export both go through here so their proportions match.
func Composite(src *SourceImage, cfg IconConfig, opts *RenderOptions) (*Surface, error) {
	o := opts.normalized()
	s, err := NewSurface(o.Size)
	if err != nil {
		return nil, err
	}
	s.Clip(NewShapePath(cfg.Shape, o.Size, o.CornerRadiusFraction))
	s.Fill(cfg.BackgroundColor)

	scale := o.Limits.Clamp(cfg.ScalePercent)
	content := ComputeScaledSize(o.Size, scale)
	x, y := ComputeCenteredOrigin(o.Size, content)
	s.DrawImage(src, x, y, float64(content), float64(content))
	return s, nil
}

// RenderPlaceholder renders the icon background with a centered message,
// used in place of the image when it cannot be loaded.
func RenderPlaceholder(cfg IconConfig, opts *RenderOptions, message string) (*Surface, error) {
	o := opts.normalized()
	s, err := NewSurface(o.Size)
	if err != nil {
		return nil, err
	}
	s.Clip(NewShapePath(cfg.Shape, o.Size, o.CornerRadiusFraction))
	s.Fill(cfg.BackgroundColor)

	scale := o.Limits.Clamp(cfg.ScalePercent)
	content := ComputeScaledSize(o.Size, scale)
	x, _ := ComputeCenteredOrigin(o.Size, content)
	box := image.Rect(int(x), int(x), int(x)+content, int(x)+content).Intersect(s.img.Bounds())
	if box.Empty() {
		return s, nil
	}
	face := o.placeholderFace(content)
	defer face.Close()
	text := image.NewNRGBA(s.img.Bounds())
	drawStringCentered(text, message, face, contrastColor(cfg.BackgroundColor), box)
	s.drawLayer(text)
	return s, nil
}

// placeholderFace sizes text to about a tenth of the content box.
func (o RenderOptions) placeholderFace(content int) font.Face {
	px := float64(content) / 10
	if px < 10 {
		px = 10
	}
	if face := o.Fonts.Face(px, o.PlaceholderFonts...); face != nil {
		return face
	}
	return basicfont.Face7x13
}

// contrastColor picks black or white text for legibility on bg.
func contrastColor(bg Color) color.Color {
	lum := 0.299*float64(bg.R) + 0.587*float64(bg.G) + 0.114*float64(bg.B)
	if lum > 140 {
		return color.Black
	}
	return color.White
}

// drawStringCentered draws text centered in rect, wrapping on spaces.
func drawStringCentered(dst *image.NRGBA, text string, face font.Face, c color.Color, rect image.Rectangle) {
	lines := wrapWords(text, face, rect.Dx())
	lineH := face.Metrics().Height.Ceil()
	y := rect.Min.Y + (rect.Dy()-lineH*len(lines))/2 + face.Metrics().Ascent.Ceil()
	for _, line := range lines {
		w := font.MeasureString(face, line).Ceil()
		d := &font.Drawer{
			Dst:  dst,
			Src:  image.NewUniform(c),
			Face: face,
			Dot:  fixed.P(rect.Min.X+(rect.Dx()-w)/2, y),
		}
		d.DrawString(line)
		y += lineH
	}
}

// wrapWords breaks text on spaces. Words wider than maxWidth, such as
// unspaced Japanese, are broken between runes.
func wrapWords(text string, face font.Face, maxWidth int) []string {
	var words []string
	for _, w := range strings.Fields(text) {
		words = append(words, breakRunes(w, face, maxWidth)...)
	}
	if len(words) == 0 {
		return nil
	}
	var lines []string
	cur := words[0]
	for _, w := range words[1:] {
		next := cur + " " + w
		if font.MeasureString(face, next).Ceil() > maxWidth {
			lines = append(lines, cur)
			cur = w
			continue
		}
		cur = next
	}
	return append(lines, cur)
}

func breakRunes(word string, face font.Face, maxWidth int) []string {
	if font.MeasureString(face, word).Ceil() <= maxWidth {
		return []string{word}
	}
	var parts []string
	var cur []rune
	for _, r := range word {
		if len(cur) > 0 && font.MeasureString(face, string(append(cur, r))).Ceil() > maxWidth {
			parts = append(parts, string(cur))
			cur = cur[:0]
		}
		cur = append(cur, r)
	}
	return append(parts, string(cur))
}
