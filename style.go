package goicon

import (
	"fmt"
	"image/color"
	"strings"
)

// Color is an opaque RGB background color.
type Color struct {
	R, G, B uint8
}

// Predefined colors.
var (
	ColorBlack = Color{0x00, 0x00, 0x00}
	ColorWhite = Color{0xff, 0xff, 0xff}
)

// ParseHexColor parses "#RRGGBB" or the short "#RGB" form. The leading "#"
// is optional.
func ParseHexColor(s string) (Color, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return Color{}, fmt.Errorf("invalid hex color %q: want #RRGGBB", s)
	}
	var c Color
	for i, dst := range []*uint8{&c.R, &c.G, &c.B} {
		v, ok := parseHexByte(h, i*2)
		if !ok {
			return Color{}, fmt.Errorf("invalid hex color %q: want #RRGGBB", s)
		}
		*dst = v
	}
	return c, nil
}

// MustParseHexColor is like ParseHexColor but panics on malformed input.
// It is meant for package-level presets.
func MustParseHexColor(s string) Color {
	c, err := ParseHexColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Hex returns the lowercase "#rrggbb" form.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func (c Color) String() string { return c.Hex() }

// RGBA implements color.Color.
func (c Color) RGBA() (r, g, b, a uint32) {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: 0xff}.RGBA()
}

func (c Color) MarshalText() ([]byte, error) { return []byte(c.Hex()), nil }

func (c *Color) UnmarshalText(b []byte) error {
	v, err := ParseHexColor(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// parseHexByte parses two hex characters at offset into a uint8.
func parseHexByte(s string, offset int) (uint8, bool) {
	if offset+2 > len(s) {
		return 0, false
	}
	h := hexVal(s[offset])
	l := hexVal(s[offset+1])
	if h < 0 || l < 0 {
		return 0, false
	}
	return uint8(h<<4 | l), true
}

func hexVal(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	default:
		return -1
	}
}

// Swatch is a named background color preset.
type Swatch struct {
	Color Color  `json:"color"`
	Name  string `json:"name"`
}

// DefaultSwatches is the stock palette offered next to the color picker.
var DefaultSwatches = []Swatch{
	{MustParseHexColor("#a8dadc"), "light blue"},
	{MustParseHexColor("#f1c0e8"), "pink"},
	{MustParseHexColor("#ffeb3b"), "yellow"},
	{MustParseHexColor("#ff9800"), "orange"},
	{MustParseHexColor("#2196f3"), "blue"},
	{MustParseHexColor("#4caf50"), "green"},
	{MustParseHexColor("#f44336"), "red"},
	{ColorWhite, "white"},
	{ColorBlack, "black"},
}
