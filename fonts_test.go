package goicon

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
)

func TestFontCache_LoadFontData(t *testing.T) {
	fc := NewFontCacheDirs()
	if err := fc.LoadFontData("placeholder", goregular.TTF); err != nil {
		t.Fatalf("LoadFontData: %v", err)
	}
	if fc.Face(16, "missing", "PLACEHOLDER") == nil {
		t.Fatal("expected face by registered name")
	}
	// Family name from the font's name table.
	if fc.Face(16, "Go") == nil {
		t.Error("expected face by family name")
	}
	if fc.Face(16, "missing") != nil {
		t.Error("unexpected face for unknown font")
	}
	if err := fc.LoadFontData("bad", []byte("not a font")); err == nil {
		t.Error("expected parse error")
	}
}

func TestFontCache_ScanDir(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "truetype", "go")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "GoRegular.ttf"), goregular.TTF, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	fc := NewFontCacheDirs(dir)
	if fc.Face(12, "goregular") == nil {
		t.Error("expected font registered by file name")
	}
	families := fc.Families()
	if len(families) == 0 {
		t.Fatal("no families registered")
	}
}

func TestFontCache_Nil(t *testing.T) {
	var fc *FontCache
	if fc.Face(12, "arial") != nil {
		t.Error("nil cache must return nil face")
	}
}

func TestRenderPlaceholder_TrueTypeFace(t *testing.T) {
	fc := NewFontCacheDirs()
	if err := fc.LoadFontData("go", goregular.TTF); err != nil {
		t.Fatal(err)
	}
	opts := PreviewRenderOptions()
	opts.Fonts = fc
	opts.PlaceholderFonts = []string{"go"}

	cfg := IconConfig{Shape: ShapeRoundedSquare, ScalePercent: 100, BackgroundColor: ColorWhite}
	s, err := RenderPlaceholder(cfg, opts, "image cannot be loaded")
	if err != nil {
		t.Fatal(err)
	}
	dark := 0
	img := s.Image()
	for y := 0; y < 256; y++ {
		for x := 0; x < 256; x++ {
			if c := img.NRGBAAt(x, y); c.A == 0xff && c.R < 60 {
				dark++
			}
		}
	}
	if dark == 0 {
		t.Error("no placeholder text drawn")
	}
}

func TestWrapWords_BreaksUnspacedText(t *testing.T) {
	face := basicfont.Face7x13
	lines := wrapWords("abcdefghijklmnopqrstuvwxyz", face, 70)
	if len(lines) < 2 {
		t.Fatalf("expected wrapped lines, got %q", lines)
	}
	for _, l := range lines {
		if w := len(l) * 7; w > 70 {
			t.Errorf("line %q is %dpx wide", l, w)
		}
	}
	if got := wrapWords("two words", face, 1000); len(got) != 1 {
		t.Errorf("short text wrapped: %q", got)
	}
	if got := wrapWords("  ", face, 100); got != nil {
		t.Errorf("blank text = %q", got)
	}
}
