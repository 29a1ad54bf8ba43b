package goicon

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestDefaultWidgetOptions(t *testing.T) {
	o := DefaultWidgetOptions()
	if err := o.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if o.InitialShape != ShapeCircle || o.InitialScalePercent != 100 || o.InitialColor.Hex() != "#a8dadc" {
		t.Errorf("defaults = %+v", o)
	}
	// Presets are a copy.
	o.ColorPresets[0].Color = ColorBlack
	if DefaultSwatches[0].Color == ColorBlack {
		t.Error("DefaultWidgetOptions shares the swatch slice")
	}
}

func TestWidgetOptions_Validate(t *testing.T) {
	o := DefaultWidgetOptions()
	o.InitialScalePercent = 300
	o.ExportSize = 0
	o.CornerRadiusFraction = 0.9
	err := o.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"initial scale", "export size", "corner radius"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestEditor_Setters(t *testing.T) {
	opts := DefaultWidgetOptions()
	opts.FallbackImageURL = "https://img.example.com/fallback.png"
	ed := NewEditor(opts, "")

	cfg := ed.Config()
	if cfg.BaseImageURL != opts.FallbackImageURL {
		t.Errorf("base URL = %q, want fallback", cfg.BaseImageURL)
	}

	if got := ed.SetScalePercent(87); got != 85 {
		t.Errorf("SetScalePercent(87) = %d", got)
	}
	if got := ed.SetScalePercent(999); got != 150 {
		t.Errorf("SetScalePercent(999) = %d", got)
	}
	if got := ed.StepScale(-2); got != 140 {
		t.Errorf("StepScale(-2) = %d", got)
	}
	if got := ed.StepScale(-100); got != 10 {
		t.Errorf("StepScale(-100) = %d", got)
	}

	if err := ed.SetShape(ShapeRoundedSquare); err != nil {
		t.Fatal(err)
	}
	if err := ed.SetShape(Shape(9)); err == nil {
		t.Error("expected error for invalid shape")
	}
	if err := ed.SetBackgroundColor("#F44336"); err != nil {
		t.Fatal(err)
	}
	if err := ed.SetBackgroundColor("red"); err == nil {
		t.Error("expected error for invalid color")
	}
	if err := ed.SelectPreset(len(opts.ColorPresets)); err == nil {
		t.Error("expected error for out-of-range preset")
	}
	if err := ed.SetBaseImageURL(""); err == nil {
		t.Error("expected error for empty URL")
	}

	cfg = ed.Config()
	if cfg.Shape != ShapeRoundedSquare || cfg.ScalePercent != 10 || cfg.BackgroundColor.Hex() != "#f44336" {
		t.Errorf("config = %+v", cfg)
	}
	if err := cfg.Validate(opts.Limits); err != nil {
		t.Errorf("config invalid: %v", err)
	}

	if err := ed.SelectPreset(4); err != nil {
		t.Fatal(err)
	}
	if got := ed.Config().BackgroundColor; got != opts.ColorPresets[4].Color {
		t.Errorf("preset color = %v", got)
	}
}

func TestEditor_ConcurrentSetters(t *testing.T) {
	ed := NewEditor(DefaultWidgetOptions(), "https://img.example.com/a.png")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ed.SetScalePercent(i * 10)
			_ = ed.SelectPreset(i % len(DefaultSwatches))
			_ = ed.Config()
		}(i)
	}
	wg.Wait()
	if err := ed.Config().Validate(DefaultScaleLimits); err != nil {
		t.Errorf("config invalid after concurrent edits: %v", err)
	}
}

func TestEditor_Preview(t *testing.T) {
	ed := NewEditor(DefaultWidgetOptions(), "https://img.example.com/a.png")
	s, err := ed.Preview(context.Background(), staticLoader(NewSourceImage(solidImage(4, 4, red))), NewLocalizer("en"))
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if s.Size() != DefaultPreviewSize {
		t.Errorf("preview size = %d", s.Size())
	}
	assertPixel(t, s.Image(), 128, 128, red)

	failing := ImageLoaderFunc(func(context.Context, string) (*SourceImage, error) {
		return nil, loadError("boom", nil)
	})
	s, err = ed.Preview(context.Background(), failing, NewLocalizer("en"))
	if !errors.Is(err, ErrImageLoadFailed) {
		t.Errorf("error = %v", err)
	}
	if s == nil {
		t.Fatal("expected placeholder surface")
	}
	assertTransparent(t, s.Image(), 0, 0)
}
