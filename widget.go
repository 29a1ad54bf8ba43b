package goicon

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// WidgetOptions parameterizes one icon customizer instance. Variants of
// the widget differ only in these values.
type WidgetOptions struct {
	InitialShape         Shape
	InitialScalePercent  int
	InitialColor         Color
	ColorPresets         []Swatch
	Limits               ScaleLimits
	PreviewSize          int
	ExportSize           int
	CornerRadiusFraction float64
	// FallbackImageURL is used when the host supplies no base image.
	FallbackImageURL string
	// Fonts and PlaceholderFonts select the placeholder text face.
	Fonts            *FontCache
	PlaceholderFonts []string
}

// DefaultWidgetOptions returns the stock widget configuration.
func DefaultWidgetOptions() WidgetOptions {
	presets := make([]Swatch, len(DefaultSwatches))
	copy(presets, DefaultSwatches)
	return WidgetOptions{
		InitialShape:         ShapeCircle,
		InitialScalePercent:  100,
		InitialColor:         presets[0].Color,
		ColorPresets:         presets,
		Limits:               DefaultScaleLimits,
		PreviewSize:          DefaultPreviewSize,
		ExportSize:           DefaultExportSize,
		CornerRadiusFraction: DefaultCornerRadiusFraction,
	}
}

// Validate checks the options for structural issues and returns an error
// describing all problems found.
func (o WidgetOptions) Validate() error {
	var errs []string
	if !o.InitialShape.IsValid() {
		errs = append(errs, fmt.Sprintf("unknown initial shape %d", int(o.InitialShape)))
	}
	if err := o.Limits.Validate(); err != nil {
		errs = append(errs, err.Error())
	} else if o.InitialScalePercent < o.Limits.Min || o.InitialScalePercent > o.Limits.Max {
		errs = append(errs, fmt.Sprintf("initial scale %d%% outside %d-%d%%", o.InitialScalePercent, o.Limits.Min, o.Limits.Max))
	}
	for _, sz := range []struct {
		name string
		v    int
	}{{"preview size", o.PreviewSize}, {"export size", o.ExportSize}} {
		if sz.v <= 0 || sz.v > MaxSurfaceSize {
			errs = append(errs, fmt.Sprintf("%s %d outside 1-%d", sz.name, sz.v, MaxSurfaceSize))
		}
	}
	if o.CornerRadiusFraction < 0 || o.CornerRadiusFraction > 0.5 {
		errs = append(errs, fmt.Sprintf("corner radius fraction %.3f outside 0-0.5", o.CornerRadiusFraction))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid widget options:\n  %s", strings.Join(errs, "\n  "))
}

// PreviewRenderOptions returns render options at preview resolution.
func (o WidgetOptions) PreviewRenderOptions() *RenderOptions {
	return o.renderOptions(o.PreviewSize)
}

// ExportRenderOptions returns render options at export resolution.
func (o WidgetOptions) ExportRenderOptions() *RenderOptions {
	return o.renderOptions(o.ExportSize)
}

func (o WidgetOptions) renderOptions(size int) *RenderOptions {
	return &RenderOptions{
		Size:                 size,
		CornerRadiusFraction: o.CornerRadiusFraction,
		Limits:               o.Limits,
		Fonts:                o.Fonts,
		PlaceholderFonts:     o.PlaceholderFonts,
	}
}

// Editor holds the live configuration of one widget. Every setter keeps
// the scale within limits. It is safe for concurrent use.
type Editor struct {
	mu   sync.RWMutex
	cfg  IconConfig
	opts WidgetOptions
}

// NewEditor creates an editor seeded from opts. An empty baseImageURL
// falls back to opts.FallbackImageURL.
func NewEditor(opts WidgetOptions, baseImageURL string) *Editor {
	if baseImageURL == "" {
		baseImageURL = opts.FallbackImageURL
	}
	return &Editor{
		opts: opts,
		cfg: IconConfig{
			Shape:           opts.InitialShape,
			ScalePercent:    opts.Limits.Clamp(opts.InitialScalePercent),
			BackgroundColor: opts.InitialColor,
			BaseImageURL:    baseImageURL,
		},
	}
}

// Config returns a snapshot of the current configuration.
func (ed *Editor) Config() IconConfig {
	ed.mu.RLock()
	defer ed.mu.RUnlock()
	return ed.cfg
}

// Options returns the widget options.
func (ed *Editor) Options() WidgetOptions { return ed.opts }

func (ed *Editor) SetShape(s Shape) error {
	if !s.IsValid() {
		return fmt.Errorf("unknown shape %d", int(s))
	}
	ed.mu.Lock()
	ed.cfg.Shape = s
	ed.mu.Unlock()
	return nil
}

// SetScalePercent snaps percent to the step grid and clamps it. It returns
// the value actually stored.
func (ed *Editor) SetScalePercent(percent int) int {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	ed.cfg.ScalePercent = ed.opts.Limits.Snap(percent)
	return ed.cfg.ScalePercent
}

// StepScale moves the scale by n steps (negative to shrink).
func (ed *Editor) StepScale(n int) int {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	step := ed.opts.Limits.Step
	if step <= 0 {
		step = 1
	}
	ed.cfg.ScalePercent = ed.opts.Limits.Clamp(ed.cfg.ScalePercent + n*step)
	return ed.cfg.ScalePercent
}

// SetBackgroundColor parses and stores a "#RRGGBB" color.
func (ed *Editor) SetBackgroundColor(hex string) error {
	c, err := ParseHexColor(hex)
	if err != nil {
		return err
	}
	ed.mu.Lock()
	ed.cfg.BackgroundColor = c
	ed.mu.Unlock()
	return nil
}

// SelectPreset applies the i-th color preset.
func (ed *Editor) SelectPreset(i int) error {
	if i < 0 || i >= len(ed.opts.ColorPresets) {
		return fmt.Errorf("preset index %d out of range (0-%d)", i, len(ed.opts.ColorPresets)-1)
	}
	ed.mu.Lock()
	ed.cfg.BackgroundColor = ed.opts.ColorPresets[i].Color
	ed.mu.Unlock()
	return nil
}

func (ed *Editor) SetBaseImageURL(u string) error {
	if err := validateImageURL(u); err != nil {
		return err
	}
	ed.mu.Lock()
	ed.cfg.BaseImageURL = u
	ed.mu.Unlock()
	return nil
}

// Preview renders the current configuration at preview resolution. When
// the image cannot be loaded, a placeholder is rendered and the load error
// is returned alongside it.
func (ed *Editor) Preview(ctx context.Context, loader ImageLoader, text Localizer) (*Surface, error) {
	cfg := ed.Config()
	opts := ed.opts.PreviewRenderOptions()
	src, loadErr := loader.Load(ctx, cfg.BaseImageURL)
	if loadErr != nil {
		s, err := RenderPlaceholder(cfg, opts, text.Text("image cannot be loaded"))
		if err != nil {
			return nil, err
		}
		return s, loadErr
	}
	return Composite(src, cfg, opts)
}
