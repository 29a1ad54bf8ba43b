package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	goicon "github.com/VantageDataChat/GoIcon"
)

// iconFlags are the editor settings shared by export and preview.
type iconFlags struct {
	url    string
	shape  string
	scale  int
	color  string
	preset int
}

func (f *iconFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.url, "url", "", "base image URL (http, https, data, or file)")
	cmd.Flags().StringVar(&f.shape, "shape", "", "icon shape: circle or square")
	cmd.Flags().IntVar(&f.scale, "scale", 0, "image scale in percent (snapped to the scale step)")
	cmd.Flags().StringVar(&f.color, "background", "", "background color as #rrggbb")
	cmd.Flags().IntVar(&f.preset, "preset", -1, "background color preset index (see 'iconctl swatches')")
}

func (f *iconFlags) reset() {
	*f = iconFlags{preset: -1}
}

// localLoader is the loader for one-shot commands run on the user's own
// machine, where --url may name a local file.
func localLoader() (*goicon.Loader, error) {
	opts := cfg.LoaderOptions(commandLogger())
	opts.AllowFileScheme = true
	return goicon.NewLoader(opts)
}

// editor builds an editor from the configured widget options and the flags.
func (f *iconFlags) editor() (*goicon.Editor, goicon.WidgetOptions, error) {
	widget, err := cfg.WidgetOptions()
	if err != nil {
		return nil, widget, err
	}
	ed := goicon.NewEditor(widget, f.url)
	if ed.Config().BaseImageURL == "" {
		return nil, widget, fmt.Errorf("no image: pass --url or set widget.fallback_image_url")
	}
	if f.shape != "" {
		shape, err := goicon.ParseShape(f.shape)
		if err != nil {
			return nil, widget, err
		}
		if err := ed.SetShape(shape); err != nil {
			return nil, widget, err
		}
	}
	if f.scale != 0 {
		ed.SetScalePercent(f.scale)
	}
	if f.preset >= 0 {
		if err := ed.SelectPreset(f.preset); err != nil {
			return nil, widget, err
		}
	}
	if f.color != "" {
		if err := ed.SetBackgroundColor(f.color); err != nil {
			return nil, widget, err
		}
	}
	return ed, widget, nil
}
