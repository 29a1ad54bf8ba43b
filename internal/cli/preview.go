package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	goicon "github.com/VantageDataChat/GoIcon"
)

var (
	previewIcon iconFlags
	previewOut  string
	previewLang string
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Render an icon at preview size",
	Long: `Render the icon at the configured preview size and write it as PNG.
When the base image cannot be loaded, a placeholder is written instead and
the command exits with an error.

Examples:
  iconctl preview --url logo.png -o preview.png
  iconctl preview --url logo.png --preset 2 -o -      # PNG to stdout`,
	Args: cobra.NoArgs,
	RunE: runPreview,
}

func init() {
	rootCmd.AddCommand(previewCmd)

	previewIcon.register(previewCmd)
	previewCmd.Flags().StringVarP(&previewOut, "out", "o", "preview.png", "output file, or - for stdout")
	previewCmd.Flags().StringVar(&previewLang, "lang", "", "placeholder language: en or ja")
}

func runPreview(cmd *cobra.Command, _ []string) error {
	printer, err := newPrinter(cmd)
	if err != nil {
		return err
	}
	ed, _, err := previewIcon.editor()
	if err != nil {
		return err
	}
	loader, err := localLoader()
	if err != nil {
		return err
	}
	lang := cfg.Notify.Language
	if previewLang != "" {
		lang = previewLang
	}

	surface, loadErr := ed.Preview(cmd.Context(), loader, goicon.NewLocalizer(lang))
	if surface == nil {
		return loadErr
	}
	data, err := surface.EncodePNG()
	if err != nil {
		return err
	}

	if previewOut == "-" {
		if _, err := cmd.OutOrStdout().Write(data); err != nil {
			return err
		}
	} else {
		if err := os.WriteFile(previewOut, data, 0o644); err != nil {
			return fmt.Errorf("write preview: %w", err)
		}
		printer.Success("Preview written: %s (%dpx)", previewOut, surface.Size())
	}

	if loadErr != nil {
		return fmt.Errorf("placeholder rendered: %w", loadErr)
	}
	return nil
}
