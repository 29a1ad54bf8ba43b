package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

var swatchesCmd = &cobra.Command{
	Use:   "swatches",
	Short: "List background color presets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		widget, err := cfg.WidgetOptions()
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(widget.ColorPresets)
		}

		printer, err := newPrinter(cmd)
		if err != nil {
			return err
		}
		printer.Header("Color presets")
		for i, s := range widget.ColorPresets {
			marker := ""
			if s.Color == widget.InitialColor {
				marker = " (default)"
			}
			printer.Print("  %d  %s  %s  %s%s", i, printer.Swatch(s.Color), s.Color.Hex(), s.Name, marker)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(swatchesCmd)
	swatchesCmd.Flags().Bool("json", false, "output as JSON")
}
