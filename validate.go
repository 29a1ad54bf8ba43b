package goicon

import (
	"fmt"
	"net/url"
	"strings"
)

// IconConfig is the full set of parameters for one icon render.
type IconConfig struct {
	Shape           Shape  `json:"shape"`
	ScalePercent    int    `json:"scalePercent"`
	BackgroundColor Color  `json:"backgroundColor"`
	BaseImageURL    string `json:"baseImageUrl"`
}

// Validate checks cfg against limits and returns an error describing all
// problems found, or nil if the configuration is usable.
func (cfg IconConfig) Validate(limits ScaleLimits) error {
	var errs []string
	if !cfg.Shape.IsValid() {
		errs = append(errs, fmt.Sprintf("unknown shape %d", int(cfg.Shape)))
	}
	if cfg.ScalePercent < limits.Min || cfg.ScalePercent > limits.Max {
		errs = append(errs, fmt.Sprintf("scale %d%% outside %d-%d%%", cfg.ScalePercent, limits.Min, limits.Max))
	}
	if err := validateImageURL(cfg.BaseImageURL); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid icon configuration:\n  %s", strings.Join(errs, "\n  "))
}

func validateImageURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("base image URL is empty")
	}
	if strings.HasPrefix(raw, "data:") {
		if !strings.Contains(raw, ",") {
			return fmt.Errorf("malformed data URL")
		}
		return nil
	}
	if _, err := url.Parse(raw); err != nil {
		return fmt.Errorf("base image URL: %w", err)
	}
	return nil
}
