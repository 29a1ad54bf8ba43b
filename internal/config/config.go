// Package config provides Viper-based configuration management for iconctl
package config

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/viper"

	goicon "github.com/VantageDataChat/GoIcon"
)

// Config represents the complete iconctl configuration
type Config struct {
	Render  RenderConfig  `mapstructure:"render"`
	Scale   ScaleConfig   `mapstructure:"scale"`
	Widget  WidgetConfig  `mapstructure:"widget"`
	Loader  LoaderConfig  `mapstructure:"loader"`
	Export  ExportConfig  `mapstructure:"export"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Output  OutputConfig  `mapstructure:"output"`

	fonts *goicon.FontCache
}

// RenderConfig contains canvas geometry settings
type RenderConfig struct {
	PreviewSize          int     `mapstructure:"preview_size"`
	ExportSize           int     `mapstructure:"export_size"`
	CornerRadiusFraction float64 `mapstructure:"corner_radius_fraction"`
	// SystemFonts enables scanning OS font directories for placeholder text
	SystemFonts      bool     `mapstructure:"system_fonts"`
	FontDirs         []string `mapstructure:"font_dirs"`
	PlaceholderFonts []string `mapstructure:"placeholder_fonts"`
}

// ScaleConfig bounds the user-controlled scale percentage
type ScaleConfig struct {
	Min  int `mapstructure:"min"`
	Max  int `mapstructure:"max"`
	Step int `mapstructure:"step"`
}

// WidgetConfig contains the initial widget state
type WidgetConfig struct {
	Shape            string   `mapstructure:"shape"`
	ScalePercent     int      `mapstructure:"scale_percent"`
	Color            string   `mapstructure:"color"`
	Presets          []string `mapstructure:"presets"`
	FallbackImageURL string   `mapstructure:"fallback_image_url"`
}

// LoaderConfig contains image acquisition settings
type LoaderConfig struct {
	Origin       string        `mapstructure:"origin"`
	BaseURL      string        `mapstructure:"base_url"`
	CrossOrigin  string        `mapstructure:"cross_origin"`
	MaxBytes     int64         `mapstructure:"max_bytes"`
	MaxPixels    int64         `mapstructure:"max_pixels"`
	Timeout      time.Duration `mapstructure:"timeout"`
	HTTPTimeout  time.Duration `mapstructure:"http_timeout"`
	HostInterval time.Duration `mapstructure:"host_interval"`
}

// ExportConfig contains download artifact settings
type ExportConfig struct {
	Dir            string `mapstructure:"dir"`
	FilenamePrefix string `mapstructure:"filename_prefix"`
	Format         string `mapstructure:"format"`
}

// NotifyConfig contains notification settings
type NotifyConfig struct {
	Language string `mapstructure:"language"`
}

// ServerConfig contains HTTP service settings
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit       float64       `mapstructure:"rate_limit"`
	RateBurst       int           `mapstructure:"rate_burst"`
	Mounts          []MountConfig `mapstructure:"mounts"`
}

// MountConfig is a widget instance created at server start
type MountConfig struct {
	ID           string `mapstructure:"id"`
	BaseImageURL string `mapstructure:"base_image_url"`
	PluginURL    string `mapstructure:"plugin_url"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// OutputConfig contains output formatting settings
type OutputConfig struct {
	Colors bool `mapstructure:"colors"`
}

// envKeyReplacer maps nested keys to env names, e.g. ICONCTL_SERVER_ADDR
var envKeyReplacer = strings.NewReplacer(".", "_")

// Load reads configuration from file and environment variables
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		// Search paths for .iconctl.yaml
		v.SetConfigName(".iconctl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/iconctl")
	}

	v.SetEnvPrefix("ICONCTL")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values
func setDefaults(v *viper.Viper) {
	v.SetDefault("render.preview_size", goicon.DefaultPreviewSize)
	v.SetDefault("render.export_size", goicon.DefaultExportSize)
	v.SetDefault("render.corner_radius_fraction", goicon.DefaultCornerRadiusFraction)
	v.SetDefault("render.system_fonts", false)

	v.SetDefault("scale.min", goicon.DefaultScaleLimits.Min)
	v.SetDefault("scale.max", goicon.DefaultScaleLimits.Max)
	v.SetDefault("scale.step", goicon.DefaultScaleLimits.Step)

	v.SetDefault("widget.shape", "circle")
	v.SetDefault("widget.scale_percent", 100)
	v.SetDefault("widget.color", goicon.DefaultSwatches[0].Color.Hex())

	v.SetDefault("loader.cross_origin", string(goicon.CrossOriginAnonymous))
	v.SetDefault("loader.max_bytes", goicon.DefaultMaxImageBytes)
	v.SetDefault("loader.max_pixels", goicon.DefaultMaxSourcePixels)
	v.SetDefault("loader.timeout", goicon.DefaultLoadTimeout)
	v.SetDefault("loader.http_timeout", 30*time.Second)

	v.SetDefault("export.dir", ".")
	v.SetDefault("export.filename_prefix", goicon.DefaultFilenamePrefix)
	v.SetDefault("export.format", "png")

	v.SetDefault("notify.language", "en")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.rate_burst", 10)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("output.colors", true)
}

// validate checks the configuration for errors
func validate(cfg *Config) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s (must be debug, info, warn, or error)", cfg.Logging.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s (must be text or json)", cfg.Logging.Format)
	}

	if _, err := goicon.ParseCrossOrigin(cfg.Loader.CrossOrigin); err != nil {
		return err
	}
	if _, err := goicon.ParseExportFormat(cfg.Export.Format); err != nil {
		return err
	}
	if cfg.Loader.Timeout <= 0 {
		return fmt.Errorf("invalid loader timeout: %s (must be positive)", cfg.Loader.Timeout)
	}
	if cfg.Server.RateLimit < 0 || cfg.Server.RateBurst < 0 {
		return fmt.Errorf("invalid rate limit: %.2f/s burst %d", cfg.Server.RateLimit, cfg.Server.RateBurst)
	}

	opts, err := cfg.WidgetOptions()
	if err != nil {
		return err
	}
	return opts.Validate()
}

// Limits returns the configured scale limits
func (c *Config) Limits() goicon.ScaleLimits {
	return goicon.ScaleLimits{Min: c.Scale.Min, Max: c.Scale.Max, Step: c.Scale.Step}
}

// WidgetOptions converts the widget, render, and scale sections
func (c *Config) WidgetOptions() (goicon.WidgetOptions, error) {
	opts := goicon.DefaultWidgetOptions()

	shape, err := goicon.ParseShape(c.Widget.Shape)
	if err != nil {
		return opts, err
	}
	initial, err := goicon.ParseHexColor(c.Widget.Color)
	if err != nil {
		return opts, fmt.Errorf("widget.color: %w", err)
	}
	if len(c.Widget.Presets) > 0 {
		presets := make([]goicon.Swatch, 0, len(c.Widget.Presets))
		for _, hex := range c.Widget.Presets {
			col, err := goicon.ParseHexColor(hex)
			if err != nil {
				return opts, fmt.Errorf("widget.presets: %w", err)
			}
			presets = append(presets, goicon.Swatch{Color: col, Name: col.Hex()})
		}
		opts.ColorPresets = presets
	}

	opts.InitialShape = shape
	opts.InitialScalePercent = c.Widget.ScalePercent
	opts.InitialColor = initial
	opts.Limits = c.Limits()
	opts.PreviewSize = c.Render.PreviewSize
	opts.ExportSize = c.Render.ExportSize
	opts.CornerRadiusFraction = c.Render.CornerRadiusFraction
	opts.FallbackImageURL = c.Widget.FallbackImageURL
	opts.Fonts = c.fontCache()
	opts.PlaceholderFonts = c.Render.PlaceholderFonts
	return opts, nil
}

// fontCache returns the shared placeholder font cache, or nil when no
// font source is configured
func (c *Config) fontCache() *goicon.FontCache {
	if c.fonts != nil {
		return c.fonts
	}
	switch {
	case c.Render.SystemFonts:
		c.fonts = goicon.NewFontCache(c.Render.FontDirs...)
	case len(c.Render.FontDirs) > 0:
		c.fonts = goicon.NewFontCacheDirs(c.Render.FontDirs...)
	}
	return c.fonts
}

// LoaderOptions converts the loader section. Local file access is left
// off; the one-shot CLI commands turn it on themselves.
func (c *Config) LoaderOptions(logger *slog.Logger) goicon.LoaderOptions {
	mode, _ := goicon.ParseCrossOrigin(c.Loader.CrossOrigin)
	return goicon.LoaderOptions{
		HTTPClient:   &http.Client{Timeout: c.Loader.HTTPTimeout},
		BaseURL:      c.Loader.BaseURL,
		Origin:       c.Loader.Origin,
		CrossOrigin:  mode,
		MaxBytes:     c.Loader.MaxBytes,
		MaxPixels:    c.Loader.MaxPixels,
		HostInterval: c.Loader.HostInterval,
		Logger:       logger,
	}
}

// ExporterOptions converts the export and notify sections. Loader, Saver,
// Notifier, and Observer are left for the caller.
func (c *Config) ExporterOptions(logger *slog.Logger) goicon.ExporterOptions {
	format, _ := goicon.ParseExportFormat(c.Export.Format)
	// Load has already validated the widget section
	widget, _ := c.WidgetOptions()
	return goicon.ExporterOptions{
		Render:         widget.ExportRenderOptions(),
		LoadTimeout:    c.Loader.Timeout,
		FilenamePrefix: c.Export.FilenamePrefix,
		Format:         format,
		Language:       c.Notify.Language,
		Logger:         logger,
	}
}

// HostSource returns the configured server mounts as a host source
func (c *Config) HostSource() goicon.StaticHostSource {
	src := goicon.StaticHostSource{}
	for _, m := range c.Server.Mounts {
		src[m.ID] = goicon.HostConfig{MountID: m.ID, BaseImageURL: m.BaseImageURL, PluginURL: m.PluginURL}
	}
	return src
}
