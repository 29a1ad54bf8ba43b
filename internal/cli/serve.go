package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	goicon "github.com/VantageDataChat/GoIcon"
	"github.com/VantageDataChat/GoIcon/internal/metrics"
	"github.com/VantageDataChat/GoIcon/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve icon widgets over HTTP",
	Long: `Start the HTTP service. Widget instances configured under server.mounts
are mounted at startup; when none are configured a single "root" mount is
created from widget.fallback_image_url.

Endpoints:
  GET    /health
  GET    /metrics
  GET    /api/v1/swatches
  GET    /api/v1/icon.png?url=...&shape=...&scale=...&color=...
  GET    /api/v1/instances
  POST   /api/v1/instances
  GET    /api/v1/instances/:id
  DELETE /api/v1/instances/:id
  PATCH  /api/v1/instances/:id/config
  GET    /api/v1/instances/:id/preview
  POST   /api/v1/instances/:id/export`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from server.addr)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := buildServer(ctx)
	if err != nil {
		return err
	}
	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	return srv.Run(ctx, addr)
}

// buildServer wires the loader, registry, and HTTP server from cfg and
// mounts the configured instances.
func buildServer(ctx context.Context) (*server.Server, error) {
	log := commandLogger()

	widget, err := cfg.WidgetOptions()
	if err != nil {
		return nil, err
	}
	loader, err := goicon.NewLoader(cfg.LoaderOptions(log))
	if err != nil {
		return nil, err
	}

	export := cfg.ExporterOptions(log)
	export.Loader = loader
	export.Notifier = server.ResponseNotifier{Next: goicon.LogNotifier{Logger: log}}
	export.Observer = metrics.Observer{}

	registry := goicon.NewRegistry(goicon.NewInstanceFactory(widget, export), log)
	// Static mounts never change, so an empty list goes straight to the
	// root fallback instead of being polled.
	var src goicon.HostSource
	if len(cfg.Server.Mounts) > 0 {
		src = cfg.HostSource()
	}
	mounted, err := registry.Bootstrap(ctx, src, goicon.DefaultRetryPolicy, widget.FallbackImageURL)
	if err != nil {
		return nil, err
	}
	metrics.SetInstancesMounted(registry.Len())
	for _, inst := range mounted {
		log.Info("mounted icon widget", "mount_id", inst.ID, "image", inst.Editor.Config().BaseImageURL)
	}

	return server.New(server.Options{
		Registry:        registry,
		Loader:          loader,
		Widget:          widget,
		Export:          export,
		Language:        cfg.Notify.Language,
		RateLimit:       cfg.Server.RateLimit,
		RateBurst:       cfg.Server.RateBurst,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Logger:          log,
	}), nil
}
