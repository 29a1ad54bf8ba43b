// Package server exposes icon widgets over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	goicon "github.com/VantageDataChat/GoIcon"
	"github.com/VantageDataChat/GoIcon/internal/metrics"
)

// Options configures a Server.
type Options struct {
	Registry *goicon.Registry
	Loader   goicon.ImageLoader
	Widget   goicon.WidgetOptions
	// Export is the template for per-request exporters on the stateless
	// icon route.
	Export   goicon.ExporterOptions
	Language string

	RateLimit float64
	RateBurst int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	Logger *slog.Logger
}

// Server is the HTTP front end for a widget registry.
type Server struct {
	echo     *echo.Echo
	registry *goicon.Registry
	loader   goicon.ImageLoader
	widget   goicon.WidgetOptions
	export   goicon.ExporterOptions
	text     goicon.Localizer
	opts     Options
	logger   *slog.Logger
}

// New creates a Server and registers its routes.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Loader == nil {
		// Without a base URL NewLoader cannot fail.
		opts.Loader, _ = goicon.NewLoader(goicon.LoaderOptions{Logger: logger})
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		echo:     echo.New(),
		registry: opts.Registry,
		loader:   opts.Loader,
		widget:   opts.Widget,
		export:   opts.Export,
		text:     goicon.NewLocalizer(opts.Language),
		opts:     opts,
		logger:   logger,
	}
	s.export.Loader = opts.Loader
	if s.export.Render == nil {
		s.export.Render = s.widget.ExportRenderOptions()
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			p := c.Request().URL.Path
			return p == "/health" || p == "/metrics"
		},
		LogStatus:   true,
		LogURI:      true,
		LogError:    true,
		LogMethod:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			rctx := c.Request().Context()
			if v.Error == nil {
				logger.InfoContext(rctx, "request completed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency_ms", v.Latency.Milliseconds())
			} else {
				logger.ErrorContext(rctx, "request failed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency_ms", v.Latency.Milliseconds(),
					"error", v.Error.Error())
			}
			return nil
		},
	}))
	e.Use(middleware.Recover())

	e.GET("/health", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1", NewRateLimiter(rate.Limit(opts.RateLimit), opts.RateBurst).Middleware())
	api.GET("/swatches", s.handleSwatches)
	api.GET("/icon.png", s.handleIcon)
	api.GET("/instances", s.handleListInstances)
	api.POST("/instances", s.handleCreateInstance)
	api.GET("/instances/:id", s.handleGetInstance)
	api.DELETE("/instances/:id", s.handleDeleteInstance)
	api.PATCH("/instances/:id/config", s.handlePatchConfig)
	api.GET("/instances/:id/preview", s.handlePreview)
	api.POST("/instances/:id/export", s.handleExport)

	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.echo }

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.echo.Server.ReadTimeout = s.opts.ReadTimeout
	s.echo.Server.WriteTimeout = s.opts.WriteTimeout
	s.logger.InfoContext(ctx, "starting icon server", "address", addr, "instances", s.registry.Len())

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		s.logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("server exited properly")
	return nil
}

// syncInstanceGauge refreshes the mounted-instance metric.
func (s *Server) syncInstanceGauge() {
	metrics.SetInstancesMounted(s.registry.Len())
}
