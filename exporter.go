package goicon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// DefaultLoadTimeout bounds how long an export waits for the base image.
const DefaultLoadTimeout = 10 * time.Second

// ExportState is the phase of the in-flight export, if any.
type ExportState int32

const (
	StateIdle ExportState = iota
	StateLoading
	StateCompositing
)

func (s ExportState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateCompositing:
		return "compositing"
	default:
		return fmt.Sprintf("ExportState(%d)", int32(s))
	}
}

// ExportStatus is the terminal outcome of one Export call.
type ExportStatus int

const (
	StatusSucceeded ExportStatus = iota
	StatusFailed
	// StatusRejected means another export was in flight; nothing was done.
	StatusRejected
)

func (s ExportStatus) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusRejected:
		return "rejected"
	default:
		return fmt.Sprintf("ExportStatus(%d)", int(s))
	}
}

// ExportResult reports the outcome of an export. The artifact itself goes
// to the Saver; only its name and size are reported back.
type ExportResult struct {
	Status   ExportStatus
	Filename string
	Bytes    int
	Duration time.Duration
	Err      *ExportError
}

// OK reports whether the export succeeded.
func (r ExportResult) OK() bool { return r.Status == StatusSucceeded }

// ExportObserver is told about every export outcome, e.g. for metrics.
type ExportObserver interface {
	ExportStarted(shape Shape)
	ExportFinished(status ExportStatus, shape Shape, kind ErrorKind, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) ExportStarted(Shape) {}
func (nopObserver) ExportFinished(ExportStatus, Shape, ErrorKind, time.Duration) {}

// ExporterOptions configures an Exporter.
type ExporterOptions struct {
	// Loader acquires base images. Default: NewLoader with zero options.
	Loader ImageLoader
	// Saver receives generated artifacts. Default: DirSaver{"."}.
	Saver Saver
	// Notifier is told about successes and failures. Default: LogNotifier.
	Notifier Notifier
	Observer ExportObserver
	// Render controls the export resolution and shape geometry.
	// Default: DefaultRenderOptions().
	Render *RenderOptions
	// LoadTimeout bounds image acquisition. Default: DefaultLoadTimeout.
	LoadTimeout    time.Duration
	FilenamePrefix string
	Format         ExportFormat
	// Language selects notification text, e.g. "en" or "ja".
	Language string
	Logger   *slog.Logger
	// Now overrides the clock used for filenames.
	Now func() time.Time
}

// Exporter renders icons at export resolution and hands them to a Saver.
// At most one export runs at a time; overlapping calls are rejected.
type Exporter struct {
	state atomic.Int32

	loader   ImageLoader
	saver    Saver
	notifier Notifier
	observer ExportObserver
	render   *RenderOptions
	timeout  time.Duration
	prefix   string
	format   ExportFormat
	text     Localizer
	logger   *slog.Logger
	names    filenamer
}

// NewExporter creates an Exporter.
func NewExporter(opts ExporterOptions) (*Exporter, error) {
	e := &Exporter{
		loader:   opts.Loader,
		saver:    opts.Saver,
		notifier: opts.Notifier,
		observer: opts.Observer,
		render:   opts.Render,
		timeout:  opts.LoadTimeout,
		prefix:   opts.FilenamePrefix,
		format:   opts.Format,
		text:     NewLocalizer(opts.Language),
		logger:   opts.Logger,
		names:    filenamer{now: opts.Now},
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.loader == nil {
		l, err := NewLoader(LoaderOptions{Logger: e.logger})
		if err != nil {
			return nil, err
		}
		e.loader = l
	}
	if e.saver == nil {
		e.saver = DirSaver{Dir: "."}
	}
	if e.notifier == nil {
		e.notifier = LogNotifier{Logger: e.logger}
	}
	if e.observer == nil {
		e.observer = nopObserver{}
	}
	if e.render == nil {
		e.render = DefaultRenderOptions()
	}
	if e.timeout <= 0 {
		e.timeout = DefaultLoadTimeout
	}
	if e.prefix == "" {
		e.prefix = DefaultFilenamePrefix
	}
	return e, nil
}

// State returns the current phase.
func (e *Exporter) State() ExportState { return ExportState(e.state.Load()) }

// Export renders cfg and delivers it to the configured Saver.
func (e *Exporter) Export(ctx context.Context, cfg IconConfig) ExportResult {
	return e.ExportTo(ctx, cfg, e.saver)
}

// ExportTo is Export with an explicit Saver for this call.
func (e *Exporter) ExportTo(ctx context.Context, cfg IconConfig, saver Saver) ExportResult {
	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateLoading)) {
		e.logger.DebugContext(ctx, "export rejected: another export is in progress")
		e.observer.ExportFinished(StatusRejected, cfg.Shape, KindUnknown, 0)
		return ExportResult{Status: StatusRejected}
	}
	defer e.state.Store(int32(StateIdle))

	start := time.Now()
	e.observer.ExportStarted(cfg.Shape)
	res := e.run(ctx, cfg, saver)
	res.Duration = time.Since(start)

	if res.Err != nil {
		e.observer.ExportFinished(res.Status, cfg.Shape, res.Err.Kind, res.Duration)
		e.logger.ErrorContext(ctx, "icon export failed",
			"error", res.Err,
			"error_kind", res.Err.Kind.String(),
			"shape", cfg.Shape.String(),
			"scale_percent", cfg.ScalePercent,
			"url", redactURL(cfg.BaseImageURL))
		e.notifier.Notify(ctx, e.text.ErrorNotification(res.Err))
		return res
	}

	e.observer.ExportFinished(res.Status, cfg.Shape, KindUnknown, res.Duration)
	e.logger.InfoContext(ctx, "icon exported",
		"filename", res.Filename,
		"bytes", res.Bytes,
		"shape", cfg.Shape.String(),
		"scale_percent", cfg.ScalePercent,
		"background", cfg.BackgroundColor.Hex(),
		"duration_ms", res.Duration.Milliseconds())
	e.notifier.Notify(ctx, e.text.SuccessNotification(res.Filename))
	return res
}

func (e *Exporter) run(ctx context.Context, cfg IconConfig, saver Saver) (res ExportResult) {
	fail := func(err error) ExportResult {
		return ExportResult{Status: StatusFailed, Err: newExportError(err)}
	}

	if err := validateImageURL(cfg.BaseImageURL); err != nil {
		return fail(&ExportError{Kind: KindImageLoadFailed, Message: ErrImageLoadFailed.Error(), Err: err})
	}
	src, err := e.load(ctx, cfg.BaseImageURL)
	if err != nil {
		return fail(err)
	}

	e.state.Store(int32(StateCompositing))
	defer func() {
		if r := recover(); r != nil {
			res = fail(fmt.Errorf("compositing panicked: %v", r))
		}
	}()

	surface, err := Composite(src, cfg, e.render)
	if err != nil {
		return fail(err)
	}
	var data []byte
	switch e.format {
	case FormatICO:
		data, err = surface.EncodeICO()
	default:
		data, err = surface.EncodePNG()
	}
	if err != nil {
		return fail(err)
	}

	art := &Artifact{
		Filename:    e.names.next(e.prefix, e.format),
		ContentType: e.format.contentType(),
		Data:        data,
	}
	if err := saver.Save(ctx, art); err != nil {
		return fail(err)
	}
	return ExportResult{Status: StatusSucceeded, Filename: art.Filename, Bytes: len(data)}
}

// load races the loader against the timeout. A load that finishes after
// the deadline is discarded.
func (e *Exporter) load(parent context.Context, rawURL string) (*SourceImage, error) {
	ctx, cancel := context.WithTimeout(parent, e.timeout)
	defer cancel()

	type result struct {
		src *SourceImage
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				e.logger.Error("image loader panicked", "url", redactURL(rawURL), "panic", p)
				ch <- result{err: loadError(fmt.Sprintf("loader panic: %v", p), nil)}
			}
		}()
		src, err := e.loader.Load(ctx, rawURL)
		ch <- result{src, err}
	}()

	timedOut := &ExportError{
		Kind:    KindImageLoadTimedOut,
		Message: ErrImageLoadTimedOut.Error(),
		Err:     context.DeadlineExceeded,
	}
	select {
	case r := <-ch:
		if r.err == nil {
			if r.src == nil {
				return nil, &ExportError{Kind: KindImageLoadFailed, Message: ErrImageLoadFailed.Error()}
			}
			return r.src, nil
		}
		if parent.Err() == nil && errors.Is(r.err, context.DeadlineExceeded) {
			return nil, timedOut
		}
		if parent.Err() != nil {
			return nil, &ExportError{Kind: KindUnknown, Message: "export canceled", Err: parent.Err()}
		}
		return nil, &ExportError{Kind: KindImageLoadFailed, Message: ErrImageLoadFailed.Error(), Err: r.err}
	case <-ctx.Done():
		if parent.Err() != nil {
			return nil, &ExportError{Kind: KindUnknown, Message: "export canceled", Err: parent.Err()}
		}
		return nil, timedOut
	}
}

// redactURL keeps log lines short for inline data URLs.
func redactURL(raw string) string {
	if len(raw) > 5 && raw[:5] == "data:" {
		if len(raw) > 40 {
			return raw[:40] + "..."
		}
	}
	return raw
}
