package goicon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
)

// RootMountID is the mount used when the host supplies no instances.
const RootMountID = "root"

// HostConfig is what the embedding host supplies for one mounted widget.
type HostConfig struct {
	MountID      string `json:"mountId" mapstructure:"mount_id"`
	BaseImageURL string `json:"baseImageUrl" mapstructure:"base_image_url"`
	// PluginURL is the base URL of the host's asset directory. It is used
	// to resolve a relative BaseImageURL.
	PluginURL string `json:"pluginUrl" mapstructure:"plugin_url"`
}

// Instance is one running widget.
type Instance struct {
	ID       string
	Editor   *Editor
	Exporter *Exporter
	Created  time.Time

	mu   sync.RWMutex
	host HostConfig
}

// Host returns a snapshot of the host configuration.
func (inst *Instance) Host() HostConfig {
	inst.mu.RLock()
	defer inst.mu.RUnlock()
	return inst.host
}

// refreshImage points the mount at a new host image URL. The host config
// changes only after the editor accepts the resolved URL.
func (inst *Instance) refreshImage(baseImageURL string) error {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if baseImageURL == "" || baseImageURL == inst.host.BaseImageURL {
		return nil
	}
	next := inst.host
	next.BaseImageURL = baseImageURL
	if err := inst.Editor.SetBaseImageURL(next.ResolveImageURL()); err != nil {
		return err
	}
	inst.host = next
	return nil
}

// InstanceFactory builds the editor and exporter for a new mount.
type InstanceFactory func(host HostConfig) (*Editor, *Exporter, error)

// NewInstanceFactory returns a factory giving every mount its own editor
// seeded from widget and its own exporter built from export.
func NewInstanceFactory(widget WidgetOptions, export ExporterOptions) InstanceFactory {
	return func(host HostConfig) (*Editor, *Exporter, error) {
		if err := widget.Validate(); err != nil {
			return nil, nil, err
		}
		if export.Render == nil {
			export.Render = widget.ExportRenderOptions()
		}
		ex, err := NewExporter(export)
		if err != nil {
			return nil, nil, err
		}
		return NewEditor(widget, host.ResolveImageURL()), ex, nil
	}
}

// Registry maps mount IDs to running instances. Initialization is
// idempotent: re-initializing a known mount returns the existing instance.
type Registry struct {
	mu        sync.RWMutex
	instances map[string]*Instance
	factory   InstanceFactory
	logger    *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(factory InstanceFactory, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		instances: make(map[string]*Instance),
		factory:   factory,
		logger:    logger,
	}
}

// Init returns the instance for host.MountID, creating it if needed. An
// empty MountID gets a generated one. For an existing mount only the host
// image URL is refreshed.
func (r *Registry) Init(host HostConfig) (*Instance, bool, error) {
	if host.MountID == "" {
		host.MountID = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if inst, ok := r.instances[host.MountID]; ok {
		if err := inst.refreshImage(host.BaseImageURL); err != nil {
			return inst, false, err
		}
		return inst, false, nil
	}

	if r.factory == nil {
		return nil, false, errors.New("registry has no instance factory")
	}
	ed, ex, err := r.factory(host)
	if err != nil {
		return nil, false, fmt.Errorf("mount %q: %w", host.MountID, err)
	}
	inst := &Instance{
		ID:       host.MountID,
		host:     host,
		Editor:   ed,
		Exporter: ex,
		Created:  time.Now(),
	}
	r.instances[host.MountID] = inst
	r.logger.Info("icon widget mounted", "mount_id", host.MountID)
	return inst, true, nil
}

// Get returns the instance mounted at id.
func (r *Registry) Get(id string) (*Instance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[id]
	return inst, ok
}

// Remove unmounts id. It reports whether the mount existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.instances[id]; !ok {
		return false
	}
	delete(r.instances, id)
	r.logger.Info("icon widget unmounted", "mount_id", id)
	return true
}

// IDs returns the mounted IDs in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.instances))
	for id := range r.instances {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of mounted instances.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.instances)
}

// Export runs an export for the mount at id using its current settings.
func (r *Registry) Export(ctx context.Context, id string) ExportResult {
	return r.ExportTo(ctx, id, nil)
}

// ExportTo is Export with an explicit Saver. A nil saver uses the
// instance exporter's default.
func (r *Registry) ExportTo(ctx context.Context, id string, saver Saver) ExportResult {
	inst, ok := r.Get(id)
	if !ok {
		return ExportResult{
			Status: StatusFailed,
			Err: &ExportError{
				Kind:    KindContainerNotFound,
				Message: ErrContainerNotFound.Error(),
				Err:     fmt.Errorf("mount %q", id),
			},
		}
	}
	if saver == nil {
		return inst.Exporter.Export(ctx, inst.Editor.Config())
	}
	return inst.Exporter.ExportTo(ctx, inst.Editor.Config(), saver)
}

// HostSource supplies per-mount configuration from the embedding host.
type HostSource interface {
	Instances(ctx context.Context) (map[string]HostConfig, error)
}

// HostSourceFunc adapts a function to HostSource.
type HostSourceFunc func(ctx context.Context) (map[string]HostConfig, error)

func (f HostSourceFunc) Instances(ctx context.Context) (map[string]HostConfig, error) {
	return f(ctx)
}

// StaticHostSource is a fixed set of host configurations.
type StaticHostSource map[string]HostConfig

func (s StaticHostSource) Instances(context.Context) (map[string]HostConfig, error) {
	return s, nil
}

// RetryPolicy bounds how long Bootstrap waits for the host.
type RetryPolicy struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
}

// DefaultRetryPolicy polls the host a handful of times over a few seconds.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:     10,
	InitialInterval: 100 * time.Millisecond,
	MaxInterval:     time.Second,
	MaxElapsed:      5 * time.Second,
}

func (p RetryPolicy) backOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		bo.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		bo.MaxInterval = p.MaxInterval
	}
	bo.Multiplier = 2
	return bo
}

// errNoInstances makes an empty host answer retryable.
var errNoInstances = errors.New("host supplied no instances")

// Bootstrap polls src until it yields at least one host configuration and
// mounts each of them. When the host never answers, a single root mount
// is created with fallbackImageURL.
func (r *Registry) Bootstrap(ctx context.Context, src HostSource, policy RetryPolicy, fallbackImageURL string) ([]*Instance, error) {
	hosts := map[string]HostConfig{}
	if src != nil {
		opts := []backoff.RetryOption{
			backoff.WithBackOff(policy.backOff()),
			backoff.WithNotify(func(err error, wait time.Duration) {
				r.logger.Debug("waiting for host configuration", "error", err, "retry_in", wait)
			}),
		}
		if policy.MaxAttempts > 0 {
			opts = append(opts, backoff.WithMaxTries(policy.MaxAttempts))
		}
		if policy.MaxElapsed > 0 {
			opts = append(opts, backoff.WithMaxElapsedTime(policy.MaxElapsed))
		}
		got, err := backoff.Retry(ctx, func() (map[string]HostConfig, error) {
			m, err := src.Instances(ctx)
			if err != nil {
				return nil, err
			}
			if len(m) == 0 {
				return nil, errNoInstances
			}
			return m, nil
		}, opts...)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			r.logger.Warn("host configuration unavailable, using fallback mount", "error", err)
		} else {
			hosts = got
		}
	}

	if len(hosts) == 0 {
		hosts[RootMountID] = HostConfig{MountID: RootMountID, BaseImageURL: fallbackImageURL}
	}

	keys := make([]string, 0, len(hosts))
	for k := range hosts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]*Instance, 0, len(keys))
	for _, k := range keys {
		h := hosts[k]
		if h.MountID == "" {
			h.MountID = k
		}
		inst, _, err := r.Init(h)
		if err != nil {
			return out, err
		}
		out = append(out, inst)
	}
	return out, nil
}

// ResolveImageURL joins a relative base image path onto the plugin URL.
func (h HostConfig) ResolveImageURL() string {
	if h.BaseImageURL == "" || h.PluginURL == "" || isAbsoluteImageRef(h.BaseImageURL) {
		return h.BaseImageURL
	}
	return strings.TrimRight(h.PluginURL, "/") + "/" + strings.TrimLeft(h.BaseImageURL, "/")
}

func isAbsoluteImageRef(s string) bool {
	for _, p := range []string{"http://", "https://", "data:", "file:"} {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
