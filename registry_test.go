package goicon

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func testFactory(loader ImageLoader, saver Saver) InstanceFactory {
	widget := DefaultWidgetOptions()
	widget.ExportSize = 128
	return NewInstanceFactory(widget, ExporterOptions{
		Loader:   loader,
		Saver:    saver,
		Notifier: &recordingNotifier{},
	})
}

func TestRegistry_InitIdempotent(t *testing.T) {
	r := NewRegistry(testFactory(staticLoader(NewSourceImage(solidImage(4, 4, red))), &memorySaver{}), nil)

	a, created, err := r.Init(HostConfig{MountID: "icon-1", BaseImageURL: "https://img.example.com/a.png"})
	if err != nil || !created {
		t.Fatalf("Init: %v, created=%v", err, created)
	}
	if err := a.Editor.SetBackgroundColor("#000000"); err != nil {
		t.Fatal(err)
	}

	b, created, err := r.Init(HostConfig{MountID: "icon-1", BaseImageURL: "https://img.example.com/b.png"})
	if err != nil || created {
		t.Fatalf("re-Init: %v, created=%v", err, created)
	}
	if a != b {
		t.Fatal("re-Init created a second instance")
	}
	cfg := b.Editor.Config()
	if cfg.BackgroundColor != ColorBlack {
		t.Error("re-Init reset user edits")
	}
	if cfg.BaseImageURL != "https://img.example.com/b.png" {
		t.Errorf("base URL not refreshed: %s", cfg.BaseImageURL)
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d", r.Len())
	}
}

func TestRegistry_InitRefreshConcurrentWithReads(t *testing.T) {
	r := NewRegistry(testFactory(staticLoader(NewSourceImage(solidImage(4, 4, red))), &memorySaver{}), nil)
	if _, _, err := r.Init(HostConfig{MountID: "m", BaseImageURL: "https://img.example.com/0.png"}); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			url := fmt.Sprintf("https://img.example.com/%d.png", i%2)
			if _, _, err := r.Init(HostConfig{MountID: "m", BaseImageURL: url}); err != nil {
				t.Error(err)
				return
			}
		}
	}()
	for i := 0; i < 200; i++ {
		inst, ok := r.Get("m")
		if !ok {
			t.Fatal("mount disappeared")
		}
		if got := inst.Host().BaseImageURL; got == "" {
			t.Fatal("empty host URL")
		}
	}
	<-done
}

func TestRegistry_InitRefreshInvalidURLKeepsState(t *testing.T) {
	r := NewRegistry(testFactory(staticLoader(NewSourceImage(solidImage(4, 4, red))), &memorySaver{}), nil)
	inst, _, err := r.Init(HostConfig{MountID: "m", BaseImageURL: "https://img.example.com/a.png"})
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := r.Init(HostConfig{MountID: "m", BaseImageURL: "data:nocomma"}); err == nil {
		t.Fatal("expected error for malformed data URL")
	}
	if got := inst.Host().BaseImageURL; got != "https://img.example.com/a.png" {
		t.Errorf("host URL changed to %q after failed refresh", got)
	}
	if got := inst.Editor.Config().BaseImageURL; got != "https://img.example.com/a.png" {
		t.Errorf("editor URL changed to %q after failed refresh", got)
	}
}

func TestRegistry_GeneratedID(t *testing.T) {
	r := NewRegistry(testFactory(nil, &memorySaver{}), nil)
	inst, _, err := r.Init(HostConfig{BaseImageURL: "https://img.example.com/a.png"})
	if err != nil {
		t.Fatal(err)
	}
	if len(inst.ID) != 36 {
		t.Errorf("generated ID %q is not a UUID", inst.ID)
	}
	if _, ok := r.Get(inst.ID); !ok {
		t.Error("instance not registered")
	}
	if !r.Remove(inst.ID) || r.Remove(inst.ID) {
		t.Error("Remove should succeed once")
	}
}

func TestRegistry_ExportIndependent(t *testing.T) {
	saver := &memorySaver{}
	r := NewRegistry(testFactory(staticLoader(NewSourceImage(solidImage(4, 4, red))), saver), nil)
	for _, id := range []string{"a", "b"} {
		if _, _, err := r.Init(HostConfig{MountID: id, BaseImageURL: "https://img.example.com/" + id + ".png"}); err != nil {
			t.Fatal(err)
		}
	}
	if got := r.IDs(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("IDs = %v", got)
	}

	a, _ := r.Get("a")
	_ = a.Editor.SetShape(ShapeRoundedSquare)
	b, _ := r.Get("b")
	if b.Editor.Config().Shape != ShapeCircle {
		t.Error("instances share editor state")
	}

	res := r.Export(context.Background(), "a")
	if !res.OK() {
		t.Fatalf("export a: %v", res.Err)
	}
	if len(saver.saved()) != 1 {
		t.Errorf("saved %d artifacts", len(saver.saved()))
	}
}

func TestRegistry_ExportUnknownMount(t *testing.T) {
	r := NewRegistry(testFactory(nil, &memorySaver{}), nil)
	res := r.Export(context.Background(), "missing")
	if res.Status != StatusFailed || res.Err == nil || res.Err.Kind != KindContainerNotFound {
		t.Fatalf("result = %+v", res)
	}
	if !errors.Is(res.Err, ErrContainerNotFound) {
		t.Error("error does not match ErrContainerNotFound")
	}
}

func TestRegistry_Bootstrap(t *testing.T) {
	var attempts atomic.Int32
	src := HostSourceFunc(func(context.Context) (map[string]HostConfig, error) {
		if attempts.Add(1) < 3 {
			return nil, nil
		}
		return map[string]HostConfig{
			"icon-b": {BaseImageURL: "img/b.png", PluginURL: "https://shop.example.com/wp-content/plugins/icon/"},
			"icon-a": {MountID: "icon-a", BaseImageURL: "https://img.example.com/a.png"},
		}, nil
	})
	r := NewRegistry(testFactory(nil, &memorySaver{}), nil)
	policy := RetryPolicy{MaxAttempts: 5, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}

	insts, err := r.Bootstrap(context.Background(), src, policy, "https://img.example.com/fallback.png")
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if len(insts) != 2 || insts[0].ID != "icon-a" || insts[1].ID != "icon-b" {
		t.Fatalf("instances = %v", r.IDs())
	}
	if got := insts[1].Editor.Config().BaseImageURL; got != "https://shop.example.com/wp-content/plugins/icon/img/b.png" {
		t.Errorf("resolved URL = %s", got)
	}
	if attempts.Load() != 3 {
		t.Errorf("attempts = %d, want 3", attempts.Load())
	}
}

func TestRegistry_BootstrapFallback(t *testing.T) {
	src := HostSourceFunc(func(context.Context) (map[string]HostConfig, error) {
		return nil, errors.New("host settings not injected")
	})
	r := NewRegistry(testFactory(nil, &memorySaver{}), nil)
	policy := RetryPolicy{MaxAttempts: 2, InitialInterval: time.Millisecond}

	insts, err := r.Bootstrap(context.Background(), src, policy, "https://img.example.com/fallback.png")
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if len(insts) != 1 || insts[0].ID != RootMountID {
		t.Fatalf("IDs = %v", r.IDs())
	}
	if got := insts[0].Editor.Config().BaseImageURL; got != "https://img.example.com/fallback.png" {
		t.Errorf("fallback URL = %s", got)
	}

	// Bootstrapping again keeps the existing root instance.
	again, err := r.Bootstrap(context.Background(), nil, policy, "https://img.example.com/fallback.png")
	if err != nil || len(again) != 1 || again[0] != insts[0] {
		t.Errorf("second bootstrap: %v", err)
	}
}

func TestHostConfig_ResolveImageURL(t *testing.T) {
	tests := []struct {
		host HostConfig
		want string
	}{
		{HostConfig{BaseImageURL: "a.png"}, "a.png"},
		{HostConfig{BaseImageURL: "/img/a.png", PluginURL: "https://x.test/p/"}, "https://x.test/p/img/a.png"},
		{HostConfig{BaseImageURL: "https://cdn.test/a.png", PluginURL: "https://x.test/p"}, "https://cdn.test/a.png"},
		{HostConfig{BaseImageURL: "data:image/png;base64,AA==", PluginURL: "https://x.test/p"}, "data:image/png;base64,AA=="},
	}
	for _, tt := range tests {
		if got := tt.host.ResolveImageURL(); got != tt.want {
			t.Errorf("ResolveImageURL(%+v) = %q, want %q", tt.host, got, tt.want)
		}
	}
}
