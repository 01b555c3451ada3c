package daemon_test

import (
	"context"
	"net/http"
	"testing"

	"shotdeck/internal/daemon"
	"shotdeck/internal/events"
	"shotdeck/internal/httpapi"
	"shotdeck/internal/stage"
	"shotdeck/internal/store"
	"shotdeck/internal/studio"
	"shotdeck/internal/testsupport"
	"shotdeck/internal/worker"
)

type noopHandler struct{}

func (noopHandler) Execute(context.Context, *store.Task) (*stage.Result, error) {
	return &stage.Result{}, nil
}

func (noopHandler) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("noop")
}

func newDaemon(t *testing.T, withAPI bool) *daemon.Daemon {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	hub := events.NewHub(16)
	parts := daemon.Components{
		Store:  st,
		Hub:    hub,
		Worker: worker.New(cfg, st, map[string]stage.Handler{store.TaskTypeImageGeneration: noopHandler{}}, nil, worker.WithPublisher(hub)),
	}
	if withAPI {
		parts.API = httpapi.New(cfg, httpapi.Deps{Studio: studio.New(st, studio.WithPublisher(hub)), Hub: hub})
	}
	d, err := daemon.New(cfg, nil, parts)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)
	return d
}

func TestDaemonStartStop(t *testing.T) {
	d := newDaemon(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status(ctx)
	if !status.Running || !status.API || status.Worker == nil || !status.Worker.Running {
		t.Fatalf("unexpected status: %+v", status)
	}

	resp, err := http.Get("http://" + d.Addr() + "/api/health")
	if err != nil {
		t.Fatalf("health request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", resp.StatusCode)
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonLockIsExclusive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	build := func() *daemon.Daemon {
		d, err := daemon.New(cfg, nil, daemon.Components{
			Store: st,
			API:   httpapi.New(cfg, httpapi.Deps{Studio: studio.New(st)}),
		})
		if err != nil {
			t.Fatalf("daemon.New: %v", err)
		}
		t.Cleanup(d.Stop)
		return d
	}
	ctx := context.Background()

	first := build()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	second := build()
	if err := second.Start(ctx); err == nil {
		t.Fatal("expected lock contention error")
	}

	first.Stop()
	if err := second.Start(ctx); err != nil {
		t.Fatalf("Start after release: %v", err)
	}
}

func TestWorkerOnlyDaemonSkipsLock(t *testing.T) {
	d := newDaemon(t, false)
	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	status := d.Status(ctx)
	if status.API || status.LockFilePath != "" || status.Address != "" {
		t.Fatalf("worker-only daemon reported api state: %+v", status)
	}
}

func TestNewRequiresComponents(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	if _, err := daemon.New(cfg, nil, daemon.Components{Store: st}); err == nil {
		t.Fatal("expected error without api or worker")
	}
	if _, err := daemon.New(nil, nil, daemon.Components{}); err == nil {
		t.Fatal("expected error without config")
	}
}

func TestSendTestNotificationWithoutTopic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	sent, message, err := daemon.SendTestNotification(context.Background(), cfg)
	if err != nil || sent || message != "ntfy topic not configured" {
		t.Fatalf("unexpected result: %v %q %v", sent, message, err)
	}
}
