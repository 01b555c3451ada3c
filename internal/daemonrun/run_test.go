package daemonrun_test

import (
	"context"
	"testing"

	"shotdeck/internal/daemonrun"
	"shotdeck/internal/testsupport"
)

func TestBuildSelectsComponents(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	both := daemonrun.Build(cfg, st, nil, daemonrun.Options{API: true, Worker: true})
	if both.API == nil || both.Worker == nil || both.Dispatcher == nil || both.Hub == nil {
		t.Fatalf("expected api and worker, got %+v", both)
	}
	if mode := both.Worker.Mode(); mode != "local" {
		t.Fatalf("expected local worker mode, got %q", mode)
	}

	apiOnly := daemonrun.Build(cfg, st, nil, daemonrun.Options{API: true})
	if apiOnly.API == nil || apiOnly.Worker != nil {
		t.Fatalf("expected api only, got %+v", apiOnly)
	}
}

func TestRunRejectsEmptySelection(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{}); err == nil {
		t.Fatal("expected error when neither api nor worker is enabled")
	}
	if err := daemonrun.Run(context.Background(), nil, daemonrun.Options{API: true}); err == nil {
		t.Fatal("expected error without config")
	}
}

func TestRunStopsWhenContextEnds(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := daemonrun.Run(ctx, cfg, daemonrun.Options{API: true, Worker: true}); err != nil {
		t.Fatalf("Run: %v", err)
	}
}
