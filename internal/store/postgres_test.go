package store_test

import (
	"context"
	"errors"
	"testing"

	"shotdeck/internal/config"
	"shotdeck/internal/store"
	"shotdeck/internal/testsupport"
)

func TestPostgresDialect(t *testing.T) {
	dsn := testsupport.StartPostgres(t)
	cfg := testsupport.NewConfig(t, testsupport.WithDatabase(config.DriverPostgres, dsn))
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if st.Driver() != config.DriverPostgres {
		t.Fatalf("unexpected driver %q", st.Driver())
	}

	project := testsupport.NewProject(t, st, "alice", "Pg")
	a := testsupport.NewGeneration(t, st, project.ID, "a.png")
	b := testsupport.NewGeneration(t, st, project.ID, "b.png")
	shot := &store.Shot{ProjectID: project.ID, Name: "Pg shot"}
	if err := st.CreateShot(ctx, shot, a.ID, b.ID); err != nil {
		t.Fatalf("CreateShot: %v", err)
	}
	reordered, err := st.ReorderShot(ctx, shot.ID, []string{shot.Generations[1].ID, shot.Generations[0].ID})
	if err != nil {
		t.Fatalf("ReorderShot: %v", err)
	}
	assertDense(t, reordered)

	parent := testsupport.NewTask(t, st, project.ID, store.TaskTypeImageGeneration, store.JSONObject{"prompt": "p"})
	child := testsupport.NewTask(t, st, project.ID, store.TaskTypeImageUpscale, nil, parent.ID)
	claimed, err := st.ClaimNextTask(ctx)
	if err != nil || claimed == nil || claimed.ID != parent.ID {
		t.Fatalf("ClaimNextTask = %+v, %v", claimed, err)
	}
	if claimed.Params.String("prompt") != "p" {
		t.Fatalf("params did not round trip: %v", claimed.Params)
	}
	if _, err := st.FailTask(ctx, parent.ID, "boom"); err != nil {
		t.Fatalf("FailTask: %v", err)
	}
	cancelled, err := st.CancelBlockedTasks(ctx)
	if err != nil {
		t.Fatalf("CancelBlockedTasks: %v", err)
	}
	if len(cancelled) != 1 || cancelled[0].ID != child.ID {
		t.Fatalf("expected child cancelled, got %+v", cancelled)
	}

	if err := st.SaveWorkspace(ctx, "alice", store.Workspace{SelectedProjectID: project.ID}); err != nil {
		t.Fatalf("SaveWorkspace: %v", err)
	}
	ws, err := st.GetWorkspace(ctx, "alice")
	if err != nil || ws.SelectedProjectID != project.ID {
		t.Fatalf("GetWorkspace = %+v, %v", ws, err)
	}

	if err := st.DeleteProject(ctx, project.ID); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	if _, err := st.GetShot(ctx, shot.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("cascade failed: %v", err)
	}
}
