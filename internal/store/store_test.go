package store_test

import (
	"context"
	"errors"
	"testing"

	"shotdeck/internal/config"
	"shotdeck/internal/store"
	"shotdeck/internal/testsupport"
)

func TestOpenAppliesMigrations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	version, dirty, err := st.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if version != 1 || dirty {
		t.Fatalf("unexpected schema version %d dirty=%v", version, dirty)
	}

	result, err := st.Migrate(ctx)
	if err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	if result.Applied || result.From != 1 || result.To != 1 {
		t.Fatalf("expected no-op migration, got %+v", result)
	}
	if err := st.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if st.Driver() != config.DriverSQLite {
		t.Fatalf("unexpected driver %q", st.Driver())
	}
}

func TestConnectLeavesSchemaAlone(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st, err := store.Connect(cfg)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer st.Close()

	result, err := st.Migrate(context.Background())
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if !result.Applied || result.From != 0 || result.To != 1 {
		t.Fatalf("expected fresh migration, got %+v", result)
	}
}

func TestOpenDSNRejectsUnknownDriver(t *testing.T) {
	if _, err := store.OpenDSN("mysql", "root@/db", 0); err == nil {
		t.Fatal("expected unsupported driver error")
	}
}

func TestProjectCRUD(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.NewProject(t, st, "alice", "First")
	if first.ID == "" || first.AspectRatio != store.DefaultAspectRatio {
		t.Fatalf("unexpected defaults: %+v", first)
	}
	second := testsupport.NewProject(t, st, "alice", "Second")
	testsupport.NewProject(t, st, "bob", "Other")

	projects, err := st.ListProjects(ctx, "alice")
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(projects) != 2 || projects[0].ID != second.ID {
		t.Fatalf("expected newest first, got %+v", projects)
	}

	recent, err := st.MostRecentProject(ctx, "alice")
	if err != nil {
		t.Fatalf("MostRecentProject: %v", err)
	}
	if recent.ID != second.ID {
		t.Fatalf("expected %s, got %s", second.ID, recent.ID)
	}
	if _, err := st.MostRecentProject(ctx, "carol"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	name := "Renamed"
	ratio := "9:16"
	updated, err := st.UpdateProject(ctx, first.ID, store.ProjectUpdate{Name: &name, AspectRatio: &ratio})
	if err != nil {
		t.Fatalf("UpdateProject: %v", err)
	}
	if updated.Name != name || updated.AspectRatio != ratio {
		t.Fatalf("update not applied: %+v", updated)
	}
	if !updated.UpdatedAt.After(first.UpdatedAt.Time) && !updated.UpdatedAt.Equal(first.UpdatedAt.Time) {
		t.Fatalf("updated_at went backwards: %v -> %v", first.UpdatedAt, updated.UpdatedAt)
	}

	if _, err := st.UpdateProject(ctx, "missing", store.ProjectUpdate{Name: &name}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := st.DeleteProject(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteProjectCascades(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	project := testsupport.NewProject(t, st, "alice", "Doomed")
	gen := testsupport.NewGeneration(t, st, project.ID, "https://cdn/a.png")
	task := testsupport.NewTask(t, st, project.ID, store.TaskTypeImageGeneration, store.JSONObject{"prompt": "x"})
	shot := &store.Shot{ProjectID: project.ID, Name: "Opening"}
	if err := st.CreateShot(ctx, shot, gen.ID); err != nil {
		t.Fatalf("CreateShot: %v", err)
	}

	if err := st.DeleteProject(ctx, project.ID); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	if _, err := st.GetGeneration(ctx, gen.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("generation survived cascade: %v", err)
	}
	if _, err := st.GetTask(ctx, task.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("task survived cascade: %v", err)
	}
	if _, err := st.GetShot(ctx, shot.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("shot survived cascade: %v", err)
	}
}

func TestAPIKeysUpsert(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := st.SetAPIKey(ctx, "alice", store.ProviderFal, "one"); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}
	if _, err := st.SetAPIKey(ctx, "alice", store.ProviderFal, "two"); err != nil {
		t.Fatalf("SetAPIKey overwrite: %v", err)
	}
	if _, err := st.SetAPIKey(ctx, "alice", store.ProviderOpenAI, "sk"); err != nil {
		t.Fatalf("SetAPIKey openai: %v", err)
	}

	keys, err := st.ListAPIKeys(ctx, "alice")
	if err != nil {
		t.Fatalf("ListAPIKeys: %v", err)
	}
	if len(keys) != 2 || keys[0].Provider != store.ProviderFal || keys[0].Key != "two" {
		t.Fatalf("unexpected keys: %+v", keys)
	}

	if err := st.DeleteAPIKey(ctx, "alice", store.ProviderFal); err != nil {
		t.Fatalf("DeleteAPIKey: %v", err)
	}
	if _, err := st.GetAPIKey(ctx, "alice", store.ProviderFal); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestWorkspaceRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	empty, err := st.GetWorkspace(ctx, "alice")
	if err != nil {
		t.Fatalf("GetWorkspace: %v", err)
	}
	if empty.SelectedProjectID != "" || empty.Panes == nil {
		t.Fatalf("unexpected empty workspace: %+v", empty)
	}

	ws := store.Workspace{
		SelectedProjectID: "p1",
		CurrentShotID:     "s1",
		Panes:             map[string]store.PaneState{store.PaneShots: {Open: true, Locked: true}},
	}
	if err := st.SaveWorkspace(ctx, "alice", ws); err != nil {
		t.Fatalf("SaveWorkspace: %v", err)
	}
	ws.CurrentShotID = ""
	if err := st.SaveWorkspace(ctx, "alice", ws); err != nil {
		t.Fatalf("SaveWorkspace overwrite: %v", err)
	}

	loaded, err := st.GetWorkspace(ctx, "alice")
	if err != nil {
		t.Fatalf("GetWorkspace: %v", err)
	}
	if loaded.SelectedProjectID != "p1" || loaded.CurrentShotID != "" {
		t.Fatalf("unexpected workspace: %+v", loaded)
	}
	if pane := loaded.Panes[store.PaneShots]; !pane.Open || !pane.Locked {
		t.Fatalf("pane state lost: %+v", loaded.Panes)
	}
}

func TestParseStatus(t *testing.T) {
	cases := map[string]store.Status{
		"pending":     store.StatusPending,
		"in_progress": store.StatusInProgress,
		"In Progress": store.StatusInProgress,
		"FAILED":      store.StatusFailed,
	}
	for input, want := range cases {
		got, ok := store.ParseStatus(input)
		if !ok || got != want {
			t.Fatalf("ParseStatus(%q) = %q, %v", input, got, ok)
		}
	}
	if _, ok := store.ParseStatus("running"); ok {
		t.Fatal("expected unknown status to fail")
	}
}
