package testsupport

import (
	"context"
	"testing"

	"shotdeck/internal/config"
	"shotdeck/internal/store"
)

// MustOpenStore opens a migrated store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewProject creates a project owned by userID.
func NewProject(t testing.TB, st *store.Store, userID, name string) *store.Project {
	t.Helper()

	project := &store.Project{Name: name, UserID: userID}
	if err := st.CreateProject(context.Background(), project); err != nil {
		t.Fatalf("store.CreateProject: %v", err)
	}
	return project
}

// NewGeneration creates an image generation in the project.
func NewGeneration(t testing.TB, st *store.Store, projectID, location string) *store.Generation {
	t.Helper()

	gen := &store.Generation{ProjectID: projectID, Location: location, Type: store.GenerationImage}
	if err := st.CreateGeneration(context.Background(), gen); err != nil {
		t.Fatalf("store.CreateGeneration: %v", err)
	}
	return gen
}

// NewTask creates a Pending task in the project.
func NewTask(t testing.TB, st *store.Store, projectID, taskType string, params store.JSONObject, deps ...string) *store.Task {
	t.Helper()

	task := &store.Task{ProjectID: projectID, TaskType: taskType, Params: params, DependantOn: deps}
	if err := st.CreateTask(context.Background(), task); err != nil {
		t.Fatalf("store.CreateTask: %v", err)
	}
	return task
}
