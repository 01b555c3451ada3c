package store_test

import (
	"context"
	"errors"
	"testing"

	"shotdeck/internal/store"
	"shotdeck/internal/testsupport"
)

func assertDense(t *testing.T, shot *store.Shot) {
	t.Helper()
	for i, entry := range shot.Generations {
		if entry.Position != i {
			t.Fatalf("shot %s position %d holds %d", shot.ID, i, entry.Position)
		}
	}
}

func generationOrder(shot *store.Shot) []string {
	out := make([]string, 0, len(shot.Generations))
	for _, entry := range shot.Generations {
		out = append(out, entry.GenerationID)
	}
	return out
}

func equalOrder(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestShotMembershipStaysDense(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	project := testsupport.NewProject(t, st, "alice", "Shots")
	a := testsupport.NewGeneration(t, st, project.ID, "a.png")
	b := testsupport.NewGeneration(t, st, project.ID, "b.png")
	c := testsupport.NewGeneration(t, st, project.ID, "c.png")
	d := testsupport.NewGeneration(t, st, project.ID, "d.png")

	shot := &store.Shot{ProjectID: project.ID, Name: "Main"}
	if err := st.CreateShot(ctx, shot, a.ID, b.ID); err != nil {
		t.Fatalf("CreateShot: %v", err)
	}
	if len(shot.Generations) != 2 {
		t.Fatalf("expected initial generations, got %+v", shot.Generations)
	}

	front := 0
	if _, err := st.AddGenerationToShot(ctx, shot.ID, c.ID, &front); err != nil {
		t.Fatalf("AddGenerationToShot front: %v", err)
	}
	far := 99
	if _, err := st.AddGenerationToShot(ctx, shot.ID, d.ID, &far); err != nil {
		t.Fatalf("AddGenerationToShot far: %v", err)
	}
	loaded, err := st.GetShot(ctx, shot.ID)
	if err != nil {
		t.Fatalf("GetShot: %v", err)
	}
	assertDense(t, loaded)
	if want := []string{c.ID, a.ID, b.ID, d.ID}; !equalOrder(generationOrder(loaded), want) {
		t.Fatalf("unexpected order %v, want %v", generationOrder(loaded), want)
	}

	if err := st.RemoveShotGeneration(ctx, shot.ID, loaded.Generations[1].ID); err != nil {
		t.Fatalf("RemoveShotGeneration: %v", err)
	}
	loaded, err = st.GetShot(ctx, shot.ID)
	if err != nil {
		t.Fatalf("GetShot: %v", err)
	}
	assertDense(t, loaded)
	if want := []string{c.ID, b.ID, d.ID}; !equalOrder(generationOrder(loaded), want) {
		t.Fatalf("unexpected order after removal %v", generationOrder(loaded))
	}

	if _, err := st.DeleteGeneration(ctx, b.ID); err != nil {
		t.Fatalf("DeleteGeneration: %v", err)
	}
	loaded, err = st.GetShot(ctx, shot.ID)
	if err != nil {
		t.Fatalf("GetShot: %v", err)
	}
	assertDense(t, loaded)
	if want := []string{c.ID, d.ID}; !equalOrder(generationOrder(loaded), want) {
		t.Fatalf("unexpected order after generation delete %v", generationOrder(loaded))
	}
}

func TestReorderShot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	project := testsupport.NewProject(t, st, "alice", "Reorder")
	var genIDs []string
	for _, name := range []string{"1.png", "2.png", "3.png"} {
		genIDs = append(genIDs, testsupport.NewGeneration(t, st, project.ID, name).ID)
	}
	shot := &store.Shot{ProjectID: project.ID, Name: "Seq"}
	if err := st.CreateShot(ctx, shot, genIDs...); err != nil {
		t.Fatalf("CreateShot: %v", err)
	}

	rows := []string{shot.Generations[2].ID, shot.Generations[0].ID, shot.Generations[1].ID}
	reordered, err := st.ReorderShot(ctx, shot.ID, rows)
	if err != nil {
		t.Fatalf("ReorderShot: %v", err)
	}
	assertDense(t, reordered)
	if want := []string{genIDs[2], genIDs[0], genIDs[1]}; !equalOrder(generationOrder(reordered), want) {
		t.Fatalf("unexpected order %v", generationOrder(reordered))
	}

	invalid := [][]string{
		rows[:2],
		{rows[0], rows[0], rows[1]},
		{rows[0], rows[1], "unknown"},
	}
	for _, order := range invalid {
		if _, err := st.ReorderShot(ctx, shot.ID, order); !errors.Is(err, store.ErrInvalidOrder) {
			t.Fatalf("expected ErrInvalidOrder for %v, got %v", order, err)
		}
	}
	if _, err := st.ReorderShot(ctx, "missing", nil); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestShotRejectsForeignGeneration(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	mine := testsupport.NewProject(t, st, "alice", "Mine")
	theirs := testsupport.NewProject(t, st, "alice", "Theirs")
	foreign := testsupport.NewGeneration(t, st, theirs.ID, "x.png")

	shot := &store.Shot{ProjectID: mine.ID, Name: "Strict"}
	if err := st.CreateShot(ctx, shot); err != nil {
		t.Fatalf("CreateShot: %v", err)
	}
	if _, err := st.AddGenerationToShot(ctx, shot.ID, foreign.ID, nil); !errors.Is(err, store.ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference, got %v", err)
	}
	bad := &store.Shot{ProjectID: mine.ID, Name: "Bad"}
	if err := st.CreateShot(ctx, bad, foreign.ID); !errors.Is(err, store.ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference on create, got %v", err)
	}
	if _, err := st.GetShot(ctx, bad.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("failed create should roll back, got %v", err)
	}
}

func TestDuplicateAndListShots(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	project := testsupport.NewProject(t, st, "alice", "Dup")
	a := testsupport.NewGeneration(t, st, project.ID, "a.png")
	b := testsupport.NewGeneration(t, st, project.ID, "b.png")
	shot := &store.Shot{ProjectID: project.ID, Name: "Original"}
	if err := st.CreateShot(ctx, shot, a.ID, b.ID, a.ID); err != nil {
		t.Fatalf("CreateShot: %v", err)
	}

	dup, err := st.DuplicateShot(ctx, shot.ID, "")
	if err != nil {
		t.Fatalf("DuplicateShot: %v", err)
	}
	if dup.Name != "Original (copy)" || dup.ID == shot.ID {
		t.Fatalf("unexpected duplicate: %+v", dup)
	}
	if want := []string{a.ID, b.ID, a.ID}; !equalOrder(generationOrder(dup), want) {
		t.Fatalf("duplicate order %v", generationOrder(dup))
	}

	renamed, err := st.RenameShot(ctx, dup.ID, "Alt take")
	if err != nil {
		t.Fatalf("RenameShot: %v", err)
	}
	if renamed.Name != "Alt take" {
		t.Fatalf("rename not applied: %+v", renamed)
	}

	shots, err := st.ListShots(ctx, project.ID)
	if err != nil {
		t.Fatalf("ListShots: %v", err)
	}
	if len(shots) != 2 || shots[0].ID != shot.ID {
		t.Fatalf("unexpected shots: %+v", shots)
	}
	for i := range shots {
		assertDense(t, &shots[i])
		if len(shots[i].Generations) != 3 {
			t.Fatalf("shot %s has %d entries", shots[i].ID, len(shots[i].Generations))
		}
	}

	if err := st.DeleteShot(ctx, shot.ID); err != nil {
		t.Fatalf("DeleteShot: %v", err)
	}
	if _, err := st.GetGeneration(ctx, a.ID); err != nil {
		t.Fatalf("deleting a shot must keep generations: %v", err)
	}
}

func TestListGenerationsFilters(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	project := testsupport.NewProject(t, st, "alice", "Gens")
	for i := 0; i < 3; i++ {
		testsupport.NewGeneration(t, st, project.ID, "img.png")
	}
	video := &store.Generation{ProjectID: project.ID, Location: "clip.mp4", Type: store.GenerationVideo}
	if err := st.CreateGeneration(ctx, video); err != nil {
		t.Fatalf("CreateGeneration: %v", err)
	}

	all, err := st.ListGenerations(ctx, store.GenerationFilter{ProjectID: project.ID})
	if err != nil {
		t.Fatalf("ListGenerations: %v", err)
	}
	if len(all) != 4 || all[0].ID != video.ID {
		t.Fatalf("expected newest first, got %d items", len(all))
	}

	videos, err := st.ListGenerations(ctx, store.GenerationFilter{ProjectID: project.ID, Type: store.GenerationVideo})
	if err != nil {
		t.Fatalf("ListGenerations video: %v", err)
	}
	if len(videos) != 1 {
		t.Fatalf("expected 1 video, got %d", len(videos))
	}

	page, err := st.ListGenerations(ctx, store.GenerationFilter{ProjectID: project.ID, Limit: 2, Offset: 3})
	if err != nil {
		t.Fatalf("ListGenerations page: %v", err)
	}
	if len(page) != 1 {
		t.Fatalf("expected 1 item on last page, got %d", len(page))
	}
}
