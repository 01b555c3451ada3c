package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"shotdeck/internal/store"
	"shotdeck/internal/testsupport"
)

func TestCreateTaskRejectsForeignDependencies(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	p1 := testsupport.NewProject(t, st, "alice", "One")
	p2 := testsupport.NewProject(t, st, "alice", "Two")
	foreign := testsupport.NewTask(t, st, p2.ID, store.TaskTypeImageGeneration, nil)

	task := &store.Task{ProjectID: p1.ID, TaskType: store.TaskTypeImageGeneration, DependantOn: store.IDList{foreign.ID}}
	if err := st.CreateTask(ctx, task); !errors.Is(err, store.ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference, got %v", err)
	}

	missing := &store.Task{ProjectID: p1.ID, TaskType: store.TaskTypeImageGeneration, DependantOn: store.IDList{"nope"}}
	if err := st.CreateTask(ctx, missing); !errors.Is(err, store.ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference for missing dep, got %v", err)
	}
}

func TestClaimRespectsDependencies(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	project := testsupport.NewProject(t, st, "alice", "Deps")
	parent := testsupport.NewTask(t, st, project.ID, store.TaskTypeImageGeneration, store.JSONObject{"prompt": "a"})
	child := testsupport.NewTask(t, st, project.ID, store.TaskTypeVideoGeneration, store.JSONObject{"prompt": "b"}, parent.ID, parent.ID)
	if len(child.DependantOn) != 1 {
		t.Fatalf("expected deduped dependencies, got %v", child.DependantOn)
	}

	claimed, err := st.ClaimNextTask(ctx)
	if err != nil {
		t.Fatalf("ClaimNextTask: %v", err)
	}
	if claimed == nil || claimed.ID != parent.ID {
		t.Fatalf("expected parent to be claimed, got %+v", claimed)
	}
	if claimed.Status != store.StatusInProgress || claimed.Attempts != 1 || claimed.StartedAt == nil {
		t.Fatalf("unexpected claimed state: %+v", claimed)
	}

	next, err := st.ClaimNextTask(ctx)
	if err != nil {
		t.Fatalf("ClaimNextTask: %v", err)
	}
	if next != nil {
		t.Fatalf("child should wait for parent, got %+v", next)
	}
	if ready, err := st.TaskReady(ctx, child.ID); err != nil || ready {
		t.Fatalf("TaskReady(child) before parent completes = %v, %v", ready, err)
	}

	if _, err := st.CompleteTask(ctx, store.CompleteTaskInput{TaskID: parent.ID, OutputLocation: "https://cdn/a.png"}); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	ready, err := st.ReadyTaskIDs(ctx, 10)
	if err != nil {
		t.Fatalf("ReadyTaskIDs: %v", err)
	}
	if len(ready) != 1 || ready[0] != child.ID {
		t.Fatalf("expected child ready, got %v", ready)
	}
	if ok, err := st.TaskReady(ctx, child.ID); err != nil || !ok {
		t.Fatalf("TaskReady(child) = %v, %v", ok, err)
	}
	if ok, err := st.TaskReady(ctx, parent.ID); err != nil || ok {
		t.Fatalf("completed task must not be ready: %v, %v", ok, err)
	}
	if _, err := st.TaskReady(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClaimFindsReadyTaskBehindBlockedOnes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	project := testsupport.NewProject(t, st, "alice", "Backlog")
	parent := testsupport.NewTask(t, st, project.ID, store.TaskTypeImageGeneration, store.JSONObject{"prompt": "p"})
	if claimed, err := st.ClaimNextTask(ctx); err != nil || claimed == nil || claimed.ID != parent.ID {
		t.Fatalf("ClaimNextTask(parent) = %+v, %v", claimed, err)
	}
	for i := 0; i < 250; i++ {
		testsupport.NewTask(t, st, project.ID, store.TaskTypeImageUpscale, nil, parent.ID)
	}
	free := testsupport.NewTask(t, st, project.ID, store.TaskTypeImageGeneration, store.JSONObject{"prompt": "q"})

	ready, err := st.ReadyTaskIDs(ctx, 1)
	if err != nil {
		t.Fatalf("ReadyTaskIDs: %v", err)
	}
	if len(ready) != 1 || ready[0] != free.ID {
		t.Fatalf("expected %s ready, got %v", free.ID, ready)
	}

	claimed, err := st.ClaimNextTask(ctx)
	if err != nil {
		t.Fatalf("ClaimNextTask: %v", err)
	}
	if claimed == nil || claimed.ID != free.ID {
		t.Fatalf("expected %s claimed, got %+v", free.ID, claimed)
	}
	if next, err := st.ClaimNextTask(ctx); err != nil || next != nil {
		t.Fatalf("only blocked tasks remain, got %+v, %v", next, err)
	}
}

func TestClaimTaskExactlyOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	project := testsupport.NewProject(t, st, "alice", "Race")
	task := testsupport.NewTask(t, st, project.ID, store.TaskTypeImageGeneration, nil)

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.ClaimTask(ctx, task.ID)
			if err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
				return
			}
			if !errors.Is(err, store.ErrInvalidTransition) {
				t.Errorf("unexpected claim error: %v", err)
			}
		}()
	}
	wg.Wait()
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}

func TestCompleteTaskCreatesGenerationsAndAppendsToShot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	project := testsupport.NewProject(t, st, "alice", "Output")
	existing := testsupport.NewGeneration(t, st, project.ID, "https://cdn/first.png")
	shot := &store.Shot{ProjectID: project.ID, Name: "Intro"}
	if err := st.CreateShot(ctx, shot, existing.ID); err != nil {
		t.Fatalf("CreateShot: %v", err)
	}

	task := testsupport.NewTask(t, st, project.ID, store.TaskTypeImageGeneration, store.JSONObject{"prompt": "p", "shotId": shot.ID})
	if _, err := st.ClaimTask(ctx, task.ID); err != nil {
		t.Fatalf("ClaimTask: %v", err)
	}

	result, err := st.CompleteTask(ctx, store.CompleteTaskInput{
		TaskID:         task.ID,
		OutputLocation: "https://cdn/out-1.png",
		Generations: []*store.Generation{
			{Location: "https://cdn/out-1.png", Type: store.GenerationImage},
			{Location: "https://cdn/out-2.png", Type: store.GenerationImage},
		},
	})
	if err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	if result.ShotID != shot.ID || len(result.Generations) != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if !result.Generations[0].Tasks.Contains(task.ID) || result.Generations[0].ProjectID != project.ID {
		t.Fatalf("generation not linked to task: %+v", result.Generations[0])
	}

	loaded, err := st.GetShot(ctx, shot.ID)
	if err != nil {
		t.Fatalf("GetShot: %v", err)
	}
	assertDense(t, loaded)
	if len(loaded.Generations) != 3 || loaded.Generations[2].GenerationID != result.Generations[1].ID {
		t.Fatalf("outputs not appended in order: %+v", loaded.Generations)
	}

	stored, err := st.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if stored.Status != store.StatusCompleted || stored.OutputLocation != "https://cdn/out-1.png" || stored.CompletedAt == nil {
		t.Fatalf("unexpected completed task: %+v", stored)
	}

	if _, err := st.CompleteTask(ctx, store.CompleteTaskInput{TaskID: task.ID}); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on second completion, got %v", err)
	}
}

func TestCompleteTaskIgnoresMissingShot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	project := testsupport.NewProject(t, st, "alice", "Output")
	task := testsupport.NewTask(t, st, project.ID, store.TaskTypeImageGeneration, store.JSONObject{"shotId": "gone"})
	if _, err := st.ClaimTask(ctx, task.ID); err != nil {
		t.Fatalf("ClaimTask: %v", err)
	}
	result, err := st.CompleteTask(ctx, store.CompleteTaskInput{
		TaskID:      task.ID,
		Generations: []*store.Generation{{Location: "x", Type: store.GenerationImage}},
	})
	if err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	if result.ShotID != "" {
		t.Fatalf("expected no shot append, got %q", result.ShotID)
	}
}

func TestCancelAndHeartbeat(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	project := testsupport.NewProject(t, st, "alice", "Cancel")
	task := testsupport.NewTask(t, st, project.ID, store.TaskTypeImageGeneration, nil)
	if _, err := st.ClaimTask(ctx, task.ID); err != nil {
		t.Fatalf("ClaimTask: %v", err)
	}
	if err := st.UpdateHeartbeat(ctx, task.ID); err != nil {
		t.Fatalf("UpdateHeartbeat: %v", err)
	}

	cancelled, err := st.CancelTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("CancelTask: %v", err)
	}
	if cancelled.Status != store.StatusCancelled {
		t.Fatalf("expected Cancelled, got %s", cancelled.Status)
	}
	if err := st.UpdateHeartbeat(ctx, task.ID); !errors.Is(err, store.ErrTaskNotRunning) {
		t.Fatalf("expected ErrTaskNotRunning, got %v", err)
	}
	if _, err := st.CancelTask(ctx, task.ID); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition cancelling twice, got %v", err)
	}
	if _, err := st.CancelTask(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFailAndRetry(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	project := testsupport.NewProject(t, st, "alice", "Retry")
	task := testsupport.NewTask(t, st, project.ID, store.TaskTypeImageGeneration, nil)

	if _, err := st.RetryTask(ctx, task.ID); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("pending task should not be retryable, got %v", err)
	}
	if _, err := st.ClaimTask(ctx, task.ID); err != nil {
		t.Fatalf("ClaimTask: %v", err)
	}
	failed, err := st.FailTask(ctx, task.ID, "provider exploded")
	if err != nil {
		t.Fatalf("FailTask: %v", err)
	}
	if failed.Status != store.StatusFailed || failed.ErrorMessage != "provider exploded" {
		t.Fatalf("unexpected failed task: %+v", failed)
	}

	retried, err := st.RetryTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("RetryTask: %v", err)
	}
	if retried.Status != store.StatusPending || retried.Attempts != 0 || retried.ErrorMessage != "" {
		t.Fatalf("unexpected retried task: %+v", retried)
	}
}

func TestCancelPendingTasks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	project := testsupport.NewProject(t, st, "alice", "Bulk")
	other := testsupport.NewProject(t, st, "alice", "Other")
	a := testsupport.NewTask(t, st, project.ID, store.TaskTypeImageGeneration, nil)
	b := testsupport.NewTask(t, st, project.ID, store.TaskTypeImageGeneration, nil)
	running := testsupport.NewTask(t, st, project.ID, store.TaskTypeImageGeneration, nil)
	untouched := testsupport.NewTask(t, st, other.ID, store.TaskTypeImageGeneration, nil)
	if _, err := st.ClaimTask(ctx, running.ID); err != nil {
		t.Fatalf("ClaimTask: %v", err)
	}

	ids, err := st.CancelPendingTasks(ctx, project.ID)
	if err != nil {
		t.Fatalf("CancelPendingTasks: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 cancelled, got %v", ids)
	}

	counts, err := st.TaskCounts(ctx, project.ID)
	if err != nil {
		t.Fatalf("TaskCounts: %v", err)
	}
	if counts[store.StatusCancelled] != 2 || counts[store.StatusInProgress] != 1 || counts[store.StatusPending] != 0 {
		t.Fatalf("unexpected counts: %v", counts)
	}
	if _, ok := counts[store.StatusFailed]; !ok {
		t.Fatal("expected every status key in counts")
	}

	for _, id := range []string{a.ID, b.ID} {
		task, err := st.GetTask(ctx, id)
		if err != nil {
			t.Fatalf("GetTask: %v", err)
		}
		if task.Status != store.StatusCancelled {
			t.Fatalf("task %s not cancelled", id)
		}
	}
	kept, err := st.GetTask(ctx, untouched.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if kept.Status != store.StatusPending {
		t.Fatalf("other project task changed: %s", kept.Status)
	}

	pending, err := st.ListTasks(ctx, other.ID, store.StatusPending)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending task in other project, got %d", len(pending))
	}
}

func TestCancelBlockedTasksFollowsChains(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	project := testsupport.NewProject(t, st, "alice", "Chain")
	root := testsupport.NewTask(t, st, project.ID, store.TaskTypeImageGeneration, nil)
	middle := testsupport.NewTask(t, st, project.ID, store.TaskTypeImageUpscale, nil, root.ID)
	leaf := testsupport.NewTask(t, st, project.ID, store.TaskTypeVideoGeneration, nil, middle.ID)
	independent := testsupport.NewTask(t, st, project.ID, store.TaskTypeImageGeneration, nil)

	if _, err := st.ClaimTask(ctx, root.ID); err != nil {
		t.Fatalf("ClaimTask: %v", err)
	}
	if _, err := st.FailTask(ctx, root.ID, "boom"); err != nil {
		t.Fatalf("FailTask: %v", err)
	}

	cancelled, err := st.CancelBlockedTasks(ctx)
	if err != nil {
		t.Fatalf("CancelBlockedTasks: %v", err)
	}
	if len(cancelled) != 2 {
		t.Fatalf("expected middle and leaf cancelled, got %d", len(cancelled))
	}
	got := map[string]bool{}
	for _, task := range cancelled {
		got[task.ID] = true
	}
	if !got[middle.ID] || !got[leaf.ID] {
		t.Fatalf("unexpected cancelled set: %v", got)
	}

	stillPending, err := st.GetTask(ctx, independent.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if stillPending.Status != store.StatusPending {
		t.Fatalf("independent task changed: %s", stillPending.Status)
	}
}

func TestReclaimStaleTasks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	project := testsupport.NewProject(t, st, "alice", "Stale")
	task := testsupport.NewTask(t, st, project.ID, store.TaskTypeImageGeneration, nil)
	if _, err := st.ClaimTask(ctx, task.ID); err != nil {
		t.Fatalf("ClaimTask: %v", err)
	}

	result, err := st.ReclaimStaleTasks(ctx, time.Now().Add(-time.Hour), 3)
	if err != nil {
		t.Fatalf("ReclaimStaleTasks: %v", err)
	}
	if result.Requeued != 0 || result.Failed != 0 {
		t.Fatalf("fresh heartbeat should not be reclaimed: %+v", result)
	}

	result, err = st.ReclaimStaleTasks(ctx, time.Now().Add(time.Minute), 3)
	if err != nil {
		t.Fatalf("ReclaimStaleTasks: %v", err)
	}
	if result.Requeued != 1 {
		t.Fatalf("expected requeue, got %+v", result)
	}
	requeued, err := st.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if requeued.Status != store.StatusPending || requeued.LastHeartbeat != nil {
		t.Fatalf("unexpected requeued task: %+v", requeued)
	}

	if _, err := st.ClaimTask(ctx, task.ID); err != nil {
		t.Fatalf("second ClaimTask: %v", err)
	}
	result, err = st.ReclaimStaleTasks(ctx, time.Now().Add(time.Minute), 2)
	if err != nil {
		t.Fatalf("ReclaimStaleTasks: %v", err)
	}
	if result.Failed != 1 || result.Requeued != 0 {
		t.Fatalf("expected failure after max attempts, got %+v", result)
	}
	failed, err := st.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if failed.Status != store.StatusFailed || failed.ErrorMessage == "" {
		t.Fatalf("unexpected failed task: %+v", failed)
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[store.StatusFailed] != 1 {
		t.Fatalf("unexpected stats: %v", stats)
	}
}
