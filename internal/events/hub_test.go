package events

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestHubPublishAndFetch(t *testing.T) {
	hub := NewHub(4)
	hub.Publish(Event{Type: TypeProjects, EntityID: "p1"})
	hub.Publish(Event{Type: TypeShots, ProjectID: "p1", EntityID: "s1"})

	evts, next, err := hub.Fetch(context.Background(), 0, 10, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(evts) != 2 || next != 2 {
		t.Fatalf("unexpected fetch: %+v next=%d", evts, next)
	}
	if evts[0].Sequence != 1 || evts[1].Sequence != 2 {
		t.Fatalf("sequences not monotonic: %+v", evts)
	}
	if evts[0].Timestamp.IsZero() {
		t.Fatal("expected timestamp to be stamped")
	}

	evts, next, err = hub.Fetch(context.Background(), next, 10, false)
	if err != nil || len(evts) != 0 || next != 2 {
		t.Fatalf("expected empty fetch at head, got %+v next=%d err=%v", evts, next, err)
	}
}

func TestHubFetchLimitAdvancesCursor(t *testing.T) {
	hub := NewHub(8)
	for i := 0; i < 5; i++ {
		hub.Publish(Event{Type: TypeTasks})
	}
	evts, next, err := hub.Fetch(context.Background(), 0, 2, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(evts) != 2 || next != 2 {
		t.Fatalf("expected cursor at last returned event, got len=%d next=%d", len(evts), next)
	}
	evts, next, _ = hub.Fetch(context.Background(), next, 10, false)
	if len(evts) != 3 || next != 5 {
		t.Fatalf("expected remaining events, got len=%d next=%d", len(evts), next)
	}
}

func TestHubEvictsAndReportsMissed(t *testing.T) {
	hub := NewHub(3)
	for i := 0; i < 5; i++ {
		hub.Publish(Event{Type: TypeGenerations})
	}
	if !hub.Missed(0) {
		t.Fatal("expected cursor 0 to have missed evicted events")
	}
	if hub.Missed(2) {
		t.Fatal("cursor 2 should still be replayable")
	}
	if hub.Missed(5) {
		t.Fatal("head cursor never misses")
	}
	tail, cursor := hub.Tail(2)
	if len(tail) != 2 || tail[1].Sequence != 5 || cursor != 5 {
		t.Fatalf("unexpected tail: %+v cursor=%d", tail, cursor)
	}
}

func TestHubFetchWaitsForPublish(t *testing.T) {
	hub := NewHub(4)
	done := make(chan []Event, 1)
	go func() {
		evts, _, _ := hub.Fetch(context.Background(), 0, 10, true)
		done <- evts
	}()

	time.Sleep(20 * time.Millisecond)
	hub.Publish(Event{Type: TypeWorkspace})

	select {
	case evts := <-done:
		if len(evts) != 1 || evts[0].Type != TypeWorkspace {
			t.Fatalf("unexpected events: %+v", evts)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiting fetch did not wake")
	}
}

func TestHubFetchHonorsContext(t *testing.T) {
	hub := NewHub(4)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, _, err := hub.Fetch(ctx, 0, 10, true)
	if err == nil {
		t.Fatal("expected context error")
	}
}

func TestHubFetchWakesOnEveryCancellation(t *testing.T) {
	hub := NewHub(4)
	for i := 0; i < 500; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			_, _, err := hub.Fetch(ctx, 0, 10, true)
			done <- err
		}()
		if i%2 == 0 {
			runtime.Gosched()
		}
		cancel()
		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Fatalf("iteration %d: expected context.Canceled, got %v", i, err)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("iteration %d: Fetch missed its cancellation", i)
		}
	}
}

func TestFilterMatch(t *testing.T) {
	f := Filter{UserID: "alice", ProjectID: "p1", Types: map[Type]bool{TypeShots: true}}
	cases := []struct {
		evt  Event
		want bool
	}{
		{Event{Type: TypeShots, ProjectID: "p1", UserID: "alice"}, true},
		{Event{Type: TypeShots, ProjectID: "p1"}, true},
		{Event{Type: TypeShots, ProjectID: "p2", UserID: "alice"}, false},
		{Event{Type: TypeShots, ProjectID: "p1", UserID: "bob"}, false},
		{Event{Type: TypeTasks, ProjectID: "p1", UserID: "alice"}, false},
	}
	for i, tc := range cases {
		if got := f.Match(tc.evt); got != tc.want {
			t.Fatalf("case %d: Match = %v, want %v", i, got, tc.want)
		}
	}
	if got := f.Apply([]Event{cases[0].evt, cases[2].evt}); len(got) != 1 {
		t.Fatalf("Apply kept %d events", len(got))
	}
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	hub := NewHub(2)
	hub.AddSink(LogSink{Logger: logger})
	hub.Publish(Event{Type: TypeShots, Action: ActionCreated, EntityID: "s1"})
	if !strings.Contains(buf.String(), "entity_id=s1") {
		t.Fatalf("sink did not log event: %q", buf.String())
	}
}
