package events

import (
	"context"
	"sync"
	"time"
)

// Type names the client cache an event invalidates.
type Type string

const (
	TypeProjects    Type = "projects"
	TypeShots       Type = "shots"
	TypeGenerations Type = "generations"
	TypeTasks       Type = "tasks"
	TypeWorkspace   Type = "workspace"
	// TypeResync tells a subscriber it fell behind the buffer and must refetch
	// everything. It is never stored in the hub.
	TypeResync Type = "resync"
)

// Action describes what happened to the entity.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// Event is one cache invalidation message.
type Event struct {
	Sequence  uint64    `json:"seq"`
	Type      Type      `json:"type"`
	Action    Action    `json:"action,omitempty"`
	ProjectID string    `json:"projectId,omitempty"`
	EntityID  string    `json:"entityId,omitempty"`
	UserID    string    `json:"-"`
	Timestamp time.Time `json:"ts"`
}

// Publisher accepts invalidation events. *Hub implements it.
type Publisher interface {
	Publish(Event)
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(Event) {}

// Sink receives every published event after it is sequenced.
type Sink interface {
	Append(Event)
}

// Hub stores recent events and wakes waiters when new events arrive.
type Hub struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buffer   []Event
	nextSeq  uint64
	sinks    []Sink
}

// NewHub constructs a bounded in-memory event buffer.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 1024
	}
	h := &Hub{capacity: capacity}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// AddSink wires an additional sink that receives every published event.
func (h *Hub) AddSink(sink Sink) {
	if h == nil || sink == nil {
		return
	}
	h.mu.Lock()
	h.sinks = append(h.sinks, sink)
	h.mu.Unlock()
}

// Publish sequences evt and appends it to the buffer.
func (h *Hub) Publish(evt Event) {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.nextSeq++
	evt.Sequence = h.nextSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	if len(h.buffer) == h.capacity {
		copy(h.buffer, h.buffer[1:])
		h.buffer = h.buffer[:h.capacity-1]
	}
	h.buffer = append(h.buffer, evt)
	sinks := append([]Sink(nil), h.sinks...)
	h.cond.Broadcast()
	h.mu.Unlock()

	for _, sink := range sinks {
		sink.Append(evt)
	}
}

// Fetch returns events with sequence greater than since and the cursor to pass
// on the next call. When wait is true, Fetch blocks until at least one event
// is available or the context ends.
func (h *Hub) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]Event, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}

	cancelWait := make(chan struct{})
	if wait && ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				// Holding mu orders the wakeup after the waiter's final
				// context check.
				h.mu.Lock()
				h.cond.Broadcast()
				h.mu.Unlock()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	h.mu.Lock()
	defer h.mu.Unlock()

	for {
		events, next := h.snapshotLocked(since, limit)
		if len(events) > 0 || !wait {
			return events, next, contextError(ctx)
		}
		if err := contextError(ctx); err != nil {
			return nil, next, err
		}
		h.cond.Wait()
		if err := contextError(ctx); err != nil {
			return nil, next, err
		}
	}
}

// Tail returns the most recent limit events without blocking.
func (h *Hub) Tail(limit int) ([]Event, uint64) {
	if h == nil {
		return nil, 0
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.buffer) == 0 {
		return nil, h.nextSeq
	}
	start := max(len(h.buffer)-limit, 0)
	out := make([]Event, len(h.buffer)-start)
	copy(out, h.buffer[start:])
	return out, h.nextSeq
}

// Cursor reports the latest assigned sequence.
func (h *Hub) Cursor() uint64 {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.nextSeq
}

// Missed reports whether events after since have already been evicted, in
// which case the caller must resync instead of replaying.
func (h *Hub) Missed(since uint64) bool {
	if h == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.buffer) == 0 || since >= h.nextSeq {
		return false
	}
	return since+1 < h.buffer[0].Sequence
}

func (h *Hub) snapshotLocked(since uint64, limit int) ([]Event, uint64) {
	if len(h.buffer) == 0 || since >= h.nextSeq {
		return nil, h.nextSeq
	}
	startIdx := len(h.buffer)
	for i, evt := range h.buffer {
		if evt.Sequence > since {
			startIdx = i
			break
		}
	}
	if startIdx == len(h.buffer) {
		return nil, h.nextSeq
	}
	end := min(startIdx+limit, len(h.buffer))
	out := make([]Event, end-startIdx)
	copy(out, h.buffer[startIdx:end])
	return out, out[len(out)-1].Sequence
}

func contextError(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
