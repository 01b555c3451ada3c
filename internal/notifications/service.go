package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"shotdeck/internal/config"
)

const userAgent = "shotdeck/0.1"

// Event names a notification kind.
type Event string

const (
	EventTaskCompleted  Event = "task_completed"
	EventTaskFailed     Event = "task_failed"
	EventQueueDrained   Event = "queue_drained"
	EventTasksReclaimed Event = "tasks_reclaimed"
	EventTest           Event = "test"
)

// Payload carries event fields. Keys are event specific.
type Payload map[string]any

// Service publishes events to a notification transport.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventTaskCompleted:  cfg.Notifications.TaskCompleted,
			EventTaskFailed:     cfg.Notifications.TaskFailed,
			EventQueueDrained:   cfg.Notifications.QueueDrained,
			EventTasksReclaimed: cfg.Notifications.TaskFailed,
			EventTest:           true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventTaskCompleted:
		body := fmt.Sprintf("✅ %s finished", label(payload))
		if outputs := payload.count("outputs"); outputs > 0 {
			body = fmt.Sprintf("%s with %d output%s", body, outputs, plural(outputs))
		}
		if shot := payload.text("shotName"); shot != "" {
			body = fmt.Sprintf("%s\nAdded to shot: %s", body, shot)
		}
		return message{
			title: "shotdeck - Task Complete",
			body:  body,
			tags:  []string{"shotdeck", "task", "completed"},
		}, true
	case EventTaskFailed:
		body := fmt.Sprintf("❌ %s failed", label(payload))
		if reason := payload.text("error"); reason != "" {
			body = fmt.Sprintf("%s: %s", body, reason)
		}
		return message{
			title:    "shotdeck - Task Failed",
			body:     body,
			tags:     []string{"shotdeck", "task", "failed"},
			priority: "high",
		}, true
	case EventQueueDrained:
		processed := payload.count("processed")
		failed := payload.count("failed")
		duration := payload.duration("duration").Round(time.Second)
		if duration < 0 {
			duration = 0
		}
		title := "shotdeck - Queue Drained"
		body := fmt.Sprintf("Queue drained: %d task%s processed in %s", processed, plural(processed), duration)
		if failed > 0 {
			title = "shotdeck - Queue Drained (with errors)"
			body = fmt.Sprintf("Queue drained: %d succeeded, %d failed in %s", processed-failed, failed, duration)
		}
		return message{title: title, body: body, tags: []string{"shotdeck", "queue", "drained"}}, true
	case EventTasksReclaimed:
		requeued := payload.count("requeued")
		failed := payload.count("failed")
		if requeued+failed == 0 {
			return message{}, false
		}
		return message{
			title: "shotdeck - Stale Tasks",
			body:  fmt.Sprintf("Recovered stale tasks: %d requeued, %d failed", requeued, failed),
			tags:  []string{"shotdeck", "task", "stale"},
		}, true
	case EventTest:
		return message{
			title:    "shotdeck - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"shotdeck", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func label(payload Payload) string {
	kind := strings.ReplaceAll(payload.text("taskType"), "_", " ")
	if kind == "" {
		kind = "task"
	}
	if project := payload.text("projectName"); project != "" {
		return fmt.Sprintf("%s in %s", kind, project)
	}
	return kind
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func (p Payload) text(key string) string {
	if value, ok := p[key]; ok && value != nil {
		return strings.TrimSpace(fmt.Sprint(value))
	}
	return ""
}

func (p Payload) count(key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func (p Payload) duration(key string) time.Duration {
	if d, ok := p[key].(time.Duration); ok {
		return d
	}
	return 0
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
