package store

import (
	"strings"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
	StatusCancelled  Status = "Cancelled"
	StatusFailed     Status = "Failed"
)

var orderedStatuses = []Status{
	StatusPending,
	StatusInProgress,
	StatusCompleted,
	StatusCancelled,
	StatusFailed,
}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(orderedStatuses))
	copy(out, orderedStatuses)
	return out
}

// ParseStatus accepts the canonical names plus snake_case aliases such as
// "in_progress".
func ParseStatus(value string) (Status, bool) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.NewReplacer("_", " ", "-", " ").Replace(normalized)
	for _, status := range orderedStatuses {
		if strings.ToLower(string(status)) == normalized {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further transitions are expected.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusFailed:
		return true
	default:
		return false
	}
}

// Task types understood by the worker.
const (
	TaskTypeImageGeneration = "image_generation"
	TaskTypeVideoGeneration = "video_generation"
	TaskTypeImageUpscale    = "image_upscale"
)

// TaskTypes lists the task types accepted at creation time.
func TaskTypes() []string {
	return []string{TaskTypeImageGeneration, TaskTypeVideoGeneration, TaskTypeImageUpscale}
}

// GenerationType distinguishes image and video assets.
type GenerationType string

const (
	GenerationImage GenerationType = "image"
	GenerationVideo GenerationType = "video"
)

// Aspect ratios a project may use.
var AspectRatios = []string{"16:9", "9:16", "1:1", "4:3", "3:4", "21:9"}

// DefaultAspectRatio is applied when a project is created without one.
const DefaultAspectRatio = "16:9"

// Providers that accept per-user API keys.
const (
	ProviderFal    = "fal"
	ProviderOpenAI = "openai"
)

// Project owns tasks, generations and shots.
type Project struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	UserID      string    `db:"user_id" json:"userId"`
	AspectRatio string    `db:"aspect_ratio" json:"aspectRatio"`
	CreatedAt   Timestamp `db:"created_at" json:"createdAt"`
	UpdatedAt   Timestamp `db:"updated_at" json:"updatedAt"`
}

// ProjectUpdate carries optional project field changes.
type ProjectUpdate struct {
	Name        *string `json:"name,omitempty"`
	AspectRatio *string `json:"aspectRatio,omitempty"`
}

// Task is a queued unit of generation work.
type Task struct {
	ID             string     `db:"id" json:"id"`
	ProjectID      string     `db:"project_id" json:"projectId"`
	TaskType       string     `db:"task_type" json:"taskType"`
	Params         JSONObject `db:"params" json:"params"`
	Status         Status     `db:"status" json:"status"`
	DependantOn    IDList     `db:"dependant_on" json:"dependantOn"`
	OutputLocation string     `db:"output_location" json:"outputLocation,omitempty"`
	ErrorMessage   string     `db:"error_message" json:"errorMessage,omitempty"`
	Attempts       int        `db:"attempts" json:"attempts"`
	CreatedAt      Timestamp  `db:"created_at" json:"createdAt"`
	UpdatedAt      Timestamp  `db:"updated_at" json:"updatedAt"`
	StartedAt      *Timestamp `db:"started_at" json:"startedAt,omitempty"`
	CompletedAt    *Timestamp `db:"completed_at" json:"completedAt,omitempty"`
	LastHeartbeat  *Timestamp `db:"last_heartbeat" json:"lastHeartbeat,omitempty"`
}

// ShotID returns params.shotId when the task should append its outputs to a shot.
func (t Task) ShotID() string {
	return t.Params.String("shotId")
}

// Generation is one produced media asset.
type Generation struct {
	ID        string         `db:"id" json:"id"`
	ProjectID string         `db:"project_id" json:"projectId"`
	Tasks     IDList         `db:"tasks" json:"tasks"`
	Location  string         `db:"location" json:"location"`
	Type      GenerationType `db:"type" json:"type"`
	Params    JSONObject     `db:"params" json:"params"`
	CreatedAt Timestamp      `db:"created_at" json:"createdAt"`
	UpdatedAt Timestamp      `db:"updated_at" json:"updatedAt"`
}

// GenerationFilter narrows ListGenerations.
type GenerationFilter struct {
	ProjectID string
	Type      GenerationType
	Limit     int
	Offset    int
}

// Shot is a named, ordered collection of generations.
type Shot struct {
	ID          string      `db:"id" json:"id"`
	ProjectID   string      `db:"project_id" json:"projectId"`
	Name        string      `db:"name" json:"name"`
	CreatedAt   Timestamp   `db:"created_at" json:"createdAt"`
	UpdatedAt   Timestamp   `db:"updated_at" json:"updatedAt"`
	Generations []ShotEntry `db:"-" json:"generations"`
}

// ShotGeneration places a generation at a position within a shot.
type ShotGeneration struct {
	ID           string    `db:"id" json:"id"`
	ShotID       string    `db:"shot_id" json:"shotId"`
	GenerationID string    `db:"generation_id" json:"generationId"`
	Position     int       `db:"position" json:"position"`
	CreatedAt    Timestamp `db:"created_at" json:"createdAt"`
}

// ShotEntry is a shot_generations row joined with the generation it points at.
type ShotEntry struct {
	ShotGeneration
	Location string         `db:"location" json:"location"`
	Type     GenerationType `db:"type" json:"type"`
	Params   JSONObject     `db:"params" json:"params"`
}

// APIKey is a per-user provider credential.
type APIKey struct {
	UserID    string    `db:"user_id" json:"userId"`
	Provider  string    `db:"provider" json:"provider"`
	Key       string    `db:"api_key" json:"key"`
	UpdatedAt Timestamp `db:"updated_at" json:"updatedAt"`
}

// Pane names held in a workspace.
const (
	PaneShots       = "shots"
	PaneGenerations = "generations"
	PaneTasks       = "tasks"
)

// PaneNames lists every pane a workspace tracks.
func PaneNames() []string {
	return []string{PaneShots, PaneGenerations, PaneTasks}
}

// PaneState is the open/lock state of one sliding pane.
type PaneState struct {
	Open   bool `json:"open"`
	Locked bool `json:"locked"`
}

// Workspace is the per-user UI selection persisted in user_settings.
type Workspace struct {
	SelectedProjectID  string               `json:"selectedProjectId,omitempty"`
	CurrentShotID      string               `json:"currentShotId,omitempty"`
	LastAffectedShotID string               `json:"lastAffectedShotId,omitempty"`
	Panes              map[string]PaneState `json:"panes"`
}

// CompleteTaskInput describes the outputs persisted when a task succeeds.
type CompleteTaskInput struct {
	TaskID         string
	OutputLocation string
	Generations    []*Generation
}

// CompleteTaskResult is returned after a task is completed.
type CompleteTaskResult struct {
	Task        *Task
	Generations []*Generation
	// ShotID is set when outputs were appended to params.shotId.
	ShotID string
}

// ReclaimResult reports stale task recovery.
type ReclaimResult struct {
	Requeued int64
	Failed   int64
}
