package events

import (
	"log/slog"

	"shotdeck/internal/logging"
)

// LogSink writes every event to a logger at debug level.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Append(evt Event) {
	if s.Logger == nil {
		return
	}
	s.Logger.Debug("event published",
		logging.String(logging.FieldEventType, string(evt.Type)),
		logging.String("action", string(evt.Action)),
		logging.String(logging.FieldProjectID, evt.ProjectID),
		logging.String("entity_id", evt.EntityID),
		logging.Any("seq", evt.Sequence),
	)
}
