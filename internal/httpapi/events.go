package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"shotdeck/internal/events"
	"shotdeck/internal/logging"
)

const (
	pollMaxWait     = 25 * time.Second
	pollLimit       = 200
	socketBatch     = 100
	socketWriteWait = 10 * time.Second
	socketPingEvery = 30 * time.Second
)

type pollResponse struct {
	Events []events.Event `json:"events"`
	Next   uint64         `json:"next"`
}

func (s *Server) eventFilter(c *gin.Context) events.Filter {
	filter := events.Filter{UserID: userOf(c), ProjectID: strings.TrimSpace(c.Query("projectId"))}
	for _, value := range c.QueryArray("type") {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				if filter.Types == nil {
					filter.Types = map[events.Type]bool{}
				}
				filter.Types[events.Type(part)] = true
			}
		}
	}
	return filter
}

func resyncEvent(cursor uint64) events.Event {
	return events.Event{Sequence: cursor, Type: events.TypeResync, Timestamp: time.Now().UTC()}
}

// handleEventsPoll returns events after since. With wait=1 it blocks until
// an event arrives or the wait budget runs out. Without since the client
// receives the current cursor and no events.
func (s *Server) handleEventsPoll(c *gin.Context) {
	rawSince := strings.TrimSpace(c.Query("since"))
	if rawSince == "" {
		c.JSON(http.StatusOK, pollResponse{Events: []events.Event{}, Next: s.hub.Cursor()})
		return
	}
	since, err := strconv.ParseUint(rawSince, 10, 64)
	if err != nil {
		s.writeError(c, badRequest("poll events", "since must be a non-negative integer", nil))
		return
	}
	limit, err := queryInt(c, "poll events", "limit")
	if err != nil {
		s.writeError(c, err)
		return
	}
	if limit <= 0 || limit > pollLimit {
		limit = pollLimit
	}
	if s.hub.Missed(since) {
		cursor := s.hub.Cursor()
		c.JSON(http.StatusOK, pollResponse{Events: []events.Event{resyncEvent(cursor)}, Next: cursor})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), pollMaxWait)
	defer cancel()
	filter := s.eventFilter(c)
	wait := queryBool(c, "wait")
	cursor := since
	for {
		batch, next, err := s.hub.Fetch(ctx, cursor, limit, wait)
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			s.writeError(c, err)
			return
		}
		cursor = max(cursor, next)
		matched := filter.Apply(batch)
		// Keep waiting when everything new belonged to someone else.
		if len(matched) > 0 || !wait || err != nil || len(batch) == 0 {
			c.JSON(http.StatusOK, pollResponse{Events: matched, Next: cursor})
			return
		}
	}
}

// handleEventsSocket streams matching events until the client disconnects.
func (s *Server) handleEventsSocket(c *gin.Context) {
	filter := s.eventFilter(c)
	cursor := s.hub.Cursor()
	if raw := strings.TrimSpace(c.Query("since")); raw != "" {
		if parsed, err := strconv.ParseUint(raw, 10, 64); err == nil {
			cursor = parsed
		}
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	go func() {
		ticker := time.NewTicker(socketPingEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(socketWriteWait)); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	write := func(evt events.Event) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
		return conn.WriteJSON(evt) == nil
	}
	for {
		if s.hub.Missed(cursor) {
			cursor = s.hub.Cursor()
			if !write(resyncEvent(cursor)) {
				return
			}
		}
		batch, next, err := s.hub.Fetch(ctx, cursor, socketBatch, true)
		if err != nil {
			return
		}
		cursor = next
		for _, evt := range filter.Apply(batch) {
			if !write(evt) {
				return
			}
		}
	}
}
