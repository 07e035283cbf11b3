package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rezkam/housekeeping/internal/infrastructure/http/dto"
	"github.com/rezkam/housekeeping/internal/infrastructure/http/response"
)

// FeedConfig controls websocket keepalive for the change feed.
type FeedConfig struct {
	WriteWait  time.Duration // Deadline for a single frame write
	PongWait   time.Duration // Peer is dropped when no pong arrives within this window
	PingPeriod time.Duration // Must be shorter than PongWait
}

// DefaultFeedConfig returns the keepalive settings used unless overridden.
func DefaultFeedConfig() FeedConfig {
	return FeedConfig{
		WriteWait:  10 * time.Second,
		PongWait:   60 * time.Second,
		PingPeriod: 54 * time.Second,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Kiosks connect from local pages and native clients without a stable origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

// TaskEvents streams change events touching the query filter as JSON text frames.
// The subscription is open before the upgrade completes, so a client that
// refetches after connecting cannot miss a change committed in between.
// GET /tasks/events?staff_id=&date=&room_id=&status=
func (h *Handler) TaskEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := dto.ParseFilter(r.URL.Query().Get)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub, err := h.events.Subscribe(ctx, filter)
	if err != nil {
		response.Error(w, response.CodeServiceUnavailable, "change feed unavailable", http.StatusServiceUnavailable)
		return
	}
	defer sub.Unsubscribe()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		slog.WarnContext(ctx, "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	slog.DebugContext(ctx, "change feed connected", "remote", r.RemoteAddr)

	go h.readPump(conn, cancel)

	ticker := time.NewTicker(h.feed.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-sub.Events():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed closed"),
					time.Now().UTC().Add(h.feed.WriteWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().UTC().Add(h.feed.WriteWait))
			if err := conn.WriteJSON(dto.FromEvent(ev)); err != nil {
				slog.DebugContext(ctx, "change feed write failed", "error", err)
				return
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().UTC().Add(h.feed.WriteWait)); err != nil {
				return
			}
		}
	}
}

// readPump consumes control frames and reports a closed peer through cancel.
func (h *Handler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	_ = conn.SetReadDeadline(time.Now().UTC().Add(h.feed.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().UTC().Add(h.feed.PongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
