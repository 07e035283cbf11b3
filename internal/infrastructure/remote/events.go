package remote

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rezkam/housekeeping/internal/domain"
	"github.com/rezkam/housekeeping/internal/infrastructure/http/dto"
)

// Subscribe opens the server's change feed for filter. The subscription is
// live on the server when Subscribe returns. Its Events channel closes when
// the connection drops, which the cache treats as a disconnect.
func (c *Client) Subscribe(ctx context.Context, filter domain.TaskFilter) (*domain.Subscription, error) {
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = c.base.Path + apiPrefix + "/tasks/events"
	u.RawQuery = filterQuery(filter).Encode()

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			if resp.StatusCode >= 300 {
				return nil, decodeError(resp)
			}
		}
		return nil, fmt.Errorf("failed to open change feed: %w", err)
	}

	events := make(chan domain.TaskEvent, 16)
	done := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				deadline())
			conn.Close()
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			stop()
		case <-done:
		}
	}()

	go func() {
		defer close(events)
		for {
			var msg dto.TaskEvent
			if err := conn.ReadJSON(&msg); err != nil {
				select {
				case <-done:
				default:
					slog.WarnContext(ctx, "change feed closed", "error", err)
				}
				return
			}
			ev, err := msg.ToEvent()
			if err != nil {
				slog.ErrorContext(ctx, "discarding malformed change event", "error", err)
				continue
			}
			select {
			case events <- ev:
			case <-done:
				return
			}
		}
	}()

	return domain.NewSubscription(events, stop), nil
}

func deadline() time.Time {
	return time.Now().UTC().Add(time.Second)
}
