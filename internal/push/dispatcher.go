// Package push notifies an external push gateway about new inbound messages.
// Delivery is fire and forget, a dead gateway never slows down webhook
// processing.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/waverelay/waverelay/internal/logger"
)

const dispatchTimeout = 10 * time.Second

// Notification is the body posted to the gateway.
type Notification struct {
	RoomID     string `json:"room_id"`
	RoomHandle string `json:"room_handle"`
	Title      string `json:"title"`
	Preview    string `json:"preview"`
}

// Dispatcher posts notifications to a configured HTTP endpoint.
type Dispatcher struct {
	endpoint string
	client   *http.Client
	log      *slog.Logger
}

// NewDispatcher creates a dispatcher. An empty endpoint disables dispatch.
func NewDispatcher(endpoint string) *Dispatcher {
	return &Dispatcher{
		endpoint: endpoint,
		client:   &http.Client{Timeout: dispatchTimeout},
		log:      logger.L.With(slog.String("service", "push")),
	}
}

// Notify posts the notification in a goroutine. Failures are logged and
// never reach the caller.
func (d *Dispatcher) Notify(n Notification) {
	if d.endpoint == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()

		body, err := json.Marshal(n)
		if err != nil {
			d.log.Error("marshal notification failed", slog.Any("error", err))
			return
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
		if err != nil {
			d.log.Error("build notification request failed", slog.Any("error", err))
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := d.client.Do(req)
		if err != nil {
			d.log.Warn("push dispatch failed",
				slog.String("room_id", n.RoomID),
				slog.Any("error", err))
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			d.log.Warn("push gateway rejected notification",
				slog.String("room_id", n.RoomID),
				slog.Int("status", resp.StatusCode))
		}
	}()
}
