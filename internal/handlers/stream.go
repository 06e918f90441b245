package handlers

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/waverelay/waverelay/internal/auth"
	"github.com/waverelay/waverelay/internal/event"
	"github.com/waverelay/waverelay/internal/message"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	backlogLimit = 50
)

type streamSource interface {
	Subscribe(roomID string) (<-chan event.Event, func())
}

// StreamHandler serves the live event stream over a websocket. Clients
// subscribe globally or to one room via the room_id query parameter.
type StreamHandler struct {
	source   streamSource
	lister   messageLister
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewStreamHandler(log *slog.Logger, source streamSource, lister messageLister) *StreamHandler {
	return &StreamHandler{
		source: source,
		lister: lister,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		logger: log.With(slog.String("handler", "stream")),
	}
}

func (h *StreamHandler) Register(e *echo.Echo) {
	e.GET("/ws", h.Stream)
}

// backlogFrame is the first frame on a room-scoped stream, carrying recent
// history so the client renders without a separate fetch.
type backlogFrame struct {
	Type     string           `json:"type"`
	RoomID   string           `json:"room_id"`
	Messages []message.Record `json:"messages"`
}

func (h *StreamHandler) Stream(c echo.Context) error {
	if _, err := auth.AgentIDFromContext(c); err != nil {
		return err
	}
	roomID := strings.TrimSpace(c.QueryParam("room_id"))

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	events, cancel := h.source.Subscribe(roomID)
	defer cancel()

	if roomID != "" {
		if err := h.sendBacklog(c.Request().Context(), conn, roomID); err != nil {
			h.logger.Warn("backlog send failed",
				slog.String("room_id", roomID),
				slog.Any("error", err))
			return nil
		}
	}

	done := make(chan struct{})
	go h.readLoop(conn, done)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return nil
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case <-done:
			return nil
		}
	}
}

func (h *StreamHandler) sendBacklog(ctx context.Context, conn *websocket.Conn, roomID string) error {
	records, err := h.lister.ListByRoom(ctx, roomID, backlogLimit, 0)
	if err != nil {
		return err
	}
	// history arrives newest first, clients want chronological order
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(backlogFrame{
		Type:     "backlog",
		RoomID:   roomID,
		Messages: records,
	})
}

// readLoop drains client frames so close and pong control messages are
// processed.
func (h *StreamHandler) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
