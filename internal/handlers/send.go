package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/waverelay/waverelay/internal/auth"
	"github.com/waverelay/waverelay/internal/message"
	"github.com/waverelay/waverelay/internal/outbound"
	"github.com/waverelay/waverelay/internal/room"
	"github.com/waverelay/waverelay/internal/whatsapp"
)

// maxMediaUpload caps outgoing attachments, aligned with the Cloud API
// document limit.
const maxMediaUpload = 100 << 20

type sender interface {
	SendText(ctx context.Context, target outbound.Target, agentID, body, replyTo string) (outbound.Outcome, error)
	SendMedia(ctx context.Context, target outbound.Target, agentID string, in outbound.MediaInput) (outbound.Outcome, error)
	SendMediaRef(ctx context.Context, target outbound.Target, agentID string, ref outbound.MediaRef) (outbound.Outcome, error)
	SendReaction(ctx context.Context, target outbound.Target, agentID, toExternalID, emoji string) (outbound.Outcome, error)
	SendLocation(ctx context.Context, target outbound.Target, agentID string, loc whatsapp.Location) (outbound.Outcome, error)
	SendContacts(ctx context.Context, target outbound.Target, agentID string, cards []whatsapp.ContactCard) (outbound.Outcome, error)
	SendTemplate(ctx context.Context, target outbound.Target, agentID, name, language string, components []map[string]any) (outbound.Outcome, error)
}

type messageLister interface {
	ListByRoom(ctx context.Context, roomID string, limit, offset int64) ([]message.Record, error)
}

// MessageHandler exposes agent-facing send and history endpoints.
type MessageHandler struct {
	sender sender
	lister messageLister
	logger *slog.Logger
}

func NewMessageHandler(log *slog.Logger, sender sender, lister messageLister) *MessageHandler {
	return &MessageHandler{
		sender: sender,
		lister: lister,
		logger: log.With(slog.String("handler", "message")),
	}
}

func (h *MessageHandler) Register(e *echo.Echo) {
	e.POST("/messages/send", h.Send)
	e.POST("/messages/send-media", h.SendMedia)
	e.GET("/rooms/:room_id/messages", h.ListMessages)
}

// sendRequest targets either an existing room by id or a contact by handle.
// Sending to a handle with no room yet provisions one.
type sendRequest struct {
	RoomID            string                 `json:"room_id"`
	Handle            string                 `json:"handle"`
	Body              string                 `json:"body"`
	ReplyToExternalID string                 `json:"reply_to_external_id"`
	Reaction          *sendReaction          `json:"reaction"`
	Media             *sendMediaRef          `json:"media"`
	Location          *whatsapp.Location     `json:"location"`
	Contacts          []whatsapp.ContactCard `json:"contacts"`
	Template          *sendTemplate          `json:"template"`
}

type sendReaction struct {
	Emoji        string `json:"emoji"`
	ToExternalID string `json:"to_external_id" validate:"required"`
}

// sendMediaRef points at media the platform already hosts. Raw uploads go
// through the multipart endpoint instead.
type sendMediaRef struct {
	ID      string `json:"id" validate:"required"`
	Type    string `json:"type"`
	Caption string `json:"caption"`
}

func (r sendRequest) target() outbound.Target {
	return outbound.Target{
		RoomID: strings.TrimSpace(r.RoomID),
		Handle: strings.TrimSpace(r.Handle),
	}
}

type sendTemplate struct {
	Name       string           `json:"name" validate:"required"`
	Language   string           `json:"language"`
	Components []map[string]any `json:"components"`
}

type sendResponse struct {
	Message    *message.Record `json:"message"`
	ExternalID string          `json:"external_id"`
	Persisted  bool            `json:"persisted"`
}

// Send delivers one message to the room's contact. Exactly one content
// descriptor is used, checked in a fixed order: reaction, media reference,
// location, contacts, template, text body.
func (h *MessageHandler) Send(c echo.Context) error {
	agentID, err := auth.AgentIDFromContext(c)
	if err != nil {
		return err
	}

	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	target := req.target()
	if target.RoomID == "" && target.Handle == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "room_id or handle is required")
	}
	ctx := c.Request().Context()
	var out outbound.Outcome
	switch {
	case req.Reaction != nil:
		out, err = h.sender.SendReaction(ctx, target, agentID, req.Reaction.ToExternalID, req.Reaction.Emoji)
	case req.Media != nil:
		out, err = h.sender.SendMediaRef(ctx, target, agentID, outbound.MediaRef{
			Type:    req.Media.Type,
			ID:      req.Media.ID,
			Caption: req.Media.Caption,
			ReplyTo: req.ReplyToExternalID,
		})
	case req.Location != nil:
		out, err = h.sender.SendLocation(ctx, target, agentID, *req.Location)
	case len(req.Contacts) > 0:
		out, err = h.sender.SendContacts(ctx, target, agentID, req.Contacts)
	case req.Template != nil:
		out, err = h.sender.SendTemplate(ctx, target, agentID, req.Template.Name, req.Template.Language, req.Template.Components)
	case strings.TrimSpace(req.Body) != "":
		out, err = h.sender.SendText(ctx, target, agentID, req.Body, req.ReplyToExternalID)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "message content is required")
	}
	if err != nil {
		return h.sendError(err)
	}
	return c.JSON(http.StatusOK, toSendResponse(out))
}

// SendMedia delivers a multipart attachment.
func (h *MessageHandler) SendMedia(c echo.Context) error {
	agentID, err := auth.AgentIDFromContext(c)
	if err != nil {
		return err
	}

	target := outbound.Target{
		RoomID: strings.TrimSpace(c.FormValue("room_id")),
		Handle: strings.TrimSpace(c.FormValue("handle")),
	}
	if target.RoomID == "" && target.Handle == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "room_id or handle is required")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	if fileHeader.Size > maxMediaUpload {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file too large")
	}
	f, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "open upload failed")
	}
	defer f.Close()
	content, err := io.ReadAll(io.LimitReader(f, maxMediaUpload))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "read upload failed")
	}

	out, err := h.sender.SendMedia(c.Request().Context(), target, agentID, outbound.MediaInput{
		Filename: fileHeader.Filename,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Caption:  c.FormValue("caption"),
		ReplyTo:  strings.TrimSpace(c.FormValue("reply_to_external_id")),
		Content:  content,
	})
	if err != nil {
		return h.sendError(err)
	}
	return c.JSON(http.StatusOK, toSendResponse(out))
}

// ListMessages returns room history newest first.
func (h *MessageHandler) ListMessages(c echo.Context) error {
	if _, err := auth.AgentIDFromContext(c); err != nil {
		return err
	}
	roomID := strings.TrimSpace(c.Param("room_id"))
	if roomID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "room id is required")
	}
	limit, _ := strconv.ParseInt(c.QueryParam("limit"), 10, 64)
	offset, _ := strconv.ParseInt(c.QueryParam("offset"), 10, 64)

	records, err := h.lister.ListByRoom(c.Request().Context(), roomID, limit, offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"messages": records})
}

func (h *MessageHandler) sendError(err error) error {
	if errors.Is(err, room.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "room not found")
	}
	return echo.NewHTTPError(http.StatusBadGateway, err.Error())
}

func toSendResponse(out outbound.Outcome) sendResponse {
	resp := sendResponse{
		ExternalID: out.ExternalID,
		Persisted:  out.Persisted,
	}
	if out.Persisted {
		rec := out.Message
		resp.Message = &rec
	}
	return resp
}
