package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"

	"github.com/waverelay/waverelay/internal/config"
	"github.com/waverelay/waverelay/internal/inbound"
	"github.com/waverelay/waverelay/internal/whatsapp"
)

// maxWebhookBody caps how much of a webhook delivery is read. Cloud API
// payloads are far below this.
const maxWebhookBody = 1 << 20

type payloadProcessor interface {
	Process(ctx context.Context, payload whatsapp.Payload) inbound.Stats
}

// WebhookHandler terminates the WhatsApp webhook: the verification handshake
// on GET and signed notification deliveries on POST.
type WebhookHandler struct {
	cfg       config.WhatsAppConfig
	processor payloadProcessor
	logger    *slog.Logger
	devWarn   sync.Once
}

func NewWebhookHandler(log *slog.Logger, cfg config.WhatsAppConfig, processor payloadProcessor) *WebhookHandler {
	return &WebhookHandler{
		cfg:       cfg,
		processor: processor,
		logger:    log.With(slog.String("handler", "webhook")),
	}
}

func (h *WebhookHandler) Register(e *echo.Echo) {
	e.GET("/channels/whatsapp/webhook", h.Verify)
	e.POST("/channels/whatsapp/webhook", h.Receive)
}

// Verify answers the subscription handshake by echoing the challenge.
func (h *WebhookHandler) Verify(c echo.Context) error {
	mode := c.QueryParam("hub.mode")
	token := c.QueryParam("hub.verify_token")
	challenge := c.QueryParam("hub.challenge")

	if mode == "subscribe" && token == h.cfg.VerifyToken && h.cfg.VerifyToken != "" {
		h.logger.Info("webhook verified")
		return c.String(http.StatusOK, challenge)
	}

	h.logger.Warn("webhook verification rejected", slog.String("mode", mode))
	return echo.NewHTTPError(http.StatusForbidden, "verification failed")
}

// Receive authenticates and processes one notification delivery. The
// response is 200 as soon as the batch was walked, the platform retries the
// whole delivery on anything else.
func (h *WebhookHandler) Receive(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "read body failed")
	}

	if h.cfg.AppSecret == "" {
		h.devWarn.Do(func() {
			h.logger.Warn("app secret not configured, webhook signatures are NOT verified")
		})
	} else {
		sig := c.Request().Header.Get("X-Hub-Signature-256")
		if !whatsapp.VerifySignature(h.cfg.AppSecret, body, sig) {
			h.logger.Warn("invalid webhook signature")
			return echo.NewHTTPError(http.StatusForbidden, "invalid signature")
		}
	}

	var payload whatsapp.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.logger.Warn("malformed webhook payload", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusBadRequest, "malformed payload")
	}

	stats := h.processor.Process(c.Request().Context(), payload)
	if stats.Failed > 0 {
		h.logger.Warn("webhook batch had failures",
			slog.Int("messages", stats.Messages),
			slog.Int("statuses", stats.Statuses),
			slog.Int("failed", stats.Failed))
	}
	return c.JSON(http.StatusOK, map[string]int{
		"messages": stats.Messages,
		"statuses": stats.Statuses,
		"failed":   stats.Failed,
	})
}
