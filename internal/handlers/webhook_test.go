package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waverelay/waverelay/internal/config"
	"github.com/waverelay/waverelay/internal/inbound"
	"github.com/waverelay/waverelay/internal/whatsapp"
)

type fakeProcessor struct {
	payloads []whatsapp.Payload
	stats    inbound.Stats
}

func (f *fakeProcessor) Process(ctx context.Context, payload whatsapp.Payload) inbound.Stats {
	f.payloads = append(f.payloads, payload)
	return f.stats
}

func newWebhook(cfg config.WhatsAppConfig, processor payloadProcessor) (*WebhookHandler, *echo.Echo) {
	e := echo.New()
	h := NewWebhookHandler(slog.Default(), cfg, processor)
	h.Register(e)
	return h, e
}

func signBody(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyChallengeEcho(t *testing.T) {
	_, e := newWebhook(config.WhatsAppConfig{VerifyToken: "vt"}, &fakeProcessor{})

	req := httptest.NewRequest(http.MethodGet,
		"/channels/whatsapp/webhook?hub.mode=subscribe&hub.verify_token=vt&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12345", rec.Body.String())
}

func TestVerifyWrongTokenRejected(t *testing.T) {
	_, e := newWebhook(config.WhatsAppConfig{VerifyToken: "vt"}, &fakeProcessor{})

	req := httptest.NewRequest(http.MethodGet,
		"/channels/whatsapp/webhook?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestReceiveValidSignature(t *testing.T) {
	processor := &fakeProcessor{stats: inbound.Stats{Messages: 1}}
	_, e := newWebhook(config.WhatsAppConfig{AppSecret: "secret"}, processor)

	body := `{"object":"whatsapp_business_account","entry":[{"changes":[{"value":{"messages":[{"from":"1555","id":"ext-1","type":"text","text":{"body":"hi"}}]}}]}]}`
	req := httptest.NewRequest(http.MethodPost, "/channels/whatsapp/webhook", strings.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", signBody("secret", body))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, processor.payloads, 1)
	assert.Equal(t, "ext-1", processor.payloads[0].Entry[0].Changes[0].Value.Messages[0].ID)
}

func TestReceiveInvalidSignatureRejected(t *testing.T) {
	processor := &fakeProcessor{}
	_, e := newWebhook(config.WhatsAppConfig{AppSecret: "secret"}, processor)

	body := `{"object":"whatsapp_business_account"}`
	req := httptest.NewRequest(http.MethodPost, "/channels/whatsapp/webhook", strings.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, processor.payloads, "unverified payloads must not be processed")
}

func TestReceiveMissingSignatureRejected(t *testing.T) {
	processor := &fakeProcessor{}
	_, e := newWebhook(config.WhatsAppConfig{AppSecret: "secret"}, processor)

	req := httptest.NewRequest(http.MethodPost, "/channels/whatsapp/webhook", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, processor.payloads)
}

func TestReceiveDevModeSkipsVerification(t *testing.T) {
	processor := &fakeProcessor{}
	_, e := newWebhook(config.WhatsAppConfig{}, processor)

	req := httptest.NewRequest(http.MethodPost, "/channels/whatsapp/webhook",
		strings.NewReader(`{"object":"whatsapp_business_account","entry":[]}`))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, processor.payloads, 1)
}

func TestReceiveMalformedJSON(t *testing.T) {
	processor := &fakeProcessor{}
	_, e := newWebhook(config.WhatsAppConfig{}, processor)

	req := httptest.NewRequest(http.MethodPost, "/channels/whatsapp/webhook", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, processor.payloads)
}

func TestReceiveReportsBatchStats(t *testing.T) {
	processor := &fakeProcessor{stats: inbound.Stats{Messages: 2, Statuses: 1, Failed: 1}}
	_, e := newWebhook(config.WhatsAppConfig{}, processor)

	req := httptest.NewRequest(http.MethodPost, "/channels/whatsapp/webhook",
		strings.NewReader(`{"object":"whatsapp_business_account","entry":[]}`))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"messages":2,"statuses":1,"failed":1}`, rec.Body.String())
}
