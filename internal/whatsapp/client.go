package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/waverelay/waverelay/internal/config"
	"github.com/waverelay/waverelay/internal/logger"
)

// Client talks to the WhatsApp Cloud API for one phone number.
type Client struct {
	cfg  config.WhatsAppConfig
	http *http.Client
	log  *slog.Logger
}

func NewClient(cfg config.WhatsAppConfig) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
		log:  logger.L.With(slog.String("service", "whatsapp")),
	}
}

// SendResult is the platform acknowledgement for an outgoing message.
type SendResult struct {
	MessageID string
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// SendText delivers a plain text message to the recipient. A non-empty
// replyTo threads the message under the referenced one.
func (c *Client) SendText(ctx context.Context, to, body, replyTo string) (SendResult, error) {
	return c.sendMessage(ctx, withReply(map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]string{"body": body},
	}, replyTo))
}

// SendMediaID delivers previously uploaded media referenced by its platform id.
// mediaType is one of image, video, audio, document, sticker.
func (c *Client) SendMediaID(ctx context.Context, to, mediaType, mediaID, caption, replyTo string) (SendResult, error) {
	media := map[string]any{"id": mediaID}
	if caption != "" {
		media["caption"] = caption
	}
	return c.sendMessage(ctx, withReply(map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              mediaType,
		mediaType:           media,
	}, replyTo))
}

// withReply attaches the context object that threads a message as a reply.
func withReply(payload map[string]any, replyTo string) map[string]any {
	if replyTo != "" {
		payload["context"] = map[string]string{"message_id": replyTo}
	}
	return payload
}

// SendMediaLink delivers media hosted at a public URL.
func (c *Client) SendMediaLink(ctx context.Context, to, mediaType, link, caption string) (SendResult, error) {
	media := map[string]any{"link": link}
	if caption != "" {
		media["caption"] = caption
	}
	return c.sendMessage(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              mediaType,
		mediaType:           media,
	})
}

// SendReaction attaches an emoji reaction to an earlier message. An empty
// emoji removes the reaction.
func (c *Client) SendReaction(ctx context.Context, to, messageID, emoji string) (SendResult, error) {
	return c.sendMessage(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "reaction",
		"reaction": map[string]string{
			"message_id": messageID,
			"emoji":      emoji,
		},
	})
}

// SendLocation shares a pin with optional name and address.
func (c *Client) SendLocation(ctx context.Context, to string, loc Location) (SendResult, error) {
	return c.sendMessage(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "location",
		"location":          loc,
	})
}

// SendContacts shares one or more contact cards.
func (c *Client) SendContacts(ctx context.Context, to string, cards []ContactCard) (SendResult, error) {
	return c.sendMessage(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "contacts",
		"contacts":          cards,
	})
}

// SendTemplate delivers an approved message template.
func (c *Client) SendTemplate(ctx context.Context, to, name, language string, components []map[string]any) (SendResult, error) {
	template := map[string]any{
		"name":     name,
		"language": map[string]string{"code": language},
	}
	if len(components) > 0 {
		template["components"] = components
	}
	return c.sendMessage(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "template",
		"template":          template,
	})
}

func (c *Client) sendMessage(ctx context.Context, payload map[string]any) (SendResult, error) {
	url := fmt.Sprintf("%s/%s/messages", c.cfg.APIBase, c.cfg.PhoneNumberID)

	body, err := json.Marshal(payload)
	if err != nil {
		return SendResult{}, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return SendResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return SendResult{}, fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return SendResult{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return SendResult{}, fmt.Errorf("whatsapp api %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed sendResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return SendResult{}, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Messages) == 0 || parsed.Messages[0].ID == "" {
		return SendResult{}, fmt.Errorf("whatsapp api returned no message id")
	}
	return SendResult{MessageID: parsed.Messages[0].ID}, nil
}

// UploadResult identifies media uploaded to the platform.
type UploadResult struct {
	MediaID string
}

// UploadMedia pushes a media blob to the platform so it can be referenced by
// id in outgoing messages.
func (c *Client) UploadMedia(ctx context.Context, filename, mimeType string, content io.Reader) (UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("messaging_product", "whatsapp"); err != nil {
		return UploadResult{}, fmt.Errorf("write field: %w", err)
	}
	if err := mw.WriteField("type", mimeType); err != nil {
		return UploadResult{}, fmt.Errorf("write field: %w", err)
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return UploadResult{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return UploadResult{}, fmt.Errorf("copy media: %w", err)
	}
	if err := mw.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("close multipart: %w", err)
	}

	url := fmt.Sprintf("%s/%s/media", c.cfg.APIBase, c.cfg.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return UploadResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return UploadResult{}, fmt.Errorf("upload media: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return UploadResult{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return UploadResult{}, fmt.Errorf("whatsapp api %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return UploadResult{}, fmt.Errorf("decode response: %w", err)
	}
	if parsed.ID == "" {
		return UploadResult{}, fmt.Errorf("whatsapp api returned no media id")
	}
	return UploadResult{MediaID: parsed.ID}, nil
}

// MediaInfo describes media stored on the platform.
type MediaInfo struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256"`
	FileSize int64  `json:"file_size"`
	ID       string `json:"id"`
}

// MediaURL resolves a media id to its short-lived download URL.
func (c *Client) MediaURL(ctx context.Context, mediaID string) (MediaInfo, error) {
	url := fmt.Sprintf("%s/%s", c.cfg.APIBase, mediaID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return MediaInfo{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return MediaInfo{}, fmt.Errorf("resolve media: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return MediaInfo{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return MediaInfo{}, fmt.Errorf("whatsapp api %d: %s", resp.StatusCode, string(respBody))
	}

	var info MediaInfo
	if err := json.Unmarshal(respBody, &info); err != nil {
		return MediaInfo{}, fmt.Errorf("decode response: %w", err)
	}
	return info, nil
}

// DownloadMedia fetches the media content behind a resolved URL. The caller
// closes the returned reader.
func (c *Client) DownloadMedia(ctx context.Context, mediaURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download media: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("whatsapp media %d", resp.StatusCode)
	}
	return resp.Body, nil
}
