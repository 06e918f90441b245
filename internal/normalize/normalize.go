// Package normalize flattens the many WhatsApp message payload shapes into
// the canonical record fields.
package normalize

import (
	"fmt"
	"strings"

	"github.com/waverelay/waverelay/internal/message"
	"github.com/waverelay/waverelay/internal/whatsapp"
)

// Normalized is the channel-independent view of one inbound message.
type Normalized struct {
	Kind     message.Kind
	Body     *string
	Media    *message.MediaInfo
	Reaction *message.ReactionInfo
	ReplyTo  *string
	Metadata map[string]any
}

// Normalize maps a WhatsApp message onto canonical fields. Unknown types come
// back as KindUnsupported with the raw type preserved in metadata, never as
// an error, so nothing a user sent is dropped.
func Normalize(msg whatsapp.Message) Normalized {
	n := Normalized{Metadata: map[string]any{}}

	if msg.Context != nil && msg.Context.ID != "" {
		id := msg.Context.ID
		n.ReplyTo = &id
		if msg.Context.Forwarded {
			n.Metadata["forwarded"] = true
		}
	}

	switch msg.Type {
	case "text":
		n.Kind = message.KindText
		if msg.Text != nil {
			n.Body = ptr(msg.Text.Body)
		}
	case "image":
		normalizeMedia(&n, "image", msg.Image)
	case "video":
		normalizeMedia(&n, "video", msg.Video)
	case "audio":
		normalizeMedia(&n, "audio", msg.Audio)
		if msg.Audio != nil && msg.Audio.Voice {
			n.Metadata["voice"] = true
		}
	case "document":
		normalizeMedia(&n, "document", msg.Document)
	case "sticker":
		normalizeMedia(&n, "sticker", msg.Sticker)
		if msg.Sticker != nil && msg.Sticker.Animated {
			n.Metadata["animated"] = true
		}
	case "location":
		n.Kind = message.KindLocation
		if msg.Location != nil {
			n.Body = ptr(LocationSummary(*msg.Location))
			n.Metadata["latitude"] = msg.Location.Latitude
			n.Metadata["longitude"] = msg.Location.Longitude
			if msg.Location.Name != "" {
				n.Metadata["name"] = msg.Location.Name
			}
			if msg.Location.Address != "" {
				n.Metadata["address"] = msg.Location.Address
			}
		}
	case "contacts":
		n.Kind = message.KindContacts
		if len(msg.Contacts) > 0 {
			n.Body = ptr(ContactsSummary(msg.Contacts))
			n.Metadata["contacts"] = contactsMeta(msg.Contacts)
		}
	case "reaction":
		n.Kind = message.KindReaction
		if msg.Reaction != nil {
			n.Reaction = &message.ReactionInfo{
				Emoji:      msg.Reaction.Emoji,
				ToExternal: msg.Reaction.MessageID,
			}
			n.Body = ptr(ReactionSummary(*msg.Reaction))
		}
	case "interactive":
		n.Kind = message.KindInteractive
		if msg.Interactive != nil {
			switch {
			case msg.Interactive.ButtonReply != nil:
				n.Body = ptr(msg.Interactive.ButtonReply.Title)
				n.Metadata["reply_id"] = msg.Interactive.ButtonReply.ID
				n.Metadata["interactive_type"] = "button_reply"
			case msg.Interactive.ListReply != nil:
				n.Body = ptr(msg.Interactive.ListReply.Title)
				n.Metadata["reply_id"] = msg.Interactive.ListReply.ID
				n.Metadata["interactive_type"] = "list_reply"
				if msg.Interactive.ListReply.Description != "" {
					n.Metadata["description"] = msg.Interactive.ListReply.Description
				}
			default:
				n.Metadata["interactive_type"] = msg.Interactive.Type
			}
		}
	case "button":
		n.Kind = message.KindButton
		if msg.Button != nil {
			n.Body = ptr(msg.Button.Text)
			n.Metadata["payload"] = msg.Button.Payload
		}
	case "order":
		n.Kind = message.KindOrder
		if msg.Order != nil {
			n.Body = ptr(OrderSummary(*msg.Order))
			n.Metadata["catalog_id"] = msg.Order.CatalogID
			n.Metadata["items"] = orderItemsMeta(msg.Order.ProductItems)
			if msg.Order.Text != "" {
				n.Metadata["note"] = msg.Order.Text
			}
		}
	case "system":
		n.Kind = message.KindSystem
		if msg.System != nil {
			n.Body = ptr(msg.System.Body)
			n.Metadata["system_type"] = msg.System.Type
			if msg.System.WaID != "" {
				n.Metadata["wa_id"] = msg.System.WaID
			}
		}
	case "request_welcome":
		n.Kind = message.KindRequestWelcome
	default:
		n.Kind = message.KindUnsupported
		n.Metadata["platform_type"] = msg.Type
		if len(msg.Errors) > 0 {
			n.Metadata["errors"] = errorsMeta(msg.Errors)
		}
	}

	// Referral rides along with another message type.
	if msg.Referral != nil {
		if n.Kind == message.KindText {
			n.Kind = message.KindReferral
		}
		n.Metadata["referral"] = map[string]any{
			"source_url":  msg.Referral.SourceURL,
			"source_id":   msg.Referral.SourceID,
			"source_type": msg.Referral.SourceType,
			"headline":    msg.Referral.Headline,
		}
	}

	if len(n.Metadata) == 0 {
		n.Metadata = nil
	}
	return n
}

func normalizeMedia(n *Normalized, mediaType string, media *whatsapp.Media) {
	n.Kind = message.KindMedia
	if media == nil {
		return
	}
	info := &message.MediaInfo{
		Type:       mediaType,
		PlatformID: media.ID,
	}
	if media.MimeType != "" {
		info.MimeType = ptr(media.MimeType)
	}
	if media.Filename != "" {
		info.Filename = ptr(media.Filename)
	}
	n.Media = info
	if media.Caption != "" {
		n.Body = ptr(media.Caption)
	}
}

// LocationSummary renders a location pin as a short text line.
func LocationSummary(loc whatsapp.Location) string {
	label := strings.TrimSpace(strings.Join(nonEmpty(loc.Name, loc.Address), ", "))
	coords := fmt.Sprintf("%.6f,%.6f", loc.Latitude, loc.Longitude)
	if label == "" {
		return coords
	}
	return label + " (" + coords + ")"
}

// ContactsSummary renders shared contact cards as a short text line.
func ContactsSummary(cards []whatsapp.ContactCard) string {
	names := make([]string, 0, len(cards))
	for _, card := range cards {
		if name := strings.TrimSpace(card.Name.FormattedName); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return fmt.Sprintf("%d contact(s)", len(cards))
	}
	return strings.Join(names, ", ")
}

// ReactionSummary renders a reaction for display in text-only surfaces.
func ReactionSummary(r whatsapp.Reaction) string {
	if r.Emoji == "" {
		return "reaction removed"
	}
	return r.Emoji
}

// OrderSummary renders an order as a short text line.
func OrderSummary(o whatsapp.Order) string {
	count := 0
	for _, item := range o.ProductItems {
		count += item.Quantity
	}
	return fmt.Sprintf("order: %d item(s) from catalog %s", count, o.CatalogID)
}

func contactsMeta(cards []whatsapp.ContactCard) []map[string]any {
	out := make([]map[string]any, 0, len(cards))
	for _, card := range cards {
		entry := map[string]any{"name": card.Name.FormattedName}
		phones := make([]string, 0, len(card.Phones))
		for _, p := range card.Phones {
			phones = append(phones, p.Phone)
		}
		if len(phones) > 0 {
			entry["phones"] = phones
		}
		out = append(out, entry)
	}
	return out
}

func orderItemsMeta(items []whatsapp.ProductItem) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, map[string]any{
			"product_retailer_id": item.ProductRetailerID,
			"quantity":            item.Quantity,
			"item_price":          item.ItemPrice,
			"currency":            item.Currency,
		})
	}
	return out
}

func errorsMeta(errs []whatsapp.Error) []map[string]any {
	out := make([]map[string]any, 0, len(errs))
	for _, e := range errs {
		out = append(out, map[string]any{"code": e.Code, "title": e.Title})
	}
	return out
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

func ptr(s string) *string {
	return &s
}
