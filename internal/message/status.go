package message

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/waverelay/waverelay/internal/event"
)

// Delivery statuses as the platform reports them.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
	StatusFailed    = "failed"
)

// statusRank orders the happy-path statuses so late arrivals cannot move a
// message backwards. Failed is terminal and outside the ranking, it always
// applies.
var statusRank = map[string]int{
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

// ApplyStatus reconciles a delivery callback. Every callback is recorded in
// the audit table with the platform's own timestamp, even when it targets a
// message this system never stored or arrives out of order.
func (s *DBService) ApplyStatus(ctx context.Context, externalID, status string, statusAt time.Time) error {
	if externalID == "" {
		return fmt.Errorf("external id is required")
	}
	if statusAt.IsZero() {
		statusAt = time.Now().UTC()
	}

	if err := s.store.RecordStatusEvent(ctx, externalID, status, statusAt); err != nil {
		s.log.Error("record status event failed",
			slog.String("external_id", externalID),
			slog.Any("error", err))
	}

	rec, err := s.store.GetByExternalID(ctx, externalID)
	if errors.Is(err, ErrNotFound) {
		// Callback for a message we never stored. The audit row above is
		// the only trace, the callback itself is a no-op.
		s.log.Warn("status callback for unknown message",
			slog.String("external_id", externalID),
			slog.String("status", status))
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup message %s: %w", externalID, err)
	}

	if s.strictStatusOrder && !s.shouldApply(rec, status) {
		s.log.Info("out of order status skipped",
			slog.String("external_id", externalID),
			slog.String("current", deref(rec.Status)),
			slog.String("incoming", status))
		return nil
	}

	if err := s.store.UpdateStatus(ctx, externalID, status, statusAt); err != nil {
		return fmt.Errorf("update status %s: %w", externalID, err)
	}

	s.publish(ctx, event.TypeMessageStatus, rec.RoomID, StatusPayload{
		ExternalID: externalID,
		Status:     status,
		StatusAt:   statusAt,
	})
	return nil
}

// shouldApply implements the rank guard. Unknown statuses and failed always
// apply.
func (s *DBService) shouldApply(rec Record, incoming string) bool {
	if incoming == StatusFailed {
		return true
	}
	incomingRank, ok := statusRank[incoming]
	if !ok {
		return true
	}
	if rec.Status == nil {
		return true
	}
	currentRank, ok := statusRank[*rec.Status]
	if !ok {
		return true
	}
	return incomingRank > currentRank
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
