package message

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/waverelay/waverelay/internal/db"
	"github.com/waverelay/waverelay/internal/db/sqlc"
)

// PgStore implements Store on Postgres.
type PgStore struct {
	pool    *pgxpool.Pool
	queries *sqlc.Queries
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool, queries: sqlc.New(pool)}
}

// CreateWithFirstCheck counts the room's messages and inserts the draft in
// one transaction. The count runs before the insert so the new message never
// counts itself.
func (s *PgStore) CreateWithFirstCheck(ctx context.Context, d Draft) (Record, bool, error) {
	roomID, err := db.ParseUUID(d.RoomID)
	if err != nil {
		return Record{}, false, fmt.Errorf("parse room id: %w", err)
	}
	params, err := insertParams(d)
	if err != nil {
		return Record{}, false, err
	}
	params.RoomID = roomID

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Record{}, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	qtx := s.queries.WithTx(tx)
	count, err := qtx.CountMessagesByRoom(ctx, roomID)
	if err != nil {
		return Record{}, false, fmt.Errorf("count messages: %w", err)
	}
	row, err := qtx.CreateMessage(ctx, params)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Record{}, false, ErrDuplicate
		}
		return Record{}, false, fmt.Errorf("insert message: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Record{}, false, fmt.Errorf("commit tx: %w", err)
	}
	return toRecord(row), count == 0, nil
}

func (s *PgStore) GetByExternalID(ctx context.Context, externalID string) (Record, error) {
	row, err := s.queries.GetMessageByExternalID(ctx, db.ToText(externalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("get message by external id: %w", err)
	}
	return toRecord(row), nil
}

func (s *PgStore) UpdateStatus(ctx context.Context, externalID, status string, statusAt time.Time) error {
	err := s.queries.UpdateMessageStatus(ctx, sqlc.UpdateMessageStatusParams{
		ExternalID: db.ToText(externalID),
		Status:     db.ToText(status),
		StatusAt:   db.ToTimestamptz(statusAt),
	})
	if err != nil {
		return fmt.Errorf("update message status: %w", err)
	}
	return nil
}

func (s *PgStore) RecordStatusEvent(ctx context.Context, externalID, status string, statusAt time.Time) error {
	_, err := s.queries.CreateMessageStatusEvent(ctx, sqlc.CreateMessageStatusEventParams{
		ExternalID: externalID,
		Status:     status,
		StatusAt:   db.ToTimestamptz(statusAt),
	})
	if err != nil {
		return fmt.Errorf("record status event: %w", err)
	}
	return nil
}

func (s *PgStore) ListByRoom(ctx context.Context, roomID string, limit, offset int64) ([]Record, error) {
	rid, err := db.ParseUUID(roomID)
	if err != nil {
		return nil, fmt.Errorf("parse room id: %w", err)
	}
	rows, err := s.queries.ListMessagesByRoom(ctx, sqlc.ListMessagesByRoomParams{
		RoomID: rid,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, toRecord(row))
	}
	return records, nil
}

func insertParams(d Draft) (sqlc.CreateMessageParams, error) {
	metadata := []byte("{}")
	if len(d.Metadata) > 0 {
		raw, err := json.Marshal(d.Metadata)
		if err != nil {
			return sqlc.CreateMessageParams{}, fmt.Errorf("marshal metadata: %w", err)
		}
		metadata = raw
	}
	params := sqlc.CreateMessageParams{
		AgentID:           db.PtrToText(d.AgentID),
		Kind:              string(d.Kind),
		Body:              db.PtrToText(d.Body),
		ExternalID:        db.PtrToText(d.ExternalID),
		Status:            db.PtrToText(d.Status),
		StatusAt:          db.PtrToTimestamptz(d.StatusAt),
		ReplyToExternalID: db.PtrToText(d.ReplyToExternalID),
		Metadata:          metadata,
	}
	if d.Media != nil {
		params.MediaType = db.ToText(d.Media.Type)
		params.MediaID = db.ToText(d.Media.PlatformID)
		params.BackupKey = db.PtrToText(d.Media.BackupKey)
		params.BackupUrl = db.PtrToText(d.Media.BackupURL)
		params.MediaSize = db.PtrToInt8(d.Media.Size)
		params.MediaMime = db.PtrToText(d.Media.MimeType)
		params.MediaFilename = db.PtrToText(d.Media.Filename)
	}
	if d.Reaction != nil {
		params.ReactionEmoji = db.ToText(d.Reaction.Emoji)
		params.ReactionToExternalID = db.ToText(d.Reaction.ToExternal)
	}
	return params, nil
}

func toRecord(row sqlc.Message) Record {
	rec := Record{
		ID:                db.UUIDToString(row.ID),
		RoomID:            db.UUIDToString(row.RoomID),
		AgentID:           db.TextToPtr(row.AgentID),
		Kind:              Kind(row.Kind),
		Body:              db.TextToPtr(row.Body),
		ExternalID:        db.TextToPtr(row.ExternalID),
		Status:            db.TextToPtr(row.Status),
		StatusAt:          db.TimestamptzToPtr(row.StatusAt),
		ReplyToExternalID: db.TextToPtr(row.ReplyToExternalID),
		CreatedAt:         row.CreatedAt.Time,
		UpdatedAt:         row.UpdatedAt.Time,
	}
	if row.MediaType.Valid {
		rec.Media = &MediaInfo{
			Type:       row.MediaType.String,
			PlatformID: db.TextToString(row.MediaID),
			BackupKey:  db.TextToPtr(row.BackupKey),
			BackupURL:  db.TextToPtr(row.BackupUrl),
			Size:       db.Int8ToPtr(row.MediaSize),
			MimeType:   db.TextToPtr(row.MediaMime),
			Filename:   db.TextToPtr(row.MediaFilename),
		}
	}
	if row.ReactionEmoji.Valid || row.ReactionToExternalID.Valid {
		rec.Reaction = &ReactionInfo{
			Emoji:      db.TextToString(row.ReactionEmoji),
			ToExternal: db.TextToString(row.ReactionToExternalID),
		}
	}
	if len(row.Metadata) > 0 {
		var meta map[string]any
		if err := json.Unmarshal(row.Metadata, &meta); err == nil && len(meta) > 0 {
			rec.Metadata = meta
		}
	}
	return rec
}
