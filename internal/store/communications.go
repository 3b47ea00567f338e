package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CommunicationType classifies a communication record.
type CommunicationType string

const (
	TypePhoneCall CommunicationType = "phone_call"
	TypeSMS       CommunicationType = "sms"
	TypeEmail     CommunicationType = "email"
)

// Upsert actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
)

// CommunicationInput is the canonical record the sync engine writes. Exactly
// one of ExternalCallID or ExternalConversationID must be set; it is the
// idempotency key.
type CommunicationInput struct {
	ClientID               string
	ClientName             string
	Date                   string // YYYY-MM-DD
	Type                   CommunicationType
	Subject                string
	Notes                  string
	Source                 string
	ExternalCallID         string
	ExternalConversationID string
	ExternalEventTimestamp string
}

// UpsertResult reports whether the upsert inserted or updated.
type UpsertResult struct {
	Action string
	ID     string
}

// CommunicationStore reads and writes communication rows.
type CommunicationStore struct {
	db *sql.DB
}

// NewCommunicationStore wraps an open database handle.
func NewCommunicationStore(db *sql.DB) *CommunicationStore {
	return &CommunicationStore{db: db}
}

// Upsert inserts a communication record, or updates the existing one carrying
// the same external call/conversation id. Last write wins on notes, date and
// event timestamp.
func (s *CommunicationStore) Upsert(ctx context.Context, input CommunicationInput) (UpsertResult, error) {
	if input.ClientID == "" {
		return UpsertResult{}, errors.New("upsert communication: client id is required")
	}
	keyColumn, keyValue := externalKey(input)
	if keyValue == "" {
		return UpsertResult{}, errors.New("upsert communication: external call or conversation id is required")
	}
	if input.ExternalCallID != "" && input.ExternalConversationID != "" {
		return UpsertResult{}, errors.New("upsert communication: call and conversation ids are mutually exclusive")
	}

	now := time.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var existingID string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM communications WHERE `+keyColumn+` = ?
	`, keyValue).Scan(&existingID)
	if err != nil && err != sql.ErrNoRows {
		return UpsertResult{}, fmt.Errorf("query communication: %w", err)
	}

	if existingID != "" {
		_, err = tx.ExecContext(ctx, `
			UPDATE communications
			SET notes = ?, communication_date = ?, external_event_timestamp = ?, updated_at = ?
			WHERE id = ?
		`, nullIfEmpty(input.Notes), input.Date, nullIfEmpty(input.ExternalEventTimestamp), now, existingID)
		if err != nil {
			return UpsertResult{}, fmt.Errorf("update communication: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return UpsertResult{}, fmt.Errorf("commit: %w", err)
		}
		return UpsertResult{Action: ActionUpdated, ID: existingID}, nil
	}

	id := uuid.New().String()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO communications (
			id, client_id, client_name, communication_date, communication_type,
			subject, notes, source, external_call_id, external_conversation_id,
			external_event_timestamp, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(`+keyColumn+`) WHERE `+keyColumn+` IS NOT NULL DO UPDATE SET
			notes = excluded.notes,
			communication_date = excluded.communication_date,
			external_event_timestamp = excluded.external_event_timestamp,
			updated_at = excluded.updated_at
	`, id, input.ClientID, input.ClientName, input.Date, string(input.Type),
		nullIfEmpty(input.Subject), nullIfEmpty(input.Notes), input.Source,
		nullIfEmpty(input.ExternalCallID), nullIfEmpty(input.ExternalConversationID),
		nullIfEmpty(input.ExternalEventTimestamp), now, now)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("insert communication: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return UpsertResult{}, fmt.Errorf("commit: %w", err)
	}
	return UpsertResult{Action: ActionCreated, ID: id}, nil
}

// CountByClient returns the number of stored communications for a client.
func (s *CommunicationStore) CountByClient(ctx context.Context, clientID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM communications WHERE client_id = ?
	`, clientID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count communications: %w", err)
	}
	return n, nil
}

func externalKey(input CommunicationInput) (column, value string) {
	if input.ExternalCallID != "" {
		return "external_call_id", input.ExternalCallID
	}
	return "external_conversation_id", input.ExternalConversationID
}
