// Package store implements the sqlite persistence for clients and
// communication records.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/christiantansastro/ai-chatbot-sub001/internal/phone"
)

// Client is an internal client entity. OpenPhoneContactID links it to the
// provider contact once the match is confirmed; it is unique when present.
type Client struct {
	ID                 string
	Name               string
	Phone              string
	Email              string
	OpenPhoneContactID string
	CreatedAt          int64
	UpdatedAt          int64
}

// CreateClientInput holds the fields for a new client created from an
// external contact.
type CreateClientInput struct {
	Name               string
	Phone              string
	Email              string
	OpenPhoneContactID string
}

// ClientStore reads and writes client rows.
type ClientStore struct {
	db *sql.DB
}

// NewClientStore wraps an open database handle.
func NewClientStore(db *sql.DB) *ClientStore {
	return &ClientStore{db: db}
}

// NormalizeName lowers and collapses whitespace for name matching.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

const clientColumns = `id, name, phone, email, openphone_contact_id, created_at, updated_at`

func scanClient(row *sql.Row) (*Client, error) {
	var c Client
	var phoneVal, emailVal, contactID sql.NullString
	err := row.Scan(&c.ID, &c.Name, &phoneVal, &emailVal, &contactID, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.Phone = phoneVal.String
	c.Email = emailVal.String
	c.OpenPhoneContactID = contactID.String
	return &c, nil
}

// FindByOpenPhoneContactID returns the client linked to a provider contact,
// or nil when none is linked.
func (s *ClientStore) FindByOpenPhoneContactID(ctx context.Context, contactID string) (*Client, error) {
	contactID = strings.TrimSpace(contactID)
	if contactID == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT `+clientColumns+` FROM clients
		WHERE openphone_contact_id = ?
	`, contactID)
	client, err := scanClient(row)
	if err != nil {
		return nil, fmt.Errorf("lookup client by contact id: %w", err)
	}
	return client, nil
}

// FindByName returns a client whose normalized name matches exactly.
func (s *ClientStore) FindByName(ctx context.Context, name string) (*Client, error) {
	normalized := NormalizeName(name)
	if normalized == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT `+clientColumns+` FROM clients
		WHERE name_normalized = ?
		ORDER BY updated_at DESC
		LIMIT 1
	`, normalized)
	client, err := scanClient(row)
	if err != nil {
		return nil, fmt.Errorf("lookup client by name: %w", err)
	}
	return client, nil
}

// FindByPhoneNumbers returns the first client whose stored phone matches any
// of the given numbers after E.164 normalization.
func (s *ClientStore) FindByPhoneNumbers(ctx context.Context, phones []string) (*Client, error) {
	var normalized []any
	for _, p := range phones {
		if n := phone.Normalize(p); n != "" {
			normalized = append(normalized, n)
		}
	}
	if len(normalized) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(normalized)), ",")
	row := s.db.QueryRowContext(ctx, `
		SELECT `+clientColumns+` FROM clients
		WHERE phone IN (`+placeholders+`)
		ORDER BY updated_at DESC
		LIMIT 1
	`, normalized...)
	client, err := scanClient(row)
	if err != nil {
		return nil, fmt.Errorf("lookup client by phone: %w", err)
	}
	return client, nil
}

// AttachOpenPhoneContactID links a provider contact id to an existing client.
func (s *ClientStore) AttachOpenPhoneContactID(ctx context.Context, clientID, contactID string) error {
	contactID = strings.TrimSpace(contactID)
	if clientID == "" || contactID == "" {
		return fmt.Errorf("attach contact id: client id and contact id are required")
	}
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `
		UPDATE clients
		SET openphone_contact_id = ?, updated_at = ?
		WHERE id = ?
	`, contactID, now, clientID)
	if err != nil {
		return fmt.Errorf("attach contact id: %w", err)
	}
	return nil
}

// CreateFromOpenPhoneContact inserts a new client from an external contact.
// An empty name falls back to the phone number, then to "Unknown Contact".
func (s *ClientStore) CreateFromOpenPhoneContact(ctx context.Context, input CreateClientInput) (*Client, error) {
	name := strings.TrimSpace(input.Name)
	normalizedPhone := phone.Normalize(input.Phone)
	if name == "" {
		name = normalizedPhone
	}
	if name == "" {
		name = "Unknown Contact"
	}

	now := time.Now().Unix()
	client := &Client{
		ID:                 uuid.New().String(),
		Name:               name,
		Phone:              normalizedPhone,
		Email:              strings.TrimSpace(input.Email),
		OpenPhoneContactID: strings.TrimSpace(input.OpenPhoneContactID),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (id, name, name_normalized, phone, email, openphone_contact_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, client.ID, client.Name, NormalizeName(client.Name),
		nullIfEmpty(client.Phone), nullIfEmpty(client.Email), nullIfEmpty(client.OpenPhoneContactID),
		client.CreatedAt, client.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert client: %w", err)
	}
	return client, nil
}

// BatchProcess walks all clients in id order, invoking fn with batches of at
// most batchSize rows. Processing stops on the first fn error.
func (s *ClientStore) BatchProcess(ctx context.Context, batchSize int, fn func([]Client) error) error {
	if batchSize <= 0 {
		batchSize = 50
	}

	lastID := ""
	for {
		rows, err := s.db.QueryContext(ctx, `
			SELECT `+clientColumns+` FROM clients
			WHERE id > ?
			ORDER BY id ASC
			LIMIT ?
		`, lastID, batchSize)
		if err != nil {
			return fmt.Errorf("query client batch: %w", err)
		}

		var batch []Client
		for rows.Next() {
			var c Client
			var phoneVal, emailVal, contactID sql.NullString
			if err := rows.Scan(&c.ID, &c.Name, &phoneVal, &emailVal, &contactID, &c.CreatedAt, &c.UpdatedAt); err != nil {
				rows.Close()
				return fmt.Errorf("scan client batch: %w", err)
			}
			c.Phone = phoneVal.String
			c.Email = emailVal.String
			c.OpenPhoneContactID = contactID.String
			batch = append(batch, c)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate client batch: %w", err)
		}

		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		lastID = batch[len(batch)-1].ID
		if len(batch) < batchSize {
			return nil
		}
	}
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
