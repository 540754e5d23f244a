package database

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/skycms/skycms/internal/foundation/errors"
	"github.com/skycms/skycms/internal/model"
)

// InsertContact stores a contact form submission, assigning ID and timestamp.
func (d *DB) InsertContact(ctx context.Context, m *model.ContactMessage) error {
	if res := m.Validate(); !res.Valid {
		return res.ToError()
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = time.Now().UTC()

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO contact_messages (id, name, email, subject, body, remote_ip, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Name, m.Email, m.Subject, m.Body, m.RemoteIP, m.CreatedAt.Unix())
	if err != nil {
		return errors.DatabaseError("insert contact message").WithCause(err).Build()
	}
	return nil
}

// ListContacts returns contact messages, newest first.
func (d *DB) ListContacts(ctx context.Context, limit int) ([]model.ContactMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, name, email, subject, body, remote_ip, created_at
		FROM contact_messages ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.DatabaseError("list contact messages").WithCause(err).Build()
	}
	defer rows.Close()

	var out []model.ContactMessage
	for rows.Next() {
		var m model.ContactMessage
		var created int64
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Subject, &m.Body, &m.RemoteIP, &created); err != nil {
			return nil, errors.DatabaseError("scan contact row").WithCause(err).Build()
		}
		m.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("iterate contact rows").WithCause(err).Build()
	}
	return out, nil
}
