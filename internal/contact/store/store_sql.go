package store

import (
	"context"
	"database/sql"
	"fmt"

	"gatehouse/internal/contact/models"
	"gatehouse/internal/platform/database"
	"gatehouse/internal/sentinel"
	id "gatehouse/pkg/domain"
)

const contactColumns = "id, name, email, phone, company, subject, message, user_id, status, is_read, created_at"

// SQLStore persists submissions in Postgres or SQLite.
type SQLStore struct {
	db      *sql.DB
	dialect database.Dialect
}

func NewSQL(pool *database.Pool) *SQLStore {
	return &SQLStore{db: pool.DB(), dialect: pool.Dialect()}
}

func (s *SQLStore) Create(ctx context.Context, contact *models.Contact) error {
	if contact == nil {
		return fmt.Errorf("contact is required")
	}
	var userID sql.NullString
	if contact.UserID != nil {
		userID = sql.NullString{String: contact.UserID.String(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, s.dialect.Rebind(`
		INSERT INTO contacts (`+contactColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		contact.ID.String(), contact.Name, contact.Email, contact.Phone, contact.Company,
		contact.Subject, contact.Message, userID, string(contact.Status), contact.IsRead,
		database.Time{Time: contact.CreatedAt},
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("contact already exists: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create contact: %w", err)
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context, q models.Query) ([]*models.Contact, int, error) {
	clause := ""
	var args []any
	if q.Status != "" {
		clause = " WHERE status = ?"
		args = append(args, string(q.Status))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, s.dialect.Rebind(`SELECT COUNT(*) FROM contacts`+clause), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count contacts: %w", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = -1
		if s.dialect == database.Postgres {
			limit = 1 << 30
		}
	}
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(`SELECT `+contactColumns+` FROM contacts`+clause+
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`),
		append(args, limit, max(q.Offset, 0))...)
	if err != nil {
		return nil, 0, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	contacts := make([]*models.Contact, 0)
	for rows.Next() {
		var (
			c             models.Contact
			rawID, status string
			userID        sql.NullString
			createdAt     database.Time
		)
		if err := rows.Scan(&rawID, &c.Name, &c.Email, &c.Phone, &c.Company, &c.Subject, &c.Message,
			&userID, &status, &c.IsRead, &createdAt); err != nil {
			return nil, 0, fmt.Errorf("scan contact: %w", err)
		}
		if c.ID, err = id.ParseContactID(rawID); err != nil {
			return nil, 0, fmt.Errorf("scan contact: %w", err)
		}
		if userID.Valid {
			uid, err := id.ParseUserID(userID.String)
			if err != nil {
				return nil, 0, fmt.Errorf("scan contact: %w", err)
			}
			c.UserID = &uid
		}
		c.Status = models.Status(status)
		c.CreatedAt = createdAt.Time
		contacts = append(contacts, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate contacts: %w", err)
	}
	return contacts, total, nil
}
