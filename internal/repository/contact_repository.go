package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lumierelabs/prewedding-api/internal/models"
)

type ContactRepository struct {
	db *sql.DB
}

func NewContactRepository(db *sql.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

const contactColumns = `id, name, email, phone, COALESCE(event_date, ''), COALESCE(message, ''),
is_read, is_responded, COALESCE(admin_notes, ''), created_at, updated_at`

func scanContact(row interface{ Scan(...any) error }) (*models.Contact, error) {
	var c models.Contact
	err := row.Scan(
		&c.ID, &c.Name, &c.Email, &c.Phone, &c.EventDate, &c.Message,
		&c.IsRead, &c.IsResponded, &c.AdminNotes, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ContactRepository) Create(ctx context.Context, contact *models.Contact) error {
	const query = `
INSERT INTO contacts (name, email, phone, event_date, message)
VALUES (?, ?, ?, NULLIF(?, ''), NULLIF(?, ''))`
	res, err := r.db.ExecContext(ctx, query, contact.Name, contact.Email, contact.Phone, contact.EventDate, contact.Message)
	if err != nil {
		return fmt.Errorf("insert contact: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("contact last insert id: %w", err)
	}
	contact.ID = id
	return nil
}

func (r *ContactRepository) GetByID(ctx context.Context, id int64) (*models.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE id = ?`
	contact, err := scanContact(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan contact: %w", err)
	}
	return contact, nil
}

// ListFilter narrows List results; nil fields mean "no filter".
type ListFilter struct {
	IsRead      *bool
	IsResponded *bool
	Offset      int
	Limit       int
}

func (r *ContactRepository) List(ctx context.Context, filter ListFilter) ([]models.Contact, int, error) {
	where := []string{"1=1"}
	args := []any{}
	if filter.IsRead != nil {
		where = append(where, "is_read = ?")
		args = append(args, *filter.IsRead)
	}
	if filter.IsResponded != nil {
		where = append(where, "is_responded = ?")
		args = append(args, *filter.IsResponded)
	}
	clause := strings.Join(where, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM contacts WHERE ` + clause
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count contacts: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE ` + clause + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, append(args, limit, filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []models.Contact
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan contact list: %w", err)
		}
		contacts = append(contacts, *contact)
	}
	return contacts, total, rows.Err()
}

func (r *ContactRepository) CountUnread(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts WHERE is_read = 0`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread contacts: %w", err)
	}
	return count, nil
}

func (r *ContactRepository) MarkRead(ctx context.Context, id int64) error {
	const query = `UPDATE contacts SET is_read = 1, updated_at = NOW() WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("mark contact read: %w", err)
	}
	return nil
}

// StatusUpdate applies partial status changes; nil fields are left untouched.
type StatusUpdate struct {
	IsRead      *bool
	IsResponded *bool
	AdminNotes  *string
}

func (r *ContactRepository) UpdateStatus(ctx context.Context, id int64, update StatusUpdate) error {
	sets := []string{"updated_at = NOW()"}
	args := []any{}
	if update.IsRead != nil {
		sets = append(sets, "is_read = ?")
		args = append(args, *update.IsRead)
	}
	if update.IsResponded != nil {
		sets = append(sets, "is_responded = ?")
		args = append(args, *update.IsResponded)
	}
	if update.AdminNotes != nil {
		sets = append(sets, "admin_notes = ?")
		args = append(args, *update.AdminNotes)
	}
	query := `UPDATE contacts SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, append(args, id)...); err != nil {
		return fmt.Errorf("update contact status: %w", err)
	}
	return nil
}

func (r *ContactRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM contacts WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	return nil
}

// Stats summarises the inbox for the admin dashboard.
type ContactStats struct {
	Total     int `json:"total_inquiries"`
	Unread    int `json:"unread_inquiries"`
	Responded int `json:"responded_inquiries"`
	Pending   int `json:"pending_inquiries"`
	Recent    int `json:"recent_inquiries"`
}

func (r *ContactRepository) Stats(ctx context.Context) (*ContactStats, error) {
	const query = `
SELECT COUNT(*),
       COALESCE(SUM(is_read = 0), 0),
       COALESCE(SUM(is_responded = 1), 0),
       COALESCE(SUM(is_responded = 0), 0),
       COALESCE(SUM(created_at >= NOW() - INTERVAL 7 DAY), 0)
FROM contacts`
	var s ContactStats
	if err := r.db.QueryRowContext(ctx, query).Scan(&s.Total, &s.Unread, &s.Responded, &s.Pending, &s.Recent); err != nil {
		return nil, fmt.Errorf("scan contact stats: %w", err)
	}
	return &s, nil
}
