package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lumierelabs/prewedding-api/internal/models"
)

type TemplateRepository struct {
	db *sql.DB
}

func NewTemplateRepository(db *sql.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

const templateColumns = `id, name, COALESCE(description, ''), COALESCE(preview_url, ''), COALESCE(prompt, ''),
is_free, is_active, price_minor_units, currency, created_at, updated_at`

func scanTemplate(row interface{ Scan(...any) error }) (*models.Template, error) {
	var t models.Template
	err := row.Scan(
		&t.ID, &t.Name, &t.Description, &t.PreviewURL, &t.Prompt,
		&t.IsFree, &t.IsActive, &t.PriceMinor, &t.Currency, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TemplateRepository) GetByID(ctx context.Context, id int64) (*models.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates WHERE id = ?`
	tpl, err := scanTemplate(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan template: %w", err)
	}
	return tpl, nil
}

func (r *TemplateRepository) ListActive(ctx context.Context) ([]models.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates WHERE is_active = 1 ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []models.Template
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template list: %w", err)
		}
		templates = append(templates, *tpl)
	}
	return templates, rows.Err()
}

func (r *TemplateRepository) Create(ctx context.Context, tpl *models.Template) (*models.Template, error) {
	const query = `
INSERT INTO templates (name, description, preview_url, prompt, is_free, is_active, price_minor_units, currency)
VALUES (?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query,
		tpl.Name, tpl.Description, tpl.PreviewURL, tpl.Prompt, tpl.IsFree, tpl.IsActive, tpl.PriceMinor, tpl.Currency)
	if err != nil {
		return nil, fmt.Errorf("insert template: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("template last insert id: %w", err)
	}
	tpl.ID = id
	return tpl, nil
}

func (r *TemplateRepository) Update(ctx context.Context, tpl *models.Template) error {
	const query = `
UPDATE templates
SET name = ?, description = NULLIF(?, ''), preview_url = NULLIF(?, ''), prompt = NULLIF(?, ''),
    is_free = ?, is_active = ?, price_minor_units = ?, currency = ?, updated_at = NOW()
WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query,
		tpl.Name, tpl.Description, tpl.PreviewURL, tpl.Prompt,
		tpl.IsFree, tpl.IsActive, tpl.PriceMinor, tpl.Currency, tpl.ID); err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	return nil
}
