package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lumierelabs/prewedding-api/internal/models"
)

type GenerationRepository struct {
	db *sql.DB
}

func NewGenerationRepository(db *sql.DB) *GenerationRepository {
	return &GenerationRepository{db: db}
}

// Insert records a free-template generation. Paid generations are inserted by
// TokenRepository.Consume inside the debit transaction instead.
func (r *GenerationRepository) Insert(ctx context.Context, gen *models.Generation) error {
	const query = `
INSERT INTO generations (user_id, template_id, token_id, source, prompt, image_url)
VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, gen.UserID, gen.TemplateID, gen.TokenID, gen.Source, gen.Prompt, gen.ImageURL)
	if err != nil {
		return fmt.Errorf("insert generation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("generation last insert id: %w", err)
	}
	gen.ID = id
	return nil
}

func (r *GenerationRepository) UpdateImageURL(ctx context.Context, id int64, imageURL string) error {
	const query = `UPDATE generations SET image_url = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, imageURL, id); err != nil {
		return fmt.Errorf("update generation image url: %w", err)
	}
	return nil
}

func (r *GenerationRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]models.Generation, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
SELECT id, user_id, template_id, token_id, source, COALESCE(prompt, ''), COALESCE(image_url, ''), created_at
FROM generations WHERE user_id = ? ORDER BY id DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	defer rows.Close()

	var gens []models.Generation
	for rows.Next() {
		var g models.Generation
		if err := rows.Scan(&g.ID, &g.UserID, &g.TemplateID, &g.TokenID, &g.Source, &g.Prompt, &g.ImageURL, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		gens = append(gens, g)
	}
	return gens, rows.Err()
}

func (r *GenerationRepository) CountByUser(ctx context.Context, userID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM generations WHERE user_id = ?`
	var count int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count generations: %w", err)
	}
	return count, nil
}
