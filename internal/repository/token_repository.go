package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lumierelabs/prewedding-api/internal/models"
)

var (
	// ErrTokenNotFound is returned when a token id resolves to nothing.
	ErrTokenNotFound = errors.New("payment token not found")
	// ErrInvalidTokenState is returned when a consume hits a token that is
	// no longer usable. It must never surface to users.
	ErrInvalidTokenState = errors.New("payment token is not in a usable state")
	// ErrAlreadyRefunded is returned on a second refund of the same token.
	ErrAlreadyRefunded = errors.New("payment token already refunded")
)

const tokenColumns = `id, user_id, template_id, COALESCE(payment_id, ''), payment_status, amount_minor_units, currency, status,
uses_total, uses_remaining, used_at, last_used_at, COALESCE(refund_id, ''), COALESCE(refund_reason, ''), refunded_at, expires_at, created_at`

type TokenRepository struct {
	db *sql.DB
}

func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

func scanToken(row interface{ Scan(...any) error }) (*models.PaymentToken, error) {
	var t models.PaymentToken
	err := row.Scan(
		&t.ID, &t.UserID, &t.TemplateID, &t.PaymentID, &t.PaymentStatus, &t.AmountMinor, &t.Currency, &t.Status,
		&t.UsesTotal, &t.UsesRemaining, &t.UsedAt, &t.LastUsedAt, &t.RefundID, &t.RefundReason, &t.RefundedAt, &t.ExpiresAt, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TokenRepository) Create(ctx context.Context, token *models.PaymentToken) error {
	const query = `
INSERT INTO payment_tokens (user_id, template_id, payment_id, payment_status, amount_minor_units, currency, status, uses_total, uses_remaining, expires_at)
VALUES (?, ?, NULLIF(?, ''), ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query,
		token.UserID, token.TemplateID, token.PaymentID, token.PaymentStatus,
		token.AmountMinor, token.Currency, token.Status, token.UsesTotal, token.UsesRemaining, token.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert token: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("token last insert id: %w", err)
	}
	token.ID = id
	return nil
}

func (r *TokenRepository) GetByID(ctx context.Context, id int64) (*models.PaymentToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM payment_tokens WHERE id = ?`
	token, err := scanToken(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan token: %w", err)
	}
	return token, nil
}

func (r *TokenRepository) GetByPaymentID(ctx context.Context, paymentID string) (*models.PaymentToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM payment_tokens WHERE payment_id = ? LIMIT 1`
	token, err := scanToken(r.db.QueryRowContext(ctx, query, paymentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan token by payment id: %w", err)
	}
	return token, nil
}

// FirstUsable returns the oldest token (ascending id) that can still pay for a
// generation against the template, or nil when none exists. Selection is a
// deterministic query, never an in-memory scan, so concurrent purchases keep
// a stable charge order.
func (r *TokenRepository) FirstUsable(ctx context.Context, userID, templateID int64, now time.Time) (*models.PaymentToken, error) {
	query := `SELECT ` + tokenColumns + `
FROM payment_tokens
WHERE user_id = ? AND template_id = ?
  AND payment_status = 'completed'
  AND status NOT IN ('refunded', 'expired')
  AND uses_remaining > 0
  AND (expires_at IS NULL OR expires_at > ?)
ORDER BY id ASC
LIMIT 1`
	token, err := scanToken(r.db.QueryRowContext(ctx, query, userID, templateID, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan usable token: %w", err)
	}
	return token, nil
}

func (r *TokenRepository) ListByUserTemplate(ctx context.Context, userID, templateID int64) ([]models.PaymentToken, error) {
	query := `SELECT ` + tokenColumns + `
FROM payment_tokens WHERE user_id = ? AND template_id = ? ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, query, userID, templateID)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []models.PaymentToken
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token list: %w", err)
		}
		tokens = append(tokens, *token)
	}
	return tokens, rows.Err()
}

// Complete flips a pending token to completed once the provider confirms the
// charge. The use balance stamped at checkout is kept as-is, so a config
// change between checkout and settlement cannot alter what was bought.
func (r *TokenRepository) Complete(ctx context.Context, paymentID string, expiresAt *time.Time) error {
	const query = `
UPDATE payment_tokens
SET payment_status = 'completed', expires_at = ?
WHERE payment_id = ? AND payment_status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, expiresAt, paymentID)
	if err != nil {
		return fmt.Errorf("complete token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete token rows affected: %w", err)
	}
	if affected == 0 {
		return ErrTokenNotFound
	}
	return nil
}

func (r *TokenRepository) MarkFailed(ctx context.Context, paymentID string) error {
	const query = `UPDATE payment_tokens SET payment_status = 'failed' WHERE payment_id = ? AND payment_status = 'pending'`
	if _, err := r.db.ExecContext(ctx, query, paymentID); err != nil {
		return fmt.Errorf("mark token failed: %w", err)
	}
	return nil
}

// Consume debits one use from the token and records the generation it paid
// for in the same transaction. The decrement is a conditional UPDATE whose
// WHERE clause re-checks the full usability predicate, so two concurrent
// consumers of a one-use token cannot both win: the loser affects zero rows
// and gets ErrInvalidTokenState, and the balance never goes negative.
func (r *TokenRepository) Consume(ctx context.Context, tokenID int64, gen *models.Generation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin consume tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// MySQL evaluates SET assignments left to right against already-updated
	// values, so the status flip below sees the decremented balance.
	const debit = `
UPDATE payment_tokens
SET uses_remaining = uses_remaining - 1,
    used_at = COALESCE(used_at, NOW()),
    last_used_at = NOW(),
    status = IF(uses_remaining = 0, 'used', status)
WHERE id = ?
  AND payment_status = 'completed'
  AND status NOT IN ('refunded', 'expired')
  AND uses_remaining > 0
  AND (expires_at IS NULL OR expires_at > NOW())`
	res, err := tx.ExecContext(ctx, debit, tokenID)
	if err != nil {
		return fmt.Errorf("debit token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("debit rows affected: %w", err)
	}
	if affected == 0 {
		return ErrInvalidTokenState
	}

	const insert = `
INSERT INTO generations (user_id, template_id, token_id, source, prompt, image_url)
VALUES (?, ?, ?, ?, ?, ?)`
	insRes, err := tx.ExecContext(ctx, insert, gen.UserID, gen.TemplateID, tokenID, gen.Source, gen.Prompt, gen.ImageURL)
	if err != nil {
		return fmt.Errorf("insert generation: %w", err)
	}
	genID, err := insRes.LastInsertId()
	if err != nil {
		return fmt.Errorf("generation last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit consume tx: %w", err)
	}
	gen.ID = genID
	gen.TokenID = &tokenID
	return nil
}

// Refund terminates the token. Remaining uses are forfeited; a second refund
// is rejected with ErrAlreadyRefunded.
func (r *TokenRepository) Refund(ctx context.Context, tokenID int64, refundID, reason string) error {
	const query = `
UPDATE payment_tokens
SET status = 'refunded', payment_status = 'refunded', refund_id = ?, refund_reason = ?, refunded_at = NOW()
WHERE id = ? AND status <> 'refunded'`
	res, err := r.db.ExecContext(ctx, query, refundID, reason, tokenID)
	if err != nil {
		return fmt.Errorf("refund token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("refund rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	existing, err := r.GetByID(ctx, tokenID)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrTokenNotFound
	}
	return ErrAlreadyRefunded
}

// UsageSummary aggregates purchased and remaining uses across all
// payment-completed tokens a user holds for a template.
type UsageSummary struct {
	TotalTokens   int `json:"total_tokens"`
	UsesPurchased int `json:"total_uses_purchased"`
	UsesRemaining int `json:"uses_remaining"`
	UsesConsumed  int `json:"uses_consumed"`
}

func (r *TokenRepository) Usage(ctx context.Context, userID, templateID int64) (*UsageSummary, error) {
	const query = `
SELECT COUNT(*), COALESCE(SUM(uses_total), 0), COALESCE(SUM(uses_remaining), 0)
FROM payment_tokens
WHERE user_id = ? AND template_id = ? AND payment_status = 'completed'`
	row := r.db.QueryRowContext(ctx, query, userID, templateID)
	var s UsageSummary
	if err := row.Scan(&s.TotalTokens, &s.UsesPurchased, &s.UsesRemaining); err != nil {
		return nil, fmt.Errorf("scan token usage: %w", err)
	}
	s.UsesConsumed = s.UsesPurchased - s.UsesRemaining
	return &s, nil
}
