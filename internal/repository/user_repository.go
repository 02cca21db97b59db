package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lumierelabs/prewedding-api/internal/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, COALESCE(full_name, ''), COALESCE(hashed_password, ''), auth_provider, COALESCE(google_id, ''), COALESCE(profile_picture, ''),
is_active, is_admin, is_verified, free_credits_remaining, is_subscribed, subscription_expiry, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.Email, &u.FullName, &u.HashedPassword, &u.AuthProvider, &u.GoogleID, &u.ProfilePicture,
		&u.IsActive, &u.IsAdmin, &u.IsVerified, &u.FreeCreditsRemaining, &u.IsSubscribed, &u.SubscriptionExpiry,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user by id: %w", err)
	}
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	const query = `
INSERT INTO users (email, full_name, hashed_password, auth_provider, google_id, profile_picture, is_active, is_admin, is_verified, free_credits_remaining)
VALUES (?, NULLIF(?, ''), NULLIF(?, ''), ?, NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query,
		user.Email, user.FullName, user.HashedPassword, user.AuthProvider, user.GoogleID, user.ProfilePicture,
		user.IsActive, user.IsAdmin, user.IsVerified, user.FreeCreditsRemaining)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	user.ID = id
	return user, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, userID int64, fullName, profilePicture string) error {
	const query = `
UPDATE users SET full_name = NULLIF(?, ''), profile_picture = NULLIF(?, ''), updated_at = NOW()
WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, fullName, profilePicture, userID); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

