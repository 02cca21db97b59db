package service

import (
	"context"
	"errors"
	"strings"

	"github.com/lumierelabs/prewedding-api/internal/config"
	"github.com/lumierelabs/prewedding-api/internal/models"
	"github.com/lumierelabs/prewedding-api/internal/repository"
	"github.com/lumierelabs/prewedding-api/pkg/auth"
)

var (
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

type AuthService struct {
	cfg   config.Config
	users *repository.UserRepository
}

func NewAuthService(cfg config.Config, users *repository.UserRepository) *AuthService {
	return &AuthService{cfg: cfg, users: users}
}

// Register creates an email-provider account and returns the user with a
// session token. Each user has exactly one auth provider.
func (s *AuthService) Register(ctx context.Context, email, password, fullName string) (*models.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if existing != nil {
		return nil, "", ErrEmailTaken
	}

	hashed, err := auth.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return nil, "", err
	}

	user := &models.User{
		Email:          email,
		FullName:       fullName,
		HashedPassword: hashed,
		AuthProvider:   models.AuthProviderEmail,
		IsActive:       true,
		// Historical freemium counter; seeded for display parity with old
		// accounts but never consulted by entitlement checks.
		FreeCreditsRemaining: 2,
	}
	if _, err := s.users.Create(ctx, user); err != nil {
		return nil, "", err
	}

	token, err := auth.GenerateJWT(user.ID, user.Email, user.IsAdmin, s.cfg.JWTSecret, s.cfg.JWTExpirationHours)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Login authenticates an email-provider account.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if user == nil || !user.IsActive {
		return nil, "", ErrInvalidCredentials
	}
	if user.AuthProvider != models.AuthProviderEmail || user.HashedPassword == "" {
		return nil, "", ErrInvalidCredentials
	}
	if !auth.CheckPassword(user.HashedPassword, password) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := auth.GenerateJWT(user.ID, user.Email, user.IsAdmin, s.cfg.JWTSecret, s.cfg.JWTExpirationHours)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// GetUser loads the account behind a validated session.
func (s *AuthService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return s.users.FindByID(ctx, id)
}

// UpdateProfile changes display fields and returns the refreshed account.
func (s *AuthService) UpdateProfile(ctx context.Context, userID int64, fullName, profilePicture string) (*models.User, error) {
	if err := s.users.UpdateProfile(ctx, userID, fullName, profilePicture); err != nil {
		return nil, err
	}
	return s.users.FindByID(ctx, userID)
}
