package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumierelabs/prewedding-api/internal/config"
	"github.com/lumierelabs/prewedding-api/internal/repository"
	"github.com/lumierelabs/prewedding-api/internal/service"
	"github.com/lumierelabs/prewedding-api/pkg/auth"
	"github.com/lumierelabs/prewedding-api/pkg/logger"
)

func newServerFixture(t *testing.T) (*Server, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := config.Config{
		Environment:        "test",
		JWTSecret:          "test-secret-key-minimum-32-characters-long",
		RateLimitPerMinute: 6000,
		RateLimitBurst:     100,
	}
	contacts := service.NewContactService(repository.NewContactRepository(db))
	srv := NewServer(cfg, logger.New(), nil, nil, nil, nil, nil, contacts, nil)
	return srv, mock
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newServerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestSecurityHeaders(t *testing.T) {
	srv, _ := newServerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", rec.Header().Get("Referrer-Policy"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"), "HSTS is production-only")
}

func TestCreateContactEndpoint(t *testing.T) {
	srv, mock := newServerFixture(t)

	mock.ExpectExec("INSERT INTO contacts").
		WithArgs("Priya S", "priya@example.com", "+919876543210", "", "").
		WillReturnResult(sqlmock.NewResult(5, 1))
	now := time.Now()
	mock.ExpectQuery("SELECT .+ FROM contacts WHERE id").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "email", "phone", "event_date", "message",
			"is_read", "is_responded", "admin_notes", "created_at", "updated_at",
		}).AddRow(5, "Priya S", "priya@example.com", "+919876543210", "", "", false, false, "", now, now))

	body := `{"name":"Priya S","email":"priya@example.com","phone":"+919876543210"}`
	req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateContactEndpoint_ValidationError(t *testing.T) {
	srv, mock := newServerFixture(t)

	body := `{"name":"P","email":"not-an-email","phone":"12"}`
	req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet(), "invalid input must not touch the database")
}

func TestUpdateTemplate_PartialBodyKeepsFreeFlag(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := config.Config{
		Environment:        "test",
		JWTSecret:          "test-secret-key-minimum-32-characters-long",
		RateLimitPerMinute: 6000,
		RateLimitBurst:     100,
	}
	authSvc := service.NewAuthService(cfg, repository.NewUserRepository(db))
	templates := repository.NewTemplateRepository(db)
	srv := NewServer(cfg, logger.New(), authSvc, templates, nil, nil, nil, nil, nil)

	token, err := auth.GenerateJWT(1, "admin@example.com", true, cfg.JWTSecret, 1)
	require.NoError(t, err)

	now := time.Now()
	mock.ExpectQuery("SELECT .+ FROM users WHERE id").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "email", "full_name", "hashed_password", "auth_provider", "google_id", "profile_picture",
			"is_active", "is_admin", "is_verified", "free_credits_remaining", "is_subscribed", "subscription_expiry",
			"created_at", "updated_at",
		}).AddRow(1, "admin@example.com", "Admin", "", "email", "", "", true, true, true, 0, false, nil, now, now))
	mock.ExpectQuery("SELECT .+ FROM templates WHERE id").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "description", "preview_url", "prompt",
			"is_free", "is_active", "price_minor_units", "currency", "created_at", "updated_at",
		}).AddRow(3, "Beach Sunset", "", "", "golden hour on the shore", true, true, 0, "inr", now, now))
	// A rename must not flip is_free: the fifth bound value stays true.
	mock.ExpectExec("UPDATE templates").
		WithArgs("Renamed", "", "", "golden hour on the shore", true, true, 0, "inr", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := httptest.NewRequest(http.MethodPut, "/api/templates/3", strings.NewReader(`{"name":"Renamed"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"is_free":true`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProtectedRoutesRequireBearerToken(t *testing.T) {
	srv, _ := newServerFixture(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/auth/me"},
		{http.MethodPost, "/api/generate"},
		{http.MethodGet, "/api/generations"},
		{http.MethodPost, "/api/payments/checkout"},
		{http.MethodGet, "/api/contact"},
	}
	for _, p := range paths {
		req := httptest.NewRequest(p.method, p.path, nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s should demand auth", p.method, p.path)
	}
}

func TestParseID(t *testing.T) {
	id, err := parseID(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = parseID("abc")
	assert.Error(t, err)
}
