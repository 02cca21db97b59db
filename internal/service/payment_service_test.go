package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/lumierelabs/prewedding-api/internal/config"
	"github.com/lumierelabs/prewedding-api/internal/models"
	"github.com/lumierelabs/prewedding-api/internal/repository"
	"github.com/lumierelabs/prewedding-api/pkg/logger"
)

const webhookSecret = "whsec_test_secret"

func newPaymentFixture(t *testing.T) (*PaymentService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := config.Config{
		StripeWebhookSecret:  webhookSecret,
		TokenUsesPerPurchase: 2,
	}
	svc := NewPaymentService(cfg, logger.New(), repository.NewTokenRepository(db), repository.NewTemplateRepository(db))
	return svc, mock
}

func TestCheckout_FreeTemplateRejected(t *testing.T) {
	svc, mock := newPaymentFixture(t)

	now := time.Now()
	mock.ExpectQuery("SELECT .+ FROM templates WHERE id").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "description", "preview_url", "prompt",
			"is_free", "is_active", "price_minor_units", "currency", "created_at", "updated_at",
		}).AddRow(1, "Starter", "", "", "prompt", true, true, 0, "inr", now, now))

	_, err := svc.Checkout(context.Background(), &models.User{ID: 42}, 1)
	assert.ErrorIs(t, err, ErrFreeTemplate)
}

func TestCheckout_UnknownTemplate(t *testing.T) {
	svc, mock := newPaymentFixture(t)

	mock.ExpectQuery("SELECT .+ FROM templates WHERE id").
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := svc.Checkout(context.Background(), &models.User{ID: 42}, 404)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func signedEvent(t *testing.T, body string) ([]byte, string) {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(body),
		Secret:    webhookSecret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return signed.Payload, signed.Header
}

func TestHandleWebhook_CompletedSession(t *testing.T) {
	svc, mock := newPaymentFixture(t)

	mock.ExpectExec("UPDATE payment_tokens").
		WithArgs(nil, "cs_test_1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	payload, sig := signedEvent(t, `{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_test_1"}}}`)
	err := svc.HandleWebhook(context.Background(), payload, sig)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleWebhook_RetryAfterSettlementIsNoop(t *testing.T) {
	svc, mock := newPaymentFixture(t)

	now := time.Now()
	mock.ExpectExec("UPDATE payment_tokens").
		WithArgs(nil, "cs_test_1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT .+ FROM payment_tokens WHERE payment_id").
		WithArgs("cs_test_1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "template_id", "payment_id", "payment_status", "amount_minor_units", "currency", "status",
			"uses_total", "uses_remaining", "used_at", "last_used_at", "refund_id", "refund_reason", "refunded_at", "expires_at", "created_at",
		}).AddRow(7, 42, 3, "cs_test_1", "completed", 49900, "inr", "unused", 2, 2, nil, nil, "", "", nil, nil, now))

	payload, sig := signedEvent(t, `{"id":"evt_2","type":"checkout.session.completed","data":{"object":{"id":"cs_test_1"}}}`)
	err := svc.HandleWebhook(context.Background(), payload, sig)
	assert.NoError(t, err, "duplicate deliveries must be acknowledged")
}

func TestHandleWebhook_UnknownSessionIsAnError(t *testing.T) {
	svc, mock := newPaymentFixture(t)

	mock.ExpectExec("UPDATE payment_tokens").
		WithArgs(nil, "cs_forged").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT .+ FROM payment_tokens WHERE payment_id").
		WithArgs("cs_forged").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	payload, sig := signedEvent(t, `{"id":"evt_5","type":"checkout.session.completed","data":{"object":{"id":"cs_forged"}}}`)
	err := svc.HandleWebhook(context.Background(), payload, sig)
	assert.Error(t, err, "sessions with no pending token must not be acknowledged")
}

func TestHandleWebhook_ExpiredSession(t *testing.T) {
	svc, mock := newPaymentFixture(t)

	mock.ExpectExec("UPDATE payment_tokens SET payment_status = 'failed'").
		WithArgs("cs_test_9").
		WillReturnResult(sqlmock.NewResult(0, 1))

	payload, sig := signedEvent(t, `{"id":"evt_3","type":"checkout.session.expired","data":{"object":{"id":"cs_test_9"}}}`)
	err := svc.HandleWebhook(context.Background(), payload, sig)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleWebhook_IgnoresUnknownEvents(t *testing.T) {
	svc, mock := newPaymentFixture(t)

	payload, sig := signedEvent(t, `{"id":"evt_4","type":"invoice.paid","data":{"object":{}}}`)
	err := svc.HandleWebhook(context.Background(), payload, sig)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleWebhook_BadSignature(t *testing.T) {
	svc, _ := newPaymentFixture(t)

	err := svc.HandleWebhook(context.Background(), []byte(`{}`), "t=1,v1=deadbeef")
	assert.Error(t, err)
}

func TestRefund_AlreadyRefundedShortCircuits(t *testing.T) {
	svc, mock := newPaymentFixture(t)

	now := time.Now()
	refundedAt := now.Add(-time.Hour)
	mock.ExpectQuery("SELECT .+ FROM payment_tokens WHERE id").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "template_id", "payment_id", "payment_status", "amount_minor_units", "currency", "status",
			"uses_total", "uses_remaining", "used_at", "last_used_at", "refund_id", "refund_reason", "refunded_at", "expires_at", "created_at",
		}).AddRow(7, 42, 3, "cs_1", "refunded", 49900, "inr", "refunded", 2, 1, nil, nil, "re_1", "", &refundedAt, nil, now))

	_, err := svc.Refund(context.Background(), 7, "again")
	assert.ErrorIs(t, err, repository.ErrAlreadyRefunded, "no provider call happens for a second refund")
}

func TestRefund_UnknownToken(t *testing.T) {
	svc, mock := newPaymentFixture(t)

	mock.ExpectQuery("SELECT .+ FROM payment_tokens WHERE id").
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := svc.Refund(context.Background(), 404, "")
	assert.ErrorIs(t, err, repository.ErrTokenNotFound)
}
