package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPaymentTokenUsable(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-time.Minute)

	base := PaymentToken{
		PaymentStatus: PaymentStatusCompleted,
		Status:        TokenStatusUnused,
		UsesTotal:     2,
		UsesRemaining: 2,
	}

	tests := []struct {
		name   string
		mutate func(*PaymentToken)
		want   bool
	}{
		{"fresh completed token", func(*PaymentToken) {}, true},
		{"one use left", func(t *PaymentToken) { t.UsesRemaining = 1 }, true},
		{"exhausted", func(t *PaymentToken) { t.UsesRemaining = 0; t.Status = TokenStatusUsed }, false},
		{"payment still pending", func(t *PaymentToken) { t.PaymentStatus = PaymentStatusPending }, false},
		{"payment failed", func(t *PaymentToken) { t.PaymentStatus = PaymentStatusFailed }, false},
		{"refunded with balance left", func(t *PaymentToken) {
			t.Status = TokenStatusRefunded
			t.PaymentStatus = PaymentStatusRefunded
		}, false},
		{"marked expired", func(t *PaymentToken) { t.Status = TokenStatusExpired }, false},
		{"expiry in the future", func(t *PaymentToken) { t.ExpiresAt = &future }, true},
		{"expiry passed but status not yet swept", func(t *PaymentToken) { t.ExpiresAt = &past }, false},
		{"expiry exactly now", func(t *PaymentToken) { t.ExpiresAt = &now }, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			token := base
			tc.mutate(&token)
			assert.Equal(t, tc.want, token.Usable(now))
		})
	}
}
