package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v76"
	checkoutsession "github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/refund"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/lumierelabs/prewedding-api/internal/config"
	"github.com/lumierelabs/prewedding-api/internal/models"
	"github.com/lumierelabs/prewedding-api/internal/repository"
)

// ErrFreeTemplate is returned when a checkout targets a template that does
// not need payment.
var ErrFreeTemplate = errors.New("template is free, no purchase needed")

// PaymentService handles Stripe checkout, webhook settlement, and refunds.
// A purchase mints a PaymentToken in pending state with its full use balance
// already stamped; the webhook flips it to completed.
type PaymentService struct {
	cfg       config.Config
	log       *slog.Logger
	tokens    *repository.TokenRepository
	templates *repository.TemplateRepository
}

func NewPaymentService(cfg config.Config, log *slog.Logger, tokens *repository.TokenRepository, templates *repository.TemplateRepository) *PaymentService {
	stripe.Key = cfg.StripeSecretKey
	return &PaymentService{
		cfg:       cfg,
		log:       log,
		tokens:    tokens,
		templates: templates,
	}
}

type CheckoutResult struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
	TokenID     int64  `json:"token_id"`
}

// Checkout creates a Stripe checkout session for one template purchase and
// records the pending token keyed by the session id.
func (s *PaymentService) Checkout(ctx context.Context, user *models.User, templateID int64) (*CheckoutResult, error) {
	template, err := s.templates.GetByID(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if template == nil || !template.IsActive {
		return nil, ErrTemplateNotFound
	}
	if template.IsFree {
		return nil, ErrFreeTemplate
	}

	currency := template.Currency
	if currency == "" {
		currency = s.cfg.PaymentCurrency
	}

	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:    stripe.String(s.cfg.CheckoutSuccessURL),
		CancelURL:     stripe.String(s.cfg.CheckoutCancelURL),
		CustomerEmail: stripe.String(user.Email),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(currency),
					UnitAmount: stripe.Int64(int64(template.PriceMinor)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("%s (%d generations)", template.Name, s.cfg.TokenUsesPerPurchase)),
					},
				},
			},
		},
	}
	params.AddMetadata("user_id", strconv.FormatInt(user.ID, 10))
	params.AddMetadata("template_id", strconv.FormatInt(template.ID, 10))

	session, err := checkoutsession.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	token := &models.PaymentToken{
		UserID:        user.ID,
		TemplateID:    template.ID,
		PaymentID:     session.ID,
		PaymentStatus: models.PaymentStatusPending,
		AmountMinor:   template.PriceMinor,
		Currency:      currency,
		Status:        models.TokenStatusUnused,
		UsesTotal:     s.cfg.TokenUsesPerPurchase,
		UsesRemaining: s.cfg.TokenUsesPerPurchase,
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return nil, fmt.Errorf("record pending token: %w", err)
	}

	return &CheckoutResult{
		SessionID:   session.ID,
		CheckoutURL: session.URL,
		TokenID:     token.ID,
	}, nil
}

// HandleWebhook verifies the Stripe signature and settles the referenced
// token. Completion activates the use balance stamped at checkout and, when
// a validity window is configured, sets the expiry timestamp.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.cfg.StripeWebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return fmt.Errorf("verify webhook signature: %w", err)
	}

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return fmt.Errorf("parse checkout session: %w", err)
		}

		var expiresAt *time.Time
		if s.cfg.TokenValidityDays > 0 {
			t := time.Now().UTC().AddDate(0, 0, s.cfg.TokenValidityDays)
			expiresAt = &t
		}
		if err := s.tokens.Complete(ctx, session.ID, expiresAt); err != nil {
			if errors.Is(err, repository.ErrTokenNotFound) {
				// Either a retry delivery after settlement or a session we
				// never issued. Only the former is safe to acknowledge.
				existing, lookupErr := s.tokens.GetByPaymentID(ctx, session.ID)
				if lookupErr != nil {
					return lookupErr
				}
				if existing != nil && existing.PaymentStatus == models.PaymentStatusCompleted {
					s.log.Info("webhook for already settled session", "session_id", session.ID)
					return nil
				}
				return fmt.Errorf("complete token: %w", err)
			}
			return fmt.Errorf("complete token: %w", err)
		}
		s.log.Info("payment completed", "session_id", session.ID)
		return nil

	case "checkout.session.expired":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return fmt.Errorf("parse checkout session: %w", err)
		}
		if err := s.tokens.MarkFailed(ctx, session.ID); err != nil {
			return fmt.Errorf("mark token failed: %w", err)
		}
		s.log.Info("checkout expired", "session_id", session.ID)
		return nil

	default:
		s.log.Debug("ignoring webhook event", "type", event.Type)
		return nil
	}
}

// ListTokens returns the user's purchase history for one template, oldest
// first, in the same order the ledger charges them.
func (s *PaymentService) ListTokens(ctx context.Context, userID, templateID int64) ([]models.PaymentToken, error) {
	return s.tokens.ListByUserTemplate(ctx, userID, templateID)
}

// Refund reverses the charge with Stripe and terminates the token. Remaining
// uses are forfeited; double refunds surface repository.ErrAlreadyRefunded.
func (s *PaymentService) Refund(ctx context.Context, tokenID int64, reason string) (*models.PaymentToken, error) {
	token, err := s.tokens.GetByID(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, repository.ErrTokenNotFound
	}
	if token.Status == models.TokenStatusRefunded {
		return nil, repository.ErrAlreadyRefunded
	}

	session, err := checkoutsession.Get(token.PaymentID, nil)
	if err != nil {
		return nil, fmt.Errorf("retrieve checkout session: %w", err)
	}
	if session.PaymentIntent == nil {
		return nil, fmt.Errorf("checkout session %s has no payment intent", token.PaymentID)
	}

	ref, err := refund.New(&stripe.RefundParams{
		PaymentIntent: stripe.String(session.PaymentIntent.ID),
	})
	if err != nil {
		return nil, fmt.Errorf("create refund: %w", err)
	}

	if err := s.tokens.Refund(ctx, tokenID, ref.ID, reason); err != nil {
		return nil, err
	}
	s.log.Info("token refunded", "token_id", tokenID, "refund_id", ref.ID)

	return s.tokens.GetByID(ctx, tokenID)
}
