package service

import (
	"context"
	"errors"
	"time"

	"github.com/lumierelabs/prewedding-api/internal/models"
	"github.com/lumierelabs/prewedding-api/internal/repository"
)

// ErrNoEntitlement is returned when a user has no way to pay for a
// generation. It is user-visible and raised before any paid work begins.
var ErrNoEntitlement = errors.New("no entitlement for this template, purchase required")

// Decision is the outcome of an entitlement check. Token is set only when
// Source is SourcePaidToken.
type Decision struct {
	Allowed bool
	Source  models.EntitlementSource
	Token   *models.PaymentToken
}

// EntitlementService decides whether a user may generate against a template
// and which entitlement source would be charged. Checks are side-effect-free:
// nothing is debited until the generation commits.
type EntitlementService struct {
	tokens *repository.TokenRepository
	now    func() time.Time
}

func NewEntitlementService(tokens *repository.TokenRepository) *EntitlementService {
	return &EntitlementService{tokens: tokens, now: time.Now}
}

// CanGenerate evaluates the entitlement of user against template.
//
// Free templates are always allowed, unconditionally: the legacy
// free_credits_remaining counter on the user is historical display data and
// is deliberately never consulted here. Paid templates charge the first
// usable token by ascending id.
func (s *EntitlementService) CanGenerate(ctx context.Context, user *models.User, template *models.Template) (*Decision, error) {
	if template.IsFree {
		return &Decision{Allowed: true, Source: models.SourceFree}, nil
	}

	token, err := s.tokens.FirstUsable(ctx, user.ID, template.ID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if token == nil {
		return &Decision{Allowed: false, Source: models.SourceDenied}, nil
	}
	return &Decision{Allowed: true, Source: models.SourcePaidToken, Token: token}, nil
}

// Usage reports aggregate purchased/remaining uses across all completed
// tokens the user holds for the template.
func (s *EntitlementService) Usage(ctx context.Context, userID, templateID int64) (*repository.UsageSummary, error) {
	return s.tokens.Usage(ctx, userID, templateID)
}
