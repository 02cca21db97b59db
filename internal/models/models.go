package models

import "time"

type AuthProvider string

const (
	AuthProviderEmail  AuthProvider = "email"
	AuthProviderGoogle AuthProvider = "google"
)

type TokenStatus string

const (
	TokenStatusUnused   TokenStatus = "unused"
	TokenStatusUsed     TokenStatus = "used"
	TokenStatusRefunded TokenStatus = "refunded"
	TokenStatusExpired  TokenStatus = "expired"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// EntitlementSource says what paid (or didn't pay) for a generation.
type EntitlementSource string

const (
	SourceFree      EntitlementSource = "free"
	SourcePaidToken EntitlementSource = "paid_token"
	SourceDenied    EntitlementSource = "denied"
)

type User struct {
	ID             int64        `json:"id"`
	Email          string       `json:"email"`
	FullName       string       `json:"full_name"`
	HashedPassword string       `json:"-"`
	AuthProvider   AuthProvider `json:"auth_provider"`
	GoogleID       string       `json:"-"`
	ProfilePicture string       `json:"profile_picture,omitempty"`
	IsActive       bool         `json:"is_active"`
	IsAdmin        bool         `json:"is_admin"`
	IsVerified     bool         `json:"is_verified"`

	// FreeCreditsRemaining is a legacy counter kept for historical display
	// only. Free-template generation never reads or decrements it.
	FreeCreditsRemaining int `json:"free_credits_remaining"`

	IsSubscribed       bool       `json:"is_subscribed"`
	SubscriptionExpiry *time.Time `json:"subscription_expiry,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Template struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	PreviewURL  string    `json:"preview_url,omitempty"`
	Prompt      string    `json:"-"`
	IsFree      bool      `json:"is_free"`
	IsActive    bool      `json:"is_active"`
	PriceMinor  int       `json:"price_minor_units"`
	Currency    string    `json:"currency"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PaymentToken is a purchased entitlement to a fixed number of generations
// against one template.
type PaymentToken struct {
	ID            int64         `json:"id"`
	UserID        int64         `json:"user_id"`
	TemplateID    int64         `json:"template_id"`
	PaymentID     string        `json:"payment_id"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	AmountMinor   int           `json:"amount_minor_units"`
	Currency      string        `json:"currency"`
	Status        TokenStatus   `json:"status"`

	UsesTotal     int `json:"uses_total"`
	UsesRemaining int `json:"uses_remaining"`

	UsedAt       *time.Time `json:"used_at,omitempty"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
	RefundID     string     `json:"refund_id,omitempty"`
	RefundReason string     `json:"refund_reason,omitempty"`
	RefundedAt   *time.Time `json:"refunded_at,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Usable reports whether the token can pay for a generation right now.
// Expiry is evaluated against the clock, not the stored status; refunded
// and used are sticky terminal markers.
func (t *PaymentToken) Usable(now time.Time) bool {
	if t.PaymentStatus != PaymentStatusCompleted {
		return false
	}
	if t.Status == TokenStatusRefunded || t.Status == TokenStatusExpired {
		return false
	}
	if t.ExpiresAt != nil && !t.ExpiresAt.After(now) {
		return false
	}
	return t.UsesRemaining > 0
}

type Generation struct {
	ID         int64             `json:"id"`
	UserID     int64             `json:"user_id"`
	TemplateID int64             `json:"template_id"`
	TokenID    *int64            `json:"token_id,omitempty"` // nil for free-template generations
	Source     EntitlementSource `json:"source"`
	Prompt     string            `json:"-"`
	ImageURL   string            `json:"image_url"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Contact is an inquiry submitted from the public landing page. It shares
// no state with the entitlement ledger.
type Contact struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	EventDate   string    `json:"event_date,omitempty"`
	Message     string    `json:"message"`
	IsRead      bool      `json:"is_read"`
	IsResponded bool      `json:"is_responded"`
	AdminNotes  string    `json:"admin_notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
