package domain

import (
	"context"
	"net/http"

	"github.com/bwmarrin/snowflake"
)

const (
	GatewayYooKassa = "yookassa"
	GatewayTinkoff  = "tinkoff"
)

const (
	EventSucceeded = "succeeded"
	EventCanceled  = "canceled"
	EventRefunded  = "refunded"
)

// CreatePaymentRequest describes one hosted checkout to open at the gateway.
type CreatePaymentRequest struct {
	OrderID           string
	UserID            snowflake.ID
	Amount            int64
	Currency          string
	Description       string
	ReturnURL         string
	Metadata          map[string]string
	SavePaymentMethod bool
}

type CreatePaymentResult struct {
	GatewayPaymentID string
	ConfirmationURL  string
}

// RecurringChargeRequest charges a previously saved method token with the
// payer off-session.
type RecurringChargeRequest struct {
	OrderID     string
	UserID      snowflake.ID
	Amount      int64
	Currency    string
	Description string
	MethodToken string
}

// WebhookEvent is the normalized result of a verified gateway callback.
type WebhookEvent struct {
	OrderID          string
	Event            string
	GatewayPaymentID string
	Amount           int64
	// Reusable token returned by the gateway when the payer consented to
	// saving the method, empty otherwise.
	MethodToken string
	MethodTitle string
}

// GatewayAdapter maps the uniform payment contract onto one gateway's wire
// protocol and authenticity scheme.
type GatewayAdapter interface {
	Gateway() string

	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResult, error)

	// VerifyWebhook authenticates a callback and normalizes it. Forged or
	// unparseable payloads and events the core does not act on come back as
	// ErrVerificationFailed / ErrEventIgnored; neither is an operational
	// error.
	VerifyWebhook(ctx context.Context, payload []byte, headers http.Header) (*WebhookEvent, error)

	// OrderRef extracts the gateway's own order reference from an unverified
	// payload, for diagnostics only.
	OrderRef(payload []byte) string

	ChargeRecurring(ctx context.Context, req RecurringChargeRequest) (*CreatePaymentResult, error)
}
