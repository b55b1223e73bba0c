package domain

import (
	"context"
	"errors"
	"net/http"

	"github.com/bwmarrin/snowflake"
)

// CreateSessionRequest is the validated input of the checkout flow. Amount is
// a decimal major-unit string as received from the caller.
type CreateSessionRequest struct {
	UserID            snowflake.ID
	Gateway           string
	Amount            string
	Currency          string
	Description       string
	Type              SessionType
	ReturnURL         string
	Metadata          map[string]string
	SavePaymentMethod bool
}

type CreateSessionResult struct {
	OrderID         string
	Gateway         string
	ConfirmationURL string
	Status          SessionStatus
}

type RecurringRequest struct {
	UserID      snowflake.ID
	MethodID    snowflake.ID
	Amount      string
	Currency    string
	Type        SessionType
	Description string
	Metadata    map[string]string
}

// Service is the checkout orchestrator.
type Service interface {
	CreateSession(ctx context.Context, req CreateSessionRequest) (*CreateSessionResult, error)
	// GetSession is a pure read of the last persisted projection. It never
	// re-queries the gateway: the webhook path is the single source of truth.
	GetSession(ctx context.Context, orderID string) (*PaymentSession, error)
	ChargeSavedMethod(ctx context.Context, req RecurringRequest) (*CreateSessionResult, error)
	ListSavedMethods(ctx context.Context, userID snowflake.ID) ([]SavedPaymentMethod, error)
	DeleteSavedMethod(ctx context.Context, userID snowflake.ID, methodID snowflake.ID) error
}

// WebhookService authenticates inbound gateway callbacks and routes their
// financial effects.
type WebhookService interface {
	Ingest(ctx context.Context, gateway string, payload []byte, headers http.Header) error
}

var (
	ErrUnsupportedGateway = errors.New("unsupported_gateway")
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrUnsupportedType    = errors.New("unsupported_session_type")
	ErrMissingReturnURL   = errors.New("missing_return_url")
	ErrSessionNotFound    = errors.New("session_not_found")
	ErrMethodNotFound     = errors.New("payment_method_not_found")

	// ErrGatewayUnavailable marks a transient communication failure with the
	// gateway; the originating action is safe to retry.
	ErrGatewayUnavailable = errors.New("gateway_unavailable")

	// ErrVerificationFailed means a webhook failed its authenticity check.
	// Forged callbacks are expected background noise, not errors.
	ErrVerificationFailed = errors.New("verification_failed")
	ErrEventIgnored       = errors.New("event_ignored")
	ErrAlreadyProcessed   = errors.New("event_already_processed")

	// ErrInvalidConfig marks missing gateway credentials. Fatal, never retried.
	ErrInvalidConfig = errors.New("invalid_gateway_config")
)
