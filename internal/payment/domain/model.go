package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "pending"
	SessionStatusSucceeded SessionStatus = "succeeded"
	SessionStatusCanceled  SessionStatus = "canceled"
	SessionStatusRefunded  SessionStatus = "refunded"
)

type SessionType string

const (
	SessionTypePurchase     SessionType = "purchase"
	SessionTypeSubscription SessionType = "subscription"
	SessionTypeDonation     SessionType = "donation"
	SessionTypeTopup        SessionType = "topup"
)

func ValidSessionType(t SessionType) bool {
	switch t {
	case SessionTypePurchase, SessionTypeSubscription, SessionTypeDonation, SessionTypeTopup:
		return true
	}
	return false
}

// PaymentSession is the merchant-side record of one checkout attempt.
// A session is created pending and transitioned exactly once by a verified
// webhook event; it is never deleted.
type PaymentSession struct {
	OrderID           string            `json:"order_id" gorm:"primaryKey;type:text"`
	UserID            snowflake.ID      `json:"user_id" gorm:"not null;index"`
	Gateway           string            `json:"gateway" gorm:"type:text;not null"`
	GatewayPaymentID  string            `json:"gateway_payment_id" gorm:"type:text;not null;index"`
	Amount            int64             `json:"amount" gorm:"not null"`
	Currency          string            `json:"currency" gorm:"type:text;not null"`
	Status            SessionStatus     `json:"status" gorm:"type:text;not null"`
	Type              SessionType       `json:"type" gorm:"type:text;not null"`
	Description       string            `json:"description" gorm:"type:text"`
	Metadata          datatypes.JSONMap `json:"metadata" gorm:"type:jsonb"`
	SavePaymentMethod bool              `json:"save_payment_method" gorm:"not null;default:false"`
	SavedMethodID     *snowflake.ID     `json:"saved_method_id"`
	ConfirmationURL   string            `json:"confirmation_url" gorm:"type:text"`
	ReturnURL         string            `json:"return_url" gorm:"type:text;not null"`
	CreatedAt         time.Time         `json:"created_at" gorm:"not null"`
	CompletedAt       *time.Time        `json:"completed_at"`
}

func (PaymentSession) TableName() string { return "payment_sessions" }

// MetadataValue reads a string value from session metadata.
func (s *PaymentSession) MetadataValue(key string) string {
	if s == nil || s.Metadata == nil {
		return ""
	}
	value, ok := s.Metadata[key]
	if !ok {
		return ""
	}
	str, ok := value.(string)
	if !ok {
		return ""
	}
	return str
}

// SavedPaymentMethod is a reusable gateway token persisted as a side effect
// of a succeeded session that requested it.
type SavedPaymentMethod struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID    snowflake.ID `json:"user_id" gorm:"not null;index"`
	Gateway   string       `json:"gateway" gorm:"type:text;not null"`
	Token     string       `json:"-" gorm:"type:text;not null"`
	Title     string       `json:"title" gorm:"type:text"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
}

func (SavedPaymentMethod) TableName() string { return "saved_payment_methods" }

// WebhookLog keeps raw webhook payloads for diagnostics. Append-only and
// best-effort; never consulted for correctness decisions.
type WebhookLog struct {
	ID         snowflake.ID   `json:"id" gorm:"primaryKey"`
	Gateway    string         `json:"gateway" gorm:"type:text;not null"`
	OrderRef   string         `json:"order_ref" gorm:"type:text;not null;index"`
	Payload    datatypes.JSON `json:"payload" gorm:"type:jsonb"`
	ReceivedAt time.Time      `json:"received_at" gorm:"not null"`
}

func (WebhookLog) TableName() string { return "webhook_logs" }
