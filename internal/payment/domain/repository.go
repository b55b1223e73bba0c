package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertSession(ctx context.Context, db *gorm.DB, session *PaymentSession) error
	FindSession(ctx context.Context, db *gorm.DB, orderID string) (*PaymentSession, error)

	// TransitionStatus moves a pending session to a terminal status. The
	// conditional update is the idempotency gate: under concurrent duplicate
	// webhook deliveries exactly one caller observes true.
	TransitionStatus(ctx context.Context, db *gorm.DB, orderID string, to SessionStatus, completedAt time.Time) (bool, error)

	SetSavedMethod(ctx context.Context, db *gorm.DB, orderID string, methodID snowflake.ID) error

	InsertSavedMethod(ctx context.Context, db *gorm.DB, method *SavedPaymentMethod) error
	ListSavedMethods(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]SavedPaymentMethod, error)
	FindSavedMethod(ctx context.Context, db *gorm.DB, userID snowflake.ID, methodID snowflake.ID) (*SavedPaymentMethod, error)
	DeleteSavedMethod(ctx context.Context, db *gorm.DB, userID snowflake.ID, methodID snowflake.ID) (bool, error)

	InsertWebhookLog(ctx context.Context, db *gorm.DB, entry *WebhookLog) error
}
