package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/fanstage/fanstage/internal/payment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertSession(ctx context.Context, db *gorm.DB, session *domain.PaymentSession) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payment_sessions (
			order_id, user_id, gateway, gateway_payment_id, amount, currency,
			status, type, description, metadata, save_payment_method,
			saved_method_id, confirmation_url, return_url, created_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.OrderID,
		session.UserID,
		session.Gateway,
		session.GatewayPaymentID,
		session.Amount,
		session.Currency,
		session.Status,
		session.Type,
		session.Description,
		session.Metadata,
		session.SavePaymentMethod,
		session.SavedMethodID,
		session.ConfirmationURL,
		session.ReturnURL,
		session.CreatedAt,
		session.CompletedAt,
	).Error
}

func (r *repo) FindSession(ctx context.Context, db *gorm.DB, orderID string) (*domain.PaymentSession, error) {
	var item domain.PaymentSession
	err := db.WithContext(ctx).Raw(
		`SELECT order_id, user_id, gateway, gateway_payment_id, amount, currency,
			status, type, description, metadata, save_payment_method,
			saved_method_id, confirmation_url, return_url, created_at, completed_at
		 FROM payment_sessions
		 WHERE order_id = ?
		 LIMIT 1`,
		orderID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.OrderID == "" {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) TransitionStatus(ctx context.Context, db *gorm.DB, orderID string, to domain.SessionStatus, completedAt time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE payment_sessions
		 SET status = ?, completed_at = ?
		 WHERE order_id = ? AND status = ?`,
		to,
		completedAt,
		orderID,
		domain.SessionStatusPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) SetSavedMethod(ctx context.Context, db *gorm.DB, orderID string, methodID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payment_sessions
		 SET saved_method_id = ?
		 WHERE order_id = ?`,
		methodID,
		orderID,
	).Error
}

func (r *repo) InsertSavedMethod(ctx context.Context, db *gorm.DB, method *domain.SavedPaymentMethod) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO saved_payment_methods (id, user_id, gateway, token, title, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		method.ID,
		method.UserID,
		method.Gateway,
		method.Token,
		method.Title,
		method.CreatedAt,
	).Error
}

func (r *repo) ListSavedMethods(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]domain.SavedPaymentMethod, error) {
	var items []domain.SavedPaymentMethod
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, gateway, token, title, created_at
		 FROM saved_payment_methods
		 WHERE user_id = ?
		 ORDER BY created_at DESC`,
		userID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindSavedMethod(ctx context.Context, db *gorm.DB, userID snowflake.ID, methodID snowflake.ID) (*domain.SavedPaymentMethod, error) {
	var item domain.SavedPaymentMethod
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, gateway, token, title, created_at
		 FROM saved_payment_methods
		 WHERE user_id = ? AND id = ?
		 LIMIT 1`,
		userID,
		methodID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) DeleteSavedMethod(ctx context.Context, db *gorm.DB, userID snowflake.ID, methodID snowflake.ID) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`DELETE FROM saved_payment_methods
		 WHERE user_id = ? AND id = ?`,
		userID,
		methodID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) InsertWebhookLog(ctx context.Context, db *gorm.DB, entry *domain.WebhookLog) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO webhook_logs (id, gateway, order_ref, payload, received_at)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Gateway,
		entry.OrderRef,
		entry.Payload,
		entry.ReceivedAt,
	).Error
}
