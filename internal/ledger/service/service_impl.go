package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/fanstage/fanstage/internal/ledger/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func NewService(p Params) *Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("ledger.service"),
		genID: p.GenID,
	}
}

func (s *Service) CreditBalance(ctx context.Context, userID snowflake.ID, amount int64, currency string) error {
	if userID == 0 {
		return ledgerdomain.ErrInvalidUser
	}
	if amount <= 0 {
		return ledgerdomain.ErrInvalidAmount
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))

	now := time.Now().UTC()
	return s.db.WithContext(ctx).Exec(
		`INSERT INTO balances (user_id, available, pending, total, currency, updated_at)
		 VALUES (?, ?, 0, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
			available = balances.available + excluded.available,
			total = balances.total + excluded.total,
			updated_at = excluded.updated_at`,
		userID,
		amount,
		amount,
		currency,
		now,
	).Error
}

func (s *Service) GetBalance(ctx context.Context, userID snowflake.ID) (*ledgerdomain.Balance, error) {
	var balance ledgerdomain.Balance
	err := s.db.WithContext(ctx).Raw(
		`SELECT user_id, available, pending, total, currency, updated_at
		 FROM balances
		 WHERE user_id = ?
		 LIMIT 1`,
		userID,
	).Scan(&balance).Error
	if err != nil {
		return nil, err
	}
	if balance.UserID == 0 {
		return &ledgerdomain.Balance{UserID: userID}, nil
	}
	return &balance, nil
}

func (s *Service) AppendTransaction(ctx context.Context, tx *ledgerdomain.Transaction) error {
	if tx == nil || tx.UserID == 0 {
		return ledgerdomain.ErrInvalidUser
	}
	if tx.ID == 0 {
		tx.ID = s.genID.Generate()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Exec(
		`INSERT INTO transactions (id, user_id, order_id, kind, amount, currency, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID,
		tx.UserID,
		tx.OrderID,
		tx.Kind,
		tx.Amount,
		tx.Currency,
		tx.Description,
		tx.CreatedAt,
	).Error
}

func (s *Service) ListTransactions(ctx context.Context, userID snowflake.ID, limit int) ([]ledgerdomain.Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var items []ledgerdomain.Transaction
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, user_id, order_id, kind, amount, currency, description, created_at
		 FROM transactions
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		userID,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Service) CreditCoins(ctx context.Context, userID snowflake.ID, coins int64, orderID string) error {
	if userID == 0 {
		return ledgerdomain.ErrInvalidUser
	}
	if coins <= 0 {
		return ledgerdomain.ErrInvalidAmount
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Exec(
		`INSERT INTO coin_balances (user_id, coins, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
			coins = coin_balances.coins + excluded.coins,
			updated_at = excluded.updated_at`,
		userID,
		coins,
		now,
	).Error; err != nil {
		return err
	}

	return s.db.WithContext(ctx).Exec(
		`INSERT INTO coin_transactions (id, user_id, order_id, kind, coins, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.genID.Generate(),
		userID,
		orderID,
		ledgerdomain.CoinTransactionKindPurchase,
		coins,
		now,
	).Error
}

func (s *Service) GetCoinBalance(ctx context.Context, userID snowflake.ID) (*ledgerdomain.CoinBalance, error) {
	var balance ledgerdomain.CoinBalance
	err := s.db.WithContext(ctx).Raw(
		`SELECT user_id, coins, updated_at
		 FROM coin_balances
		 WHERE user_id = ?
		 LIMIT 1`,
		userID,
	).Scan(&balance).Error
	if err != nil {
		return nil, err
	}
	if balance.UserID == 0 {
		return &ledgerdomain.CoinBalance{UserID: userID}, nil
	}
	return &balance, nil
}

func (s *Service) RecordRevenue(ctx context.Context, record *ledgerdomain.RevenueRecord) error {
	if record == nil || record.OrderID == "" {
		return ledgerdomain.ErrInvalidAmount
	}
	if record.ID == 0 {
		record.ID = s.genID.Generate()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	// One revenue row per order; a replayed effect is a no-op.
	return s.db.WithContext(ctx).Exec(
		`INSERT INTO revenue_records (id, order_id, session_type, gross, rate, fee, payout, currency, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (order_id) DO NOTHING`,
		record.ID,
		record.OrderID,
		record.SessionType,
		record.Gross,
		record.Rate,
		record.Fee,
		record.Payout,
		record.Currency,
		record.CreatedAt,
	).Error
}
