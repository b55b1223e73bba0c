package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Service owns every ledger mutation. Only the payment effect path calls the
// write operations, and only for a gated, verified success event.
type Service interface {
	CreditBalance(ctx context.Context, userID snowflake.ID, amount int64, currency string) error
	GetBalance(ctx context.Context, userID snowflake.ID) (*Balance, error)

	AppendTransaction(ctx context.Context, tx *Transaction) error
	ListTransactions(ctx context.Context, userID snowflake.ID, limit int) ([]Transaction, error)

	CreditCoins(ctx context.Context, userID snowflake.ID, coins int64, orderID string) error
	GetCoinBalance(ctx context.Context, userID snowflake.ID) (*CoinBalance, error)

	RecordRevenue(ctx context.Context, record *RevenueRecord) error
}

var (
	ErrInvalidUser   = errors.New("invalid_user")
	ErrInvalidAmount = errors.New("invalid_ledger_amount")
)
