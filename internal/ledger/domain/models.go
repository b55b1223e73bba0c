package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Balance is a per-user running total of funds received through the platform.
type Balance struct {
	UserID    snowflake.ID `json:"user_id" gorm:"primaryKey"`
	Available int64        `json:"available" gorm:"not null;default:0"`
	Pending   int64        `json:"pending" gorm:"not null;default:0"`
	Total     int64        `json:"total" gorm:"not null;default:0"`
	Currency  string       `json:"currency" gorm:"type:text;not null"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null"`
}

func (Balance) TableName() string { return "balances" }

type TransactionKind string

const (
	TransactionKindPurchase     TransactionKind = "purchase"
	TransactionKindSubscription TransactionKind = "subscription"
	TransactionKindDonation     TransactionKind = "donation"
	TransactionKindTopup        TransactionKind = "topup"
	TransactionKindRefund       TransactionKind = "refund"
)

// Transaction is one immutable row of the per-user transaction log.
type Transaction struct {
	ID          snowflake.ID    `json:"id" gorm:"primaryKey"`
	UserID      snowflake.ID    `json:"user_id" gorm:"not null;index"`
	OrderID     string          `json:"order_id" gorm:"type:text;not null;index"`
	Kind        TransactionKind `json:"kind" gorm:"type:text;not null"`
	Amount      int64           `json:"amount" gorm:"not null"`
	Currency    string          `json:"currency" gorm:"type:text;not null"`
	Description string          `json:"description" gorm:"type:text"`
	CreatedAt   time.Time       `json:"created_at" gorm:"not null"`
}

func (Transaction) TableName() string { return "transactions" }

// CoinBalance tracks the platform's internal coin currency per user.
type CoinBalance struct {
	UserID    snowflake.ID `json:"user_id" gorm:"primaryKey"`
	Coins     int64        `json:"coins" gorm:"not null;default:0"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null"`
}

func (CoinBalance) TableName() string { return "coin_balances" }

type CoinTransaction struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID    snowflake.ID `json:"user_id" gorm:"not null;index"`
	OrderID   string       `json:"order_id" gorm:"type:text;not null"`
	Kind      string       `json:"kind" gorm:"type:text;not null"`
	Coins     int64        `json:"coins" gorm:"not null"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
}

func (CoinTransaction) TableName() string { return "coin_transactions" }

const CoinTransactionKindPurchase = "purchase"

// RevenueRecord captures the platform's cut of one settled session.
// Payout is what the counterparty keeps: gross minus the commission fee.
type RevenueRecord struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	OrderID     string       `json:"order_id" gorm:"type:text;not null;uniqueIndex"`
	SessionType string       `json:"session_type" gorm:"type:text;not null"`
	Gross       int64        `json:"gross" gorm:"not null"`
	Rate        float64      `json:"rate" gorm:"not null"`
	Fee         int64        `json:"fee" gorm:"not null"`
	Payout      int64        `json:"payout" gorm:"not null"`
	Currency    string       `json:"currency" gorm:"type:text;not null"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null"`
}

func (RevenueRecord) TableName() string { return "revenue_records" }
