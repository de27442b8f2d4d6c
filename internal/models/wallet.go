package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Типы операций по кошельку
const (
	WalletTxTopUp             = "top_up"
	WalletTxDepositDebit      = "deposit_debit"
	WalletTxBalanceDebit      = "balance_debit"
	WalletTxEscrowCredit      = "escrow_credit"
	WalletTxCommissionCredit  = "commission_credit"
	WalletTxSubscriptionDebit = "subscription_debit"
)

// Wallet представляет баланс пользователя.
type Wallet struct {
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// WalletTransaction запись журнала движения средств. Amount со знаком.
type WalletTransaction struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	UserID       uuid.UUID       `db:"user_id" json:"user_id"`
	OrderID      *uuid.UUID      `db:"order_id" json:"order_id,omitempty"`
	Type         string          `db:"type" json:"type"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	BalanceAfter decimal.Decimal `db:"balance_after" json:"balance_after"`
	Reason       string          `db:"reason" json:"reason"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// LedgerEntry описывает причину изменения баланса.
type LedgerEntry struct {
	Type    string
	Reason  string
	OrderID *uuid.UUID
}
