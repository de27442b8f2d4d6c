package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Subscription платная подписка, оплаченная с кошелька.
type Subscription struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	PlanName  string          `db:"plan_name" json:"plan_name"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	StartsAt  time.Time       `db:"starts_at" json:"starts_at"`
	ExpiresAt time.Time       `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
