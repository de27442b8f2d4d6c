package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product товар продавца в витрине магазина.
type Product struct {
	ID             uuid.UUID        `db:"id" json:"id"`
	StoreID        uuid.UUID        `db:"store_id" json:"store_id"`
	SellerID       uuid.UUID        `db:"seller_id" json:"seller_id"`
	Name           string           `db:"name" json:"name"`
	Price          decimal.Decimal  `db:"price" json:"price"`
	Stock          int              `db:"stock" json:"stock"`
	CommissionRate *decimal.Decimal `db:"commission_rate" json:"commission_rate,omitempty"`
	Active         bool             `db:"active" json:"active"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}
