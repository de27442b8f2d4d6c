package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order описывает покупку с депозитом, остатком к оплате и escrow.
type Order struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	BuyerID         uuid.UUID       `db:"buyer_id" json:"buyer_id"`
	SellerID        uuid.UUID       `db:"seller_id" json:"seller_id"`
	StoreID         uuid.UUID       `db:"store_id" json:"store_id"`
	ProductID       uuid.UUID       `db:"product_id" json:"product_id"`
	Quantity        int             `db:"quantity" json:"quantity"`
	TotalPrice      decimal.Decimal `db:"total_price" json:"total_price"`
	DepositAmount   decimal.Decimal `db:"deposit_amount" json:"deposit_amount"`
	BalanceDue      decimal.Decimal `db:"balance_due" json:"balance_due"`
	CommissionRate  decimal.Decimal `db:"commission_rate" json:"commission_rate"`
	Status          string          `db:"status" json:"status"`
	Delivered       bool            `db:"delivered" json:"delivered"`
	DeliveryOTP     string          `db:"delivery_otp" json:"-"`
	BalancePaid     bool            `db:"balance_paid" json:"balance_paid"`
	EscrowReleased  bool            `db:"escrow_released" json:"escrow_released"`
	Rating          *int            `db:"rating" json:"rating,omitempty"`
	RatingSubmitted bool            `db:"rating_submitted" json:"rating_submitted"`
	DeliveredAt     *time.Time      `db:"delivered_at" json:"delivered_at,omitempty"`
	ReleasedAt      *time.Time      `db:"released_at" json:"released_at,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// ReadyForRelease сообщает, выполнены ли условия выплаты продавцу.
func (o *Order) ReadyForRelease() bool {
	return o.Delivered && o.BalancePaid && !o.EscrowReleased
}

// IsParticipant проверяет, что пользователь покупатель или продавец заказа.
func (o *Order) IsParticipant(userID uuid.UUID) bool {
	return o.BuyerID == userID || o.SellerID == userID
}

// InstallmentPayment фиксирует оплату остатка по заказу.
type InstallmentPayment struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	OrderID   uuid.UUID       `db:"order_id" json:"order_id"`
	BuyerID   uuid.UUID       `db:"buyer_id" json:"buyer_id"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// EscrowRelease итог выплаты по заказу.
type EscrowRelease struct {
	OrderID      uuid.UUID       `json:"order_id"`
	SellerID     uuid.UUID       `json:"seller_id"`
	SellerAmount decimal.Decimal `json:"seller_amount"`
	Commission   decimal.Decimal `json:"commission"`
	ReleasedAt   time.Time       `json:"released_at"`
}
