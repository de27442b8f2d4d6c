package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/omnimarket-backend/internal/models"
	"github.com/ignatzorin/omnimarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/omnimarket-backend/internal/repository/common"
)

const orderColumns = `id, buyer_id, seller_id, store_id, product_id, quantity, total_price, deposit_amount,
	balance_due, commission_rate, status, delivered, delivery_otp, balance_paid, escrow_released,
	rating, rating_submitted, delivered_at, released_at, created_at, updated_at`

// OrderRepository отвечает за хранение заказов и платежей по ним.
type OrderRepository struct {
	db *sqlx.DB
}

func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create сохраняет новый заказ.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}

	err := common.Conn(ctx, r.db).GetContext(ctx, order, `
		INSERT INTO orders (id, buyer_id, seller_id, store_id, product_id, quantity, total_price, deposit_amount,
			balance_due, commission_rate, status, delivered, delivery_otp, balance_paid, escrow_released)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING `+orderColumns,
		order.ID, order.BuyerID, order.SellerID, order.StoreID, order.ProductID, order.Quantity,
		order.TotalPrice, order.DepositAmount, order.BalanceDue, order.CommissionRate, order.Status,
		order.Delivered, order.DeliveryOTP, order.BalancePaid, order.EscrowReleased,
	)
	if err != nil {
		return fmt.Errorf("order repository: create %w", err)
	}
	return nil
}

// GetByID возвращает заказ по ID.
func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return common.GetByID[models.Order](ctx, common.Conn(ctx, r.db), "orders", id, apperror.ErrOrderNotFound)
}

// GetForUpdate блокирует строку заказа до конца транзакции.
func (r *OrderRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := common.Conn(ctx, r.db).GetContext(ctx, &order,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrOrderNotFound
		}
		return nil, fmt.Errorf("order repository: get for update %w", err)
	}
	return &order, nil
}

// UpdateProgress сохраняет статус доставки и оплаты.
// Денежные поля не меняются, кроме balance_due, который может только уменьшаться.
func (r *OrderRepository) UpdateProgress(ctx context.Context, order *models.Order) error {
	res, err := common.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE orders
		SET status = $2, delivered = $3, delivered_at = $4, balance_due = $5, balance_paid = $6, updated_at = NOW()
		WHERE id = $1 AND balance_due >= $5 AND NOT escrow_released
	`, order.ID, order.Status, order.Delivered, order.DeliveredAt, order.BalanceDue, order.BalancePaid)
	if err != nil {
		return fmt.Errorf("order repository: update progress %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("order repository: update progress %w", err)
	}
	if affected == 0 {
		return apperror.New(apperror.ErrCodeConflict, "заказ изменён другим запросом")
	}
	return nil
}

// MarkEscrowReleased переводит заказ в завершённое состояние, только если выплата ещё не выполнялась
// и выполнены условия доставки и оплаты. Возвращает false, если условие не сработало.
func (r *OrderRepository) MarkEscrowReleased(ctx context.Context, id uuid.UUID, releasedAt time.Time) (bool, error) {
	res, err := common.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE orders
		SET escrow_released = TRUE, status = $2, released_at = $3, updated_at = NOW()
		WHERE id = $1 AND delivered AND balance_paid AND NOT escrow_released
	`, id, models.OrderStatusCompleted, releasedAt)
	if err != nil {
		return false, fmt.Errorf("order repository: mark escrow released %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("order repository: mark escrow released %w", err)
	}
	return affected == 1, nil
}

// SetRating записывает оценку покупателя.
func (r *OrderRepository) SetRating(ctx context.Context, id uuid.UUID, rating int) error {
	res, err := common.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE orders SET rating = $2, rating_submitted = TRUE, updated_at = NOW()
		WHERE id = $1 AND NOT rating_submitted
	`, id, rating)
	if err != nil {
		return fmt.Errorf("order repository: set rating %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("order repository: set rating %w", err)
	}
	if affected == 0 {
		return apperror.ErrAlreadyRated
	}
	return nil
}

// ListByBuyer возвращает заказы покупателя.
func (r *OrderRepository) ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit, offset int) ([]models.Order, error) {
	return r.listBy(ctx, "buyer_id", buyerID, limit, offset)
}

// ListBySeller возвращает заказы продавца.
func (r *OrderRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]models.Order, error) {
	return r.listBy(ctx, "seller_id", sellerID, limit, offset)
}

func (r *OrderRepository) listBy(ctx context.Context, field string, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	orders := []models.Order{}
	query := `SELECT ` + orderColumns + ` FROM orders WHERE ` + field + ` = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	if err := common.Conn(ctx, r.db).SelectContext(ctx, &orders, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("order repository: list by %s %w", field, err)
	}
	return orders, nil
}

// ListReadyForRelease возвращает заказы, по которым выплата продавцу ещё не выполнена.
func (r *OrderRepository) ListReadyForRelease(ctx context.Context, limit int) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	err := common.Conn(ctx, r.db).SelectContext(ctx, &ids, `
		SELECT id FROM orders
		WHERE delivered AND balance_paid AND NOT escrow_released
		ORDER BY updated_at ASC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("order repository: list ready for release %w", err)
	}
	return ids, nil
}

// CreateInstallmentPayment фиксирует оплату остатка.
func (r *OrderRepository) CreateInstallmentPayment(ctx context.Context, payment *models.InstallmentPayment) error {
	err := common.Conn(ctx, r.db).GetContext(ctx, payment, `
		INSERT INTO installment_payments (order_id, buyer_id, amount)
		VALUES ($1, $2, $3)
		RETURNING id, order_id, buyer_id, amount, created_at
	`, payment.OrderID, payment.BuyerID, payment.Amount)
	if err != nil {
		return fmt.Errorf("order repository: create installment payment %w", err)
	}
	return nil
}

// ListInstallmentPayments возвращает платежи по заказу.
func (r *OrderRepository) ListInstallmentPayments(ctx context.Context, orderID uuid.UUID) ([]models.InstallmentPayment, error) {
	payments := []models.InstallmentPayment{}
	err := common.Conn(ctx, r.db).SelectContext(ctx, &payments, `
		SELECT id, order_id, buyer_id, amount, created_at
		FROM installment_payments WHERE order_id = $1 ORDER BY created_at ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("order repository: list installment payments %w", err)
	}
	return payments, nil
}
