package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/omnimarket-backend/internal/models"
	"github.com/ignatzorin/omnimarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/omnimarket-backend/internal/repository/common"
)

type ProductRepository struct {
	db *sqlx.DB
}

func NewProductRepository(db *sqlx.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create сохраняет товар продавца.
func (r *ProductRepository) Create(ctx context.Context, product *models.Product) error {
	err := common.Conn(ctx, r.db).GetContext(ctx, product, `
		INSERT INTO products (store_id, seller_id, name, price, stock, commission_rate, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, store_id, seller_id, name, price, stock, commission_rate, active, created_at, updated_at
	`, product.StoreID, product.SellerID, product.Name, product.Price, product.Stock, product.CommissionRate, product.Active)
	if err != nil {
		return fmt.Errorf("product repository: create %w", err)
	}
	return nil
}

// GetByID возвращает товар по ID.
func (r *ProductRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return common.GetByID[models.Product](ctx, common.Conn(ctx, r.db), "products", id, apperror.ErrProductNotFound)
}

// ListBySeller возвращает товары продавца.
func (r *ProductRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]models.Product, error) {
	products := []models.Product{}
	err := common.Conn(ctx, r.db).SelectContext(ctx, &products, `
		SELECT id, store_id, seller_id, name, price, stock, commission_rate, active, created_at, updated_at
		FROM products WHERE seller_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, sellerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("product repository: list by seller %w", err)
	}
	return products, nil
}

// ReserveStock уменьшает остаток, если товара хватает. Возвращает false, если резерв невозможен.
func (r *ProductRepository) ReserveStock(ctx context.Context, id uuid.UUID, quantity int) (bool, error) {
	res, err := common.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND active AND stock >= $2
	`, id, quantity)
	if err != nil {
		return false, fmt.Errorf("product repository: reserve stock %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("product repository: reserve stock %w", err)
	}
	return affected == 1, nil
}
