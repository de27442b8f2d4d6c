package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/omnimarket-backend/internal/domain/valueobject"
	"github.com/ignatzorin/omnimarket-backend/internal/models"
	"github.com/ignatzorin/omnimarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/omnimarket-backend/internal/validation"
)

type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]models.Product, error)
	ReserveStock(ctx context.Context, id uuid.UUID, quantity int) (bool, error)
}

const productCacheTTL = 30 * time.Second

type ProductService struct {
	repo  ProductRepository
	cache *CacheService
}

// NewProductService создаёт сервис каталога. cache может быть nil.
func NewProductService(repo ProductRepository, cache *CacheService) *ProductService {
	return &ProductService{repo: repo, cache: cache}
}

// CreateProductInput поля нового товара.
type CreateProductInput struct {
	StoreID        uuid.UUID
	Name           string
	Price          decimal.Decimal
	Stock          int
	CommissionRate *decimal.Decimal
}

// CreateProduct добавляет товар в витрину продавца.
func (s *ProductService) CreateProduct(ctx context.Context, sellerID uuid.UUID, in CreateProductInput) (*models.Product, error) {
	if err := validation.ValidateProductName(in.Name); err != nil {
		return nil, invalidInput(err)
	}
	name := strings.TrimSpace(in.Name)
	if err := valueobject.ValidatePositiveAmount(in.Price); err != nil {
		return nil, err
	}
	if in.Stock < 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "остаток не может быть отрицательным")
	}
	if in.CommissionRate != nil {
		if err := valueobject.ValidateCommissionRate(*in.CommissionRate); err != nil {
			return nil, err
		}
	}

	storeID := in.StoreID
	if storeID == uuid.Nil {
		// Магазин по умолчанию совпадает с продавцом.
		storeID = sellerID
	}

	product := &models.Product{
		StoreID:        storeID,
		SellerID:       sellerID,
		Name:           name,
		Price:          in.Price,
		Stock:          in.Stock,
		CommissionRate: in.CommissionRate,
		Active:         true,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.InvalidateSellerProducts(sellerID)
	}
	return product, nil
}

// GetProduct читает карточку товара. Остаток в кэше может отставать на productCacheTTL,
// резервирование при покупке всегда идёт в БД.
func (s *ProductService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if s.cache == nil {
		return s.repo.GetByID(ctx, id)
	}
	value, err := s.cache.GetOrSet(ctx, ProductCacheKey(id), productCacheTTL, func() (interface{}, error) {
		return s.repo.GetByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return value.(*models.Product), nil
}

func (s *ProductService) ListSellerProducts(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]models.Product, error) {
	limit, offset = normalizePage(limit, offset)
	if s.cache == nil {
		return s.repo.ListBySeller(ctx, sellerID, limit, offset)
	}
	value, err := s.cache.GetOrSet(ctx, SellerProductsCacheKey(sellerID, limit, offset), productCacheTTL, func() (interface{}, error) {
		return s.repo.ListBySeller(ctx, sellerID, limit, offset)
	})
	if err != nil {
		return nil, err
	}
	return value.([]models.Product), nil
}
