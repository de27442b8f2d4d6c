package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/omnimarket-backend/internal/pkg/apperror"
)

func TestProductService_CreateProduct(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := newMemStore()
	svc := NewProductService(store.productRepo(), NewCacheService(ctx))
	sellerID := uuid.New()

	listed, err := svc.ListSellerProducts(ctx, sellerID, 20, 0)
	require.NoError(t, err)
	assert.Empty(t, listed)

	product, err := svc.CreateProduct(ctx, sellerID, CreateProductInput{Name: " Чайник ", Price: dec("25.00"), Stock: 3})
	require.NoError(t, err)
	assert.Equal(t, "Чайник", product.Name)
	assert.Equal(t, sellerID, product.StoreID)
	assert.True(t, product.Active)

	// Создание сбрасывает кэш списка продавца.
	listed, err = svc.ListSellerProducts(ctx, sellerID, 20, 0)
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	got, err := svc.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, product.ID, got.ID)
}

func TestProductService_CreateProduct_Validation(t *testing.T) {
	svc := NewProductService(newMemStore().productRepo(), nil)
	sellerID := uuid.New()
	badRate := decimal.NewFromInt(1)
	// NUMERIC(5,4) округлил бы 0.99996 до 1.0000.
	preciseRate := dec("0.99996")
	tinyRate := dec("0.00005")

	cases := []CreateProductInput{
		{Name: "x", Price: dec("1")},
		{Name: "", Price: dec("1")},
		{Name: "Чайник", Price: dec("0")},
		{Name: "Чайник", Price: dec("1"), Stock: -1},
		{Name: "Чайник", Price: dec("1"), CommissionRate: &badRate},
		{Name: "Чайник", Price: dec("1"), CommissionRate: &preciseRate},
		{Name: "Чайник", Price: dec("1"), CommissionRate: &tinyRate},
	}
	for _, in := range cases {
		_, err := svc.CreateProduct(context.Background(), sellerID, in)
		assert.True(t, apperror.IsValidation(err))
	}
}

func TestProductService_GetProduct_NotFound(t *testing.T) {
	svc := NewProductService(newMemStore().productRepo(), nil)
	_, err := svc.GetProduct(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperror.ErrProductNotFound)
}
