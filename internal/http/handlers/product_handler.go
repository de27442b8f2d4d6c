package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/omnimarket-backend/internal/http/handlers/common"
	"github.com/ignatzorin/omnimarket-backend/internal/models"
	"github.com/ignatzorin/omnimarket-backend/internal/service"
)

type ProductService interface {
	CreateProduct(ctx context.Context, sellerID uuid.UUID, in service.CreateProductInput) (*models.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListSellerProducts(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]models.Product, error)
}

type ProductHandler struct {
	products ProductService
}

func NewProductHandler(products ProductService) *ProductHandler {
	return &ProductHandler{products: products}
}

type createProductRequest struct {
	StoreID        *uuid.UUID       `json:"store_id"`
	Name           string           `json:"name" binding:"required"`
	Price          decimal.Decimal  `json:"price"`
	Stock          int              `json:"stock"`
	CommissionRate *decimal.Decimal `json:"commission_rate"`
}

// CreateProduct POST /products
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c)
		return
	}

	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "название и цена обязательны")
		return
	}

	in := service.CreateProductInput{
		Name:           req.Name,
		Price:          req.Price,
		Stock:          req.Stock,
		CommissionRate: req.CommissionRate,
	}
	if req.StoreID != nil {
		in.StoreID = *req.StoreID
	}

	product, err := h.products.CreateProduct(c.Request.Context(), userID, in)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, product)
}

// GetProduct GET /products/:id
func (h *ProductHandler) GetProduct(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	product, err := h.products.GetProduct(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, product)
}

// ListMyProducts GET /products/my
func (h *ProductHandler) ListMyProducts(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c)
		return
	}

	limit, offset := common.GetPagination(c)
	products, err := h.products.ListSellerProducts(c.Request.Context(), userID, limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"products": products})
}
