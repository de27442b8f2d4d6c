package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/omnimarket-backend/internal/domain/valueobject"
	"github.com/ignatzorin/omnimarket-backend/internal/http/handlers/common"
	"github.com/ignatzorin/omnimarket-backend/internal/models"
	"github.com/ignatzorin/omnimarket-backend/internal/service"
)

type OrderService interface {
	CreateOrder(ctx context.Context, in service.CreateOrderInput) (*models.Order, error)
	GetOrder(ctx context.Context, orderID, userID uuid.UUID, role string) (*models.Order, error)
	ListMyOrders(ctx context.Context, userID uuid.UUID, as string, limit, offset int) ([]models.Order, error)
	UpdateStatus(ctx context.Context, orderID, sellerID uuid.UUID, status string) (*models.Order, error)
	ConfirmDelivery(ctx context.Context, orderID, buyerID uuid.UUID, otp string) (*models.Order, error)
	PayRemainingBalance(ctx context.Context, orderID, buyerID uuid.UUID) (*models.Order, error)
	SubmitRating(ctx context.Context, orderID, buyerID uuid.UUID, rating int) (*models.Order, error)
	ListPayments(ctx context.Context, orderID, userID uuid.UUID, role string) ([]models.InstallmentPayment, error)
}

type EscrowService interface {
	ReleaseForUser(ctx context.Context, orderID, userID uuid.UUID, role string) (*models.EscrowRelease, error)
}

type OrderHandler struct {
	orders OrderService
	escrow EscrowService
}

func NewOrderHandler(orders OrderService, escrow EscrowService) *OrderHandler {
	return &OrderHandler{orders: orders, escrow: escrow}
}

// OrderView заказ в ответе API. Код доставки видит только покупатель.
type OrderView struct {
	*models.Order
	DeliveryOTP string `json:"delivery_otp,omitempty"`
}

func newOrderView(order *models.Order, viewerID uuid.UUID) OrderView {
	view := OrderView{Order: order}
	if order.BuyerID == viewerID && !order.Delivered {
		view.DeliveryOTP = order.DeliveryOTP
	}
	return view
}

type createOrderRequest struct {
	ProductID    uuid.UUID       `json:"product_id" binding:"required"`
	Quantity     int             `json:"quantity"`
	DepositType  string          `json:"deposit_type"`
	DepositValue decimal.Decimal `json:"deposit_value"`
}

// CreateOrder POST /orders
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c)
		return
	}

	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "product_id обязателен")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	policy, err := valueobject.NewDepositPolicy(req.DepositType, req.DepositValue)
	if err != nil {
		_ = c.Error(err)
		return
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), service.CreateOrderInput{
		BuyerID:   userID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Deposit:   policy,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, newOrderView(order, userID))
}

// GetOrder GET /orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	userID, orderID, ok := h.userAndOrder(c)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), orderID, userID, common.CurrentUserRole(c))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, newOrderView(order, userID))
}

// ListMyOrders GET /orders/my?role=buyer|seller
func (h *OrderHandler) ListMyOrders(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c)
		return
	}

	limit, offset := common.GetPagination(c)
	orders, err := h.orders.ListMyOrders(c.Request.Context(), userID, c.Query("role"), limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}

	views := make([]OrderView, 0, len(orders))
	for i := range orders {
		views = append(views, newOrderView(&orders[i], userID))
	}
	c.JSON(http.StatusOK, gin.H{"orders": views, "limit": limit, "offset": offset})
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus PUT /orders/:id/status
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	userID, orderID, ok := h.userAndOrder(c)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "статус обязателен")
		return
	}

	order, err := h.orders.UpdateStatus(c.Request.Context(), orderID, userID, req.Status)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, newOrderView(order, userID))
}

type confirmDeliveryRequest struct {
	OTP string `json:"otp" binding:"required"`
}

// ConfirmDelivery POST /orders/:id/confirm-delivery
func (h *OrderHandler) ConfirmDelivery(c *gin.Context) {
	userID, orderID, ok := h.userAndOrder(c)
	if !ok {
		return
	}

	var req confirmDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "код доставки обязателен")
		return
	}

	order, err := h.orders.ConfirmDelivery(c.Request.Context(), orderID, userID, req.OTP)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, newOrderView(order, userID))
}

// PayBalance POST /orders/:id/pay-balance
func (h *OrderHandler) PayBalance(c *gin.Context) {
	userID, orderID, ok := h.userAndOrder(c)
	if !ok {
		return
	}

	order, err := h.orders.PayRemainingBalance(c.Request.Context(), orderID, userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, newOrderView(order, userID))
}

// ReleaseEscrow POST /orders/:id/release-escrow
func (h *OrderHandler) ReleaseEscrow(c *gin.Context) {
	userID, orderID, ok := h.userAndOrder(c)
	if !ok {
		return
	}

	release, err := h.escrow.ReleaseForUser(c.Request.Context(), orderID, userID, common.CurrentUserRole(c))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, release)
}

type ratingRequest struct {
	Rating int `json:"rating" binding:"required"`
}

// SubmitRating POST /orders/:id/rating
func (h *OrderHandler) SubmitRating(c *gin.Context) {
	userID, orderID, ok := h.userAndOrder(c)
	if !ok {
		return
	}

	var req ratingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "оценка обязательна")
		return
	}

	order, err := h.orders.SubmitRating(c.Request.Context(), orderID, userID, req.Rating)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, newOrderView(order, userID))
}

// ListPayments GET /orders/:id/payments
func (h *OrderHandler) ListPayments(c *gin.Context) {
	userID, orderID, ok := h.userAndOrder(c)
	if !ok {
		return
	}

	payments, err := h.orders.ListPayments(c.Request.Context(), orderID, userID, common.CurrentUserRole(c))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

func (h *OrderHandler) userAndOrder(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c)
		return uuid.Nil, uuid.Nil, false
	}

	orderID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return uuid.Nil, uuid.Nil, false
	}

	return userID, orderID, true
}
