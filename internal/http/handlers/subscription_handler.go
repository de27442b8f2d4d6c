package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/omnimarket-backend/internal/http/handlers/common"
	"github.com/ignatzorin/omnimarket-backend/internal/models"
)

type SubscriptionService interface {
	Subscribe(ctx context.Context, userID uuid.UUID, planName string, amount decimal.Decimal) (*models.Subscription, error)
	ListSubscriptions(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error)
}

type SubscriptionHandler struct {
	subscriptions SubscriptionService
}

func NewSubscriptionHandler(subscriptions SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: subscriptions}
}

type subscribeRequest struct {
	PlanName string          `json:"plan_name" binding:"required"`
	Amount   decimal.Decimal `json:"amount"`
}

// Subscribe POST /subscriptions
func (h *SubscriptionHandler) Subscribe(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c)
		return
	}

	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "план и сумма обязательны")
		return
	}

	sub, err := h.subscriptions.Subscribe(c.Request.Context(), userID, req.PlanName, req.Amount)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, sub)
}

// ListSubscriptions GET /subscriptions
func (h *SubscriptionHandler) ListSubscriptions(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c)
		return
	}

	subs, err := h.subscriptions.ListSubscriptions(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"subscriptions": subs})
}
