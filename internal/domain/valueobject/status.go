package valueobject

import (
	"github.com/ignatzorin/omnimarket-backend/internal/models"
	"github.com/ignatzorin/omnimarket-backend/internal/pkg/apperror"
)

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = models.OrderStatusPending
	OrderStatusProcessing     OrderStatus = models.OrderStatusProcessing
	OrderStatusShipped        OrderStatus = models.OrderStatusShipped
	OrderStatusOutForDelivery OrderStatus = models.OrderStatusOutForDelivery
	OrderStatusDelivered      OrderStatus = models.OrderStatusDelivered
	OrderStatusCompleted      OrderStatus = models.OrderStatusCompleted
)

// Переходы, доступные продавцу. completed выставляется только выплатой escrow.
var sellerTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:        {OrderStatusProcessing, OrderStatusShipped},
	OrderStatusProcessing:     {OrderStatusShipped},
	OrderStatusShipped:        {OrderStatusOutForDelivery, OrderStatusDelivered},
	OrderStatusOutForDelivery: {OrderStatusDelivered},
	OrderStatusDelivered:      {},
	OrderStatusCompleted:      {},
}

func (s OrderStatus) IsValid() bool {
	_, ok := models.ValidOrderStatuses[string(s)]
	return ok
}

func (s OrderStatus) CanTransitionTo(newStatus OrderStatus) bool {
	allowed, ok := sellerTransitions[s]
	if !ok {
		return false
	}

	for _, status := range allowed {
		if status == newStatus {
			return true
		}
	}
	return false
}

func NewOrderStatus(status string) (OrderStatus, error) {
	s := OrderStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус заказа")
	}
	return s, nil
}
