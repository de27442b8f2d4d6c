package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Типы доменных событий заказа.
const (
	OrderCreated           = "order.created"
	OrderStatusChanged     = "order.status_changed"
	OrderDeliveryConfirmed = "order.delivery_confirmed"
	OrderBalancePaid       = "order.balance_paid"
	OrderEscrowReleased    = "order.escrow_released"
)

// Event уведомление об изменении заказа. Публикуется только после коммита транзакции.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       string    `json:"type"`
	OrderID    uuid.UUID `json:"order_id"`
	BuyerID    uuid.UUID `json:"buyer_id"`
	SellerID   uuid.UUID `json:"seller_id"`
	Payload    any       `json:"payload,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent заполняет идентификатор и время события.
func NewEvent(eventType string, orderID, buyerID, sellerID uuid.UUID, payload any) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		OrderID:    orderID,
		BuyerID:    buyerID,
		SellerID:   sellerID,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher доставляет события подписчикам.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Noop отбрасывает события.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

// Multi рассылает событие всем публикаторам и собирает их ошибки.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, evt Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
