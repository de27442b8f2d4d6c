package events

import (
	"context"

	"github.com/google/uuid"
)

// Broadcaster отправляет сообщение всем WebSocket соединениям пользователя.
type Broadcaster interface {
	BroadcastToUser(userID uuid.UUID, event string, data any) error
}

// WSPublisher доставляет события покупателю и продавцу заказа в реальном времени.
type WSPublisher struct {
	hub Broadcaster
}

func NewWSPublisher(hub Broadcaster) *WSPublisher {
	return &WSPublisher{hub: hub}
}

func (p *WSPublisher) Publish(_ context.Context, evt Event) error {
	if err := p.hub.BroadcastToUser(evt.BuyerID, evt.Type, evt); err != nil {
		return err
	}
	if evt.SellerID != uuid.Nil && evt.SellerID != evt.BuyerID {
		return p.hub.BroadcastToUser(evt.SellerID, evt.Type, evt)
	}
	return nil
}
