package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type broadcastCall struct {
	userID uuid.UUID
	event  string
}

type fakeBroadcaster struct {
	calls []broadcastCall
	err   error
}

func (b *fakeBroadcaster) BroadcastToUser(userID uuid.UUID, event string, _ any) error {
	b.calls = append(b.calls, broadcastCall{userID: userID, event: event})
	return b.err
}

func TestWSPublisher_SendsToBuyerAndSeller(t *testing.T) {
	hub := &fakeBroadcaster{}
	buyer, seller := uuid.New(), uuid.New()

	err := NewWSPublisher(hub).Publish(context.Background(), NewEvent(OrderBalancePaid, uuid.New(), buyer, seller, nil))
	require.NoError(t, err)
	assert.Equal(t, []broadcastCall{
		{userID: buyer, event: OrderBalancePaid},
		{userID: seller, event: OrderBalancePaid},
	}, hub.calls)
}

func TestWSPublisher_SameUserOnce(t *testing.T) {
	hub := &fakeBroadcaster{}
	user := uuid.New()

	require.NoError(t, NewWSPublisher(hub).Publish(context.Background(), NewEvent(OrderCreated, uuid.New(), user, user, nil)))
	assert.Len(t, hub.calls, 1)

	hub.calls = nil
	require.NoError(t, NewWSPublisher(hub).Publish(context.Background(), NewEvent(OrderCreated, uuid.New(), user, uuid.Nil, nil)))
	assert.Len(t, hub.calls, 1)
}

func TestWSPublisher_StopsOnError(t *testing.T) {
	hub := &fakeBroadcaster{err: errors.New("hub stopped")}

	err := NewWSPublisher(hub).Publish(context.Background(), NewEvent(OrderCreated, uuid.New(), uuid.New(), uuid.New(), nil))
	assert.Error(t, err)
	assert.Len(t, hub.calls, 1)
}

type publisherFunc func(ctx context.Context, evt Event) error

func (f publisherFunc) Publish(ctx context.Context, evt Event) error { return f(ctx, evt) }

func TestMulti_PublishesToAllAndJoinsErrors(t *testing.T) {
	errKafka := errors.New("kafka down")
	errRabbit := errors.New("rabbit down")
	delivered := 0

	multi := Multi{
		publisherFunc(func(context.Context, Event) error { delivered++; return nil }),
		nil,
		publisherFunc(func(context.Context, Event) error { return errKafka }),
		publisherFunc(func(context.Context, Event) error { delivered++; return errRabbit }),
	}

	err := multi.Publish(context.Background(), NewEvent(OrderCreated, uuid.New(), uuid.New(), uuid.New(), nil))
	assert.ErrorIs(t, err, errKafka)
	assert.ErrorIs(t, err, errRabbit)
	assert.Equal(t, 2, delivered)

	assert.NoError(t, Multi{Noop{}}.Publish(context.Background(), Event{}))
}

type mockWriter struct {
	mock.Mock
}

func (w *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := w.Called(msgs)
	return args.Error(0)
}

func (w *mockWriter) Close() error {
	return w.Called().Error(0)
}

func TestKafkaPublisher_Publish(t *testing.T) {
	writer := &mockWriter{}
	publisher := &KafkaPublisher{writer: writer}
	evt := NewEvent(OrderEscrowReleased, uuid.New(), uuid.New(), uuid.New(), map[string]string{"seller_amount": "588.00"})

	writer.On("WriteMessages", mock.MatchedBy(func(msgs []kafka.Message) bool {
		if len(msgs) != 1 {
			return false
		}
		msg := msgs[0]
		var decoded Event
		if err := json.Unmarshal(msg.Value, &decoded); err != nil {
			return false
		}
		return string(msg.Key) == evt.OrderID.String() &&
			decoded.ID == evt.ID &&
			len(msg.Headers) == 1 &&
			string(msg.Headers[0].Value) == OrderEscrowReleased
	})).Return(nil).Once()
	writer.On("Close").Return(nil).Once()

	require.NoError(t, publisher.Publish(context.Background(), evt))
	require.NoError(t, publisher.Close())
	writer.AssertExpectations(t)
}

func TestKafkaPublisher_WrapsWriteError(t *testing.T) {
	writer := &mockWriter{}
	writer.On("WriteMessages", mock.Anything).Return(assert.AnError)

	err := (&KafkaPublisher{writer: writer}).Publish(context.Background(), NewEvent(OrderCreated, uuid.New(), uuid.New(), uuid.New(), nil))
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), OrderCreated)
}

type mockChannel struct {
	mock.Mock
}

func (c *mockChannel) PublishWithContext(_ context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return c.Called(exchange, key, msg).Error(0)
}

func (c *mockChannel) Close() error {
	return c.Called().Error(0)
}

func TestRabbitPublisher_Publish(t *testing.T) {
	channel := &mockChannel{}
	publisher := &RabbitPublisher{channel: channel, exchange: "orders"}
	evt := NewEvent(OrderDeliveryConfirmed, uuid.New(), uuid.New(), uuid.New(), nil)

	channel.On("PublishWithContext", "orders", OrderDeliveryConfirmed, mock.MatchedBy(func(msg amqp.Publishing) bool {
		return msg.MessageId == evt.ID.String() &&
			msg.Type == OrderDeliveryConfirmed &&
			msg.DeliveryMode == amqp.Persistent &&
			msg.ContentType == "application/json"
	})).Return(nil).Once()
	channel.On("Close").Return(nil).Once()

	require.NoError(t, publisher.Publish(context.Background(), evt))
	require.NoError(t, publisher.Close())
	channel.AssertExpectations(t)
}

func TestRabbitPublisher_WrapsPublishError(t *testing.T) {
	channel := &mockChannel{}
	channel.On("PublishWithContext", mock.Anything, mock.Anything, mock.Anything).Return(assert.AnError)

	err := (&RabbitPublisher{channel: channel, exchange: "orders"}).Publish(context.Background(), NewEvent(OrderCreated, uuid.New(), uuid.New(), uuid.New(), nil))
	assert.ErrorIs(t, err, assert.AnError)
}
