package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn блокирует чтение до закрытия и запоминает отправленные сообщения.
type fakeConn struct {
	mu      sync.Mutex
	written [][]byte
	closed  chan struct{}
	once    sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{closed: make(chan struct{})}
}

func (c *fakeConn) SetReadLimit(int64) {}
func (c *fakeConn) SetReadDeadline(time.Time) error { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }
func (c *fakeConn) SetPongHandler(func(string) error) {}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	<-c.closed
	return 0, nil, errors.New("closed")
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	if messageType != websocket.TextMessage {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) messages() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.written...)
}

func TestHub_BroadcastToUser(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	go hub.Run(ctx)

	userID := uuid.New()
	conn := newFakeConn()
	client := NewClient(conn, hub, userID)
	hub.Register(client)
	go client.Run(ctx)

	require.Eventually(t, func() bool { return hub.Online(userID) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, hub.BroadcastToUser(userID, "order.balance_paid", map[string]string{"order_id": "42"}))
	require.NoError(t, hub.BroadcastToUser(uuid.New(), "order.created", nil))

	require.Eventually(t, func() bool { return len(conn.messages()) == 1 }, time.Second, 5*time.Millisecond)

	var msg struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(conn.messages()[0], &msg))
	assert.Equal(t, "order.balance_paid", msg.Type)
	assert.Equal(t, "42", msg.Data["order_id"])

	client.Close()
	assert.Eventually(t, func() bool { return hub.Online(userID) == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_BroadcastAfterStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()

	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	// Буфер канала может принять сообщение, поэтому заполняем его до ошибки.
	var err error
	for i := 0; i < 100 && err == nil; i++ {
		err = hub.BroadcastToUser(uuid.New(), "order.created", nil)
	}
	assert.Error(t, err)

	assert.NotPanics(t, func() {
		hub.Register(NewClient(newFakeConn(), hub, uuid.New()))
	})
}
