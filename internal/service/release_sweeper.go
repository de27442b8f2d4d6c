package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/omnimarket-backend/internal/goroutine"
	"github.com/ignatzorin/omnimarket-backend/internal/logger"
)

type ReadyOrderLister interface {
	ListReadyForRelease(ctx context.Context, limit int) ([]uuid.UUID, error)
}

// ReleaseSweeper периодически доводит до выплаты заказы, для которых сигнал
// TryRelease был потерян (падение процесса между коммитом и выплатой).
type ReleaseSweeper struct {
	orders   ReadyOrderLister
	escrow   EscrowReleaser
	interval time.Duration
	batch    int
}

func NewReleaseSweeper(orders ReadyOrderLister, escrow EscrowReleaser, interval time.Duration, batch int) *ReleaseSweeper {
	if batch <= 0 {
		batch = 100
	}
	return &ReleaseSweeper{orders: orders, escrow: escrow, interval: interval, batch: batch}
}

// Start запускает цикл в фоне. Цикл завершается вместе с ctx.
func (s *ReleaseSweeper) Start(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	goroutine.SafeGoWithContext(ctx, s.run)
}

func (s *ReleaseSweeper) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				logger.Log.WithFields(map[string]interface{}{
					"error": err.Error(),
				}).Error("escrow sweeper: не удалось получить заказы")
			}
		}
	}
}

// SweepOnce выполняет один проход и возвращает число выплат.
func (s *ReleaseSweeper) SweepOnce(ctx context.Context) (int, error) {
	ids, err := s.orders.ListReadyForRelease(ctx, s.batch)
	if err != nil {
		return 0, err
	}

	released := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		if s.escrow.TryRelease(ctx, id) != nil {
			released++
		}
	}

	if released > 0 {
		logger.Log.WithFields(map[string]interface{}{
			"released": released,
			"pending":  len(ids),
		}).Info("escrow sweeper: выплаты выполнены")
	}
	return released, nil
}
