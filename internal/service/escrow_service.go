package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/omnimarket-backend/internal/domain/valueobject"
	"github.com/ignatzorin/omnimarket-backend/internal/events"
	"github.com/ignatzorin/omnimarket-backend/internal/logger"
	"github.com/ignatzorin/omnimarket-backend/internal/metrics"
	"github.com/ignatzorin/omnimarket-backend/internal/models"
	"github.com/ignatzorin/omnimarket-backend/internal/pkg/apperror"
)

// EscrowOrderRepository операции с заказом, нужные для выплаты.
type EscrowOrderRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	MarkEscrowReleased(ctx context.Context, id uuid.UUID, releasedAt time.Time) (bool, error)
}

// EscrowService перечисляет удержанные средства продавцу за вычетом комиссии платформы.
type EscrowService struct {
	tx             TxManager
	orders         EscrowOrderRepository
	wallets        WalletRepository
	platformUserID uuid.UUID
	publisher      events.Publisher
	metrics        *metrics.EscrowMetrics
	now            func() time.Time
}

func NewEscrowService(tx TxManager, orders EscrowOrderRepository, wallets WalletRepository, platformUserID uuid.UUID, publisher events.Publisher, m *metrics.EscrowMetrics) *EscrowService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &EscrowService{
		tx:             tx,
		orders:         orders,
		wallets:        wallets,
		platformUserID: platformUserID,
		publisher:      publisher,
		metrics:        m,
		now:            time.Now,
	}
}

// Release выполняет выплату ровно один раз. Флаг escrow_released переключается
// условным UPDATE в той же транзакции, что и зачисления, поэтому конкурентные
// вызовы не могут зачислить средства дважды.
func (s *EscrowService) Release(ctx context.Context, orderID uuid.UUID) (*models.EscrowRelease, error) {
	start := time.Now()

	var (
		release *models.EscrowRelease
		order   *models.Order
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		releasedAt := s.now().UTC()
		swapped, err := s.orders.MarkEscrowReleased(ctx, orderID, releasedAt)
		if err != nil {
			return err
		}

		order, err = s.orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if !swapped {
			if order.EscrowReleased {
				return apperror.ErrAlreadyReleased
			}
			return apperror.ErrEscrowNotReady
		}

		sellerAmount, commission, err := valueobject.SplitCommission(order.TotalPrice, order.CommissionRate)
		if err != nil {
			return err
		}

		oid := order.ID
		if sellerAmount.IsPositive() {
			if _, err := s.wallets.Adjust(ctx, order.SellerID, sellerAmount, models.LedgerEntry{
				Type:    models.WalletTxEscrowCredit,
				Reason:  "выплата по заказу",
				OrderID: &oid,
			}); err != nil {
				return err
			}
		}
		if commission.IsPositive() {
			if _, err := s.wallets.Adjust(ctx, s.platformUserID, commission, models.LedgerEntry{
				Type:    models.WalletTxCommissionCredit,
				Reason:  "комиссия платформы",
				OrderID: &oid,
			}); err != nil {
				return err
			}
		}

		release = &models.EscrowRelease{
			OrderID:      order.ID,
			SellerID:     order.SellerID,
			SellerAmount: sellerAmount,
			Commission:   commission,
			ReleasedAt:   releasedAt,
		}
		return nil
	})
	if err != nil {
		if !isReleaseNoop(err) {
			s.metrics.RecordError("release_escrow", errorCode(err))
		}
		return nil, err
	}

	s.metrics.RecordEscrowReleased(release.SellerAmount, release.Commission, time.Since(start))
	logger.Log.WithFields(map[string]interface{}{
		"order_id":      orderID,
		"seller_id":     release.SellerID,
		"seller_amount": release.SellerAmount.StringFixed(valueobject.MoneyScale),
		"commission":    release.Commission.StringFixed(valueobject.MoneyScale),
	}).Info("escrow: средства перечислены продавцу")

	publish(ctx, s.publisher, events.NewEvent(events.OrderEscrowReleased, order.ID, order.BuyerID, order.SellerID, release))
	return release, nil
}

// ReleaseForUser запускает выплату по запросу участника заказа или администратора.
func (s *EscrowService) ReleaseForUser(ctx context.Context, orderID, userID uuid.UUID, role string) (*models.EscrowRelease, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if role != models.RoleAdmin && !order.IsParticipant(userID) {
		return nil, apperror.ErrForbidden
	}
	return s.Release(ctx, orderID)
}

// TryRelease сигнал "возможно, заказ готов к выплате". Уже выполненная или
// преждевременная выплата не считается ошибкой. Возвращает nil, если выплаты не было.
func (s *EscrowService) TryRelease(ctx context.Context, orderID uuid.UUID) *models.EscrowRelease {
	release, err := s.Release(ctx, orderID)
	if err != nil {
		if !isReleaseNoop(err) {
			logger.Log.WithFields(map[string]interface{}{
				"order_id": orderID,
				"error":    err.Error(),
			}).Error("escrow: не удалось выполнить выплату")
		}
		return nil
	}
	return release
}

func isReleaseNoop(err error) bool {
	return errors.Is(err, apperror.ErrAlreadyReleased) || errors.Is(err, apperror.ErrEscrowNotReady)
}

func errorCode(err error) string {
	if appErr, ok := apperror.As(err); ok {
		return string(appErr.Code)
	}
	return string(apperror.ErrCodeInternal)
}

// publish отправляет событие после коммита. Ошибка доставки не отменяет операцию.
func publish(ctx context.Context, p events.Publisher, evt events.Event) {
	if err := p.Publish(context.WithoutCancel(ctx), evt); err != nil {
		logger.Log.WithFields(map[string]interface{}{
			"event":    evt.Type,
			"order_id": evt.OrderID,
			"error":    err.Error(),
		}).Warn("events: не удалось опубликовать событие")
	}
}
