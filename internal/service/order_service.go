package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/omnimarket-backend/internal/domain/valueobject"
	"github.com/ignatzorin/omnimarket-backend/internal/events"
	"github.com/ignatzorin/omnimarket-backend/internal/logger"
	"github.com/ignatzorin/omnimarket-backend/internal/metrics"
	"github.com/ignatzorin/omnimarket-backend/internal/models"
	"github.com/ignatzorin/omnimarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/omnimarket-backend/internal/validation"
)

type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdateProgress(ctx context.Context, order *models.Order) error
	SetRating(ctx context.Context, id uuid.UUID, rating int) error
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit, offset int) ([]models.Order, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]models.Order, error)
	CreateInstallmentPayment(ctx context.Context, payment *models.InstallmentPayment) error
	ListInstallmentPayments(ctx context.Context, orderID uuid.UUID) ([]models.InstallmentPayment, error)
}

// EscrowReleaser получает сигнал, что заказ мог стать готовым к выплате.
type EscrowReleaser interface {
	TryRelease(ctx context.Context, orderID uuid.UUID) *models.EscrowRelease
}

// OrderServiceDeps зависимости OrderService.
type OrderServiceDeps struct {
	Tx                    TxManager
	Orders                OrderRepository
	Products              ProductRepository
	Wallets               WalletRepository
	Escrow                EscrowReleaser
	OTP                   OTPGenerator
	Throttle              OTPThrottle
	Publisher             events.Publisher
	Metrics               *metrics.EscrowMetrics
	DefaultCommissionRate decimal.Decimal
}

type OrderService struct {
	deps              OrderServiceDeps
	defaultCommission decimal.Decimal
	publisher         events.Publisher
	now               func() time.Time
}

func NewOrderService(deps OrderServiceDeps) *OrderService {
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &OrderService{
		deps:              deps,
		defaultCommission: deps.DefaultCommissionRate,
		publisher:         publisher,
		now:               time.Now,
	}
}

// CreateOrderInput параметры покупки.
type CreateOrderInput struct {
	BuyerID   uuid.UUID
	ProductID uuid.UUID
	Quantity  int
	Deposit   valueobject.DepositPolicy
}

// CreateOrder оформляет заказ: резервирует товар, фиксирует разбивку на депозит и остаток,
// генерирует код доставки и списывает депозит. Всё выполняется в одной транзакции.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	if err := validation.ValidateQuantity(in.Quantity); err != nil {
		return nil, invalidInput(err)
	}

	otp, err := s.deps.OTP.Generate()
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сгенерировать код доставки")
	}

	var order *models.Order
	err = s.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
		product, err := s.deps.Products.GetByID(ctx, in.ProductID)
		if err != nil {
			return err
		}
		if !product.Active {
			return apperror.ErrProductUnavailable
		}
		if product.SellerID == in.BuyerID {
			return apperror.New(apperror.ErrCodeValidation, "нельзя купить собственный товар")
		}

		reserved, err := s.deps.Products.ReserveStock(ctx, product.ID, in.Quantity)
		if err != nil {
			return err
		}
		if !reserved {
			return apperror.ErrProductUnavailable
		}

		total := product.Price.Mul(decimal.NewFromInt(int64(in.Quantity)))
		deposit, balance, err := in.Deposit.Split(total)
		if err != nil {
			return err
		}

		rate := s.defaultCommission
		if product.CommissionRate != nil {
			rate = *product.CommissionRate
		}

		order = &models.Order{
			ID:             uuid.New(),
			BuyerID:        in.BuyerID,
			SellerID:       product.SellerID,
			StoreID:        product.StoreID,
			ProductID:      product.ID,
			Quantity:       in.Quantity,
			TotalPrice:     total,
			DepositAmount:  deposit,
			BalanceDue:     balance,
			CommissionRate: rate,
			Status:         models.OrderStatusPending,
			DeliveryOTP:    otp,
			BalancePaid:    balance.IsZero(),
		}
		if err := s.deps.Orders.Create(ctx, order); err != nil {
			return err
		}

		if deposit.IsPositive() {
			oid := order.ID
			if _, err := s.deps.Wallets.Adjust(ctx, in.BuyerID, deposit.Neg(), models.LedgerEntry{
				Type:    models.WalletTxDepositDebit,
				Reason:  "депозит по заказу",
				OrderID: &oid,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.deps.Metrics.RecordError("create_order", errorCode(err))
		return nil, err
	}

	s.deps.Metrics.RecordOrderCreated(string(in.Deposit.Kind), order.DepositAmount)
	logger.Log.WithFields(map[string]interface{}{
		"order_id":    order.ID,
		"buyer_id":    order.BuyerID,
		"total":       order.TotalPrice.StringFixed(valueobject.MoneyScale),
		"deposit":     order.DepositAmount.StringFixed(valueobject.MoneyScale),
		"balance_due": order.BalanceDue.StringFixed(valueobject.MoneyScale),
	}).Info("order: заказ создан")

	publish(ctx, s.publisher, events.NewEvent(events.OrderCreated, order.ID, order.BuyerID, order.SellerID, map[string]any{
		"total_price":    order.TotalPrice,
		"deposit_amount": order.DepositAmount,
		"balance_due":    order.BalanceDue,
	}))
	return order, nil
}

// UpdateStatus продвигает заказ по цепочке исполнения. Доступно только продавцу.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID, sellerID uuid.UUID, status string) (*models.Order, error) {
	next, err := valueobject.NewOrderStatus(status)
	if err != nil {
		return nil, err
	}
	if next == valueobject.OrderStatusCompleted {
		return nil, apperror.ErrInvalidTransition
	}

	var order *models.Order
	err = s.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
		order, err = s.deps.Orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.SellerID != sellerID {
			return apperror.ErrForbidden
		}
		if !valueobject.OrderStatus(order.Status).CanTransitionTo(next) {
			return apperror.ErrInvalidTransition
		}

		order.Status = string(next)
		return s.deps.Orders.UpdateProgress(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.publisher, events.NewEvent(events.OrderStatusChanged, order.ID, order.BuyerID, order.SellerID, map[string]any{
		"status": order.Status,
	}))
	return order, nil
}

// ConfirmDelivery подтверждает получение заказа кодом покупателя.
// Проверка кода и установка флага выполняются под блокировкой строки заказа.
func (s *OrderService) ConfirmDelivery(ctx context.Context, orderID, buyerID uuid.UUID, otp string) (*models.Order, error) {
	// Посторонний пользователь не должен расходовать попытки покупателя.
	existing, err := s.deps.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if existing.BuyerID != buyerID {
		return nil, apperror.ErrForbidden
	}

	if s.deps.Throttle != nil {
		if err := s.deps.Throttle.Check(ctx, orderID); err != nil {
			s.deps.Metrics.RecordOTPFailure("locked")
			return nil, err
		}
	}

	var order *models.Order
	err = s.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
		order, err = s.deps.Orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.BuyerID != buyerID {
			return apperror.ErrForbidden
		}
		if order.Delivered {
			return apperror.ErrAlreadyConfirmed
		}
		if order.Status != models.OrderStatusDelivered {
			return apperror.ErrNotDelivered
		}
		if !valueobject.MatchOTP(order.DeliveryOTP, otp) {
			return apperror.ErrInvalidOTP
		}

		now := s.now().UTC()
		order.Delivered = true
		order.DeliveredAt = &now
		return s.deps.Orders.UpdateProgress(ctx, order)
	})
	if err != nil {
		if errors.Is(err, apperror.ErrInvalidOTP) {
			s.deps.Metrics.RecordOTPFailure("mismatch")
			s.countFailedOTP(ctx, orderID)
		}
		return nil, err
	}

	if s.deps.Throttle != nil {
		if err := s.deps.Throttle.Reset(ctx, orderID); err != nil {
			logger.Log.WithFields(map[string]interface{}{
				"order_id": orderID,
				"error":    err.Error(),
			}).Warn("otp: не удалось сбросить счётчик попыток")
		}
	}

	s.deps.Metrics.RecordDeliveryConfirmed()
	logger.Log.WithFields(map[string]interface{}{
		"order_id": order.ID,
		"buyer_id": buyerID,
	}).Info("order: доставка подтверждена")

	publish(ctx, s.publisher, events.NewEvent(events.OrderDeliveryConfirmed, order.ID, order.BuyerID, order.SellerID, nil))
	s.afterSettlementStep(ctx, order)
	return order, nil
}

// countFailedOTP учитывает неверный код. Остальные отказы попыток не расходуют.
func (s *OrderService) countFailedOTP(ctx context.Context, orderID uuid.UUID) {
	if s.deps.Throttle == nil {
		return
	}
	if err := s.deps.Throttle.Fail(ctx, orderID); err != nil {
		logger.Log.WithFields(map[string]interface{}{
			"order_id": orderID,
			"error":    err.Error(),
		}).Warn("otp: не удалось учесть неверный код")
	}
}

// PayRemainingBalance списывает остаток с кошелька покупателя целиком. Частичная оплата не поддерживается.
func (s *OrderService) PayRemainingBalance(ctx context.Context, orderID, buyerID uuid.UUID) (*models.Order, error) {
	var (
		order  *models.Order
		amount decimal.Decimal
	)
	err := s.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.deps.Orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.BuyerID != buyerID {
			return apperror.ErrForbidden
		}
		if order.BalancePaid || !order.BalanceDue.IsPositive() {
			return apperror.ErrNothingToPay
		}

		amount = order.BalanceDue
		oid := order.ID
		if _, err := s.deps.Wallets.Adjust(ctx, buyerID, amount.Neg(), models.LedgerEntry{
			Type:    models.WalletTxBalanceDebit,
			Reason:  "оплата остатка по заказу",
			OrderID: &oid,
		}); err != nil {
			return err
		}

		order.BalanceDue = decimal.Zero
		order.BalancePaid = true
		if err := s.deps.Orders.UpdateProgress(ctx, order); err != nil {
			return err
		}

		return s.deps.Orders.CreateInstallmentPayment(ctx, &models.InstallmentPayment{
			OrderID: order.ID,
			BuyerID: buyerID,
			Amount:  amount,
		})
	})
	if err != nil {
		s.deps.Metrics.RecordError("pay_balance", errorCode(err))
		return nil, err
	}

	s.deps.Metrics.RecordBalancePaid(amount)
	logger.Log.WithFields(map[string]interface{}{
		"order_id": order.ID,
		"buyer_id": buyerID,
		"amount":   amount.StringFixed(valueobject.MoneyScale),
	}).Info("order: остаток оплачен")

	publish(ctx, s.publisher, events.NewEvent(events.OrderBalancePaid, order.ID, order.BuyerID, order.SellerID, map[string]any{
		"amount": amount,
	}))
	s.afterSettlementStep(ctx, order)
	return order, nil
}

// afterSettlementStep пробует выплату после любого из двух условий, какое бы ни наступило вторым.
func (s *OrderService) afterSettlementStep(ctx context.Context, order *models.Order) {
	if s.deps.Escrow == nil || !order.ReadyForRelease() {
		return
	}
	if release := s.deps.Escrow.TryRelease(ctx, order.ID); release != nil {
		releasedAt := release.ReleasedAt
		order.EscrowReleased = true
		order.Status = models.OrderStatusCompleted
		order.ReleasedAt = &releasedAt
	}
}

// SubmitRating сохраняет оценку покупателя по завершённому заказу. На деньги не влияет.
func (s *OrderService) SubmitRating(ctx context.Context, orderID, buyerID uuid.UUID, rating int) (*models.Order, error) {
	if rating < 1 || rating > 5 {
		return nil, apperror.New(apperror.ErrCodeValidation, "рейтинг должен быть от 1 до 5")
	}

	order, err := s.deps.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != buyerID {
		return nil, apperror.ErrForbidden
	}
	if order.Status != models.OrderStatusCompleted {
		return nil, apperror.New(apperror.ErrCodeConflict, "оценить можно только завершённый заказ")
	}
	if order.RatingSubmitted {
		return nil, apperror.ErrAlreadyRated
	}

	if err := s.deps.Orders.SetRating(ctx, orderID, rating); err != nil {
		return nil, err
	}
	order.Rating = &rating
	order.RatingSubmitted = true
	return order, nil
}

// GetOrder возвращает заказ участнику или администратору.
func (s *OrderService) GetOrder(ctx context.Context, orderID, userID uuid.UUID, role string) (*models.Order, error) {
	order, err := s.deps.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if role != models.RoleAdmin && !order.IsParticipant(userID) {
		return nil, apperror.ErrForbidden
	}
	return order, nil
}

// ListMyOrders возвращает заказы пользователя как покупателя или как продавца.
func (s *OrderService) ListMyOrders(ctx context.Context, userID uuid.UUID, as string, limit, offset int) ([]models.Order, error) {
	limit, offset = normalizePage(limit, offset)
	switch as {
	case "", models.RoleBuyer:
		return s.deps.Orders.ListByBuyer(ctx, userID, limit, offset)
	case models.RoleSeller:
		return s.deps.Orders.ListBySeller(ctx, userID, limit, offset)
	default:
		return nil, apperror.New(apperror.ErrCodeValidation, "role должен быть buyer или seller")
	}
}

// ListPayments возвращает оплаты остатка по заказу.
func (s *OrderService) ListPayments(ctx context.Context, orderID, userID uuid.UUID, role string) ([]models.InstallmentPayment, error) {
	if _, err := s.GetOrder(ctx, orderID, userID, role); err != nil {
		return nil, err
	}
	return s.deps.Orders.ListInstallmentPayments(ctx, orderID)
}
