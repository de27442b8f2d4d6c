package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/omnimarket-backend/internal/domain/valueobject"
	"github.com/ignatzorin/omnimarket-backend/internal/logger"
	"github.com/ignatzorin/omnimarket-backend/internal/models"
	"github.com/ignatzorin/omnimarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/omnimarket-backend/internal/validation"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// TxManager выполняет функцию в одной транзакции БД.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// WalletRepository единственная точка изменения балансов.
type WalletRepository interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	Adjust(ctx context.Context, userID uuid.UUID, delta decimal.Decimal, entry models.LedgerEntry) (*models.WalletTransaction, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error)
}

type WalletService struct {
	wallets WalletRepository
}

func NewWalletService(wallets WalletRepository) *WalletService {
	return &WalletService{wallets: wallets}
}

// GetWallet возвращает баланс пользователя.
func (s *WalletService) GetWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	return s.wallets.Get(ctx, userID)
}

// TopUp пополняет собственный кошелёк пользователя.
func (s *WalletService) TopUp(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*models.WalletTransaction, error) {
	if err := valueobject.ValidatePositiveAmount(amount); err != nil {
		return nil, err
	}

	tx, err := s.wallets.Adjust(ctx, userID, amount, models.LedgerEntry{
		Type:   models.WalletTxTopUp,
		Reason: "пополнение кошелька",
	})
	if err != nil {
		return nil, err
	}

	logger.Log.WithFields(map[string]interface{}{
		"user_id": userID,
		"amount":  amount.StringFixed(valueobject.MoneyScale),
	}).Info("wallet: пополнение")
	return tx, nil
}

// AdminCredit зачисляет средства на кошелёк пользователя от имени администратора.
func (s *WalletService) AdminCredit(ctx context.Context, adminID, userID uuid.UUID, amount decimal.Decimal, reason string) (*models.WalletTransaction, error) {
	if err := valueobject.ValidatePositiveAmount(amount); err != nil {
		return nil, err
	}
	if err := validation.ValidateReason(reason); err != nil {
		return nil, invalidInput(err)
	}
	if reason == "" {
		reason = "зачисление администратором"
	}

	tx, err := s.wallets.Adjust(ctx, userID, amount, models.LedgerEntry{
		Type:   models.WalletTxTopUp,
		Reason: reason,
	})
	if err != nil {
		return nil, err
	}

	logger.Log.WithFields(map[string]interface{}{
		"admin_id": adminID,
		"user_id":  userID,
		"amount":   amount.StringFixed(valueobject.MoneyScale),
	}).Info("wallet: зачисление администратором")
	return tx, nil
}

// ListTransactions возвращает журнал операций пользователя.
func (s *WalletService) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error) {
	limit, offset = normalizePage(limit, offset)
	return s.wallets.ListTransactions(ctx, userID, limit, offset)
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// invalidInput превращает ошибку проверки ввода в ответ 400.
func invalidInput(err error) error {
	return apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
}
