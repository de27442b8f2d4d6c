package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/omnimarket-backend/internal/domain/valueobject"
	"github.com/ignatzorin/omnimarket-backend/internal/logger"
	"github.com/ignatzorin/omnimarket-backend/internal/models"
	"github.com/ignatzorin/omnimarket-backend/internal/validation"
)

// SubscriptionPeriod срок действия оплаченной подписки.
const SubscriptionPeriod = 30 * 24 * time.Hour

type SubscriptionRepository interface {
	Create(ctx context.Context, sub *models.Subscription) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error)
}

type SubscriptionService struct {
	tx      TxManager
	repo    SubscriptionRepository
	wallets WalletRepository
	now     func() time.Time
}

func NewSubscriptionService(tx TxManager, repo SubscriptionRepository, wallets WalletRepository) *SubscriptionService {
	return &SubscriptionService{tx: tx, repo: repo, wallets: wallets, now: time.Now}
}

// Subscribe оплачивает подписку с кошелька. Списание и запись подписки атомарны.
func (s *SubscriptionService) Subscribe(ctx context.Context, userID uuid.UUID, planName string, amount decimal.Decimal) (*models.Subscription, error) {
	if err := validation.ValidatePlanName(planName); err != nil {
		return nil, invalidInput(err)
	}
	planName = strings.TrimSpace(planName)
	if err := valueobject.ValidatePositiveAmount(amount); err != nil {
		return nil, err
	}

	var sub *models.Subscription
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.wallets.Adjust(ctx, userID, amount.Neg(), models.LedgerEntry{
			Type:   models.WalletTxSubscriptionDebit,
			Reason: "подписка " + planName,
		}); err != nil {
			return err
		}

		starts := s.now().UTC()
		sub = &models.Subscription{
			UserID:    userID,
			PlanName:  planName,
			Amount:    amount,
			StartsAt:  starts,
			ExpiresAt: starts.Add(SubscriptionPeriod),
		}
		return s.repo.Create(ctx, sub)
	})
	if err != nil {
		return nil, err
	}

	logger.Log.WithFields(map[string]interface{}{
		"user_id": userID,
		"plan":    planName,
		"amount":  amount.StringFixed(valueobject.MoneyScale),
	}).Info("subscription: оформлена подписка")
	return sub, nil
}

func (s *SubscriptionService) ListSubscriptions(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error) {
	return s.repo.ListByUser(ctx, userID)
}
