package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/omnimarket-backend/internal/models"
	"github.com/ignatzorin/omnimarket-backend/internal/pkg/apperror"
)

type mockWalletRepo struct {
	mock.Mock
}

func (m *mockWalletRepo) Get(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Wallet), args.Error(1)
}

func (m *mockWalletRepo) Adjust(ctx context.Context, userID uuid.UUID, delta decimal.Decimal, entry models.LedgerEntry) (*models.WalletTransaction, error) {
	args := m.Called(ctx, userID, delta, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WalletTransaction), args.Error(1)
}

func (m *mockWalletRepo) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.WalletTransaction), args.Error(1)
}

func TestWalletService_TopUp_Success(t *testing.T) {
	repo := new(mockWalletRepo)
	svc := NewWalletService(repo)
	ctx := context.Background()
	userID := uuid.New()
	amount := decimal.RequireFromString("150.50")

	repo.On("Adjust", ctx, userID, amount, models.LedgerEntry{
		Type:   models.WalletTxTopUp,
		Reason: "пополнение кошелька",
	}).Return(&models.WalletTransaction{UserID: userID, Amount: amount, BalanceAfter: amount}, nil)

	tx, err := svc.TopUp(ctx, userID, amount)
	require.NoError(t, err)
	assert.True(t, amount.Equal(tx.BalanceAfter))
	repo.AssertExpectations(t)
}

func TestWalletService_TopUp_InvalidAmount(t *testing.T) {
	repo := new(mockWalletRepo)
	svc := NewWalletService(repo)

	for _, amount := range []string{"0", "-5", "1.001"} {
		_, err := svc.TopUp(context.Background(), uuid.New(), decimal.RequireFromString(amount))
		assert.Truef(t, apperror.IsValidation(err), "сумма %s", amount)
	}
	repo.AssertNotCalled(t, "Adjust")
}

func TestWalletService_AdminCredit_DefaultReason(t *testing.T) {
	repo := new(mockWalletRepo)
	svc := NewWalletService(repo)
	ctx := context.Background()
	userID := uuid.New()
	amount := decimal.NewFromInt(10)

	repo.On("Adjust", ctx, userID, amount, mock.MatchedBy(func(e models.LedgerEntry) bool {
		return e.Type == models.WalletTxTopUp && e.Reason == "зачисление администратором"
	})).Return(&models.WalletTransaction{UserID: userID, Amount: amount}, nil)

	_, err := svc.AdminCredit(ctx, uuid.New(), userID, amount, "")
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestWalletService_ListTransactions_NormalizesPage(t *testing.T) {
	repo := new(mockWalletRepo)
	svc := NewWalletService(repo)
	ctx := context.Background()
	userID := uuid.New()

	repo.On("ListTransactions", ctx, userID, maxPageSize, 0).Return([]models.WalletTransaction{}, nil)

	_, err := svc.ListTransactions(ctx, userID, 1000, -1)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

// Баланс никогда не становится отрицательным: списание сверх остатка отклоняется целиком.
func TestWallet_NoNegativeBalance(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("balance stays non-negative and matches ledger", prop.ForAll(
		func(deltas []int64) bool {
			ctx := context.Background()
			store := newMemStore()
			wallets := store.walletRepo()
			userID := uuid.New()

			expected := decimal.Zero
			for _, cents := range deltas {
				if cents == 0 {
					continue
				}
				delta := decimal.New(cents, -2)
				_, err := wallets.Adjust(ctx, userID, delta, models.LedgerEntry{Type: models.WalletTxTopUp})
				if expected.Add(delta).IsNegative() {
					if err != apperror.ErrInsufficientFunds {
						return false
					}
					continue
				}
				if err != nil {
					return false
				}
				expected = expected.Add(delta)
			}

			sum := decimal.Zero
			for _, tx := range store.ledgerFor(userID) {
				sum = sum.Add(tx.Amount)
				if tx.BalanceAfter.IsNegative() {
					return false
				}
			}
			balance := store.balance(userID)
			return balance.Equal(expected) && sum.Equal(balance) && !balance.IsNegative()
		},
		gen.SliceOf(gen.Int64Range(-50_000, 50_000)),
	))

	properties.TestingRun(t)
}
