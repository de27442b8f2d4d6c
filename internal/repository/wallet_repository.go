package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/omnimarket-backend/internal/models"
	"github.com/ignatzorin/omnimarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/omnimarket-backend/internal/repository/common"
)

type WalletRepository struct {
	db *sqlx.DB
}

func NewWalletRepository(db *sqlx.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// Get возвращает кошелёк пользователя. Отсутствующий кошелёк считается пустым.
func (r *WalletRepository) Get(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := common.Conn(ctx, r.db).GetContext(ctx, &wallet,
		`SELECT user_id, balance, updated_at FROM wallets WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.Wallet{UserID: userID, Balance: decimal.Zero, UpdatedAt: time.Now()}, nil
		}
		return nil, fmt.Errorf("wallet repository: get %w", err)
	}
	return &wallet, nil
}

// Adjust атомарно изменяет баланс на delta и пишет запись в журнал.
// Списание выполняется одним условным UPDATE и отклоняется, если баланс ушёл бы в минус.
func (r *WalletRepository) Adjust(ctx context.Context, userID uuid.UUID, delta decimal.Decimal, entry models.LedgerEntry) (*models.WalletTransaction, error) {
	if delta.IsZero() {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма операции не может быть нулевой")
	}

	var record *models.WalletTransaction
	err := common.WithTransaction(ctx, r.db, func(ctx context.Context) error {
		conn := common.Conn(ctx, r.db)

		var balance decimal.Decimal
		if delta.IsPositive() {
			err := conn.GetContext(ctx, &balance, `
				INSERT INTO wallets (user_id, balance)
				VALUES ($1, $2)
				ON CONFLICT (user_id) DO UPDATE SET balance = wallets.balance + EXCLUDED.balance, updated_at = NOW()
				RETURNING balance
			`, userID, delta)
			if err != nil {
				return fmt.Errorf("wallet repository: credit %w", err)
			}
		} else {
			err := conn.GetContext(ctx, &balance, `
				UPDATE wallets SET balance = balance + $2, updated_at = NOW()
				WHERE user_id = $1 AND balance + $2 >= 0
				RETURNING balance
			`, userID, delta)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return apperror.ErrInsufficientFunds
				}
				return fmt.Errorf("wallet repository: debit %w", err)
			}
		}

		var tx models.WalletTransaction
		err := conn.GetContext(ctx, &tx, `
			INSERT INTO wallet_transactions (user_id, order_id, type, amount, balance_after, reason)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, user_id, order_id, type, amount, balance_after, reason, created_at
		`, userID, entry.OrderID, entry.Type, delta, balance, entry.Reason)
		if err != nil {
			return fmt.Errorf("wallet repository: journal %w", err)
		}
		record = &tx
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListTransactions возвращает историю операций пользователя.
func (r *WalletRepository) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error) {
	transactions := []models.WalletTransaction{}
	err := common.Conn(ctx, r.db).SelectContext(ctx, &transactions, `
		SELECT id, user_id, order_id, type, amount, balance_after, reason, created_at
		FROM wallet_transactions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("wallet repository: list transactions %w", err)
	}
	return transactions, nil
}
