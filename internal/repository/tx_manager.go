package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/omnimarket-backend/internal/repository/common"
)

// TxManager открывает транзакции, общие для нескольких репозиториев.
type TxManager struct {
	db *sqlx.DB
}

func NewTxManager(db *sqlx.DB) *TxManager {
	return &TxManager{db: db}
}

// WithinTx выполняет fn атомарно. Репозитории, вызванные с переданным контекстом, работают в той же транзакции.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return common.WithTransaction(ctx, m.db, fn)
}
