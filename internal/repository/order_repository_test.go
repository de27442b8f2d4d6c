package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/omnimarket-backend/internal/models"
	"github.com/ignatzorin/omnimarket-backend/internal/pkg/apperror"
)

func TestOrderRepository_MarkEscrowReleased(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)
	orderID := uuid.New()
	query := regexp.QuoteMeta("WHERE id = $1 AND delivered AND balance_paid AND NOT escrow_released")

	mock.ExpectExec(query).
		WithArgs(orderID, models.OrderStatusCompleted, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).
		WithArgs(orderID, models.OrderStatusCompleted, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	swapped, err := repo.MarkEscrowReleased(context.Background(), orderID, time.Now())
	require.NoError(t, err)
	assert.True(t, swapped)

	swapped, err = repo.MarkEscrowReleased(context.Background(), orderID, time.Now())
	require.NoError(t, err)
	assert.False(t, swapped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_UpdateProgress_RejectsBalanceIncrease(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)
	order := &models.Order{
		ID:         uuid.New(),
		Status:     models.OrderStatusDelivered,
		BalanceDue: decimal.NewFromInt(500),
	}

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND balance_due >= $5 AND NOT escrow_released")).
		WithArgs(order.ID, order.Status, false, nil, order.BalanceDue, false).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateProgress(context.Background(), order)
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_GetForUpdate_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)
	orderID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = $1 FOR UPDATE")).
		WithArgs(orderID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetForUpdate(context.Background(), orderID)
	assert.ErrorIs(t, err, apperror.ErrOrderNotFound)
}

func TestOrderRepository_SetRating_AlreadyRated(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)
	orderID := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND NOT rating_submitted")).
		WithArgs(orderID, 5).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetRating(context.Background(), orderID, 5)
	assert.ErrorIs(t, err, apperror.ErrAlreadyRated)
}

func TestOrderRepository_SetRating_RowsAffectedError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)
	orderID := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND NOT rating_submitted")).
		WithArgs(orderID, 4).
		WillReturnResult(sqlmock.NewErrorResult(assert.AnError))

	err := repo.SetRating(context.Background(), orderID, 4)
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.NotErrorIs(t, err, apperror.ErrAlreadyRated)
}

func TestOrderRepository_ListReadyForRelease(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)
	first, second := uuid.New(), uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM orders")).
		WithArgs(50).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(first.String()).AddRow(second.String()))

	ids, err := repo.ListReadyForRelease(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{first, second}, ids)
}

func TestProductRepository_ReserveStock(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProductRepository(db)
	productID := uuid.New()
	query := regexp.QuoteMeta("WHERE id = $1 AND active AND stock >= $2")

	mock.ExpectExec(query).WithArgs(productID, 2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs(productID, 2).WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.ReserveStock(context.Background(), productID, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ReserveStock(context.Background(), productID, 2)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
