package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/omnimarket-backend/internal/models"
	"github.com/ignatzorin/omnimarket-backend/internal/repository/common"
)

type SubscriptionRepository struct {
	db *sqlx.DB
}

func NewSubscriptionRepository(db *sqlx.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) Create(ctx context.Context, sub *models.Subscription) error {
	err := common.Conn(ctx, r.db).GetContext(ctx, sub, `
		INSERT INTO subscriptions (user_id, plan_name, amount, starts_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, user_id, plan_name, amount, starts_at, expires_at, created_at
	`, sub.UserID, sub.PlanName, sub.Amount, sub.StartsAt, sub.ExpiresAt)
	if err != nil {
		return fmt.Errorf("subscription repository: create %w", err)
	}
	return nil
}

func (r *SubscriptionRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error) {
	subs := []models.Subscription{}
	err := common.Conn(ctx, r.db).SelectContext(ctx, &subs, `
		SELECT id, user_id, plan_name, amount, starts_at, expires_at, created_at
		FROM subscriptions WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("subscription repository: list %w", err)
	}
	return subs, nil
}
