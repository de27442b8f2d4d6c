package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	nanoid "github.com/jaevor/go-nanoid"
	"github.com/ulule/limiter/v3"

	"github.com/ignatzorin/omnimarket-backend/internal/domain/valueobject"
	"github.com/ignatzorin/omnimarket-backend/internal/pkg/apperror"
)

// OTPGenerator выдаёт коды подтверждения доставки.
type OTPGenerator interface {
	Generate() (string, error)
}

// NanoidOTPGenerator генерирует шестизначные коды из криптографического источника.
type NanoidOTPGenerator struct {
	next func() string
}

func NewNanoidOTPGenerator() (*NanoidOTPGenerator, error) {
	gen, err := nanoid.CustomASCII(valueobject.OTPAlphabet, valueobject.OTPLength)
	if err != nil {
		return nil, fmt.Errorf("otp: инициализация генератора: %w", err)
	}
	return &NanoidOTPGenerator{next: gen}, nil
}

func (g *NanoidOTPGenerator) Generate() (string, error) {
	code := g.next()
	if !valueobject.ValidOTPFormat(code) {
		return "", fmt.Errorf("otp: сгенерирован некорректный код")
	}
	return code, nil
}

// OTPThrottle ограничивает число неверных кодов по заказу.
type OTPThrottle interface {
	Check(ctx context.Context, orderID uuid.UUID) error
	Fail(ctx context.Context, orderID uuid.UUID) error
	Reset(ctx context.Context, orderID uuid.UUID) error
}

// OTPGuard считает попытки подтверждения в хранилище лимитера (память или Redis).
type OTPGuard struct {
	limiter *limiter.Limiter
}

func NewOTPGuard(store limiter.Store, maxAttempts int64, window time.Duration) *OTPGuard {
	rate := limiter.Rate{Period: window, Limit: maxAttempts}
	return &OTPGuard{limiter: limiter.New(store, rate)}
}

// Check возвращает ErrOTPLocked, если неверные коды исчерпали лимит. Счётчик не меняется.
func (g *OTPGuard) Check(ctx context.Context, orderID uuid.UUID) error {
	lc, err := g.limiter.Peek(ctx, otpKey(orderID))
	if err != nil {
		return fmt.Errorf("otp: лимитер недоступен: %w", err)
	}
	if lc.Reached || lc.Remaining <= 0 {
		return apperror.ErrOTPLocked
	}
	return nil
}

// Fail учитывает неверный код.
func (g *OTPGuard) Fail(ctx context.Context, orderID uuid.UUID) error {
	if _, err := g.limiter.Get(ctx, otpKey(orderID)); err != nil {
		return fmt.Errorf("otp: лимитер недоступен: %w", err)
	}
	return nil
}

// Reset сбрасывает счётчик после успешного подтверждения.
func (g *OTPGuard) Reset(ctx context.Context, orderID uuid.UUID) error {
	_, err := g.limiter.Reset(ctx, otpKey(orderID))
	return err
}

func otpKey(orderID uuid.UUID) string {
	return "otp:" + orderID.String()
}
