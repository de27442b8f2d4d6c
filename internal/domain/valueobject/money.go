package valueobject

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ignatzorin/omnimarket-backend/internal/pkg/apperror"
)

// MoneyScale количество знаков после запятой во всех денежных суммах.
const MoneyScale = 2

// CommissionRateScale точность ставки комиссии, столбец NUMERIC(5,4).
const CommissionRateScale = 4

var hundred = decimal.NewFromInt(100)

type DepositKind string

const (
	DepositFull    DepositKind = "full"
	DepositPercent DepositKind = "percent"
	DepositFixed   DepositKind = "fixed"
)

// DepositPolicy определяет, какая часть цены списывается при оформлении заказа.
type DepositPolicy struct {
	Kind  DepositKind
	Value decimal.Decimal
}

// NewDepositPolicy проверяет параметры политики. Пустой kind означает полную оплату.
func NewDepositPolicy(kind string, value decimal.Decimal) (DepositPolicy, error) {
	k := DepositKind(strings.ToLower(strings.TrimSpace(kind)))
	if k == "" {
		k = DepositFull
	}

	switch k {
	case DepositFull:
		return DepositPolicy{Kind: DepositFull}, nil
	case DepositPercent:
		if !value.IsPositive() || value.GreaterThan(hundred) {
			return DepositPolicy{}, apperror.New(apperror.ErrCodeValidation, "процент депозита должен быть от 0 до 100")
		}
	case DepositFixed:
		if !value.IsPositive() {
			return DepositPolicy{}, apperror.New(apperror.ErrCodeValidation, "сумма депозита должна быть положительной")
		}
		if !IsMoney(value) {
			return DepositPolicy{}, apperror.New(apperror.ErrCodeValidation, "сумма депозита указана с лишней точностью")
		}
	default:
		return DepositPolicy{}, apperror.New(apperror.ErrCodeValidation, "неизвестный тип депозита")
	}

	return DepositPolicy{Kind: k, Value: value}, nil
}

// Split делит стоимость заказа на депозит и остаток. deposit + balance == total.
func (p DepositPolicy) Split(total decimal.Decimal) (deposit, balance decimal.Decimal, err error) {
	if !total.IsPositive() {
		return decimal.Zero, decimal.Zero, apperror.New(apperror.ErrCodeValidation, "стоимость заказа должна быть положительной")
	}

	switch p.Kind {
	case DepositFull, "":
		deposit = total
	case DepositPercent:
		deposit = total.Mul(p.Value).Div(hundred).Round(MoneyScale)
	case DepositFixed:
		if p.Value.GreaterThan(total) {
			return decimal.Zero, decimal.Zero, apperror.New(apperror.ErrCodeValidation, "депозит не может превышать стоимость заказа")
		}
		deposit = p.Value
	default:
		return decimal.Zero, decimal.Zero, apperror.New(apperror.ErrCodeValidation, "неизвестный тип депозита")
	}

	return deposit, total.Sub(deposit), nil
}

// SplitCommission делит сумму заказа между продавцом и платформой.
// Комиссия округляется до копеек, продавец получает остаток, поэтому сумма частей равна total.
func SplitCommission(total, rate decimal.Decimal) (sellerAmount, commission decimal.Decimal, err error) {
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Zero, decimal.Zero, apperror.New(apperror.ErrCodeValidation, "ставка комиссии должна быть в диапазоне [0, 1)")
	}
	if total.IsNegative() {
		return decimal.Zero, decimal.Zero, apperror.New(apperror.ErrCodeValidation, "сумма не может быть отрицательной")
	}

	commission = total.Mul(rate).Round(MoneyScale)
	return total.Sub(commission), commission, nil
}

// ValidateCommissionRate проверяет ставку комиссии: [0, 1) и не точнее четырёх знаков.
func ValidateCommissionRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return apperror.New(apperror.ErrCodeValidation, "ставка комиссии должна быть в диапазоне [0, 1)")
	}
	if !rate.Equal(rate.Round(CommissionRateScale)) {
		return apperror.New(apperror.ErrCodeValidation, "ставка комиссии указана с лишней точностью")
	}
	return nil
}

// IsMoney проверяет, что сумма не точнее копеек.
func IsMoney(amount decimal.Decimal) bool {
	return amount.Equal(amount.Round(MoneyScale))
}

// ValidatePositiveAmount проверяет сумму пополнения или списания.
func ValidatePositiveAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperror.New(apperror.ErrCodeValidation, "сумма должна быть положительной")
	}
	if !IsMoney(amount) {
		return apperror.New(apperror.ErrCodeValidation, "сумма указана с лишней точностью")
	}
	return nil
}
