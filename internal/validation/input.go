package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Константы валидации
const (
	MinProductNameLength = 2
	MaxProductNameLength = 200
	MinPlanNameLength    = 2
	MaxPlanNameLength    = 64
	MaxReasonLength      = 500
	MaxOrderQuantity     = 10000
)

var planNameRegex = regexp.MustCompile(`^[a-zA-Zа-яА-ЯёЁ0-9\s\-_.]+$`)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должно быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должно быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s не может быть пустым", fieldName)
	}
	return nil
}

// ValidateProductName проверяет название товара.
func ValidateProductName(name string) error {
	if err := ValidateNonEmpty("название товара", name); err != nil {
		return err
	}
	return ValidateLength("название товара", strings.TrimSpace(name), MinProductNameLength, MaxProductNameLength)
}

// ValidatePlanName проверяет название тарифа подписки.
func ValidatePlanName(plan string) error {
	if err := ValidateNonEmpty("название тарифа", plan); err != nil {
		return err
	}

	plan = strings.TrimSpace(plan)
	if err := ValidateLength("название тарифа", plan, MinPlanNameLength, MaxPlanNameLength); err != nil {
		return err
	}

	if !planNameRegex.MatchString(plan) {
		return fmt.Errorf("название тарифа содержит недопустимые символы")
	}

	return nil
}

// ValidateReason проверяет комментарий к операции по кошельку. Пустой комментарий допустим.
func ValidateReason(reason string) error {
	return ValidateLength("комментарий", reason, 0, MaxReasonLength)
}

// ValidateQuantity проверяет количество товара в заказе.
func ValidateQuantity(quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("количество должно быть положительным")
	}
	if quantity > MaxOrderQuantity {
		return fmt.Errorf("количество не может превышать %d", MaxOrderQuantity)
	}
	return nil
}
