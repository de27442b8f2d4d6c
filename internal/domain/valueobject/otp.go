package valueobject

import "crypto/subtle"

// OTPLength длина кода подтверждения доставки.
const OTPLength = 6

// OTPAlphabet допустимые символы кода.
const OTPAlphabet = "0123456789"

// ValidOTPFormat проверяет, что код состоит ровно из шести цифр.
func ValidOTPFormat(code string) bool {
	if len(code) != OTPLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// MatchOTP сравнивает коды за постоянное время. Частичное совпадение не допускается.
func MatchOTP(stored, submitted string) bool {
	if !ValidOTPFormat(stored) || !ValidOTPFormat(submitted) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(submitted)) == 1
}
