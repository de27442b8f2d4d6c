package valueobject

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidOTPFormat(t *testing.T) {
	assert.True(t, ValidOTPFormat("000123"))
	assert.False(t, ValidOTPFormat("12345"))
	assert.False(t, ValidOTPFormat("1234567"))
	assert.False(t, ValidOTPFormat("12a456"))
	assert.False(t, ValidOTPFormat("١٢٣٤٥٦"))
}

func TestMatchOTP(t *testing.T) {
	assert.True(t, MatchOTP("048213", "048213"))
	assert.False(t, MatchOTP("048213", "048214"))
	assert.False(t, MatchOTP("048213", "48213"))
	assert.False(t, MatchOTP("048213", "0482130"))
	assert.False(t, MatchOTP("048213", " 048213"))
	assert.False(t, MatchOTP("", ""))
}
