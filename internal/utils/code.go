package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// ResetCodeDigits is the length of a password-reset verification code.
const ResetCodeDigits = 6

var resetCodeSpace = big.NewInt(1_000_000)

// NewResetCode returns a uniformly random 6-digit code, zero padded.
func NewResetCode() (string, error) {
	n, err := rand.Int(rand.Reader, resetCodeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// IsResetCode reports whether s has the shape of a reset code.
func IsResetCode(s string) bool {
	if len(s) != ResetCodeDigits {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
