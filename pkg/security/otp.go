package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// GenerateOTPCode produces a zero-padded numeric one-time code of the given
// length using a uniform random draw.
func GenerateOTPCode(length int) (string, error) {
	if length <= 0 || length > 10 {
		return "", fmt.Errorf("otp length %d out of range", length)
	}
	bound := big.NewInt(1)
	for i := 0; i < length; i++ {
		bound.Mul(bound, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", length, n), nil
}
