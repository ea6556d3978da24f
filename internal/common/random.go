package common

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

// MakeRandHexString returns size random bytes encoded as hex (2*size chars).
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// RandomCode draws a number uniformly from [min, min+span) using crypto/rand.
func RandomCode(min, span int64) (int64, error) {
	if span <= 0 {
		return 0, fmt.Errorf("%w: code span must be positive", ErrValidation)
	}
	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return 0, err
	}
	return min + n.Int64(), nil
}
