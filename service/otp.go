package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// OTPValidity is how long an issued OTP stays usable.
const OTPValidity = 10 * time.Minute

// GenerateOTP returns a uniformly random 6-digit numeric code. Leading
// zeros are preserved, so the result is always exactly 6 characters.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// VerifyOTP reports whether the provided code matches the stored one and
// the stored expiry has not passed. An expired code is invalid even when
// the values match.
func VerifyOTP(stored, provided string, expiresAt time.Time) bool {
	if stored == "" || expiresAt.IsZero() {
		return false
	}
	if time.Now().After(expiresAt) {
		return false
	}
	return stored == provided
}
