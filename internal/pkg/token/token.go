// Package token generates the opaque secrets used by the password-recovery
// flow: reset tokens and initial passwords for auto-provisioned accounts.
// Both draw from crypto/rand; math/rand is not acceptable for either.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const resetTokenBytes = 20

const (
	letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits  = "0123456789"
)

// NewResetToken returns a 40-character hex token for password reset links.
func NewResetToken() (string, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GeneratePassword returns a random initial password of the given length.
// With useNumbers the alphabet includes digits alongside letters.
func GeneratePassword(length int, useNumbers bool) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("generate password: invalid length %d", length)
	}

	alphabet := letters
	if useNumbers {
		alphabet += digits
	}

	out := make([]byte, length)
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out), nil
}
