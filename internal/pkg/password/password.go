// Package password wraps bcrypt behind the two operations the rest of the
// service needs. Plaintext passwords never leave this boundary in any
// persisted or logged form.
package password

import "golang.org/x/crypto/bcrypt"

// Hash returns a salted bcrypt hash of plaintext. Each call produces a
// different hash for the same input because bcrypt embeds a random salt.
func Hash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify reports whether plaintext matches the stored hash.
func Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
