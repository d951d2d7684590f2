// This file, `hasher.go`, handles password hashing.
// Plaintext passwords never reach the database: registration and password changes store a
// bcrypt hash, and login compares the submitted password against it. The Hasher interface
// lets tests use a cheap cost without touching the service code.
package auth

import (
	"fmt"

	// `bcrypt` provides salted, adaptive password hashing.
	"golang.org/x/crypto/bcrypt"
)

// Hasher turns plaintext passwords into salted one-way hashes and checks them.
type Hasher interface {
	// Hash generates a salted hash from a plaintext password.
	Hash(plaintext string) (string, error)
	// Verify reports whether plaintext matches hash. A mismatch is not an error.
	Verify(plaintext, hash string) bool
}

// BcryptHasher implements Hasher with bcrypt. A zero Cost means bcrypt.DefaultCost.
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher returns a hasher using cost, clamped into bcrypt's accepted range.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{Cost: cost}
}

// Hash hashes plaintext with a fresh random salt.
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify compares plaintext against a bcrypt hash.
func (h *BcryptHasher) Verify(plaintext, hash string) bool {
	// a malformed stored hash is also a plain "no"
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
