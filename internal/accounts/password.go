package accounts

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 6
	// bcrypt ignores input past 72 bytes; longer passwords are rejected
	// rather than silently truncated.
	maxPasswordBytes = 72
)

// Hasher hashes and verifies passwords with bcrypt.
type Hasher struct {
	cost int
	// dummy is compared against when no user exists so that unknown emails
	// take as long as wrong passwords.
	dummy []byte
}

// NewHasher builds a Hasher; a cost outside bcrypt's range uses bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("zemini-timing-equalizer"), cost)
	if err != nil {
		panic(fmt.Sprintf("accounts: generate dummy hash: %v", err))
	}
	return &Hasher{cost: cost, dummy: dummy}
}

// Hash returns the bcrypt hash of password.
func (h *Hasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether candidate matches the stored hash. An empty hash never matches.
func (h *Hasher) Verify(hash, candidate string) bool {
	if hash == "" {
		h.burn(candidate)
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)) == nil
}

func (h *Hasher) burn(candidate string) {
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(candidate))
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return &ValidationError{Message: fmt.Sprintf("password must be at least %d characters", minPasswordLength)}
	}
	if len(password) > maxPasswordBytes {
		return &ValidationError{Message: fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes)}
	}
	return nil
}
