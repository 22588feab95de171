package auth

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordTooLong is returned for credentials bcrypt cannot hash.
var ErrPasswordTooLong = bcrypt.ErrPasswordTooLong

// Hasher produces and verifies salted bcrypt hashes.
type Hasher struct {
	cost int

	dummyOnce sync.Once
	dummy     []byte
}

// NewHasher returns a Hasher using cost, or bcrypt.DefaultCost when cost is out of range.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash returns the bcrypt hash of password.
func (h *Hasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify reports whether password matches hash. The comparison is constant time.
func (h *Hasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// VerifyNothing burns the same work as Verify against a throwaway hash.
// Login calls it for unknown usernames so both failure paths take equal time.
func (h *Hasher) VerifyNothing(password string) {
	h.dummyOnce.Do(func() {
		hashed, err := bcrypt.GenerateFromPassword([]byte("gamevault-dummy-credential"), h.cost)
		if err == nil {
			h.dummy = hashed
		}
	})
	if h.dummy == nil {
		return
	}
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(password))
}
