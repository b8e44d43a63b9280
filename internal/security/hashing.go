package security

import (
	"golang.org/x/crypto/bcrypt"
)

// dummyHash is a bcrypt hash of an unguessable throwaway value. Verify runs
// against it when no real hash exists so the work factor is paid on every
// authentication attempt regardless of whether the account exists.
const dummyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// Hasher hashes and verifies passwords using bcrypt. Callers must not log or
// persist plaintext passwords. Bcrypt silently truncates inputs beyond 72
// bytes; that is an accepted property of the algorithm family, not a bug.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher with the given bcrypt cost (4–31). Cost 12 is a
// reasonable default for interactive login.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{Cost: cost}
}

// Hash produces a salted bcrypt hash of password. A fresh salt is generated on
// every call and embedded in the output, so no separate salt storage is needed.
func (h *Hasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword(truncate(password), h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether password matches the stored hash. Malformed hashes
// verify as false rather than erroring, so callers cannot distinguish a bad
// hash from a wrong password.
func (h *Hasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), truncate(password)) == nil
}

// truncate applies bcrypt's 72-byte input limit. The Go implementation rejects
// longer inputs instead of truncating like the original C library; truncating
// here keeps the classic behavior so oversized passwords hash instead of
// erroring.
func truncate(password string) []byte {
	b := []byte(password)
	if len(b) > 72 {
		b = b[:72]
	}
	return b
}

// VerifyDummy burns one bcrypt comparison against a fixed hash. Callers use it
// on the unknown-user and no-local-password paths so timing does not reveal
// account existence.
func (h *Hasher) VerifyDummy(password string) {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
}
