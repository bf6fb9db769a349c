package auth

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrEmptyPassword is returned when an empty or whitespace-only
// plaintext is handed to HashPassword.  Hashing nothing is always a bug
// in the caller.
var ErrEmptyPassword = errors.New("password must not be empty")

// dummyHash is a bcrypt hash of a throwaway value at the default service
// cost.  VerifyDummy compares against it so that a login attempt for an
// unknown email burns the same bcrypt work as a real mismatch, keeping
// response timing from revealing whether the account exists.
const dummyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// HashPassword returns a bcrypt hash using the given cost.  bcrypt
// embeds a fresh random salt in every hash it produces.
func HashPassword(plain string, cost int) (string, error) {
	if strings.TrimSpace(plain) == "" {
		return "", ErrEmptyPassword
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares a bcrypt hash and a plain password.
// Empty inputs verify as false without error.
func VerifyPassword(hash, plain string) bool {
	if strings.TrimSpace(hash) == "" || strings.TrimSpace(plain) == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// VerifyDummy performs a bcrypt comparison that is guaranteed to fail.
// Call it on user-lookup miss so the miss path costs the same as a
// wrong-password path.
func VerifyDummy(plain string) {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(plain))
}
