package model

import "time"

// RefreshToken models an entry in the `refresh_tokens` table.  Each
// token belongs to a user and is immutable after issuance except for the
// one-way revocation flag.  The raw token value is never stored; only
// its SHA-256 hex digest, so a leaked database cannot mint sessions.
//
// Fields:
//  ID          – primary key identifier.
//  UserID      – owner of the token.
//  TokenDigest – SHA-256 hex digest of the raw token value.
//  ExpiresAt   – expiration timestamp.
//  RevokedAt   – when the token was revoked (nil while active).
//  CreatedAt   – timestamp of issuance.
type RefreshToken struct {
	ID          uint64
	UserID      uint64
	TokenDigest string
	ExpiresAt   time.Time
	RevokedAt   *time.Time
	CreatedAt   time.Time
}

// IsRevoked reports whether the one-way revocation flag has been set.
func (t *RefreshToken) IsRevoked() bool { return t.RevokedAt != nil }

// IsExpired reports whether the token's expiry has passed at now.
func (t *RefreshToken) IsExpired(now time.Time) bool { return now.After(t.ExpiresAt) }

// Valid reports whether the token may still be exchanged: not revoked
// and not expired.
func (t *RefreshToken) Valid(now time.Time) bool { return !t.IsRevoked() && !t.IsExpired(now) }
