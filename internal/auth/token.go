package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iliyamo/tenant-auth/internal/model"
)

// refreshTokenBytes is the entropy of a raw refresh token before
// encoding.  64 bytes -> 86 base64url characters.
const refreshTokenBytes = 64

// AccessToken represents a signed JWT access token along with its
// expiry.  Access tokens are short-lived, carry the tenant binding in
// their claims and are never stored server-side.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// RefreshToken represents a long-lived opaque token used to mint new
// access tokens.  Raw goes back to the client exactly once; only the
// SHA-256 digest of Raw is persisted.
type RefreshToken struct {
	Raw string
	Exp time.Time
}

// Claims is the access-token payload.  TenantID binds the token to the
// tenant it was issued under; the JWT middleware rejects tokens whose
// tenant claim differs from the tenant resolved for the request.
type Claims struct {
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	TenantID   uint64 `json:"tenant_id"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

// NewAccessToken builds and signs an HS256 JWT for a user under the
// given tenant.  The subject is the user id in decimal, jti is a fresh
// UUID, and the validity window is ttl with no clock-skew allowance.
func NewAccessToken(secret string, u *model.User, tenantID uint64, ttl time.Duration) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		Email:      u.Email,
		GivenName:  u.FirstName,
		FamilyName: u.LastName,
		TenantID:   tenantID,
		Role:       string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(u.ID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken validates signature and expiry and returns the
// claims.  Only HMAC signatures are accepted.
func ParseAccessToken(secret, raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}
	return claims, nil
}

// NewRefreshToken returns a cryptographically random opaque token and
// its expiry.  The token embeds nothing: it is a pure capability bearer
// looked up server-side by digest.
func NewRefreshToken(ttl time.Duration) (RefreshToken, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{
		Raw: base64.RawURLEncoding.EncodeToString(buf),
		Exp: time.Now().UTC().Add(ttl),
	}, nil
}

// DigestToken returns the SHA-256 hex digest of a raw refresh token.
// Storage and lookup both use the digest; the raw value exists only in
// transit to the client.
func DigestToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
