package security

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned for any malformed, tampered, expired, or
	// wrong-type token. Deliberately a single sentinel: callers must not be
	// able to tell which check failed.
	ErrInvalidToken = errors.New("invalid token")
)

// refreshTokenType is the type discriminator carried by refresh tokens so an
// access token can never be replayed as a refresh token or vice versa.
const refreshTokenType = "refresh"

// AccessClaims holds JWT claims for the access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
	// TokenType is empty on access tokens; VerifyAccess rejects any token
	// carrying the refresh marker.
	TokenType string `json:"type,omitempty"`
}

// RefreshClaims holds JWT claims for the refresh token.
type RefreshClaims struct {
	jwt.RegisteredClaims
	TokenType string `json:"type"`
}

// TokenProvider issues and verifies HS256 JWTs with a single shared secret.
// The signing method is pinned at verify time so a token signed with any other
// algorithm is rejected regardless of its header.
type TokenProvider struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenProvider returns a TokenProvider signing with secret. accessTTL and
// refreshTTL bound the lifetimes of the two token kinds.
func NewTokenProvider(secret string, accessTTL, refreshTTL time.Duration) *TokenProvider {
	return &TokenProvider{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// IssueAccess issues a short-lived access token for the given subject carrying
// its role claim. Returns the signed token and its expiration time.
func (p *TokenProvider) IssueAccess(subject string, role string) (token string, expiresAt time.Time, err error) {
	now := time.Now().UTC()
	expiresAt = now.Add(p.accessTTL)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role: role,
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	return token, expiresAt, err
}

// IssueRefresh issues a long-lived refresh token for the given subject. The
// claims carry the refresh type marker so VerifyAccess will reject it.
func (p *TokenProvider) IssueRefresh(subject string) (token string, expiresAt time.Time, err error) {
	now := time.Now().UTC()
	expiresAt = now.Add(p.refreshTTL)
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TokenType: refreshTokenType,
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	return token, expiresAt, err
}

// VerifyAccess parses and validates an access token (signature, structure,
// expiry). Returns ErrInvalidToken for every failure mode, including a refresh
// token presented as an access token.
func (p *TokenProvider) VerifyAccess(tokenString string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, p.keyFunc)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.TokenType == refreshTokenType {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyRefresh parses and validates a refresh token. In addition to the
// signature and expiry checks it requires the refresh type marker, so an
// access token can never pass as a refresh token.
func (p *TokenProvider) VerifyRefresh(tokenString string) (*RefreshClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &RefreshClaims{}, p.keyFunc)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*RefreshClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.TokenType != refreshTokenType {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// keyFunc pins the expected signing method: only HMAC (HS256) tokens are
// accepted, which structurally prevents algorithm confusion.
func (p *TokenProvider) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, ErrInvalidToken
	}
	return p.secret, nil
}

// TokensEqual performs a constant-time comparison of two token strings. Used
// when matching a presented refresh token against the stored one.
func TokensEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
