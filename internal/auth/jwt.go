package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token verification failures. Every expected failure maps to exactly one of
// these so callers can branch without string matching.
var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenSignature = errors.New("token signature invalid")
	ErrTokenWrongType = errors.New("token type mismatch")
	ErrTokenMalformed = errors.New("token malformed")
)

// TokenKind discriminates access tokens from refresh tokens.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// Identity is the authenticated subject embedded in every token.
type Identity struct {
	UserID int64
	Email  string
	Role   string
}

// Claims are the JWT claims carried by both token kinds. The subject is the
// user's email; the type claim tells the two kinds apart.
type Claims struct {
	UserID int64     `json:"user_id"`
	Role   string    `json:"role"`
	Type   TokenKind `json:"type"`
	jwt.RegisteredClaims
}

// Email returns the subject claim.
func (c *Claims) Email() string {
	return c.Subject
}

// TokenManager issues and verifies the signed token pairs. Only HMAC signing
// is accepted on verification.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// Option configures a TokenManager.
type Option func(*TokenManager)

// WithClock overrides the time source used for issuing and verifying tokens.
func WithClock(now func() time.Time) Option {
	return func(m *TokenManager) {
		m.now = now
	}
}

// NewTokenManager creates a token manager signing with the given shared secret.
func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration, opts ...Option) *TokenManager {
	m := &TokenManager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AccessTTL returns the configured access token lifetime.
func (m *TokenManager) AccessTTL() time.Duration {
	return m.accessTTL
}

// RefreshTTL returns the configured refresh token lifetime.
func (m *TokenManager) RefreshTTL() time.Duration {
	return m.refreshTTL
}

// IssueAccess creates a signed access token for the identity.
func (m *TokenManager) IssueAccess(identity Identity) (string, error) {
	return m.issue(identity, KindAccess, m.accessTTL)
}

// IssueRefresh creates a signed refresh token for the identity.
func (m *TokenManager) IssueRefresh(identity Identity) (string, error) {
	return m.issue(identity, KindRefresh, m.refreshTTL)
}

func (m *TokenManager) issue(identity Identity, kind TokenKind, ttl time.Duration) (string, error) {
	now := m.now().UTC()
	claims := &Claims{
		UserID: identity.UserID,
		Role:   identity.Role,
		Type:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			// Random ID so two tokens minted in the same second still differ.
			ID: uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}

	return signed, nil
}

// Verify parses and validates a token, requiring it to be of the given kind.
// Checks run structure first, then signature, then expiry, then kind. A token
// missing any of exp, iat, type, or jti is malformed even when its signature
// checks out.
func (m *TokenManager) Verify(tokenString string, kind TokenKind) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, mapParseError(err)
	}

	if claims.IssuedAt == nil || claims.ID == "" || claims.Type == "" {
		return nil, ErrTokenMalformed
	}
	if claims.Type != kind {
		return nil, ErrTokenWrongType
	}

	return &claims, nil
}

// mapParseError collapses the library's error tree onto the package sentinels.
func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrTokenSignature
	default:
		return ErrTokenMalformed
	}
}
