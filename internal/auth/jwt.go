// Package auth protects the HTTP API with short-lived bearer tokens.
//
// THE FLOW:
//
//	POST /auth/token {"passphrase": "..."}  → bcrypt check → signed JWT
//	GET  /api/...  Authorization: Bearer <jwt>  → RequireBearer validates it
//
// There are no user accounts. Whoever knows the server passphrase can obtain a
// token; the token's subject is the client name they asked for (for logs).
//
// Tokens are HS256: the process that signs them is the only one that verifies.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer = "lesson-runner"

	// DefaultTokenTTL keeps a leaked token useful for one working session at most.
	DefaultTokenTTL = time.Hour

	// MinSecretLength guards against trivially brute-forceable HMAC keys.
	MinSecretLength = 16
)

// Scopes carried in tokens. ScopeRun may execute lessons; ScopeRead may only
// list lessons, history and progress.
const (
	ScopeRun  = "run"
	ScopeRead = "read"
)

// TokenService signs and validates API tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService returns a TokenService. ttl <= 0 uses DefaultTokenTTL.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("auth: JWT secret must be at least %d characters", MinSecretLength)
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Claims is what a validated token tells the server about its bearer.
type Claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// Issue signs a token for subject with the given scope.
func (s *TokenService) Issue(subject, scope string) (token string, expires time.Time, err error) {
	if scope != ScopeRun && scope != ScopeRead {
		return "", time.Time{}, fmt.Errorf("auth: unknown scope %q", scope)
	}

	now := s.now()
	expires = now.Add(s.ttl)
	c := Claims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: signing token: %w", err)
	}
	return token, expires, nil
}

// Validate checks signature, issuer and expiry and returns the claims.
//
// The algorithm is pinned to HS256. Without that, a token with "alg": "none"
// or an RSA public key used as an HMAC secret could pass verification.
func (s *TokenService) Validate(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: token expired")
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("auth: token has no subject")
	}
	return c, nil
}
