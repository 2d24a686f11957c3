// Package auth issues and checks the API's bearer tokens. Tokens are
// HS256 JWTs carrying a single scope claim.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Scopes, least to most privileged: append may only record entries,
// read additionally queries and exports, admin additionally runs
// verification and mints tokens.
const (
	ScopeAppend = "append"
	ScopeRead   = "read"
	ScopeAdmin  = "admin"
)

var scopeRank = map[string]int{
	ScopeAppend: 0,
	ScopeRead:   1,
	ScopeAdmin:  2,
}

// ValidScope reports whether s names a known scope.
func ValidScope(s string) bool {
	_, ok := scopeRank[s]
	return ok
}

// Allows reports whether a token with scope held may use an endpoint
// requiring scope required.
func Allows(held, required string) bool {
	h, ok := scopeRank[held]
	if !ok {
		return false
	}
	return h >= scopeRank[required]
}

// Claims are the ledger API's JWT claims.
type Claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// Service mints and validates tokens against a shared secret.
type Service struct {
	secret []byte
	issuer string
}

// NewService creates a token service. An empty secret disables auth;
// callers decide whether that is acceptable for their deployment.
func NewService(secret string) *Service {
	return &Service{secret: []byte(secret), issuer: "auditledger"}
}

// Enabled reports whether a secret is configured.
func (s *Service) Enabled() bool { return len(s.secret) > 0 }

// Mint issues a token with the given scope and lifetime.
func (s *Service) Mint(scope string, ttl time.Duration) (string, error) {
	if !s.Enabled() {
		return "", errors.New("no auth secret configured")
	}
	if !ValidScope(scope) {
		return "", fmt.Errorf("unknown scope %q", scope)
	}

	now := time.Now()
	claims := &Claims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Validate parses and checks a token, returning its claims.
func (s *Service) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if !ValidScope(claims.Scope) {
		return nil, fmt.Errorf("token carries unknown scope %q", claims.Scope)
	}
	return claims, nil
}
