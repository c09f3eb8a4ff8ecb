// Package controlapi implements a JWT-protected loopback HTTP API
// exposing a running mount's cache status, grounded on the teacher's own
// control-plane auth package but scoped down to a single principal: a
// mount has exactly one control token, not a user/group system.
package controlapi

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Common errors for token operations.
var (
	ErrInvalidToken        = errors.New("invalid token")
	ErrExpiredToken        = errors.New("token has expired")
	ErrInvalidSecretLength = errors.New("JWT secret must be at least 32 characters")
)

// Claims identifies a caller authorized to query a mount's control API.
// There is exactly one principal per mount, so Claims carries no role or
// group information beyond the registered claims.
type Claims struct {
	jwt.RegisteredClaims
}

// JWTConfig configures the control API's token service.
type JWTConfig struct {
	// Secret is the HMAC signing key. Must be at least 32 characters.
	Secret string

	// Issuer is the token issuer claim. Default: "nimbusfs".
	Issuer string

	// Duration is the token's lifetime. Default: 24 hours.
	Duration time.Duration
}

// JWTService issues and validates the bearer token that authorizes
// access to a mount's loopback control API.
type JWTService struct {
	config JWTConfig
}

// NewJWTService creates a token service with the given configuration.
func NewJWTService(config JWTConfig) (*JWTService, error) {
	if len(config.Secret) < 32 {
		return nil, ErrInvalidSecretLength
	}
	if config.Issuer == "" {
		config.Issuer = "nimbusfs"
	}
	if config.Duration == 0 {
		config.Duration = 24 * time.Hour
	}
	return &JWTService{config: config}, nil
}

// IssueToken mints a fresh bearer token valid for config.Duration.
func (s *JWTService) IssueToken() (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   "control",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.Duration)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.Secret))
}

// ValidateToken parses and validates a bearer token.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
