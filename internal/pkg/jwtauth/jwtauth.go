// Package jwtauth validates HS256 bearer tokens for httputil.AuthMiddleware.
package jwtauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/domain"
)

// Token errors.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrInvalidRole  = errors.New("invalid role claim")
)

// Config holds token validation settings.
type Config struct {
	SecretKey string
	// Issuer, when set, must match the iss claim.
	Issuer string
}

// Claims are the claims carried by an API token.
type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Validator implements httputil.TokenValidator.
type Validator struct {
	config Config
	parser *jwt.Parser
}

// NewValidator creates a new token validator.
func NewValidator(config Config) *Validator {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	return &Validator{
		config: config,
		parser: jwt.NewParser(opts...),
	}
}

// ValidateToken checks the signature and claims and returns the subject
// and role.
func (v *Validator) ValidateToken(_ context.Context, tokenString string) (string, domain.Role, error) {
	var claims Claims
	_, err := v.parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (interface{}, error) {
		return []byte(v.config.SecretKey), nil
	})
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if !claims.Role.IsValid() {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRole, claims.Role)
	}
	return claims.Subject, claims.Role, nil
}

// Issue signs a token for subject with the given role. The service never
// issues tokens itself; this is used by tests and operator tooling.
func Issue(config Config, subject string, role domain.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(config.SecretKey))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
