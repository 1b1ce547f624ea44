package jwtauth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/domain"
)

var testConfig = Config{SecretKey: "test-secret-key-at-least-32-bytes!!", Issuer: "sla-tracker"}

func TestValidator_ValidToken(t *testing.T) {
	token, err := Issue(testConfig, "user-1", domain.RoleOperator, time.Hour)
	require.NoError(t, err)

	userID, role, err := NewValidator(testConfig).ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
	assert.Equal(t, domain.RoleOperator, role)
}

func TestValidator_Rejects(t *testing.T) {
	validator := NewValidator(testConfig)

	expired, err := Issue(testConfig, "user-1", domain.RoleAdmin, -time.Minute)
	require.NoError(t, err)

	wrongSecret, err := Issue(Config{SecretKey: "another-secret", Issuer: testConfig.Issuer}, "user-1", domain.RoleAdmin, time.Hour)
	require.NoError(t, err)

	wrongIssuer, err := Issue(Config{SecretKey: testConfig.SecretKey, Issuer: "someone-else"}, "user-1", domain.RoleAdmin, time.Hour)
	require.NoError(t, err)

	noSubject, err := Issue(testConfig, "", domain.RoleAdmin, time.Hour)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             domain.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", Issuer: testConfig.Issuer},
	}).SignedString([]byte(testConfig.SecretKey))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"expired", expired},
		{"wrong secret", wrongSecret},
		{"wrong issuer", wrongIssuer},
		{"missing subject", noSubject},
		{"missing expiry", noExpiry},
		{"garbage", "not-a-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := validator.ValidateToken(context.Background(), tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestValidator_UnknownRole(t *testing.T) {
	token, err := Issue(testConfig, "user-1", domain.Role("superuser"), time.Hour)
	require.NoError(t, err)

	_, _, err = NewValidator(testConfig).ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestValidator_RejectsOtherAlgorithms(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		Role: domain.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    testConfig.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testConfig.SecretKey))
	require.NoError(t, err)

	_, _, err = NewValidator(testConfig).ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
