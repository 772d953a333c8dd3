package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(exp time.Duration) *JWTService {
	return NewJWTService(JWTConfig{SecretKey: "test-secret", AccessTokenExp: exp, TokenIssuer: "placement.test"})
}

func TestGenerateAndValidate(t *testing.T) {
	svc := newTestService(time.Hour)

	token, err := svc.GenerateAccessToken("stu-1", "a@college.edu", RoleStudent, "21CS001")
	require.NoError(t, err)

	claims, err := svc.ValidateAndExtractClaims(token)
	require.NoError(t, err)
	assert.Equal(t, "stu-1", claims.UserID)
	assert.Equal(t, "21CS001", claims.RollNumber)
	assert.False(t, claims.IsAdmin())
}

func TestValidateExpired(t *testing.T) {
	svc := newTestService(-time.Minute)

	token, err := svc.GenerateAccessToken("stu-1", "", RoleStudent, "")
	require.NoError(t, err)

	_, err = svc.ValidateAndExtractClaims(token)
	assert.True(t, errors.Is(err, ErrExpiredToken))
}

func TestValidateWrongSecret(t *testing.T) {
	token, err := newTestService(time.Hour).GenerateAccessToken("adm-1", "", RoleAdmin, "")
	require.NoError(t, err)

	other := NewJWTService(JWTConfig{SecretKey: "other", AccessTokenExp: time.Hour, TokenIssuer: "placement.test"})
	_, err = other.ValidateAndExtractClaims(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestValidateUnknownRole(t *testing.T) {
	svc := newTestService(time.Hour)
	token, err := svc.GenerateAccessToken("x", "", "recruiter", "")
	require.NoError(t, err)

	_, err = svc.ValidateAndExtractClaims(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExtractBearerToken(t *testing.T) {
	tok, err := ExtractBearerToken("Bearer a.b.c")
	require.NoError(t, err)
	assert.Equal(t, "a.b.c", tok)

	tok, err = ExtractBearerToken("a.b.c")
	require.NoError(t, err)
	assert.Equal(t, "a.b.c", tok)

	_, err = ExtractBearerToken("Basic Zm9v")
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, err = ExtractBearerToken("")
	assert.ErrorIs(t, err, ErrInvalidFormat)
}
