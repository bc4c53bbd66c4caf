package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestInspect(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	token := signed(t, jwt.MapClaims{
		"sub":   "student-42",
		"email": "s42@example.com",
		"name":  "Student 42",
		"role":  "student",
		"exp":   exp.Unix(),
	})

	info, err := Inspect(token)
	require.NoError(t, err)
	assert.Equal(t, "student-42", info.Subject)
	assert.Equal(t, "s42@example.com", info.Email)
	assert.Equal(t, "student", info.Role)
	require.NotNil(t, info.ExpiresAt)
	assert.WithinDuration(t, exp, *info.ExpiresAt, time.Second)
}

func TestInspectExpired(t *testing.T) {
	token := signed(t, jwt.MapClaims{
		"sub": "student-42",
		"exp": time.Now().Add(-time.Minute).Unix(),
	})

	info, err := Inspect(token)
	assert.ErrorIs(t, err, ErrExpired)
	// Claims are still surfaced so the caller can log who the token was for.
	require.NotNil(t, info)
	assert.Equal(t, "student-42", info.Subject)
}

func TestInspectGarbage(t *testing.T) {
	_, err := Inspect("not-a-jwt")
	assert.Error(t, err)
}

func TestExpiresBefore(t *testing.T) {
	exp := time.Now().Add(10 * time.Minute)
	token := signed(t, jwt.MapClaims{"exp": exp.Unix()})

	info, err := Inspect(token)
	require.NoError(t, err)
	assert.True(t, info.ExpiresBefore(time.Now().Add(time.Hour)))
	assert.False(t, info.ExpiresBefore(time.Now().Add(time.Minute)))

	// No expiry claim at all.
	info, err = Inspect(signed(t, jwt.MapClaims{"sub": "x"}))
	require.NoError(t, err)
	assert.False(t, info.ExpiresBefore(time.Now().Add(24*time.Hour)))
}
