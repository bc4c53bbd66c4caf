// Package auth inspects the bearer token the player carries. The token
// is issued and verified by the backend; the player only reads claims
// to surface identity and catch an expired token before wasting an
// exam start on it.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrExpired is returned by Inspect for a token already past its expiry.
var ErrExpired = errors.New("bearer token is expired")

// TokenInfo is the subset of claims the player cares about.
type TokenInfo struct {
	Subject   string
	Email     string
	Name      string
	Role      string
	ExpiresAt *time.Time
}

// Inspect decodes the token without signature verification (the server
// owns the signing key) and extracts identity claims. Returns ErrExpired
// when the expiry claim is in the past.
func Inspect(token string) (*TokenInfo, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, err
	}

	info := &TokenInfo{
		Subject: claimString(claims, "sub"),
		Email:   claimString(claims, "email"),
		Name:    claimString(claims, "name"),
		Role:    claimString(claims, "role"),
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		t := exp.Time
		info.ExpiresAt = &t
	}

	if info.ExpiresAt != nil && info.ExpiresAt.Before(time.Now()) {
		return info, ErrExpired
	}

	return info, nil
}

// ExpiresBefore reports whether the token expires before the given
// deadline. Tokens without an expiry claim never expire early.
func (t *TokenInfo) ExpiresBefore(deadline time.Time) bool {
	return t.ExpiresAt != nil && t.ExpiresAt.Before(deadline)
}

func claimString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
