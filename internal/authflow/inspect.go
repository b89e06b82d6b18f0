package authflow

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoToken is returned by InspectToken for an empty token.
var ErrNoToken = errors.New("no token configured")

// TokenInfo describes a stored access token. Opaque tokens only carry Raw.
type TokenInfo struct {
	Raw       string
	IsJWT     bool
	Issuer    string
	Subject   string
	Audience  []string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Claims    map[string]any
}

// HasExpiry reports whether the token declares an expiry time.
func (i *TokenInfo) HasExpiry() bool {
	return !i.ExpiresAt.IsZero()
}

// Remaining is the validity left at now, negative once expired. It is zero
// for tokens without an expiry.
func (i *TokenInfo) Remaining(now time.Time) time.Duration {
	if !i.HasExpiry() {
		return 0
	}
	return i.ExpiresAt.Sub(now)
}

// Expired reports whether the token's expiry is at or before now.
func (i *TokenInfo) Expired(now time.Time) bool {
	return i.HasExpiry() && !now.Before(i.ExpiresAt)
}

// InspectToken decodes a stored token without verifying its signature. A
// leading "Bearer " is ignored. Tokens that are not three-part JWTs are
// reported as opaque; a malformed JWT is an error.
func InspectToken(raw string) (*TokenInfo, error) {
	token := strings.TrimSpace(raw)
	if len(token) >= 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return nil, ErrNoToken
	}

	info := &TokenInfo{Raw: token}
	if strings.Count(token, ".") != 2 {
		return info, nil
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to decode JWT: %w", err)
	}

	info.IsJWT = true
	info.Claims = claims
	info.Issuer, _ = claims.GetIssuer()
	info.Subject, _ = claims.GetSubject()
	if aud, err := claims.GetAudience(); err == nil {
		info.Audience = aud
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		info.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	return info, nil
}
