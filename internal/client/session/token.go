package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IssuedAtFromToken returns the "iat" claim of a JWT access token, or
// fallback when the token is not a JWT or carries no iat.
//
// The signature is not checked; the client only reads its own token.
func IssuedAtFromToken(token string, fallback time.Time) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return fallback
	}
	iat, err := claims.GetIssuedAt()
	if err != nil || iat == nil {
		return fallback
	}
	return iat.Time
}
