package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenUsable inspects a persisted bearer token without verifying its
// signature (the client holds no key) and reports whether it is worth
// presenting to the server. Opaque non-JWT tokens are assumed usable;
// a JWT with an expiry in the past is not.
func TokenUsable(token string, now time.Time) bool {
	if token == "" {
		return false
	}
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		// Not a JWT. The server decides; treat it as usable.
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return exp.After(now)
}
