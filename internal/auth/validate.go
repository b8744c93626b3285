package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ValidateToken is a structural check: the token must parse as a three-segment
// JWT, and if the payload carries an exp claim it must not be in the past.
// Signatures are not verified here. Returns false, never panics, on any
// malformed input.
func ValidateToken(tokenString string) bool {
	if tokenString == "" {
		return false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return false
	}
	if exp != nil && exp.Before(time.Now()) {
		return false
	}
	return true
}
