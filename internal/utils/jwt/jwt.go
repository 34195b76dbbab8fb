// Package jwt reads and mints record store auth tokens.
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TypeAuthRecord marks a token issued to an end user rather than an admin.
const TypeAuthRecord = "authRecord"

var (
	ErrInvalidToken = errors.New("invalid or malformed token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims follow the record store's auth token layout: the user id travels as "id".
type Claims struct {
	UserID       string `json:"id"`
	CollectionID string `json:"collectionId,omitempty"`
	Type         string `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// GenerateAccessToken signs an authRecord token for userID. Used by tests and local
// tooling; production tokens come from the record store.
func GenerateAccessToken(userID string, secret string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Type:   TypeAuthRecord,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

var hmacParser = jwt.NewParser(jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))

// VerifyToken checks the signature and expiry of tokenString.
func VerifyToken(tokenString string, secret string) (*Claims, error) {
	claims := &Claims{}
	_, err := hmacParser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	case err != nil:
		return nil, ErrInvalidToken
	}
	return checked(claims)
}

// DecodeWithoutVerify reads tokenString without checking the signature. Expiry is
// still enforced. The claims must not be trusted until the issuer confirms the token.
func DecodeWithoutVerify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, ErrInvalidToken
	}
	if claims.ExpiresAt != nil && !time.Now().Before(claims.ExpiresAt.Time) {
		return nil, ErrExpiredToken
	}
	return checked(claims)
}

// checked rejects tokens without a user id and admin tokens.
func checked(claims *Claims) (*Claims, error) {
	if claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	if claims.Type != "" && claims.Type != TypeAuthRecord {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
