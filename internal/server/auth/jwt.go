// Package auth holds the two credential formats the host accepts: owner
// console JWTs and the ClientAuthenticationToken presented by remote hosts
// and local apps.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hostvault/hostvault/internal/common"
)

// OwnerSubject is the JWT subject for the single tenant owner.
const OwnerSubject = "owner"

type Claims struct {
	jwt.RegisteredClaims
}

// GenerateOwnerToken issues an HS256 session token for the owner console.
func GenerateOwnerToken(secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   OwnerSubject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ValidateOwnerToken verifies the signature, expiry and subject of an owner
// session token.
func ValidateOwnerToken(tokenString string, secretKey []byte) error {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		return common.ErrInvalidToken
	}

	if !token.Valid || claims.Subject != OwnerSubject {
		return common.ErrInvalidToken
	}

	return nil
}
