package authtest

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/reviewdesk/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are the access token claims: the registered set plus the user id.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
}

// GenerateToken signs an HS256 access token for userID valid for validity
// from now. Every token carries a fresh jti, so two tokens are never equal.
func GenerateToken(userID string, secretKey []byte, now time.Time, validity time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
		UserID: userID,
	})
	return token.SignedString(secretKey)
}

// UserIDFromToken verifies tokenString against secretKey as of now.
func UserIDFromToken(tokenString string, secretKey []byte, now time.Time) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithTimeFunc(func() time.Time { return now }), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", errors.Join(common.ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", common.ErrInvalidToken
	}
	return claims.UserID, nil
}
