// Package token generates and verifies the JWTs used for operator access.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTManager signs and verifies HS256 operator tokens.
type JWTManager struct {
	secretKey []byte
	tokenDur  time.Duration
}

// Claims carries the subject of an operator token plus the registered
// claims.
type Claims struct {
	Subject string `json:"sub_name"`
	jwt.RegisteredClaims
}

// NewJWTManager creates a manager with the given signing secret and token
// lifetime in hours.
func NewJWTManager(secret string, tokenExpireHours int) *JWTManager {
	if tokenExpireHours <= 0 {
		tokenExpireHours = 24
	}
	return &JWTManager{
		secretKey: []byte(secret),
		tokenDur:  time.Duration(tokenExpireHours) * time.Hour,
	}
}

// GenerateToken issues a signed token for the given subject.
func (m *JWTManager) GenerateToken(subject string) (string, error) {
	claims := Claims{
		Subject: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.tokenDur)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(m.secretKey)
}

// VerifyToken parses and validates a token string.
func (m *JWTManager) VerifyToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secretKey, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
