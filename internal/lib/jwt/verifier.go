// Package jwt проверяет JWT токены доступа к API.
// Токены выпускает сервис авторизации; здесь нужен только общий секрет.
package jwt

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken токен не прошёл проверку.
var ErrInvalidToken = errors.New("invalid token")

// Claims данные пользователя в токене.
type Claims struct {
	UserUID string `json:"user_uid"`
	jwt.RegisteredClaims
}

// Verifier проверяет токены, подписанные HMAC-SHA256.
type Verifier struct {
	secretKey string
}

// NewVerifier создаёт Verifier с общим секретным ключом.
func NewVerifier(secretKey string) *Verifier {
	return &Verifier{secretKey: secretKey}
}

// ParseToken проверяет подпись и срок действия и возвращает claims.
func (v *Verifier) ParseToken(tokenStr string) (*Claims, error) {
	const op = "jwt.ParseToken"
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(v.secretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserUID == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}
	return claims, nil
}
