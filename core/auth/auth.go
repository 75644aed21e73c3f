package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// 控制网关的访问令牌。HMAC 签名，密钥来自配置。

var secret []byte

// ErrNotConfigured 未配置签名密钥
var ErrNotConfigured = errors.New("jwt secret not configured")

// Init 设置签名密钥
func Init(key string) {
	secret = []byte(key)
}

// Enabled 是否启用了鉴权
func Enabled() bool {
	return len(secret) > 0
}

// Claims 访问令牌载荷
type Claims struct {
	Subject string `json:"sub_name"`
	jwt.RegisteredClaims
}

// GenerateToken 为调用方签发访问令牌
func GenerateToken(subject string, ttl time.Duration) (string, error) {
	if !Enabled() {
		return "", ErrNotConfigured
	}
	claims := Claims{
		Subject: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ParseToken 校验并解析访问令牌
func ParseToken(tokenString string) (*Claims, error) {
	if !Enabled() {
		return nil, ErrNotConfigured
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
