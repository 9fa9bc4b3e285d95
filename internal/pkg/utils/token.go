package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// PremiumClaims 是 premium_token 的载荷
// token 的有效期与 premium 权益本身完全一致：exp == premiumUntil，没有独立的 token TTL
type PremiumClaims struct {
	PremiumUntil int64 `json:"premiumUntil"` // 权益到期时间，epoch 秒
	jwt.RegisteredClaims
}

var ErrInvalidPremiumToken = errors.New("premium token 无效")

// GeneratePremiumToken 为指定钱包地址签发 premium 凭证
// walletAddress: 权益主体
// expiresAt: 权益到期时间，同时也是 token 过期时间
func GeneratePremiumToken(walletAddress string, expiresAt time.Time, secretKey, issuer string) (string, error) {
	now := time.Now()
	claims := &PremiumClaims{
		PremiumUntil: expiresAt.Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   walletAddress,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ParsePremiumToken 校验签名并解析 premium 凭证
// 签名有效但已过期的 token 返回 jwt 的过期错误，调用方应把它当作"非 premium"而不是异常
func ParsePremiumToken(tokenString, secretKey string) (*PremiumClaims, error) {
	claims := &PremiumClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secretKey), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrInvalidPremiumToken
	}
	return claims, nil
}
