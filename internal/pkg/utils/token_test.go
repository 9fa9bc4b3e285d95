package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPremiumTokenRoundTrip(t *testing.T) {
	expiresAt := time.Now().Add(30 * 24 * time.Hour)
	wallet := "Wallet1111111111111111111111111111111111111"

	token, err := GeneratePremiumToken(wallet, expiresAt, "secret", "go-dropburn")
	require.NoError(t, err)

	claims, err := ParsePremiumToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, wallet, claims.Subject)
	assert.Equal(t, "go-dropburn", claims.Issuer)
	// token 的 exp 与权益到期时刻一致，没有独立 TTL
	assert.Equal(t, expiresAt.Unix(), claims.PremiumUntil)
	assert.Equal(t, expiresAt.Unix(), claims.ExpiresAt.Unix())
}

func TestPremiumTokenExpired(t *testing.T) {
	token, err := GeneratePremiumToken("wallet", time.Now().Add(-time.Hour), "secret", "go-dropburn")
	require.NoError(t, err)

	_, err = ParsePremiumToken(token, "secret")
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestPremiumTokenWrongKey(t *testing.T) {
	token, err := GeneratePremiumToken("wallet", time.Now().Add(time.Hour), "secret", "go-dropburn")
	require.NoError(t, err)

	_, err = ParsePremiumToken(token, "other-secret")
	assert.Error(t, err)
}

func TestPremiumTokenGarbage(t *testing.T) {
	_, err := ParsePremiumToken("not.a.token", "secret")
	assert.Error(t, err)
}
