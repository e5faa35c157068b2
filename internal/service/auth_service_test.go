package service_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradeloop/escrowgate/internal/config"
	"github.com/tradeloop/escrowgate/internal/domain"
	"github.com/tradeloop/escrowgate/internal/service"
)

func testAuth() *service.AuthService {
	return service.NewAuthService(&config.Config{
		JWT: config.JWTConfig{AccessSecret: "test-access-secret-abcdefghijklmnop"},
	})
}

func TestParseAccessToken_RoundTrip(t *testing.T) {
	auth := testAuth()
	tok, err := auth.IssueAccessToken(testActor, time.Minute)
	require.NoError(t, err)

	claims, err := auth.ParseAccessToken(tok)
	require.NoError(t, err)
	assert.Equal(t, testActor.UserID, claims.Subject)
	assert.Equal(t, testActor.CompanyID, claims.CompanyID)
	assert.Equal(t, testActor.Role, claims.Role)
}

func TestParseAccessToken_Rejects(t *testing.T) {
	auth := testAuth()
	secret := []byte("test-access-secret-abcdefghijklmnop")

	sign := func(c service.AppClaims, key []byte) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(key)
		require.NoError(t, err)
		return s
	}
	valid := jwt.RegisteredClaims{Subject: "u-1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))}

	cases := map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": sign(service.AppClaims{RegisteredClaims: valid, TokenType: "access"}, []byte("other-secret")),
		"refresh type": sign(service.AppClaims{RegisteredClaims: valid, TokenType: "refresh"}, secret),
		"no subject": sign(service.AppClaims{
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: valid.ExpiresAt}, TokenType: "access",
		}, secret),
		"expired": sign(service.AppClaims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "u-1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
			TokenType:        "access",
		}, secret),
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := auth.ParseAccessToken(tok)
			assert.ErrorIs(t, err, domain.ErrTokenInvalid)
		})
	}
}
