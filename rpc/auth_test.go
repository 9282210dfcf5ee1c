package rpc

import (
	"net/http"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"sodap/core/ops"
)

const testJWTSecret = "jwt-signing-secret"

func signJWT(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestSendTransactionAcceptsScopedJWT(t *testing.T) {
	f := newFixture(t, ServerConfig{JWT: &JWTConfig{Secret: testJWTSecret, Issuer: "sodap-auth", Audience: "sodapd"}})
	now := time.Now()
	base := func() jwt.MapClaims {
		return jwt.MapClaims{
			"iss":   "sodap-auth",
			"aud":   "sodapd",
			"sub":   "merchant-dashboard",
			"scope": "tx:read tx:send",
			"iat":   now.Unix(),
			"exp":   now.Add(time.Hour).Unix(),
		}
	}
	send := func(token string) int {
		body := rpcBody(t, "sodap_sendTransaction", f.signed(f.owner, &ops.RegisterStore{Name: "Shop"}))
		rec, _ := f.post(body, map[string]string{"Authorization": "Bearer " + token})
		return rec.Code
	}

	wrongScope := base()
	wrongScope["scope"] = "tx:read"
	require.Equal(t, http.StatusUnauthorized, send(signJWT(t, testJWTSecret, wrongScope)))

	wrongIssuer := base()
	wrongIssuer["iss"] = "elsewhere"
	require.Equal(t, http.StatusUnauthorized, send(signJWT(t, testJWTSecret, wrongIssuer)))

	expired := base()
	expired["exp"] = now.Add(-time.Hour).Unix()
	require.Equal(t, http.StatusUnauthorized, send(signJWT(t, testJWTSecret, expired)))

	require.Equal(t, http.StatusUnauthorized, send(signJWT(t, "other-secret", base())))
	require.Equal(t, uint64(0), f.ledger.Height())

	require.Equal(t, http.StatusOK, send(signJWT(t, testJWTSecret, base())))
	require.Equal(t, uint64(1), f.ledger.Height())
}

func TestHasScopeAcceptsListClaims(t *testing.T) {
	require.True(t, hasScope([]interface{}{"tx:read", "tx:send"}, writeScope))
	require.False(t, hasScope([]interface{}{"tx:read"}, writeScope))
	require.False(t, hasScope(nil, writeScope))
	require.Nil(t, newJWTVerifier(&JWTConfig{Secret: "  "}))
}
