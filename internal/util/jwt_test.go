package util

import (
	"net/http/httptest"
	"testing"
	"time"

	"dropout_risk_backend/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUser() *model.User {
	u := &model.User{Email: "t@example.com", Role: model.Teacher}
	u.ID = 42
	return u
}

func TestGenerateAndParseJWT(t *testing.T) {
	tok, err := GenerateJWT(testUser(), "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseJWT(tok, "secret")
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, model.Teacher, claims.Role)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, TokenIssuer, claims.Issuer)
	assert.NotNil(t, claims.IssuedAt)

	_, err = GenerateJWT(testUser(), "", time.Hour)
	assert.Error(t, err)
}

func TestParseJWTRejects(t *testing.T) {
	expired, err := GenerateJWT(testUser(), "secret", -time.Minute)
	require.NoError(t, err)

	sign := func(method jwt.SigningMethod, key interface{}, rc jwt.RegisteredClaims) string {
		s, err := jwt.NewWithClaims(method, &Claims{UserID: 1, Role: model.Admin, RegisteredClaims: rc}).SignedString(key)
		require.NoError(t, err)
		return s
	}
	valid := jwt.RegisteredClaims{Issuer: TokenIssuer, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}

	cases := map[string]string{
		"expired":        expired,
		"wrong secret":   sign(jwt.SigningMethodHS256, []byte("other"), valid),
		"alg none":       sign(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid),
		"hs512":          sign(jwt.SigningMethodHS512, []byte("secret"), valid),
		"foreign issuer": sign(jwt.SigningMethodHS256, []byte("secret"), jwt.RegisteredClaims{Issuer: "someone-else", ExpiresAt: valid.ExpiresAt}),
		"no expiry":      sign(jwt.SigningMethodHS256, []byte("secret"), jwt.RegisteredClaims{Issuer: TokenIssuer}),
		"garbage":        "not.a.token",
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			claims, err := ParseJWT(tok, "secret")
			assert.Nil(t, claims)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestGetUserFromContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, GetUserFromContext(c))

	c.Set(ContextUserKey, "not claims")
	assert.Nil(t, GetUserFromContext(c))

	c.Set(ContextUserKey, &Claims{UserID: 3})
	require.NotNil(t, GetUserFromContext(c))
	assert.Equal(t, uint(3), GetUserFromContext(c).UserID)
}
