package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dropout_risk_backend/internal/config"
	"dropout_risk_backend/internal/model"
	"dropout_risk_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(cfg *config.Config, roles ...model.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/p", AuthMiddleware(cfg), RoleMiddleware(roles...), func(c *gin.Context) {
		util.Success(c, util.GetUserFromContext(c).Email)
	})
	return r
}

func token(t *testing.T, secret string, role model.UserRole) string {
	t.Helper()
	u := &model.User{Email: "u@example.com", Role: role}
	u.ID = 7
	tok, err := util.GenerateJWT(u, secret, time.Hour)
	require.NoError(t, err)
	return tok
}

func get(r *gin.Engine, header, query string) int {
	req := httptest.NewRequest(http.MethodGet, "/p"+query, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestAuthMiddleware(t *testing.T) {
	cfg := &config.Config{JWT: config.JWTConfig{Secret: "secret"}}
	r := newRouter(cfg, model.Teacher)

	assert.Equal(t, http.StatusUnauthorized, get(r, "", ""))
	assert.Equal(t, http.StatusUnauthorized, get(r, "Bearer "+token(t, "other", model.Teacher), ""))
	assert.Equal(t, http.StatusOK, get(r, "Bearer "+token(t, "secret", model.Teacher), ""))
	assert.Equal(t, http.StatusOK, get(r, "", "?token="+token(t, "secret", model.Teacher)))
}

func TestRoleMiddleware(t *testing.T) {
	cfg := &config.Config{JWT: config.JWTConfig{Secret: "secret"}}
	r := newRouter(cfg, model.Teacher)

	assert.Equal(t, http.StatusForbidden, get(r, "Bearer "+token(t, "secret", model.Student), ""))
	// admins pass every role check
	assert.Equal(t, http.StatusOK, get(r, "Bearer "+token(t, "secret", model.Admin), ""))

	adminOnly := newRouter(cfg, model.Admin)
	assert.Equal(t, http.StatusForbidden, get(adminOnly, "Bearer "+token(t, "secret", model.Teacher), ""))
}
