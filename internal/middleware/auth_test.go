package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroscan/neuroscan-api/internal/config"
	"github.com/neuroscan/neuroscan-api/internal/model"
	"github.com/neuroscan/neuroscan-api/pkg/auth"
)

func setupAuthTest(t *testing.T) (*gin.Engine, auth.JWTService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	jwtSvc := auth.NewJWTService(config.JWTConfig{
		Secret:             "test-secret",
		RefreshSecret:      "test-refresh",
		ExpiryHours:        1,
		RefreshExpiryHours: 24,
	})
	mw := NewAuthMiddleware(jwtSvc)

	r := gin.New()
	protected := r.Group("/", mw.Authenticate())
	protected.GET("/any", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": c.GetString(ContextUsername)})
	})

	doctor := r.Group("/doctor", mw.Authenticate(), mw.RequireRole(model.RoleDoctor))
	doctor.GET("/scans", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	return r, jwtSvc
}

func tokenFor(t *testing.T, jwtSvc auth.JWTService, role model.Role) string {
	t.Helper()
	user := &model.User{
		Base:     model.Base{ID: uuid.New(), CreatedAt: time.Now()},
		Username: "someone",
		Role:     role,
	}
	token, err := jwtSvc.GenerateAccessToken(user)
	require.NoError(t, err)
	return token
}

func TestAuthenticateMissingHeader(t *testing.T) {
	r, _ := setupAuthTest(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/any", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthenticateBadToken(t *testing.T) {
	r, _ := setupAuthTest(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/any", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthenticateValidToken(t *testing.T) {
	r, jwtSvc := setupAuthTest(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/any", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, jwtSvc, model.RoleTechnician))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "someone")
}

func TestRequireRoleBlocksTechnician(t *testing.T) {
	r, jwtSvc := setupAuthTest(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/doctor/scans", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, jwtSvc, model.RoleTechnician))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireRoleAllowsDoctor(t *testing.T) {
	r, jwtSvc := setupAuthTest(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/doctor/scans", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, jwtSvc, model.RoleDoctor))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
