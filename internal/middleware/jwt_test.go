package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/studio-booking/internal/utils"
)

const testSecret = "test-secret"

func protectedApp(roles ...string) *echo.Echo {
	e := echo.New()
	g := e.Group("/v1/operator", JWTAuth(testSecret), RequireRole(roles...))
	g.GET("/ping", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"email": c.Get("operator_email"),
			"role":  c.Get("role"),
		})
	})
	return e
}

func TestJWTAuthAcceptsValidToken(t *testing.T) {
	tok, err := utils.NewAccessToken(testSecret, "owner@studio.example", "operator", 5)
	require.NoError(t, err)

	e := protectedApp("operator")
	req := httptest.NewRequest(http.MethodGet, "/v1/operator/ping", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "owner@studio.example")
}

func TestJWTAuthRejectsMissingHeader(t *testing.T) {
	e := protectedApp("operator")
	req := httptest.NewRequest(http.MethodGet, "/v1/operator/ping", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthRejectsWrongSecret(t *testing.T) {
	tok, err := utils.NewAccessToken("other-secret", "owner@studio.example", "operator", 5)
	require.NoError(t, err)

	e := protectedApp("operator")
	req := httptest.NewRequest(http.MethodGet, "/v1/operator/ping", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRoleRejectsOtherRoles(t *testing.T) {
	tok, err := utils.NewAccessToken(testSecret, "someone@studio.example", "viewer", 5)
	require.NoError(t, err)

	e := protectedApp("operator")
	req := httptest.NewRequest(http.MethodGet, "/v1/operator/ping", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
