package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/studio-booking/internal/config"
	"github.com/iliyamo/studio-booking/internal/utils"
)

func authTestConfig(t *testing.T) config.Config {
	t.Helper()
	hash, err := utils.HashPassword("correct horse", bcrypt.MinCost)
	require.NoError(t, err)
	return config.Config{
		JWTSecret:         "test-secret",
		AccessTTLMin:      15,
		AdminEmail:        "owner@studio.example",
		AdminPasswordHash: hash,
	}
}

func doLogin(t *testing.T, h *AuthHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, h.Login(e.NewContext(req, rec)))
	return rec
}

func TestLoginIssuesToken(t *testing.T) {
	h := NewAuthHandler(authTestConfig(t))

	rec := doLogin(t, h, `{"email":"Owner@Studio.example","password":"correct horse"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"operator"`)
	assert.Contains(t, rec.Body.String(), `"token"`)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	h := NewAuthHandler(authTestConfig(t))

	rec := doLogin(t, h, `{"email":"owner@studio.example","password":"wrong"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRejectsUnknownEmail(t *testing.T) {
	h := NewAuthHandler(authTestConfig(t))

	rec := doLogin(t, h, `{"email":"other@studio.example","password":"correct horse"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRequiresBothFields(t *testing.T) {
	h := NewAuthHandler(authTestConfig(t))

	rec := doLogin(t, h, `{"email":"owner@studio.example"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
