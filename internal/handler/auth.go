package handler

import (
	"net/http" // HTTP status codes and primitives
	"strings"  // string manipulation utilities
	"time"     // token expiry in the response

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing

	"github.com/iliyamo/studio-booking/internal/config" // app configuration
	"github.com/iliyamo/studio-booking/internal/utils"  // helper functions (hashing, token issuing)
)

// RoleOperator is the single privileged role.  The studio is run by a
// small staff sharing one operator account configured via environment
// variables, so there is no user table and no registration endpoint.
const RoleOperator = "operator"

// AuthHandler bundles dependencies for the operator login endpoint.
type AuthHandler struct {
	Cfg config.Config
}

func NewAuthHandler(cfg config.Config) *AuthHandler {
	return &AuthHandler{Cfg: cfg}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type authResp struct {
	Email  string    `json:"email"`
	Role   string    `json:"role"`
	Access tokenPart `json:"access"`
}

// Login verifies the operator credentials against the configured email
// and bcrypt hash, then issues a short-lived access token.  Both the
// unknown-email and wrong-password paths return the same 401 body so the
// response does not reveal which half was wrong.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	if req.Email != strings.ToLower(h.Cfg.AdminEmail) || !utils.VerifyPassword(h.Cfg.AdminPasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, req.Email, RoleOperator, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}

	return c.JSON(http.StatusOK, authResp{
		Email:  req.Email,
		Role:   RoleOperator,
		Access: tokenPart{Token: access.Token, Expires: access.Exp},
	})
}
