package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/markyourfish/fishing-log/internal/config"
	"github.com/markyourfish/fishing-log/internal/middleware"
	"github.com/markyourfish/fishing-log/internal/model"
	"github.com/markyourfish/fishing-log/internal/repository"
	"github.com/markyourfish/fishing-log/internal/utils"
)

// AuthHandler bundles dependencies for the auth endpoints. The registry
// keeps at most one valid refresh token per account, so refreshing from one
// device invalidates the token held by any other.
type AuthHandler struct {
	Cfg      config.Config
	Users    repository.UserStore
	Registry repository.TokenRegistry
	Issuer   utils.TokenIssuer
	Validate *validator.Validate
}

func NewAuthHandler(cfg config.Config, users repository.UserStore, registry repository.TokenRegistry, issuer utils.TokenIssuer, v *validator.Validate) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: users, Registry: registry, Issuer: issuer, Validate: v}
}

// ----- DTOs -----

type registerReq struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
}
type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

type authResp struct {
	User         userView `json:"user"`
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
}

// issueSession mints a token pair and records the refresh token as the only
// valid one for the account.
func (h *AuthHandler) issueSession(ctx context.Context, u model.User) (authResp, error) {
	pair, err := h.Issuer.IssuePair(u.ID, u.Role)
	if err != nil {
		return authResp{}, err
	}
	if err := h.Registry.Set(ctx, u.ID, pair.Refresh.Token, h.Issuer.RefreshTTL()); err != nil {
		return authResp{}, err
	}
	return authResp{
		User:         publicUser(u),
		AccessToken:  pair.Access.Token,
		RefreshToken: pair.Refresh.Token,
	}, nil
}

// Register creates an account and returns a fresh session.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if err := h.Validate.Struct(req); err != nil {
		return validationError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.Create(ctx, req.Email, req.Password, req.FirstName, req.LastName, h.Cfg.BcryptCost, h.Cfg.FreeCatchLimit)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}

	resp, err := h.issueSession(ctx, u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue session failed"})
	}
	return c.JSON(http.StatusCreated, resp)
}

// Login verifies credentials and returns a new session. Unknown email and
// wrong password produce the same response so the endpoint cannot be used
// to probe which addresses have accounts.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := h.Validate.Struct(req); err != nil {
		return validationError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if u.AccountStatus != model.StatusActive {
		return c.JSON(http.StatusForbidden, echo.Map{
			"error": "account is not active",
			"code":  middleware.CodeAccountInactive,
		})
	}

	resp, err := h.issueSession(ctx, u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue session failed"})
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh exchanges a valid refresh token for a new pair. The presented
// token must both verify as a refresh JWT and match the registry entry for
// its user; success rotates the registry entry, so every refresh token is
// single-use. An unreachable registry counts as no valid token on file, so
// the exchange is denied rather than the check skipped.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refreshToken required"})
	}
	raw := strings.TrimSpace(req.RefreshToken)

	userID, err := h.Issuer.ParseRefresh(raw)
	if err != nil {
		code := middleware.CodeInvalidToken
		if errors.Is(err, utils.ErrTokenExpired) {
			code = middleware.CodeTokenExpired
		}
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token", "code": code})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	stored, err := h.Registry.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrRegistryUnavailable) {
			c.Logger().Warnf("refresh: token registry unreachable: %v", err)
		}
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token", "code": middleware.CodeInvalidToken})
	}
	if stored != raw {
		// replayed or superseded token; drop the registry entry so the
		// holder of the current token must log in again too
		_ = h.Registry.Delete(ctx, userID)
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token", "code": middleware.CodeInvalidToken})
	}

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token", "code": middleware.CodeUserNotFound})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}
	if u.AccountStatus != model.StatusActive {
		return c.JSON(http.StatusForbidden, echo.Map{
			"error": "account is not active",
			"code":  middleware.CodeAccountInactive,
		})
	}

	resp, err := h.issueSession(ctx, u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue session failed"})
	}
	return c.JSON(http.StatusOK, resp)
}

// Logout clears the registry entry for the calling user. The refresh token
// may arrive in the body, which still works after the access token expired;
// a Bearer access token is accepted as a fallback. The endpoint is
// best-effort and always answers 200 so a client can discard its local
// tokens even when both tokens are already dead or the registry is down.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	var req refreshReq
	_ = c.Bind(&req)
	if raw := strings.TrimSpace(req.RefreshToken); raw != "" {
		if userID, err := h.Issuer.ParseRefresh(raw); err == nil {
			_ = h.Registry.Delete(ctx, userID)
			return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
		}
	}
	if token := middleware.BearerToken(c); token != "" {
		if userID, _, err := h.Issuer.ParseAccess(token); err == nil {
			_ = h.Registry.Delete(ctx, userID)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "code": middleware.CodeAuthRequired})
	}
	return c.JSON(http.StatusOK, echo.Map{"user": publicUser(u)})
}
