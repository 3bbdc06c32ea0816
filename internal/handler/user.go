package handler

import (
	"context"
	"encoding/json"
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

// UserHandler implements the account self-service endpoints.
type UserHandler struct {
	Cfg      config.Config
	Users    repository.UserStore
	Catches  repository.CatchStore
	Registry repository.TokenRegistry
	Validate *validator.Validate
}

func NewUserHandler(cfg config.Config, users repository.UserStore, catches repository.CatchStore, registry repository.TokenRegistry, v *validator.Validate) *UserHandler {
	return &UserHandler{Cfg: cfg, Users: users, Catches: catches, Registry: registry, Validate: v}
}

type profileReq struct {
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email"`
}

type passwordReq struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
}

type preferencesReq struct {
	Preferences json.RawMessage `json:"preferences" validate:"required"`
}

type deleteAccountReq struct {
	Password string `json:"password" validate:"required"`
}

// Profile returns the caller's account.
func (h *UserHandler) Profile(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "code": middleware.CodeAuthRequired})
	}
	return c.JSON(http.StatusOK, echo.Map{"user": publicUser(u)})
}

// UpdateProfile changes name and email. Changing email to an address owned
// by another account is a conflict.
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "code": middleware.CodeAuthRequired})
	}

	var req profileReq
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

	if err := h.Users.UpdateProfile(ctx, u.ID, req.FirstName, req.LastName, req.Email); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update profile failed"})
	}

	fresh, err := h.Users.GetByID(ctx, u.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"user": publicUser(fresh)})
}

// ChangePassword verifies the current password before storing a new hash.
// All other sessions are revoked by clearing the refresh registry entry.
func (h *UserHandler) ChangePassword(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "code": middleware.CodeAuthRequired})
	}

	var req passwordReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := h.Validate.Struct(req); err != nil {
		return validationError(c, err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.CurrentPassword) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "current password is incorrect"})
	}

	hash, err := utils.HashPassword(req.NewPassword, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "hash password failed"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update password failed"})
	}
	_ = h.Registry.Delete(ctx, u.ID)

	return c.JSON(http.StatusOK, echo.Map{"message": "password updated"})
}

// UpdatePreferences stores the caller's preference document as opaque JSON.
func (h *UserHandler) UpdatePreferences(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "code": middleware.CodeAuthRequired})
	}

	var req preferencesReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if len(req.Preferences) == 0 || !json.Valid(req.Preferences) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "preferences must be a JSON object"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Users.UpdatePreferences(ctx, u.ID, []byte(req.Preferences)); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update preferences failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"preferences": req.Preferences})
}

// Activity summarizes the caller's recent logging activity.
func (h *UserHandler) Activity(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "code": middleware.CodeAuthRequired})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	stats, err := h.Catches.Stats(ctx, u.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load activity failed"})
	}

	recent, _, err := h.Catches.ListByUser(ctx, u.ID, model.CatchFilter{
		SortBy: "date", SortOrder: "desc", Page: 1, Limit: 5,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load activity failed"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"stats":         stats,
		"recentCatches": recent,
	})
}

// DeleteAccount permanently removes the account after a password check.
// Catches and photos follow via foreign keys; the session registry entry is
// dropped so outstanding refresh tokens die with the account.
func (h *UserHandler) DeleteAccount(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "code": middleware.CodeAuthRequired})
	}

	var req deleteAccountReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := h.Validate.Struct(req); err != nil {
		return validationError(c, err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "password is incorrect"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Users.Delete(ctx, u.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete account failed"})
	}
	_ = h.Registry.Delete(ctx, u.ID)

	return c.JSON(http.StatusOK, echo.Map{"message": "account deleted"})
}
