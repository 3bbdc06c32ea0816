package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/markyourfish/fishing-log/internal/middleware"
	"github.com/markyourfish/fishing-log/internal/model"
	"github.com/markyourfish/fishing-log/internal/repository"
)

// AdminHandler implements the moderation endpoints. All routes are mounted
// behind RequireRole(admin).
type AdminHandler struct {
	Users    repository.UserStore
	Catches  repository.CatchStore
	Photos   repository.PhotoStore
	Registry repository.TokenRegistry
}

func NewAdminHandler(users repository.UserStore, catches repository.CatchStore, photos repository.PhotoStore, registry repository.TokenRegistry) *AdminHandler {
	return &AdminHandler{Users: users, Catches: catches, Photos: photos, Registry: registry}
}

// ListUsers pages through accounts, optionally filtered by an email or name
// search term.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 20)
	if limit > 100 {
		limit = 100
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	users, total, err := h.Users.List(ctx, c.QueryParam("search"), page, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list users failed"})
	}

	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, publicUser(u))
	}
	totalPages := (total + limit - 1) / limit
	return c.JSON(http.StatusOK, echo.Map{
		"users": views,
		"pagination": echo.Map{
			"page":       page,
			"limit":      limit,
			"total":      total,
			"totalPages": totalPages,
		},
	})
}

// Stats reports platform-wide totals for the admin dashboard.
func (h *AdminHandler) Stats(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	userCount, err := h.Users.Count(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load stats failed"})
	}
	byPlan, err := h.Users.CountByPlan(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load stats failed"})
	}
	catchCount, err := h.Catches.Count(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load stats failed"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"stats": echo.Map{
			"totalUsers":   userCount,
			"usersByPlan":  byPlan,
			"totalCatches": catchCount,
		},
	})
}

type roleReq struct {
	Role string `json:"role"`
}
type statusReq struct {
	AccountStatus string `json:"accountStatus"`
}
type planReq struct {
	SubscriptionPlan string `json:"subscriptionPlan"`
}

// UpdateRole promotes or demotes an account.
func (h *AdminHandler) UpdateRole(c echo.Context) error {
	var req roleReq
	if err := c.Bind(&req); err != nil || !model.ValidRole(req.Role) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role must be angler or admin"})
	}
	return h.mutateUser(c, func(ctx context.Context, id uint64) error {
		return h.Users.UpdateRole(ctx, id, req.Role)
	})
}

// UpdateStatus suspends, deactivates or reactivates an account. Leaving the
// active state also clears the session registry entry, so outstanding
// refresh tokens stop working immediately.
func (h *AdminHandler) UpdateStatus(c echo.Context) error {
	var req statusReq
	if err := c.Bind(&req); err != nil || !model.ValidStatus(req.AccountStatus) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid account status"})
	}
	return h.mutateUser(c, func(ctx context.Context, id uint64) error {
		if err := h.Users.UpdateStatus(ctx, id, req.AccountStatus); err != nil {
			return err
		}
		if req.AccountStatus != model.StatusActive {
			_ = h.Registry.Delete(ctx, id)
		}
		return nil
	})
}

// UpdatePlan overrides an account's subscription tier.
func (h *AdminHandler) UpdatePlan(c echo.Context) error {
	var req planReq
	if err := c.Bind(&req); err != nil || !model.ValidPlan(req.SubscriptionPlan) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid subscription plan"})
	}
	return h.mutateUser(c, func(ctx context.Context, id uint64) error {
		return h.Users.UpdatePlan(ctx, id, req.SubscriptionPlan)
	})
}

func (h *AdminHandler) mutateUser(c echo.Context, fn func(ctx context.Context, id uint64) error) error {
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	if admin, ok := middleware.CurrentUser(c); ok && admin.ID == id {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot modify own account"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := fn(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update user failed"})
	}

	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"user": publicUser(u)})
}
