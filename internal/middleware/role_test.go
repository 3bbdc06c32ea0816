package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markyourfish/fishing-log/internal/model"
	"github.com/markyourfish/fishing-log/internal/repository"
)

// runGuard mounts a guard behind a stub that injects the given user (or
// nothing) and returns the recorder.
func runGuard(guard echo.MiddlewareFunc, user *model.User, path string) *httptest.ResponseRecorder {
	e := echo.New()
	inject := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if user != nil {
				c.Set(userContextKey, *user)
			}
			return next(c)
		}
	}
	e.GET("/r/:id", func(c echo.Context) error {
		return c.String(http.StatusOK, "passed")
	}, inject, guard)
	e.GET("/r", func(c echo.Context) error {
		return c.String(http.StatusOK, "passed")
	}, inject, guard)

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRequireRoleAdmin(t *testing.T) {
	admin := model.User{ID: 1, Role: model.RoleAdmin}
	angler := model.User{ID: 2, Role: model.RoleAngler}

	assert.Equal(t, http.StatusOK, runGuard(RequireRole(model.RoleAdmin), &admin, "/r").Code)
	assert.Equal(t, http.StatusForbidden, runGuard(RequireRole(model.RoleAdmin), &angler, "/r").Code)
	assert.Equal(t, http.StatusUnauthorized, runGuard(RequireRole(model.RoleAdmin), nil, "/r").Code)
}

func TestRequireSubscriptionTiers(t *testing.T) {
	free := model.User{ID: 1, SubscriptionPlan: model.PlanFree}
	pro := model.User{ID: 2, SubscriptionPlan: model.PlanPro}
	master := model.User{ID: 3, SubscriptionPlan: model.PlanMaster}

	guard := RequireSubscription(model.PlanPro)
	assert.Equal(t, http.StatusForbidden, runGuard(guard, &free, "/r").Code)
	assert.Equal(t, http.StatusOK, runGuard(guard, &pro, "/r").Code)
	assert.Equal(t, http.StatusOK, runGuard(guard, &master, "/r").Code)
}

func TestRequireCatchQuota(t *testing.T) {
	headroom := model.User{ID: 1, SubscriptionPlan: model.PlanFree, CatchesCount: 9, CatchLimitMonthly: 10}
	exhausted := model.User{ID: 2, SubscriptionPlan: model.PlanFree, CatchesCount: 10, CatchLimitMonthly: 10}
	proExhausted := model.User{ID: 3, SubscriptionPlan: model.PlanPro, CatchesCount: 500, CatchLimitMonthly: 10}

	guard := RequireCatchQuota()
	assert.Equal(t, http.StatusOK, runGuard(guard, &headroom, "/r").Code)
	assert.Equal(t, http.StatusForbidden, runGuard(guard, &exhausted, "/r").Code)
	assert.Equal(t, http.StatusOK, runGuard(guard, &proExhausted, "/r").Code,
		"paid plans are never quota limited")
}

func TestRequireCatchOwnership(t *testing.T) {
	catches := repository.NewMemoryCatchRepo()
	rec := model.Catch{UserID: 7, Species: "pike", Location: "lake", CaughtAt: time.Now()}
	require.NoError(t, catches.Create(context.Background(), &rec))

	owner := model.User{ID: 7, Role: model.RoleAngler}
	stranger := model.User{ID: 8, Role: model.RoleAngler}
	admin := model.User{ID: 9, Role: model.RoleAdmin}

	guard := RequireCatchOwnership(catches)
	path := "/r/" + strconv.FormatUint(rec.ID, 10)

	assert.Equal(t, http.StatusOK, runGuard(guard, &owner, path).Code)
	assert.Equal(t, http.StatusForbidden, runGuard(guard, &stranger, path).Code)
	assert.Equal(t, http.StatusOK, runGuard(guard, &admin, path).Code, "admin bypasses ownership")
	assert.Equal(t, http.StatusNotFound, runGuard(guard, &owner, "/r/9999").Code)
	assert.Equal(t, http.StatusBadRequest, runGuard(guard, &owner, "/r/abc").Code)
}
