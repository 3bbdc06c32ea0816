package middleware // middleware provides shared request processing for handlers

import (
    "context"  // context with timeout for ownership lookups
    "errors"   // sentinel error comparisons
    "net/http" // http package defines standard HTTP status codes
    "strconv"  // parse resource ids from path params
    "time"     // lookup timeout duration

    "github.com/labstack/echo/v4" // echo provides middleware chaining and context

    "github.com/markyourfish/fishing-log/internal/model"
    "github.com/markyourfish/fishing-log/internal/repository"
)

// Authorization guards composing on top of AuthGateway. Each guard assumes
// the gateway already ran and treats a missing context user as AUTH_REQUIRED
// rather than panicking, so a misordered route fails safe.

// RequireRole rejects with 403 when the authenticated user's role ranks
// below the required one. The response carries required/current metadata so
// the client can render a permission prompt without string-matching.
func RequireRole(required string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            u, ok := CurrentUser(c)
            if !ok {
                return authError(c, http.StatusUnauthorized, "authentication required", CodeAuthRequired)
            }
            if model.RoleLevel(u.Role) < model.RoleLevel(required) {
                return c.JSON(http.StatusForbidden, echo.Map{
                    "error":    "insufficient permissions",
                    "code":     "FORBIDDEN",
                    "required": required,
                    "current":  u.Role,
                })
            }
            return next(c)
        }
    }
}

// RequireSubscription rejects with 403 and upgrade metadata when the user's
// plan tier ranks below the required one.
func RequireSubscription(requiredPlan string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            u, ok := CurrentUser(c)
            if !ok {
                return authError(c, http.StatusUnauthorized, "authentication required", CodeAuthRequired)
            }
            if model.PlanLevel(u.SubscriptionPlan) < model.PlanLevel(requiredPlan) {
                return c.JSON(http.StatusForbidden, echo.Map{
                    "error":        "subscription upgrade required",
                    "code":         CodePremiumRequired,
                    "requiredTier": requiredPlan,
                    "currentTier":  u.SubscriptionPlan,
                    "upgradeUrl":   "/subscription/upgrade",
                })
            }
            return next(c)
        }
    }
}

// RequireCatchQuota enforces the free-tier monthly catch limit using the
// counter and limit columns on the user row. Pro and master plans bypass
// the check unconditionally.
func RequireCatchQuota() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            u, ok := CurrentUser(c)
            if !ok {
                return authError(c, http.StatusUnauthorized, "authentication required", CodeAuthRequired)
            }
            if u.Unlimited() {
                return next(c)
            }
            if u.CatchesCount >= u.CatchLimitMonthly {
                return c.JSON(http.StatusForbidden, echo.Map{
                    "error":      "monthly catch limit exceeded",
                    "code":       CodeCatchLimitExceeded,
                    "current":    u.CatchesCount,
                    "limit":      u.CatchLimitMonthly,
                    "upgradeUrl": "/subscription/upgrade",
                })
            }
            return next(c)
        }
    }
}

// RequireCatchOwnership rejects with 403 when the catch named by the :id
// path param is not owned by the authenticated user, unless that user is an
// admin. A missing catch is a 404.
func RequireCatchOwnership(catches repository.CatchStore) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            u, ok := CurrentUser(c)
            if !ok {
                return authError(c, http.StatusUnauthorized, "authentication required", CodeAuthRequired)
            }
            id, err := strconv.ParseUint(c.Param("id"), 10, 64)
            if err != nil {
                return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id", "code": "INVALID_ID"})
            }

            ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
            defer cancel()

            catch, err := catches.GetByID(ctx, id)
            if err != nil {
                if errors.Is(err, repository.ErrNotFound) {
                    return c.JSON(http.StatusNotFound, echo.Map{"error": "catch not found", "code": "NOT_FOUND"})
                }
                return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed", "code": "INTERNAL"})
            }
            if catch.UserID != u.ID && u.Role != model.RoleAdmin {
                return c.JSON(http.StatusForbidden, echo.Map{"error": "resource not owned by user", "code": "FORBIDDEN"})
            }
            return next(c)
        }
    }
}
