package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "context"  // context with timeout for the user lookup
    "errors"   // sentinel error comparisons
    "net/http" // HTTP status codes for responses
    "strings"  // string utilities for prefix checking and trimming
    "time"     // lookup timeout duration

    "github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

    "github.com/markyourfish/fishing-log/internal/model"
    "github.com/markyourfish/fishing-log/internal/repository"
    "github.com/markyourfish/fishing-log/internal/utils"
)

// Machine-readable error codes returned in the JSON body alongside the
// human-readable message. Clients branch on the code, never on the message:
// TOKEN_EXPIRED means a silent refresh is worth attempting, INVALID_TOKEN
// means it is not.
const (
    CodeMissingToken       = "MISSING_TOKEN"
    CodeInvalidToken       = "INVALID_TOKEN"
    CodeTokenExpired       = "TOKEN_EXPIRED"
    CodeUserNotFound       = "USER_NOT_FOUND"
    CodeAccountInactive    = "ACCOUNT_INACTIVE"
    CodeAuthRequired       = "AUTH_REQUIRED"
    CodePremiumRequired    = "PREMIUM_REQUIRED"
    CodeCatchLimitExceeded = "CATCH_LIMIT_EXCEEDED"
    CodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
)

// userContextKey is the single key under which the authenticated user is
// stored. Handlers never read it directly; they go through CurrentUser so
// the stored type stays an implementation detail of this package.
const userContextKey = "auth.user"

// CurrentUser returns the authenticated user attached by AuthGateway or
// OptionalAuth. The second return is false on unauthenticated requests.
func CurrentUser(c echo.Context) (model.User, bool) {
    u, ok := c.Get(userContextKey).(model.User)
    return u, ok
}

// authError writes the {error, code} body shared by every rejection on the
// auth path.
func authError(c echo.Context, status int, msg, code string) error {
    return c.JSON(status, echo.Map{"error": msg, "code": code})
}

// BearerToken extracts the raw token from the Authorization header, or ""
// when the header is absent or not a Bearer scheme.
func BearerToken(c echo.Context) string {
    auth := c.Request().Header.Get("Authorization")
    if !strings.HasPrefix(auth, "Bearer ") {
        return ""
    }
    return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
}

// resolveUser validates the access token and loads the user row. It returns
// the rejection (status + code) to apply, or the user on success.
func resolveUser(c echo.Context, issuer utils.TokenIssuer, users repository.UserStore) (model.User, int, string, string) {
    raw := BearerToken(c)
    if raw == "" {
        return model.User{}, http.StatusUnauthorized, "access token required", CodeMissingToken
    }

    userID, _, err := issuer.ParseAccess(raw)
    if err != nil {
        if errors.Is(err, utils.ErrTokenExpired) {
            return model.User{}, http.StatusUnauthorized, "token expired", CodeTokenExpired
        }
        return model.User{}, http.StatusUnauthorized, "invalid token", CodeInvalidToken
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    u, err := users.GetByID(ctx, userID)
    if err != nil {
        // A store failure is deliberately NOT distinguished from a missing
        // row: authentication fails closed either way.
        return model.User{}, http.StatusUnauthorized, "user not found", CodeUserNotFound
    }
    if u.AccountStatus != model.StatusActive {
        return model.User{}, http.StatusUnauthorized, "account is not active", CodeAccountInactive
    }
    return u, 0, "", ""
}

// AuthGateway returns the middleware protecting authenticated routes. It
// validates the Bearer access token, loads the user, rejects non-active
// accounts, and attaches the typed user value to the request context for
// downstream guards and handlers.
func AuthGateway(issuer utils.TokenIssuer, users repository.UserStore) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            u, status, msg, code := resolveUser(c, issuer, users)
            if code != "" {
                return authError(c, status, msg, code)
            }
            c.Set(userContextKey, u)
            return next(c)
        }
    }
}

// OptionalAuth performs the same steps as AuthGateway but never rejects:
// when the header is absent or the token/user is invalid, the request is
// simply forwarded unauthenticated. Used by public-but-personalizable
// endpoints such as the weather routes.
func OptionalAuth(issuer utils.TokenIssuer, users repository.UserStore) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if u, _, _, code := resolveUser(c, issuer, users); code == "" {
                c.Set(userContextKey, u)
            }
            return next(c)
        }
    }
}
