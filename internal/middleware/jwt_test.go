package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markyourfish/fishing-log/internal/model"
	"github.com/markyourfish/fishing-log/internal/repository"
	"github.com/markyourfish/fishing-log/internal/utils"
)

func testIssuer() utils.TokenIssuer {
	return utils.NewTokenIssuer("access-secret", "refresh-secret", 15, 7)
}

func seedUser(t *testing.T, users *repository.MemoryUserRepo) model.User {
	t.Helper()
	u, err := users.Create(context.Background(), "angler@example.com", "hunter2!", "Ann", "Gler", 4, 10)
	require.NoError(t, err)
	return u
}

// runGateway sends a request through AuthGateway into a probe handler that
// reports whether CurrentUser resolved.
func runGateway(issuer utils.TokenIssuer, users repository.UserStore, authz string) *httptest.ResponseRecorder {
	e := echo.New()
	e.GET("/probe", func(c echo.Context) error {
		u, ok := CurrentUser(c)
		if !ok {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "no user in context"})
		}
		return c.JSON(http.StatusOK, echo.Map{"id": u.ID})
	}, AuthGateway(issuer, users))

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func bodyCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	code, _ := body["code"].(string)
	return code
}

func TestGatewayAcceptsValidToken(t *testing.T) {
	users := repository.NewMemoryUserRepo()
	u := seedUser(t, users)
	issuer := testIssuer()

	pair, err := issuer.IssuePair(u.ID, u.Role)
	require.NoError(t, err)

	rec := runGateway(issuer, users, "Bearer "+pair.Access.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGatewayMissingToken(t *testing.T) {
	rec := runGateway(testIssuer(), repository.NewMemoryUserRepo(), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, CodeMissingToken, bodyCode(t, rec))
}

func TestGatewayMalformedToken(t *testing.T) {
	rec := runGateway(testIssuer(), repository.NewMemoryUserRepo(), "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, CodeInvalidToken, bodyCode(t, rec))
}

func TestGatewayRefreshTokenRejected(t *testing.T) {
	users := repository.NewMemoryUserRepo()
	u := seedUser(t, users)
	issuer := testIssuer()

	pair, err := issuer.IssuePair(u.ID, u.Role)
	require.NoError(t, err)

	// the long-lived token must not open authenticated routes
	rec := runGateway(issuer, users, "Bearer "+pair.Refresh.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, CodeInvalidToken, bodyCode(t, rec))
}

func TestGatewayDeletedUser(t *testing.T) {
	users := repository.NewMemoryUserRepo()
	u := seedUser(t, users)
	issuer := testIssuer()

	pair, err := issuer.IssuePair(u.ID, u.Role)
	require.NoError(t, err)
	require.NoError(t, users.Delete(context.Background(), u.ID))

	rec := runGateway(issuer, users, "Bearer "+pair.Access.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, CodeUserNotFound, bodyCode(t, rec))
}

func TestGatewaySuspendedUser(t *testing.T) {
	users := repository.NewMemoryUserRepo()
	u := seedUser(t, users)
	issuer := testIssuer()

	pair, err := issuer.IssuePair(u.ID, u.Role)
	require.NoError(t, err)
	require.NoError(t, users.UpdateStatus(context.Background(), u.ID, model.StatusSuspended))

	rec := runGateway(issuer, users, "Bearer "+pair.Access.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, CodeAccountInactive, bodyCode(t, rec))
}

func TestOptionalAuthForwardsAnonymous(t *testing.T) {
	e := echo.New()
	e.GET("/probe", func(c echo.Context) error {
		if _, ok := CurrentUser(c); ok {
			return c.String(http.StatusOK, "authenticated")
		}
		return c.String(http.StatusOK, "anonymous")
	}, OptionalAuth(testIssuer(), repository.NewMemoryUserRepo()))

	for _, authz := range []string{"", "Bearer garbage"} {
		req := httptest.NewRequest(http.MethodGet, "/probe", nil)
		if authz != "" {
			req.Header.Set("Authorization", authz)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "anonymous", rec.Body.String())
	}
}

func TestOptionalAuthAttachesUser(t *testing.T) {
	users := repository.NewMemoryUserRepo()
	u := seedUser(t, users)
	issuer := testIssuer()

	pair, err := issuer.IssuePair(u.ID, u.Role)
	require.NoError(t, err)

	e := echo.New()
	e.GET("/probe", func(c echo.Context) error {
		cur, ok := CurrentUser(c)
		require.True(t, ok)
		return c.JSON(http.StatusOK, echo.Map{"id": cur.ID})
	}, OptionalAuth(issuer, users))

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+pair.Access.Token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
