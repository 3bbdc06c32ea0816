package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markyourfish/fishing-log/internal/config"
	"github.com/markyourfish/fishing-log/internal/middleware"
	"github.com/markyourfish/fishing-log/internal/model"
	"github.com/markyourfish/fishing-log/internal/repository"
	"github.com/markyourfish/fishing-log/internal/utils"
)

// authEnv wires the auth handler against in-memory stores behind the same
// routes the server registers.
type authEnv struct {
	e        *echo.Echo
	users    *repository.MemoryUserRepo
	registry repository.TokenRegistry
}

func newAuthEnv(registry repository.TokenRegistry) *authEnv {
	users := repository.NewMemoryUserRepo()
	issuer := utils.NewTokenIssuer("access-secret", "refresh-secret", 15, 7)
	cfg := config.Config{BcryptCost: 4, FreeCatchLimit: 10}
	h := NewAuthHandler(cfg, users, registry, issuer, validator.New())

	e := echo.New()
	e.POST("/api/auth/register", h.Register)
	e.POST("/api/auth/login", h.Login)
	e.POST("/api/auth/refresh", h.Refresh)
	e.POST("/api/auth/logout", h.Logout)
	e.GET("/api/auth/me", h.Me, middleware.AuthGateway(issuer, users))

	return &authEnv{e: e, users: users, registry: registry}
}

func (env *authEnv) post(t *testing.T, path, body, bearer string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	return rec, decoded
}

func (env *authEnv) register(t *testing.T) map[string]any {
	t.Helper()
	rec, body := env.post(t, "/api/auth/register",
		`{"email":"ann@example.com","password":"hunter2!!","firstName":"Ann","lastName":"Gler"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return body
}

func sessionTokens(t *testing.T, body map[string]any) (access, refresh string) {
	t.Helper()
	at, ok := body["accessToken"].(string)
	require.True(t, ok, "accessToken missing: %v", body)
	rt, ok := body["refreshToken"].(string)
	require.True(t, ok, "refreshToken missing: %v", body)
	return at, rt
}

func TestRegisterThenMe(t *testing.T) {
	env := newAuthEnv(repository.NewMemoryTokenRegistry())
	body := env.register(t)
	access, _ := sessionTokens(t, body)

	user := body["user"].(map[string]any)
	assert.Equal(t, "ann@example.com", user["email"])
	assert.NotContains(t, user, "password")
	assert.NotContains(t, user, "passwordHash")

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "ann@example.com")
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newAuthEnv(repository.NewMemoryTokenRegistry())
	env.register(t)
	rec, _ := env.post(t, "/api/auth/register",
		`{"email":"ann@example.com","password":"hunter2!!","firstName":"Ann","lastName":"Gler"}`, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	env := newAuthEnv(repository.NewMemoryTokenRegistry())
	rec, body := env.post(t, "/api/auth/register",
		`{"email":"ann@example.com","password":"short","firstName":"Ann","lastName":"Gler"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation failed", body["error"])
}

func TestLoginWrongPasswordAndUnknownEmailLookAlike(t *testing.T) {
	env := newAuthEnv(repository.NewMemoryTokenRegistry())
	env.register(t)

	recWrong, bodyWrong := env.post(t, "/api/auth/login",
		`{"email":"ann@example.com","password":"not-the-password"}`, "")
	recUnknown, bodyUnknown := env.post(t, "/api/auth/login",
		`{"email":"nobody@example.com","password":"not-the-password"}`, "")

	assert.Equal(t, http.StatusUnauthorized, recWrong.Code)
	assert.Equal(t, http.StatusUnauthorized, recUnknown.Code)
	assert.Equal(t, bodyWrong["error"], bodyUnknown["error"])
}

func TestLoginSuspendedAccount(t *testing.T) {
	env := newAuthEnv(repository.NewMemoryTokenRegistry())
	env.register(t)
	u, err := env.users.GetByEmail(context.Background(), "ann@example.com")
	require.NoError(t, err)
	require.NoError(t, env.users.UpdateStatus(context.Background(), u.ID, model.StatusSuspended))

	rec, body := env.post(t, "/api/auth/login",
		`{"email":"ann@example.com","password":"hunter2!!"}`, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, middleware.CodeAccountInactive, body["code"])
}

func TestRefreshRotatesAndRejectsReplay(t *testing.T) {
	env := newAuthEnv(repository.NewMemoryTokenRegistry())
	body := env.register(t)
	_, refresh := sessionTokens(t, body)

	rec, rotated := env.post(t, "/api/auth/refresh", `{"refreshToken":"`+refresh+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	_, newRefresh := sessionTokens(t, rotated)
	assert.NotEqual(t, refresh, newRefresh)

	// replaying the consumed token fails and burns the registry entry, so
	// the rotated token is dead as well
	recReplay, replayBody := env.post(t, "/api/auth/refresh", `{"refreshToken":"`+refresh+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, recReplay.Code)
	assert.Equal(t, middleware.CodeInvalidToken, replayBody["code"])

	recDead, _ := env.post(t, "/api/auth/refresh", `{"refreshToken":"`+newRefresh+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, recDead.Code)
}

func TestRefreshAfterLogout(t *testing.T) {
	env := newAuthEnv(repository.NewMemoryTokenRegistry())
	body := env.register(t)
	access, refresh := sessionTokens(t, body)

	recOut, _ := env.post(t, "/api/auth/logout", "", access)
	require.Equal(t, http.StatusOK, recOut.Code)

	rec, _ := env.post(t, "/api/auth/refresh", `{"refreshToken":"`+refresh+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutWithRefreshBodyNeedsNoAccessToken(t *testing.T) {
	// an expired access token is the normal state at logout time, so the
	// refresh token in the body alone must be enough to revoke
	env := newAuthEnv(repository.NewMemoryTokenRegistry())
	body := env.register(t)
	_, refresh := sessionTokens(t, body)

	recOut, _ := env.post(t, "/api/auth/logout", `{"refreshToken":"`+refresh+`"}`, "")
	require.Equal(t, http.StatusOK, recOut.Code)

	rec, _ := env.post(t, "/api/auth/refresh", `{"refreshToken":"`+refresh+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutWithoutTokenStillSucceeds(t *testing.T) {
	env := newAuthEnv(repository.NewMemoryTokenRegistry())
	rec, body := env.post(t, "/api/auth/logout", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "logged out", body["message"])
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	env := newAuthEnv(repository.NewMemoryTokenRegistry())
	body := env.register(t)
	access, _ := sessionTokens(t, body)

	rec, refreshBody := env.post(t, "/api/auth/refresh", `{"refreshToken":"`+access+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, middleware.CodeInvalidToken, refreshBody["code"])
}

func TestRefreshFailsClosedWhenRegistryDown(t *testing.T) {
	// a session is minted against a working registry, then the registry
	// becomes unreachable before the refresh arrives; the structurally
	// valid token counts as unknown and the caller must log in again
	working := repository.NewMemoryTokenRegistry()
	env := newAuthEnv(working)
	body := env.register(t)
	_, refresh := sessionTokens(t, body)

	broken := newAuthEnv(repository.NewRedisTokenRegistry(nil))
	rec, refreshBody := broken.post(t, "/api/auth/refresh", `{"refreshToken":"`+refresh+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, middleware.CodeInvalidToken, refreshBody["code"])
}
