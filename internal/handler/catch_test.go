package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
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

// catchEnv mirrors the /api/catches route group with in-memory stores.
type catchEnv struct {
	e       *echo.Echo
	users   *repository.MemoryUserRepo
	catches *repository.MemoryCatchRepo
	photos  *repository.MemoryPhotoRepo
	issuer  utils.TokenIssuer
	cfg     config.Config
}

func newCatchEnv(t *testing.T) *catchEnv {
	t.Helper()
	users := repository.NewMemoryUserRepo()
	catches := repository.NewMemoryCatchRepo()
	photos := repository.NewMemoryPhotoRepo()
	issuer := utils.NewTokenIssuer("access-secret", "refresh-secret", 15, 7)
	cfg := config.Config{UploadDir: t.TempDir()}
	h := NewCatchHandler(cfg, catches, photos, users, validator.New())

	e := echo.New()
	g := e.Group("/api/catches", middleware.AuthGateway(issuer, users))
	g.GET("", h.List)
	g.GET("/stats", h.Stats)
	g.POST("", h.Create, middleware.RequireCatchQuota())
	g.GET("/:id", h.Get, middleware.RequireCatchOwnership(catches))
	g.PUT("/:id", h.Update, middleware.RequireCatchOwnership(catches))
	g.DELETE("/:id", h.Delete, middleware.RequireCatchOwnership(catches))

	return &catchEnv{e: e, users: users, catches: catches, photos: photos, issuer: issuer, cfg: cfg}
}

// newAngler creates an account directly in the store and returns it with a
// valid access token.
func (env *catchEnv) newAngler(t *testing.T, email string) (model.User, string) {
	t.Helper()
	u, err := env.users.Create(context.Background(), email, "hunter2!!", "Ann", "Gler", 4, 3)
	require.NoError(t, err)
	pair, err := env.issuer.IssuePair(u.ID, u.Role)
	require.NoError(t, err)
	return u, pair.Access.Token
}

func (env *catchEnv) do(t *testing.T, method, path, body, token string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	return env.doRaw(t, method, path, strings.NewReader(body), echo.MIMEApplicationJSON, token)
}

func (env *catchEnv) doRaw(t *testing.T, method, path string, body io.Reader, contentType, token string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, contentType)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	return rec, decoded
}

// multipartCatch builds a form submission with an optional jpeg under the
// "photo" field.
func multipartCatch(t *testing.T, fields map[string]string, withPhoto bool) (io.Reader, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if withPhoto {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", `form-data; name="photo"; filename="pike.jpg"`)
		hdr.Set("Content-Type", "image/jpeg")
		part, err := w.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write([]byte("jpeg-bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf, w.FormDataContentType()
}

const pikeBody = `{"species":"Northern Pike","weight":4.2,"location":"Lake Vermilion","date":"2026-08-14"}`

// catchID pulls the created record's id out of a {"catch": {...}} response.
func catchID(t *testing.T, body map[string]any) string {
	t.Helper()
	rec, ok := body["catch"].(map[string]any)
	require.True(t, ok, "catch missing: %v", body)
	id, ok := rec["id"].(float64)
	require.True(t, ok, "id missing: %v", rec)
	return strconv.FormatFloat(id, 'f', -1, 64)
}

func catchIDNum(t *testing.T, body map[string]any) uint64 {
	t.Helper()
	n, err := strconv.ParseUint(catchID(t, body), 10, 64)
	require.NoError(t, err)
	return n
}

func TestCreateCatchBumpsCounter(t *testing.T) {
	env := newCatchEnv(t)
	u, token := env.newAngler(t, "ann@example.com")

	rec, body := env.do(t, http.MethodPost, "/api/catches", pikeBody, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := body["catch"].(map[string]any)
	assert.Equal(t, "Northern Pike", created["species"])

	after, err := env.users.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, after.CatchesCount)
}

func TestCreateCatchQuotaExhausted(t *testing.T) {
	env := newCatchEnv(t)
	_, token := env.newAngler(t, "ann@example.com")

	for i := 0; i < 3; i++ {
		rec, _ := env.do(t, http.MethodPost, "/api/catches", pikeBody, token)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec, body := env.do(t, http.MethodPost, "/api/catches", pikeBody, token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, middleware.CodeCatchLimitExceeded, body["code"])
	assert.Equal(t, "/subscription/upgrade", body["upgradeUrl"])
}

func TestCreateCatchProPlanBypassesQuota(t *testing.T) {
	env := newCatchEnv(t)
	u, token := env.newAngler(t, "pro@example.com")
	require.NoError(t, env.users.UpdatePlan(context.Background(), u.ID, model.PlanPro))

	for i := 0; i < 5; i++ {
		rec, _ := env.do(t, http.MethodPost, "/api/catches", pikeBody, token)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
}

func TestCreateCatchMultipartWithPhoto(t *testing.T) {
	env := newCatchEnv(t)
	u, token := env.newAngler(t, "ann@example.com")

	body, contentType := multipartCatch(t, map[string]string{
		"species":  "Northern Pike",
		"weight":   "4.2",
		"location": "Lake Vermilion",
		"date":     "2026-08-14",
	}, true)
	rec, decoded := env.doRaw(t, http.MethodPost, "/api/catches", body, contentType, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decoded["catch"].(map[string]any)
	urls, ok := created["photoUrls"].([]any)
	require.True(t, ok, "photoUrls missing: %v", created)
	require.Len(t, urls, 1)
	url := urls[0].(string)
	assert.True(t, strings.HasPrefix(url, "/uploads/"), "unexpected photo url %q", url)

	// the file landed on disk and the photo index links it to the catch
	name := strings.TrimPrefix(url, "/uploads/")
	_, err := os.Stat(filepath.Join(env.cfg.UploadDir, name))
	require.NoError(t, err)

	photos, err := env.photos.ListByUser(context.Background(), u.ID)
	require.NoError(t, err)
	require.Len(t, photos, 1)
	require.NotNil(t, photos[0].CatchID)
	assert.Equal(t, catchIDNum(t, decoded), *photos[0].CatchID)
}

func TestCreateCatchMultipartRejectsNonImage(t *testing.T) {
	env := newCatchEnv(t)
	_, token := env.newAngler(t, "ann@example.com")

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	require.NoError(t, w.WriteField("species", "Perch"))
	require.NoError(t, w.WriteField("location", "Lake"))
	require.NoError(t, w.WriteField("date", "2026-08-14"))
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="photo"; filename="notes.txt"`)
	hdr.Set("Content-Type", "text/plain")
	part, err := w.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write([]byte("not an image"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	rec, _ := env.doRaw(t, http.MethodPost, "/api/catches", buf, w.FormDataContentType(), token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateCatchRejectsBadPayload(t *testing.T) {
	env := newCatchEnv(t)
	_, token := env.newAngler(t, "ann@example.com")

	rec, body := env.do(t, http.MethodPost, "/api/catches",
		`{"species":"","weight":-1,"location":"Lake","date":"2026-08-14"}`, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation failed", body["error"])
}

func TestListCatchesFiltersAndPaginates(t *testing.T) {
	env := newCatchEnv(t)
	u, token := env.newAngler(t, "ann@example.com")
	require.NoError(t, env.users.UpdatePlan(context.Background(), u.ID, model.PlanPro))

	species := []string{"Walleye", "Walleye", "Northern Pike", "Perch"}
	for _, s := range species {
		rec, _ := env.do(t, http.MethodPost, "/api/catches",
			`{"species":"`+s+`","location":"Lake Vermilion","date":"2026-08-14"}`, token)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec, body := env.do(t, http.MethodGet, "/api/catches?species=Walleye", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["catches"], 2)

	rec, body = env.do(t, http.MethodGet, "/api/catches?page=2&limit=3", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["catches"], 1)
	pagination := body["pagination"].(map[string]any)
	assert.EqualValues(t, 4, pagination["total"])
	assert.EqualValues(t, 2, pagination["totalPages"])
}

func TestCatchOwnershipEnforced(t *testing.T) {
	env := newCatchEnv(t)
	_, annToken := env.newAngler(t, "ann@example.com")
	_, bobToken := env.newAngler(t, "bob@example.com")

	rec, body := env.do(t, http.MethodPost, "/api/catches", pikeBody, annToken)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := catchID(t, body)

	recGet, _ := env.do(t, http.MethodGet, "/api/catches/"+id, "", bobToken)
	assert.Equal(t, http.StatusForbidden, recGet.Code)

	recOwn, _ := env.do(t, http.MethodGet, "/api/catches/"+id, "", annToken)
	assert.Equal(t, http.StatusOK, recOwn.Code)
}

func TestDeleteCatchDecrementsCounter(t *testing.T) {
	env := newCatchEnv(t)
	u, token := env.newAngler(t, "ann@example.com")

	rec, body := env.do(t, http.MethodPost, "/api/catches", pikeBody, token)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := catchID(t, body)

	recDel, _ := env.do(t, http.MethodDelete, "/api/catches/"+id, "", token)
	require.Equal(t, http.StatusOK, recDel.Code, recDel.Body.String())

	after, err := env.users.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, after.CatchesCount)

	recGone, _ := env.do(t, http.MethodGet, "/api/catches/"+id, "", token)
	assert.Equal(t, http.StatusNotFound, recGone.Code)
}

func TestCatchStats(t *testing.T) {
	env := newCatchEnv(t)
	_, token := env.newAngler(t, "ann@example.com")

	for _, b := range []string{
		`{"species":"Walleye","weight":1.5,"location":"Lake Vermilion","date":"2026-08-14"}`,
		`{"species":"Walleye","weight":3.0,"location":"Lake Vermilion","date":"2026-08-15"}`,
	} {
		rec, _ := env.do(t, http.MethodPost, "/api/catches", b, token)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec, body := env.do(t, http.MethodGet, "/api/catches/stats", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := body["stats"].(map[string]any)
	assert.EqualValues(t, 2, stats["totalCatches"])
}
