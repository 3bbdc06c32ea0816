package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markyourfish/fishing-log/internal/config"
	"github.com/markyourfish/fishing-log/internal/model"
)

// newForecastApp mounts a premium route the way the router does: user
// resolution outermost, the subscription guard next, the cache innermost.
// The caller's plan comes from a test header so one server can play
// anonymous, free and pro requests.
func newForecastApp(t *testing.T) (*echo.Echo, *int) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	resolve := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch plan := c.Request().Header.Get("X-Test-Plan"); plan {
			case "":
				// anonymous
			default:
				c.Set(userContextKey, model.User{ID: 1, Role: model.RoleAngler, SubscriptionPlan: plan})
			}
			return next(c)
		}
	}
	cache := NewRedisCache(config.CacheConfig{
		Enabled:      true,
		TTL:          time.Minute,
		Prefix:       "cache",
		MaxBodyBytes: 1 << 20,
	}, rdb)

	calls := 0
	e := echo.New()
	e.GET("/api/weather/forecast", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"forecast": "five-day"})
	}, resolve, RequireSubscription(model.PlanPro), cache)

	return e, &calls
}

func forecastGet(e *echo.Echo, plan string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/weather/forecast?lat=61.5&lon=23.8", nil)
	if plan != "" {
		req.Header.Set("X-Test-Plan", plan)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestPrimedForecastCacheStaysBehindGuard(t *testing.T) {
	e, calls := newForecastApp(t)

	// a pro user primes the cache
	rec := forecastGet(e, model.PlanPro)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, 1, *calls)

	// the primed entry must not leak past the guard
	recAnon := forecastGet(e, "")
	assert.Equal(t, http.StatusUnauthorized, recAnon.Code)
	assert.NotContains(t, recAnon.Body.String(), "five-day")

	recFree := forecastGet(e, model.PlanFree)
	assert.Equal(t, http.StatusForbidden, recFree.Code)
	assert.NotContains(t, recFree.Body.String(), "five-day")

	assert.Equal(t, 1, *calls, "rejected requests must not reach the handler")
}

func TestForecastCacheHitForSameTier(t *testing.T) {
	e, calls := newForecastApp(t)

	first := forecastGet(e, model.PlanPro)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := forecastGet(e, model.PlanPro)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, *calls)
}

func TestCacheKeySeparatesTiers(t *testing.T) {
	e, calls := newForecastApp(t)

	require.Equal(t, http.StatusOK, forecastGet(e, model.PlanPro).Code)
	rec := forecastGet(e, model.PlanMaster)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, 2, *calls, "tiers must not share cache entries")
}
