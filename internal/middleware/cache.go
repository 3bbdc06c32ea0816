package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/markyourfish/fishing-log/internal/config"
)

// cachedResponse is the envelope stored in Redis for one cacheable reply.
// Only the content type is replayed; the weather endpoints set nothing else
// a client depends on.
type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`
}

// bodyRecorder tees the response body so a successful reply can be stored
// after the handler ran.
type bodyRecorder struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (w *bodyRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

// cacheKey buckets entries by route, query and the caller's subscription
// tier. Keying on the tier means a reply primed by a pro account is never
// replayed to an anonymous or free caller asking for the same coordinates.
func cacheKey(prefix string, c echo.Context) string {
	tier := "anon"
	if u, ok := CurrentUser(c); ok {
		tier = u.SubscriptionPlan
	}
	sum := sha1.Sum([]byte(c.Path() + "|" + c.Request().URL.RawQuery + "|" + tier))
	return fmt.Sprintf("%s:%x", prefix, sum)
}

// NewRedisCache serves repeated GETs from Redis. It must be mounted per
// route, after the auth guards, so a request only reaches the cache once it
// is allowed to see the response at all. Used on the weather routes, where
// upstream data barely changes inside a TTL window and every miss costs an
// external API call. A nil client or a disabled config is a no-op.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodGet {
				return next(c)
			}

			key := cacheKey(cfg.Prefix, c)
			ctx := c.Request().Context()

			if raw, err := rdb.Get(ctx, key).Bytes(); err == nil {
				var hit cachedResponse
				if json.Unmarshal(raw, &hit) == nil && hit.Status != 0 {
					if hit.ContentType != "" {
						c.Response().Header().Set(echo.HeaderContentType, hit.ContentType)
					}
					c.Response().Header().Set("X-Cache", "HIT")
					c.Response().WriteHeader(hit.Status)
					_, werr := c.Response().Write(hit.Body)
					return werr
				}
			}

			rec := &bodyRecorder{ResponseWriter: c.Response().Writer, status: http.StatusOK}
			c.Response().Writer = rec
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}

			// only clean 200s are worth replaying; errors stay uncached so
			// a recovered upstream is visible immediately
			if rec.status == http.StatusOK &&
				(cfg.MaxBodyBytes <= 0 || rec.buf.Len() <= cfg.MaxBodyBytes) {
				payload, err := json.Marshal(cachedResponse{
					Status:      rec.status,
					ContentType: c.Response().Header().Get(echo.HeaderContentType),
					Body:        rec.buf.Bytes(),
				})
				if err == nil {
					_ = rdb.SetEx(context.Background(), key, payload, cfg.TTL).Err()
				}
			}
			return nil
		}
	}
}
