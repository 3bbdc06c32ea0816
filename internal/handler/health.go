package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Health reports service liveness plus database reachability so load
// balancers and monitors can tell a dead process from a dead dependency.
func Health(db *sql.DB) echo.HandlerFunc {
	return func(c echo.Context) error {
		status := http.StatusOK
		dbState := "not configured"
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				status = http.StatusServiceUnavailable
				dbState = "unreachable"
			} else {
				dbState = "ok"
			}
		}
		return c.JSON(status, echo.Map{
			"status":   "ok",
			"database": dbState,
			"time":     time.Now().UTC().Format(time.RFC3339),
		})
	}
}
