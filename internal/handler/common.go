// Package handler implements the HTTP endpoints of the fishing log API.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/markyourfish/fishing-log/internal/model"
)

// dbTimeout bounds every database call made from a handler.
const dbTimeout = 5 * time.Second

// userView is the public shape of an account. The password hash and Stripe
// customer id never leave the server.
type userView struct {
	ID                uint64          `json:"id"`
	Email             string          `json:"email"`
	FirstName         string          `json:"firstName"`
	LastName          string          `json:"lastName"`
	Role              string          `json:"role"`
	AccountStatus     string          `json:"accountStatus"`
	SubscriptionPlan  string          `json:"subscriptionPlan"`
	CatchesCount      int             `json:"catchesCount"`
	CatchLimitMonthly int             `json:"catchLimitMonthly"`
	Preferences       json.RawMessage `json:"preferences,omitempty"`
	ProfilePictureURL string          `json:"profilePictureUrl,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
}

func publicUser(u model.User) userView {
	return userView{
		ID:                u.ID,
		Email:             u.Email,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		Role:              u.Role,
		AccountStatus:     u.AccountStatus,
		SubscriptionPlan:  u.SubscriptionPlan,
		CatchesCount:      u.CatchesCount,
		CatchLimitMonthly: u.CatchLimitMonthly,
		Preferences:       json.RawMessage(u.Preferences),
		ProfilePictureURL: u.ProfilePictureURL,
		CreatedAt:         u.CreatedAt,
	}
}

// validationError renders field-level failures in a stable, machine-readable
// list so clients can map messages onto form inputs.
func validationError(c echo.Context, err error) error {
	details := []echo.Map{}
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			details = append(details, echo.Map{
				"field": fe.Field(),
				"rule":  fe.Tag(),
			})
		}
	}
	return c.JSON(http.StatusBadRequest, echo.Map{
		"error":   "validation failed",
		"details": details,
	})
}

// pathID parses the named numeric path parameter, returning 0 when absent
// or malformed.
func pathID(c echo.Context, name string) uint64 {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
