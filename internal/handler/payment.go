package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/setupintent"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/markyourfish/fishing-log/internal/config"
	"github.com/markyourfish/fishing-log/internal/middleware"
	"github.com/markyourfish/fishing-log/internal/model"
	"github.com/markyourfish/fishing-log/internal/repository"
)

// subscriptionPlans is the public plan catalog served by GET /plans. Price
// IDs come from the Stripe dashboard and are configured per environment.
var subscriptionPlans = []echo.Map{
	{
		"id":          model.PlanFree,
		"name":        "Free",
		"description": "Log up to your monthly limit of catches",
		"features":    []string{"Catch log", "Current weather"},
	},
	{
		"id":          model.PlanPro,
		"name":        "Pro",
		"description": "Unlimited catches and full forecasts",
		"features":    []string{"Unlimited catches", "Weather forecasts", "Export data"},
	},
	{
		"id":          model.PlanMaster,
		"name":        "Master",
		"description": "Everything in Pro plus priority support",
		"features":    []string{"Unlimited catches", "Weather forecasts", "Export data", "Priority support"},
	},
}

// PaymentHandler integrates Stripe billing. The global stripe.Key is set
// once at startup; handlers here only build params and map results onto the
// account's subscription plan.
type PaymentHandler struct {
	Cfg      config.Config
	Users    repository.UserStore
	Validate *validator.Validate
}

func NewPaymentHandler(cfg config.Config, users repository.UserStore, v *validator.Validate) *PaymentHandler {
	return &PaymentHandler{Cfg: cfg, Users: users, Validate: v}
}

func (h *PaymentHandler) configured(c echo.Context) bool {
	return h.Cfg.StripeSecretKey != ""
}

func notConfigured(c echo.Context) error {
	return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "payment processing not configured"})
}

// ensureCustomer returns the user's Stripe customer id, creating the
// customer on first use.
func (h *PaymentHandler) ensureCustomer(ctx context.Context, u model.User) (string, error) {
	if u.StripeCustomerID != "" {
		return u.StripeCustomerID, nil
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(u.Email),
		Name:  stripe.String(u.FirstName + " " + u.LastName),
	}
	params.AddMetadata("user_id", strconv.FormatUint(u.ID, 10))

	cust, err := customer.New(params)
	if err != nil {
		return "", err
	}
	if err := h.Users.SetStripeCustomer(ctx, u.ID, cust.ID); err != nil {
		return "", err
	}
	return cust.ID, nil
}

// CreateCustomer registers the caller with Stripe.
func (h *PaymentHandler) CreateCustomer(c echo.Context) error {
	if !h.configured(c) {
		return notConfigured(c)
	}
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "code": middleware.CodeAuthRequired})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	id, err := h.ensureCustomer(ctx, u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create customer failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"customerId": id})
}

// CreateSetupIntent prepares saving a payment method for later charges.
func (h *PaymentHandler) CreateSetupIntent(c echo.Context) error {
	if !h.configured(c) {
		return notConfigured(c)
	}
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "code": middleware.CodeAuthRequired})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	custID, err := h.ensureCustomer(ctx, u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create customer failed"})
	}

	si, err := setupintent.New(&stripe.SetupIntentParams{
		Customer:           stripe.String(custID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create setup intent failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"clientSecret": si.ClientSecret})
}

type subscribeReq struct {
	PriceID         string `json:"priceId" validate:"required"`
	Plan            string `json:"plan" validate:"required,oneof=pro master"`
	PaymentMethodID string `json:"paymentMethodId"`
}

// CreateSubscription starts a recurring subscription and upgrades the
// account to the requested tier once Stripe reports it active. The plan is
// carried in subscription metadata so webhook events can map back without a
// lookup table.
func (h *PaymentHandler) CreateSubscription(c echo.Context) error {
	if !h.configured(c) {
		return notConfigured(c)
	}
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "code": middleware.CodeAuthRequired})
	}

	var req subscribeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := h.Validate.Struct(req); err != nil {
		return validationError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	custID, err := h.ensureCustomer(ctx, u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create customer failed"})
	}

	params := &stripe.SubscriptionParams{
		Customer: stripe.String(custID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(req.PriceID)},
		},
		PaymentBehavior: stripe.String("allow_incomplete"),
	}
	if req.PaymentMethodID != "" {
		params.DefaultPaymentMethod = stripe.String(req.PaymentMethodID)
	}
	params.AddMetadata("user_id", strconv.FormatUint(u.ID, 10))
	params.AddMetadata("plan", req.Plan)

	sub, err := subscription.New(params)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create subscription failed"})
	}

	if sub.Status == stripe.SubscriptionStatusActive || sub.Status == stripe.SubscriptionStatusTrialing {
		if err := h.Users.UpdatePlan(ctx, u.ID, req.Plan); err != nil {
			c.Logger().Warnf("subscription: update plan for user %d: %v", u.ID, err)
		}
	}

	return c.JSON(http.StatusOK, echo.Map{"subscription": echo.Map{
		"id":     sub.ID,
		"status": string(sub.Status),
	}})
}

// GetSubscription returns the caller's current subscription, if any.
func (h *PaymentHandler) GetSubscription(c echo.Context) error {
	if !h.configured(c) {
		return notConfigured(c)
	}
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "code": middleware.CodeAuthRequired})
	}
	if u.StripeCustomerID == "" {
		return c.JSON(http.StatusOK, echo.Map{"subscription": nil, "plan": u.SubscriptionPlan})
	}

	iter := subscription.List(&stripe.SubscriptionListParams{
		Customer: stripe.String(u.StripeCustomerID),
		Status:   stripe.String("active"),
	})
	for iter.Next() {
		sub := iter.Subscription()
		return c.JSON(http.StatusOK, echo.Map{
			"subscription": echo.Map{
				"id":               sub.ID,
				"status":           string(sub.Status),
				"cancelAtPeriodEnd": sub.CancelAtPeriodEnd,
			},
			"plan": u.SubscriptionPlan,
		})
	}
	if err := iter.Err(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load subscription failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"subscription": nil, "plan": u.SubscriptionPlan})
}

type cancelReq struct {
	SubscriptionID string `json:"subscriptionId" validate:"required"`
}

// CancelSubscription stops renewal at the period end. The downgrade to the
// free tier happens when Stripe later delivers the deletion webhook.
func (h *PaymentHandler) CancelSubscription(c echo.Context) error {
	if !h.configured(c) {
		return notConfigured(c)
	}
	if _, ok := middleware.CurrentUser(c); !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "code": middleware.CodeAuthRequired})
	}

	var req cancelReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := h.Validate.Struct(req); err != nil {
		return validationError(c, err)
	}

	sub, err := subscription.Update(req.SubscriptionID, &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel subscription failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"subscription": echo.Map{
			"id":                sub.ID,
			"status":            string(sub.Status),
			"cancelAtPeriodEnd": sub.CancelAtPeriodEnd,
		},
	})
}

type paymentIntentReq struct {
	Amount      int64  `json:"amount" validate:"required,min=50"`
	Currency    string `json:"currency" validate:"required,oneof=usd cad eur gbp"`
	Description string `json:"description" validate:"omitempty,max=200"`
}

// CreatePaymentIntent starts a one-time charge, amount in the smallest
// currency unit.
func (h *PaymentHandler) CreatePaymentIntent(c echo.Context) error {
	if !h.configured(c) {
		return notConfigured(c)
	}
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "code": middleware.CodeAuthRequired})
	}

	var req paymentIntentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := h.Validate.Struct(req); err != nil {
		return validationError(c, err)
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	params.AddMetadata("user_id", strconv.FormatUint(u.ID, 10))

	pi, err := paymentintent.New(params)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create payment intent failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"clientSecret": pi.ClientSecret,
		"paymentIntentId": pi.ID,
	})
}

// Plans serves the public plan catalog.
func (h *PaymentHandler) Plans(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"plans": subscriptionPlans})
}

// Webhook applies Stripe subscription lifecycle events to the account's
// plan. The raw body is verified against the signing secret before any
// field is trusted.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	if h.Cfg.StripeWebhookSecret == "" {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "webhook not configured"})
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "read body failed"})
	}

	event, err := webhook.ConstructEvent(payload, c.Request().Header.Get("Stripe-Signature"), h.Cfg.StripeWebhookSecret)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid webhook signature"})
	}

	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event payload"})
		}
		if sub.Status == stripe.SubscriptionStatusActive || sub.Status == stripe.SubscriptionStatusTrialing {
			h.applyPlan(c, sub.Metadata, sub.Metadata["plan"])
		}
	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event payload"})
		}
		h.applyPlan(c, sub.Metadata, model.PlanFree)
	}

	return c.JSON(http.StatusOK, echo.Map{"received": true})
}

func (h *PaymentHandler) applyPlan(c echo.Context, metadata map[string]string, plan string) {
	userID, err := strconv.ParseUint(metadata["user_id"], 10, 64)
	if err != nil || !model.ValidPlan(plan) {
		c.Logger().Warnf("stripe webhook: unusable metadata %v", metadata)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Users.UpdatePlan(ctx, userID, plan); err != nil {
		c.Logger().Warnf("stripe webhook: update plan for user %d: %v", userID, err)
	}
}
