// Package router maps the /api surface onto handlers and guard middleware.
package router

import (
	"database/sql"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/markyourfish/fishing-log/internal/config"
	"github.com/markyourfish/fishing-log/internal/handler"
	"github.com/markyourfish/fishing-log/internal/middleware"
	"github.com/markyourfish/fishing-log/internal/model"
	"github.com/markyourfish/fishing-log/internal/repository"
	"github.com/markyourfish/fishing-log/internal/utils"
)

// Deps carries everything the route table needs. The composition root in
// cmd/server builds one of these and hands it over.
type Deps struct {
	Cfg    config.Config
	DB     *sql.DB
	RDB    *redis.Client
	Issuer utils.TokenIssuer
	Users  repository.UserStore

	Auth     *handler.AuthHandler
	Catches  *handler.CatchHandler
	Catch    repository.CatchStore
	User     *handler.UserHandler
	Admin    *handler.AdminHandler
	Weather  *handler.WeatherHandler
	Upload   *handler.UploadHandler
	Payments *handler.PaymentHandler
}

// Register wires the full route table.
func Register(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health(d.DB))

	// uploaded images are served as plain static files
	e.Static("/uploads", d.Cfg.UploadDir)

	api := e.Group("/api")
	api.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), d.RDB))

	gate := middleware.AuthGateway(d.Issuer, d.Users)
	optional := middleware.OptionalAuth(d.Issuer, d.Users)

	// auth: register and login sit behind their own stricter buckets so the
	// endpoints cannot be brute-forced from a single address
	auth := api.Group("/auth")
	auth.POST("/register", d.Auth.Register, middleware.NewTokenBucket(config.LoadRegisterRateLimitConfig(), d.RDB))
	auth.POST("/login", d.Auth.Login, middleware.NewTokenBucket(config.LoadLoginRateLimitConfig(), d.RDB))
	auth.POST("/refresh", d.Auth.Refresh)
	auth.POST("/logout", d.Auth.Logout)
	auth.GET("/me", d.Auth.Me, gate)

	// catches
	catches := api.Group("/catches", gate)
	catches.GET("", d.Catches.List)
	catches.GET("/stats", d.Catches.Stats)
	catches.POST("", d.Catches.Create, middleware.RequireCatchQuota())
	catches.GET("/:id", d.Catches.Get, middleware.RequireCatchOwnership(d.Catch))
	catches.PUT("/:id", d.Catches.Update, middleware.RequireCatchOwnership(d.Catch))
	catches.DELETE("/:id", d.Catches.Delete, middleware.RequireCatchOwnership(d.Catch))

	// account self-service
	users := api.Group("/users", gate)
	users.GET("/profile", d.User.Profile)
	users.PUT("/profile", d.User.UpdateProfile)
	users.PUT("/password", d.User.ChangePassword)
	users.PUT("/preferences", d.User.UpdatePreferences)
	users.GET("/activity", d.User.Activity)
	users.DELETE("/account", d.User.DeleteAccount)

	// weather proxy; auth optional so logged-in clients are rate limited per
	// user. The response cache sits per route, innermost, so the forecast
	// subscription guard always runs before a cached reply can be served.
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), d.RDB)
	weather := api.Group("/weather", optional)
	weather.GET("/current", d.Weather.Current, cache)
	weather.GET("/forecast", d.Weather.Forecast, middleware.RequireSubscription(model.PlanPro), cache)

	// uploads
	upload := api.Group("/upload", gate)
	upload.POST("/catch-photos", d.Upload.CatchPhotos)
	upload.POST("/profile-picture", d.Upload.ProfilePicture)
	upload.GET("/files", d.Upload.ListFiles)
	upload.DELETE("/files/:id", d.Upload.DeleteFile)
	upload.GET("/stats", d.Upload.UploadStats)

	// billing; the webhook is signed by Stripe and must stay outside the gate
	payments := api.Group("/payments")
	payments.GET("/plans", d.Payments.Plans)
	payments.POST("/webhook", d.Payments.Webhook)
	payments.POST("/create-customer", d.Payments.CreateCustomer, gate)
	payments.POST("/create-setup-intent", d.Payments.CreateSetupIntent, gate)
	payments.POST("/create-subscription", d.Payments.CreateSubscription, gate)
	payments.GET("/subscription", d.Payments.GetSubscription, gate)
	payments.POST("/cancel-subscription", d.Payments.CancelSubscription, gate)
	payments.POST("/create-payment-intent", d.Payments.CreatePaymentIntent, gate)

	// moderation
	admin := api.Group("/admin", gate, middleware.RequireRole(model.RoleAdmin))
	admin.GET("/users", d.Admin.ListUsers)
	admin.GET("/stats", d.Admin.Stats)
	admin.PUT("/users/:id/role", d.Admin.UpdateRole)
	admin.PUT("/users/:id/status", d.Admin.UpdateStatus)
	admin.PUT("/users/:id/plan", d.Admin.UpdatePlan)
}
