package main

import (
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/stripe/stripe-go/v82"

	"github.com/markyourfish/fishing-log/internal/config"
	"github.com/markyourfish/fishing-log/internal/database"
	"github.com/markyourfish/fishing-log/internal/handler"
	"github.com/markyourfish/fishing-log/internal/queue"
	"github.com/markyourfish/fishing-log/internal/repository"
	"github.com/markyourfish/fishing-log/internal/router"
	"github.com/markyourfish/fishing-log/internal/utils"
	"github.com/markyourfish/fishing-log/internal/weather"
)

func main() {
	// .env is a development convenience; in production the variables come
	// from the process environment
	_ = godotenv.Load()

	cfg := config.Load()

	if err := database.Migrate(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()

	if cfg.StripeSecretKey != "" {
		stripe.Key = cfg.StripeSecretKey
	}

	users := repository.NewUserRepo(db)
	catches := repository.NewCatchRepo(db)
	photos := repository.NewPhotoRepo(db)

	var registry repository.TokenRegistry
	if rdb != nil {
		registry = repository.NewRedisTokenRegistry(rdb)
	} else {
		// single-node fallback; sessions do not survive a restart
		log.Println("redis unavailable, using in-memory token registry")
		registry = repository.NewMemoryTokenRegistry()
	}

	issuer := utils.NewTokenIssuer(cfg.AccessSecret, cfg.RefreshSecret, cfg.AccessTTLMin, cfg.RefreshTTLDays)
	validate := validator.New()
	weatherClient := weather.NewClient(cfg.WeatherAPIURL, cfg.WeatherAPIKey)

	deps := router.Deps{
		Cfg:    cfg,
		DB:     db,
		RDB:    rdb,
		Issuer: issuer,
		Users:  users,
		Catch:  catches,

		Auth:     handler.NewAuthHandler(cfg, users, registry, issuer, validate),
		Catches:  handler.NewCatchHandler(cfg, catches, photos, users, validate),
		User:     handler.NewUserHandler(cfg, users, catches, registry, validate),
		Admin:    handler.NewAdminHandler(users, catches, photos, registry),
		Weather:  handler.NewWeatherHandler(weatherClient),
		Upload:   handler.NewUploadHandler(cfg, photos, users),
		Payments: handler.NewPaymentHandler(cfg, users, validate),
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     []string{cfg.ClientURL},
		AllowCredentials: true,
	}))

	router.Register(e, deps)

	go func() {
		if err := queue.StartCatchConsumer(); err != nil {
			log.Printf("catch consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
