package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/weather-dashboard/internal/api/http"
	"github.com/i474232898/weather-dashboard/internal/cache"
	"github.com/i474232898/weather-dashboard/internal/config"
	"github.com/i474232898/weather-dashboard/internal/eviction"
	"github.com/i474232898/weather-dashboard/internal/favorites"
	"github.com/i474232898/weather-dashboard/internal/logging"
	"github.com/i474232898/weather-dashboard/internal/metrics"
	"github.com/i474232898/weather-dashboard/internal/search"
	"github.com/i474232898/weather-dashboard/internal/weather"
)

func main() {
	log := logging.NewLogger()
	defer log.Sync()

	if err := godotenv.Load(); err != nil {
		log.Info("no .env file found", zap.Error(err))
	}

	// Load configuration. A missing provider credential fails here, once,
	// instead of on every fetch.
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	metrics.Register()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	client := weather.NewClient(httpClient, cfg.WeatherAPIKey)
	clock := clockwork.NewRealClock()

	// Forecast cache with per-key polling while subscribers exist.
	store := cache.NewStore(client, clock, log, cache.Config{
		FreshnessWindow: cfg.FreshnessWindow,
		FetchTimeout:    cfg.FetchTimeout,
		ForecastDays:    cfg.ForecastDays,
	})
	poller := cache.NewPoller(cfg.PollInterval, store, log)
	store.SetPoller(poller)
	poller.Run()
	defer poller.Shutdown()

	// Favorites, persisted best-effort to redis or a local JSON file.
	var favStore favorites.Store
	if cfg.RedisAddr != "" {
		favStore = favorites.NewRedisStore(cfg.RedisAddr)
	} else {
		favStore = favorites.NewFileStore(cfg.FavoritesFile)
	}
	favs := favorites.NewSet(favStore, log)

	// Evicts favorites the provider cannot resolve.
	policy := eviction.NewPolicy(store, favs, log)

	// Debounced location search feeding the add-favorite flow.
	coordinator := search.NewCoordinator(client, favs, clock, log, cfg.SearchDebounce)

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "weather-dashboard",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-dashboard",
		})
	})

	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	// API routes.
	httpapi.RegisterRoutes(app, httpapi.Deps{
		Store:       store,
		Coordinator: coordinator,
		Favorites:   favs,
		Policy:      policy,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("fiber server stopped", zap.Error(err))
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("error during shutdown", zap.Error(err))
	}
}
