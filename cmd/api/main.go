package main

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scriptdeck/internal/cache"
	"scriptdeck/internal/config"
	"scriptdeck/internal/database"
	"scriptdeck/internal/database/migration"
	"scriptdeck/internal/deck"
	handlers "scriptdeck/internal/http/handler"
	"scriptdeck/internal/http/middleware"
	"scriptdeck/internal/otel"
	"scriptdeck/internal/repository/postgres"
	"scriptdeck/internal/service"
	"scriptdeck/internal/storage"
)

func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	loc := time.UTC

	ctx := context.Background()

	// Tracing degrades to a no-op when the collector is unreachable
	shutdownTracing, err := otel.Init(ctx, loc)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	// Initialize PostgreSQL connection (with pooling via database/sql)
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, loc, cfg.Database.Host); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// Initialize reusable S3-compatible object storage client (MinIO-supported)
	objStore, err := storage.NewMinIO(cfg.MinIO)
	if err != nil {
		log.Fatalf("failed to initialize object storage: %v", err)
	}

	// Optional Redis cache for conversion metadata
	var convCache cache.ConversionCache
	if cfg.Redis.Addr != "" {
		redisClient, err := cache.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		convCache = cache.NewConversionCache(redisClient)
	}

	// Speaker color palette, optionally overridden from a YAML file. An
	// unreadable or malformed file falls back to the built-in colors.
	palette := deck.DefaultPalette()
	if cfg.PalettePath != "" {
		palette, err = deck.LoadPalette(cfg.PalettePath)
		if err != nil {
			log.Printf("palette file %s ignored, using defaults: %v", cfg.PalettePath, err)
		}
	}

	// Initialize repositories and services
	convRepo := postgres.NewConversionPostgres(db)
	convSvc := service.NewConversionService(objStore, convRepo, convCache, palette)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
	})

	// Prometheus registry with process and Go runtime collectors
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		log.Fatalf("failed to register metrics: %v", err)
	}

	// Register global middleware
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	// JSON Logger middleware for structured request logs
	app.Use(middleware.Logger())
	app.Use(otelfiber.Middleware())
	app.Use(prom.Handler())

	// Register HTTP routes with injected service
	handlers.RegisterRoutes(app, db, convSvc, prom)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	addr := ":" + cfg.Port

	if err := app.Listen(addr); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
