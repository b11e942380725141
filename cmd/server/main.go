package main // Entry point package

import (
	"context" // Context for the background expiry sweep
	"log"     // Logging library

	"github.com/joho/godotenv"    // Loads .env files into the environment
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/freight-load-board/internal/audit"      // Audit trail publisher and consumer
	"github.com/iliyamo/freight-load-board/internal/config"     // Internal config loader
	"github.com/iliyamo/freight-load-board/internal/database"   // MySQL connection helper
	"github.com/iliyamo/freight-load-board/internal/handler"    // HTTP handlers
	"github.com/iliyamo/freight-load-board/internal/middleware" // Rate limiting and response caching
	"github.com/iliyamo/freight-load-board/internal/repository" // Data access layer
	"github.com/iliyamo/freight-load-board/internal/router"     // Internal router setup
	"github.com/iliyamo/freight-load-board/internal/service"    // Marketplace engine
)

func main() {
	_ = godotenv.Load()  // Load .env when present; real env vars win
	cfg := config.Load() // Load environment config

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	loadRepo := repository.NewLoadRepo(db)
	bookingRepo := repository.NewBookingRepo(db)
	market := service.NewMarketplace(db, loadRepo, bookingRepo, audit.NewPublisher())

	// Drain audit events into the append-only log in the background.
	go func() {
		if err := audit.StartConsumer(); err != nil {
			log.Printf("audit consumer stopped: %v", err)
		}
	}()

	// Periodically flip AVAILABLE loads past their expires_at to EXPIRED.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go market.RunExpirySweep(ctx, cfg.SweepInterval)

	e := echo.New() // Create Echo instance

	// Redis backs both the token-bucket rate limiter and the public
	// response cache.  When Redis is unreachable both middlewares fail
	// open, so the board keeps serving.
	rdb := config.NewRedisClient()
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	var cache echo.MiddlewareFunc
	if cacheCfg := config.LoadCacheConfig(); cacheCfg.Enabled {
		cache = middleware.NewRedisCache(cacheCfg, rdb)
	}

	router.RegisterRoutes(e) // Health check
	router.RegisterPublic(e, handler.NewPublicHandler(loadRepo), cache)
	router.RegisterBroker(e, handler.NewBrokerHandler(loadRepo, bookingRepo, market), cfg.JWTSecret)
	router.RegisterDriver(e, handler.NewDriverHandler(bookingRepo, market), cfg.JWTSecret)
	router.RegisterShared(e, handler.NewDriverHandler(bookingRepo, market), cfg.JWTSecret)

	addr := ":" + cfg.Port                                // Address string with port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info

	if err := e.Start(addr); err != nil { // Start HTTP server
		log.Fatal(err) // Log and exit if server fails
	}
}
