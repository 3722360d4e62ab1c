package main

import (
    "log"
    "time"

    "github.com/joho/godotenv"
    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"

    "github.com/dinebook/table-reservation/internal/clock"
    "github.com/dinebook/table-reservation/internal/config"
    "github.com/dinebook/table-reservation/internal/database"
    "github.com/dinebook/table-reservation/internal/handler"
    "github.com/dinebook/table-reservation/internal/middleware"
    "github.com/dinebook/table-reservation/internal/queue"
    "github.com/dinebook/table-reservation/internal/repository"
    "github.com/dinebook/table-reservation/internal/router"
    "github.com/dinebook/table-reservation/internal/service"
)

func main() {
    // Load .env if present; real deployments set env vars directly.
    if err := godotenv.Load(); err != nil {
        log.Printf("no .env file loaded: %v", err)
    }
    cfg := config.Load()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database: %v", err)
    }
    defer db.Close()

    store := repository.NewStore(db)

    clk := clock.NewSystem()
    events := service.QueueEvents{}
    bookings := service.NewBookingService(
        store, store.Restaurants, store.Reservations, store.Slots, store.Sets,
        store.Capacity, events, clk, time.Duration(cfg.HoldTTLMin)*time.Minute,
    )
    cancellations := service.NewCancellationService(
        store, store.Reservations, store.Slots, store.Sets, store.Capacity,
        store.Cancellations, store.Policies, events, clk,
    )

    authH := handler.NewAuthHandler(cfg, store.Users, store.Tokens)
    bookingH := handler.NewBookingHandler(bookings, store.Reservations)
    cancelH := handler.NewCancellationHandler(cancellations)
    availH := handler.NewAvailabilityHandler(bookings, store.Restaurants)
    adminH := handler.NewAdminHandler(bookings, store.Reservations)

    e := echo.New()
    e.Use(echomw.Recover())
    e.Use(echomw.Logger())

    // Redis backs the public response cache and the token-bucket limiter.
    // Both degrade to pass-through when Redis is unreachable.
    rdb := config.NewRedisClient()
    cacheMW := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
    e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

    router.RegisterRoutes(e)
    router.RegisterAuth(e, authH, cfg.JWTSecret)
    router.RegisterPublic(e, availH, cacheMW)
    router.RegisterGuest(e, bookingH, cancelH, cfg.JWTSecret)
    router.RegisterManager(e, adminH, cfg.JWTSecret)

    // Consume confirmation and cancellation events in the background. The
    // consumer reconnects on its own, so a broker outage only delays the
    // notification log.
    go func() {
        if err := queue.StartReservationConsumer(); err != nil {
            log.Printf("queue consumer stopped: %v", err)
        }
    }()

    addr := ":" + cfg.Port
    log.Printf("listening on %s (env=%s)", addr, cfg.Env)
    if err := e.Start(addr); err != nil {
        log.Fatal(err)
    }
}
