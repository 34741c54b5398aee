package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/localtours/booking-backend/internal/booking"
	"github.com/localtours/booking-backend/internal/config"
	"github.com/localtours/booking-backend/internal/database"
	"github.com/localtours/booking-backend/internal/handler"
	"github.com/localtours/booking-backend/internal/middleware"
	"github.com/localtours/booking-backend/internal/notify"
	"github.com/localtours/booking-backend/internal/queue"
	"github.com/localtours/booking-backend/internal/repository"
	"github.com/localtours/booking-backend/internal/router"
	"github.com/localtours/booking-backend/internal/scheduler"
	"github.com/localtours/booking-backend/internal/utils"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis backs rate limiting and the response cache. A nil client
	// degrades both to pass-through.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting and caching disabled")
	}

	// Repositories.
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	contacts := repository.NewContactRepo(db)
	experiences := repository.NewExperienceRepo(db)
	slots := repository.NewSlotRepo(db)
	events := repository.NewEventRepo(db)
	store := repository.NewStore(db)

	// Booking engine with its collaborators.
	checkin := utils.NewCheckInTokenIssuer(cfg.CheckInSecret, cfg.CheckInTTL)
	publisher := notify.NewPublisher(cfg.AMQPURL, cfg.QueueName, contacts)
	engine := booking.NewEngine(store, nil, publisher, events, checkin)
	engine.SetNoShowGrace(cfg.NoShowGrace)

	// Background workers: the event consumer and the sweep scheduler.
	go queue.StartBookingEventConsumer(cfg.AMQPURL, cfg.QueueName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	scheduler.New(engine, scheduler.Config{
		ExpireEvery:  cfg.ExpireSweepEvery,
		OverdueEvery: cfg.OverdueSweepEvery,
		NoShowEvery:  cfg.NoShowSweepEvery,
	}).Start(ctx)

	// HTTP surface.
	e := echo.New()
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	auth := handler.NewAuthHandler(cfg, users, tokens, contacts)
	catalog := handler.NewCatalogHandler(experiences, slots, engine)
	reservations := handler.NewReservationHandler(engine, checkin)
	routeBookings := handler.NewRouteBookingHandler(engine)
	deposits := handler.NewDepositHandler(engine)
	slotAdmin := handler.NewSlotHandler(engine)
	ops := handler.NewOpsHandler(engine, events)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, auth, cfg.JWTSecret)
	router.RegisterPublic(e, catalog, cache)
	router.RegisterBooking(e, reservations, routeBookings, deposits, cfg.JWTSecret, limiter)
	router.RegisterStaff(e, reservations, deposits, slotAdmin, ops, cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
