package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/nianhua/banquet-reservation/internal/config"
	"github.com/nianhua/banquet-reservation/internal/database"
	"github.com/nianhua/banquet-reservation/internal/handler"
	"github.com/nianhua/banquet-reservation/internal/lock"
	"github.com/nianhua/banquet-reservation/internal/queue"
	"github.com/nianhua/banquet-reservation/internal/repository"
	"github.com/nianhua/banquet-reservation/internal/router"
	"github.com/nianhua/banquet-reservation/internal/service"
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

	// Seat locks live in Redis when it is reachable so that several
	// server processes share one lock table; otherwise a process-local
	// table serves a single-instance deployment.
	holdTTL := time.Duration(cfg.HoldTTLMin) * time.Minute
	rdb := config.NewRedisClient()
	var locks lock.Table
	if rdb != nil {
		locks = lock.NewRedisTable(rdb, holdTTL)
		log.Printf("seat locks: redis table, ttl=%s", holdTTL)
	} else {
		locks = lock.NewMemoryTable(holdTTL)
		log.Printf("seat locks: in-memory table, ttl=%s (redis unavailable)", holdTTL)
	}

	sessionRepo := repository.NewSessionRepo(db)
	inventoryRepo := repository.NewInventoryRepo(db)
	goodsRepo := repository.NewGoodsRepo(db)
	seatRepo := repository.NewSeatRepo(db)
	bookingRepo := repository.NewBookingRepo(db)
	sweepRepo := repository.NewSweepRepo(db, inventoryRepo)

	// Events are optional: without a broker URL the engine simply
	// skips publishing.
	var events service.EventPublisher
	if cfg.AMQPUrl != "" {
		events = queue.NewPublisher(cfg.AMQPUrl)
		go func() {
			if err := queue.StartBookingConsumer(cfg.AMQPUrl); err != nil {
				log.Printf("booking consumer stopped: %v", err)
			}
		}()
	}

	// The booking service and the sweeper must agree on one payment
	// window: the deadline reported to the caller is the same one the
	// sweep enforces.
	paymentWindow := time.Duration(cfg.PaymentWindowMin) * time.Minute
	bookingSvc := service.NewBookingService(sessionRepo, inventoryRepo, goodsRepo, seatRepo,
		bookingRepo, locks, events, paymentWindow)

	sweeper := service.NewSweeper(sweepRepo, goodsRepo, locks, events,
		paymentWindow,
		time.Duration(cfg.SweepIntervalSec)*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sweeper.Run(ctx)

	e := echo.New()
	bookingHandler := handler.NewBookingHandler(bookingSvc)
	router.RegisterRoutes(e, bookingHandler, rdb)
	router.RegisterBooking(e, bookingHandler, cfg.JWTSecret, rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
