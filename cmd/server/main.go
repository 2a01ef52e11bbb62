package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-inventory/internal/clock"
	"github.com/iliyamo/ticket-inventory/internal/config"
	"github.com/iliyamo/ticket-inventory/internal/database"
	"github.com/iliyamo/ticket-inventory/internal/handler"
	"github.com/iliyamo/ticket-inventory/internal/holdstore"
	"github.com/iliyamo/ticket-inventory/internal/queue"
	"github.com/iliyamo/ticket-inventory/internal/repository"
	"github.com/iliyamo/ticket-inventory/internal/router"
	"github.com/iliyamo/ticket-inventory/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments use the environment

	cfg := config.Load()

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable: TTL expiry, rate limiting and caching disabled; sweeper is the sole expiry path")
	}

	clk := clock.NewSystem()
	units := repository.NewUnitRepo(db)
	ledger := repository.NewHoldRepo(db)
	quotas := repository.NewQuotaRepo(db)
	tickets := repository.NewTicketRepo(db)
	orders := repository.NewOrderRepo(db)
	publisher := queue.NewPublisher()

	opts := []service.HoldServiceOption{
		service.WithHoldTTL(cfg.HoldTTL),
		service.WithEventPublisher(publisher),
	}
	if cfg.TTLStoreEnabled && rdb != nil {
		opts = append(opts, service.WithExpiringStore(holdstore.NewRedisStore(rdb)))
	}
	holds := service.NewHoldService(units, ledger, quotas, tickets, clk, opts...)

	sweeper := service.NewSweeper(units, ledger, clk, service.WithSweepChunk(cfg.SweepChunk))
	expirer := service.NewOrderExpirer(units, ledger, orders, tickets, quotas, clk,
		service.WithOrderChunk(cfg.OrderChunk),
		service.WithOrderEventPublisher(publisher))

	if cfg.SweepInterval > 0 {
		go runSweepLoop(sweeper, expirer, cfg.SweepInterval)
	}

	go func() {
		if err := queue.StartAuditConsumer(); err != nil {
			log.Printf("audit consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterCheckout(e, handler.NewCheckoutHandler(holds), cfg.JWTSecret, config.LoadRateLimitConfig(), rdb)
	router.RegisterInventory(e, handler.NewInventoryHandler(units, ledger), cfg.JWTSecret, config.LoadCacheConfig(), rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

// runSweepLoop drives the fallback expiry paths on a fixed cadence.
// Both passes are safe to run alongside the TTL store and alongside
// other instances running the same loop.
func runSweepLoop(sweeper *service.Sweeper, expirer *service.OrderExpirer, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		if report, err := sweeper.Sweep(ctx, false); err != nil {
			log.Printf("sweep: %v", err)
		} else if report.Released > 0 || report.Failed > 0 {
			log.Printf("sweep: scanned=%d released=%d already_free=%d failed=%d",
				report.Scanned, report.Released, report.AlreadyFree, report.Failed)
		}
		if report, err := expirer.Run(ctx, false); err != nil {
			log.Printf("order-expiry: %v", err)
		} else if report.Expired > 0 || report.Failed > 0 {
			log.Printf("order-expiry: processed=%d expired=%d failed=%d",
				report.Processed, report.Expired, report.Failed)
		}
		cancel()
	}
}
