package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/policycore/billing-engine/internal/config"
	"github.com/policycore/billing-engine/internal/events"
	"github.com/policycore/billing-engine/internal/provider"
	"github.com/policycore/billing-engine/internal/repository"
	"github.com/policycore/billing-engine/internal/service"
)

func main() {
	log.Println("Starting billing scheduler...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	billingRepo := repository.NewBillingRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)
	publisher := events.NewRedisPublisher(redisClient, cfg.Redis.EventChannel)

	billingService := service.NewBillingService(billingRepo, invoiceRepo, ledgerRepo, activityRepo, publisher, cfg)
	providerClient := provider.NewClient(cfg.Provider.BaseURL, cfg.Provider.Timeout)
	sweepService := service.NewSweepService(billingService, providerClient, cfg)

	c := cron.New(cron.WithSeconds(), cron.WithLocation(cfg.SchedulerLocation()))
	setupCronJobs(c, sweepService)

	c.Start()
	log.Println("Scheduler started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down scheduler...")
	stopCtx := c.Stop()
	<-stopCtx.Done()
	log.Println("Scheduler stopped")
}

func setupCronJobs(c *cron.Cron, sweeps *service.SweepService) {
	// Invoices go out ahead of midnight collections, so the morning
	// statement run covers everything coming due inside the lead window.
	_, err := c.AddFunc("0 0 6 * * *", func() {
		log.Println("Running invoice generation sweep...")
		sweeps.InvoiceSweep(context.Background(), time.Now().UTC())
	})
	if err != nil {
		log.Printf("Error scheduling invoice sweep: %v", err)
	}

	_, err = c.AddFunc("0 0 0 * * *", func() {
		log.Println("Running collection sweep...")
		sweeps.CollectionSweep(context.Background(), time.Now().UTC())
	})
	if err != nil {
		log.Printf("Error scheduling collection sweep: %v", err)
	}

	_, err = c.AddFunc("0 30 0 * * *", func() {
		log.Println("Running delinquency sweep...")
		sweeps.DelinquencySweep(context.Background(), time.Now().UTC())
	})
	if err != nil {
		log.Printf("Error scheduling delinquency sweep: %v", err)
	}

	log.Println("Cron jobs scheduled successfully")
}
