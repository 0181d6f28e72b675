package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/policycore/billing-engine/internal/config"
	"github.com/policycore/billing-engine/internal/events"
	"github.com/policycore/billing-engine/internal/handler"
	"github.com/policycore/billing-engine/internal/repository"
	"github.com/policycore/billing-engine/internal/service"
	"github.com/policycore/billing-engine/pkg/response"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := initDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	redisClient := initRedis(cfg)
	defer redisClient.Close()

	billingRepo := repository.NewBillingRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)
	publisher := events.NewRedisPublisher(redisClient, cfg.Redis.EventChannel)

	billingService := service.NewBillingService(billingRepo, invoiceRepo, ledgerRepo, activityRepo, publisher, cfg)
	billingHandler := handler.NewBillingHandler(billingService)
	healthHandler := handler.NewHealthHandler(db, redisClient, cfg.Health.Timeout)

	router := setupRoutes(billingHandler, healthHandler)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("Server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

func initDB(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	return db, nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func setupRoutes(billingHandler *handler.BillingHandler, healthHandler *handler.HealthHandler) *mux.Router {
	router := mux.NewRouter()
	router.Use(response.LoggingMiddleware)

	router.HandleFunc("/health", healthHandler.Health).Methods("GET")
	router.HandleFunc("/health/ready", healthHandler.Ready).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/policies", billingHandler.CreateBilling).Methods("POST")
	api.HandleFunc("/policies/{policyId}/charges", billingHandler.PostCharge).Methods("POST")
	api.HandleFunc("/policies/{policyId}/payments", billingHandler.ProcessPayment).Methods("POST")
	api.HandleFunc("/policies/{policyId}/payments/{paymentId}/return", billingHandler.ReturnPayment).Methods("POST")
	api.HandleFunc("/policies/{policyId}/cancel", billingHandler.CancelPolicy).Methods("POST")
	api.HandleFunc("/policies/{policyId}/reinstate", billingHandler.ReinstatePolicy).Methods("POST")
	api.HandleFunc("/policies/{policyId}/refund", billingHandler.Refund).Methods("POST")
	api.HandleFunc("/policies/{policyId}/outstanding", billingHandler.GetOutstanding).Methods("GET")
	api.HandleFunc("/policies/{policyId}/schedule", billingHandler.GetSchedule).Methods("GET")
	api.HandleFunc("/policies/{policyId}/invoices", billingHandler.ListInvoices).Methods("GET")

	return router
}
