package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/younes21/PastryLabManager-sub003/internal/inventory/events"
	"github.com/younes21/PastryLabManager-sub003/internal/inventory/handler"
	"github.com/younes21/PastryLabManager-sub003/internal/inventory/repository"
	"github.com/younes21/PastryLabManager-sub003/internal/inventory/service"
	"github.com/younes21/PastryLabManager-sub003/pkg/config"
	"github.com/younes21/PastryLabManager-sub003/pkg/database"
	"github.com/younes21/PastryLabManager-sub003/pkg/httputil"
	"github.com/younes21/PastryLabManager-sub003/pkg/logger"
	"github.com/younes21/PastryLabManager-sub003/pkg/messaging"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("inventory-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("inventory-service", cfg.Server.Environment)
	log.Info().Msg("starting Inventory Service")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	// Initialize event publisher
	publisher, err := events.NewInventoryEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Initialize repositories
	articleRepo := repository.NewArticleRepository(db)
	stockRepo := repository.NewStockRepository(db)
	reservationRepo := repository.NewReservationRepository(db)
	lotRepo := repository.NewLotRepository(db)
	operationRepo := repository.NewOperationRepository(db)

	// Initialize services
	availabilityService := service.NewAvailabilityService(stockRepo, reservationRepo, publisher, log)
	lotGenerator := service.NewLotGenerator(lotRepo, operationRepo, cfg.Lot, log)
	lifecycleService := service.NewLifecycleService(
		db, operationRepo, reservationRepo, stockRepo, lotRepo, articleRepo,
		availabilityService, lotGenerator, publisher, log,
	)

	// Initialize handlers
	availabilityHandler := handler.NewAvailabilityHandler(availabilityService, stockRepo, log)
	operationHandler := handler.NewOperationHandler(lifecycleService, log)
	reservationHandler := handler.NewReservationHandler(lifecycleService, log)
	articleHandler := handler.NewArticleHandler(articleRepo, lotRepo, log)

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(httputil.UserContext)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID", "X-User-ID", "X-User-Role"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "inventory-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	// API routes
	r.Route("/api/v1/inventory", func(r chi.Router) {
		// Availability and stock
		r.Get("/availability/{articleID}", availabilityHandler.Get)
		r.Get("/stock/{articleID}", availabilityHandler.Stock)

		// Master data (read-only, owned by the catalog service)
		r.Route("/articles", func(r chi.Router) {
			r.Get("/", articleHandler.List)
			r.Get("/{id}", articleHandler.Get)
			r.Get("/{id}/lots", articleHandler.ListLots)
		})
		r.Get("/zones", articleHandler.ListZones)
		r.Get("/lots/expiring", articleHandler.ExpiringLots)

		// Operations
		r.Route("/operations", func(r chi.Router) {
			r.Get("/", operationHandler.List)
			r.Post("/", operationHandler.Create)
			r.Get("/{id}", operationHandler.Get)
			r.Put("/{id}", operationHandler.Update)
			r.Delete("/{id}", operationHandler.Delete)
			r.Put("/{id}/status", operationHandler.SetStatus)
			r.Get("/{id}/reservations", reservationHandler.ListByOperation)
		})

		// Reservations
		r.Route("/reservations", func(r chi.Router) {
			r.Post("/{id}/release", reservationHandler.Release)
			r.Post("/{id}/deliver", reservationHandler.Deliver)
		})
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
