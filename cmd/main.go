package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"food-delivery/internal/clients"
	"food-delivery/internal/config"
	"food-delivery/internal/database"
	"food-delivery/internal/logger"
	"food-delivery/internal/messaging"
	"food-delivery/internal/services/driver"
	"food-delivery/internal/services/order"
	"food-delivery/internal/services/payment"
	"food-delivery/internal/services/restaurant"
	"food-delivery/internal/services/user"
)

// defaultPorts maps each service mode to the port it listens on when --port
// is not given.
var defaultPorts = map[string]int{
	"order-service":      3000,
	"restaurant-service": 3001,
	"payment-service":    3002,
	"driver-service":     3003,
	"user-service":       3004,
}

func main() {
	var (
		mode       = flag.String("mode", "", "Service mode (order-service, restaurant-service, payment-service, driver-service, user-service, notification-subscriber)")
		port       = flag.Int("port", 0, "HTTP port (defaults per service)")
		configPath = flag.String("config", "config.yaml", "Path to the config file")
		migrations = flag.String("migrations", "migrations", "Path to the migrations directory")
	)
	flag.Parse()

	if *mode == "" {
		fmt.Fprintf(os.Stderr, "Error: --mode flag is required\n")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(*mode)
	requestID := logger.GenerateRequestID()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *port == 0 {
		*port = defaultPorts[*mode]
	}

	log.Info("service_started", fmt.Sprintf("Starting %s", *mode), requestID, map[string]interface{}{
		"mode": *mode,
		"port": *port,
	})

	if err := run(ctx, cfg, log, *mode, *port, *migrations); err != nil {
		log.Error("service_failed", fmt.Sprintf("%s failed", *mode), requestID, err, nil)
		os.Exit(1)
	}

	log.Info("service_stopped", "Service stopped gracefully", requestID, nil)
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger, mode string, port int, migrationsPath string) error {
	if mode == "notification-subscriber" {
		return runNotificationSubscriber(ctx, cfg, log)
	}

	db, err := database.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	if err := db.RunMigrations(ctx, migrationsPath); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	var mux *http.ServeMux
	switch mode {
	case "order-service":
		mux, err = buildOrderService(ctx, cfg, db, log)
		if err != nil {
			return err
		}
	case "restaurant-service":
		service := restaurant.NewService(restaurant.NewPostgresRepository(db), log)
		mux = restaurant.NewHandler(service, log).SetupRoutes()
	case "payment-service":
		timeout := time.Duration(cfg.Orchestration.ClientTimeoutSeconds) * time.Second
		orders := clients.NewOrderClient(cfg.Services.OrderURL, timeout)
		service := payment.NewService(payment.NewPostgresRepository(db), orders, log)
		mux = payment.NewHandler(service, log).SetupRoutes()
	case "driver-service":
		service := driver.NewService(driver.NewPostgresRepository(db), log)
		mux = driver.NewHandler(service, log).SetupRoutes()
	case "user-service":
		service := user.NewService(user.NewPostgresRepository(db))
		mux = user.NewHandler(service, log).SetupRoutes()
	default:
		return fmt.Errorf("unknown mode: %s", mode)
	}

	return serveHTTP(ctx, log, mux, port)
}

// buildOrderService wires the orchestrator: collaborator clients from config,
// the optional status publisher, and the saga reconciler.
func buildOrderService(ctx context.Context, cfg *config.Config, db *database.DB, log *logger.Logger) (*http.ServeMux, error) {
	timeout := time.Duration(cfg.Orchestration.ClientTimeoutSeconds) * time.Second

	var publisher order.StatusPublisher
	if cfg.RabbitMQ.Host != "" {
		conn, err := messaging.New(cfg, log)
		if err != nil {
			// Notifications are out-of-band; the orchestrator runs without them.
			log.Error("rabbitmq_unavailable", "Starting without status notifications", "startup", err, nil)
		} else {
			publisher = messaging.NewPublisher(conn, log)
		}
	}

	service := order.NewService(
		order.NewPostgresRepository(db),
		clients.NewUserClient(cfg.Services.UserURL, timeout),
		clients.NewRestaurantClient(cfg.Services.RestaurantURL, timeout),
		clients.NewPaymentClient(cfg.Services.PaymentURL, timeout),
		clients.NewDriverClient(cfg.Services.DriverURL, timeout),
		publisher,
		log,
		cfg.Orchestration,
	)

	if cfg.Orchestration.ReconcileIntervalSeconds > 0 {
		reconciler := order.NewReconciler(service, log)
		interval := time.Duration(cfg.Orchestration.ReconcileIntervalSeconds) * time.Second
		go reconciler.Run(ctx, interval)
	}

	return order.NewHandler(service, log).SetupRoutes(), nil
}

func runNotificationSubscriber(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	conn, err := messaging.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}
	defer conn.Close()

	return messaging.NewSubscriber(conn, log).Run(ctx)
}

func serveHTTP(ctx context.Context, log *logger.Logger, mux *http.ServeMux, port int) error {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	errs := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errs <- err
		}
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
