package main

import (
	"context"
	"database/sql"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/events"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/handlers"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/repository"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/server"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/service"

	_ "github.com/lib/pq"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	root, levelOK := logging.New("sales-service", cfg.LogLevel)
	logger := logging.Component(root, "main")
	if !levelOK {
		logger.WithField("log_level", cfg.LogLevel).Warn("Unknown log level, using info")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := initDatabase(ctx, cfg, logging.Component(root, "database"))
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	m := metrics.New()

	orderRepo := repository.NewPostgresOrderRepository(db, logging.Component(root, "order-repository"))
	productRepo := repository.NewPostgresProductRepository(db, logging.Component(root, "product-repository"))
	customerRepo := repository.NewPostgresCustomerRepository(db, logging.Component(root, "customer-repository"))

	var orderCache repository.OrderCache
	if cfg.Features.EnableOrderCaching {
		redisClient := repository.NewRedisClient(cfg.Redis)
		defer redisClient.Close()
		orderCache = repository.NewRedisOrderCache(redisClient, cfg.Redis.TTL, logging.Component(root, "order-cache"))
	}

	var eventPublisher service.OrderEventPublisher
	if cfg.Features.EnableOrderEvents {
		publisher := events.NewKafkaPublisher(cfg.Kafka, logging.Component(root, "event-publisher"))
		defer publisher.Close()
		eventPublisher = publisher
	}

	orderService := service.NewOrderService(
		orderRepo,
		productRepo,
		orderCache,
		eventPublisher,
		m,
		cfg,
		logging.Component(root, "order-service"),
	)
	productService := service.NewProductService(productRepo, logging.Component(root, "product-service"))
	customerService := service.NewCustomerService(customerRepo, logging.Component(root, "customer-service"))
	paymentService := service.NewPaymentService(orderService, logging.Component(root, "payment-service"))

	h := handlers.NewHandlers(
		orderService,
		productService,
		customerService,
		db,
		cfg,
		logging.Component(root, "handlers"),
	)

	srv := server.NewServer(cfg, h, m, logging.Component(root, "http"))

	go func() {
		logger.WithFields(logrus.Fields{
			"port":                      cfg.Server.Port,
			"enable_order_caching":      cfg.Features.EnableOrderCaching,
			"enable_order_events":       cfg.Features.EnableOrderEvents,
			"enable_payment_consumer":   cfg.Features.EnablePaymentConsumer,
			"allow_line_total_override": cfg.Features.AllowLineTotalOverride,
		}).Info("Server starting")
		if err := srv.Run(); err != nil {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	var consumer *events.KafkaConsumer
	if cfg.Features.EnablePaymentConsumer {
		consumer = events.NewKafkaConsumer(cfg.Kafka, paymentService, m, logging.Component(root, "event-consumer"))
		go func() {
			if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
				logger.WithError(err).Error("Event consumer failed")
			}
		}()
	}

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if consumer != nil {
		if err := consumer.Stop(); err != nil {
			logger.WithError(err).Warn("Failed to close event consumer")
		}
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *logrus.Entry) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	if err := repository.WaitForDatabase(ctx, db, cfg.Database.ConnectRetries, cfg.Database.ConnectDelay, logger); err != nil {
		db.Close()
		return nil, err
	}

	if err := repository.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"host": cfg.Database.Host,
		"name": cfg.Database.Name,
	}).Info("Database connected")

	return db, nil
}
