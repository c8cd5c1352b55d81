package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fjod/go_cart/storefront/internal/auth"
	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/fjod/go_cart/storefront/internal/gateway"
	apihttp "github.com/fjod/go_cart/storefront/internal/http"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/publisher"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/fjod/go_cart/storefront/internal/service"
	"github.com/fjod/go_cart/storefront/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

const serviceName = "storefront"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(os.Stderr, cfg.Log)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("storefront stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.SetupTracer(ctx, serviceName, cfg.OTLP)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Error("failed to flush traces", "error", err)
		}
	}()

	startCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	db, err := repository.ConnectMongoDB(startCtx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Client().Disconnect(context.Background()); err != nil {
			log.Error("failed to disconnect from MongoDB", "error", err)
		}
	}()
	if err := repository.CreateIndexes(startCtx, db); err != nil {
		return err
	}
	log.Info("connected to MongoDB", "database", cfg.Mongo.Database)

	var cartCache cache.CartCache = cache.NopCache{}
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(startCtx).Err(); err != nil {
			// the cache is optional; run uncached rather than refuse to start
			log.Warn("redis unavailable, cart cache disabled", "addr", cfg.Redis.Addr, "error", err)
		} else {
			cartCache = cache.NewRedisCache(redisClient)
			log.Info("cart cache enabled", "addr", cfg.Redis.Addr)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	carts := repository.NewCartRepository(db)
	products := repository.NewProductRepository(db)
	orders := repository.NewOrderRepository(db)
	payments := repository.NewPaymentRepository(db)
	events := repository.NewEventRepository(db)

	gw := gateway.NewHTTPGateway(cfg.Gateway.BaseURL, cfg.Gateway.KeyID, cfg.Gateway.KeySecret,
		gateway.WithLatencyObserver(m.GatewayLatency),
	)

	cartSvc := service.NewCartService(carts, products, cartCache, log)
	orderSvc := service.NewOrderService(orders, products, events, cartSvc, m, log)
	paymentSvc := service.NewPaymentService(orders, payments, events, gw, service.PaymentConfig{
		Secret:   cfg.Gateway.KeySecret,
		Currency: cfg.Gateway.Currency,
		Timeout:  cfg.Gateway.Timeout,
	}, m, log)

	var wg sync.WaitGroup
	pollCtx, stopPolling := context.WithCancel(context.Background())
	defer stopPolling()
	if len(cfg.Kafka.Brokers) > 0 {
		writer := publisher.NewKafkaWriter(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
		poller := publisher.NewOutboxPoller(events, writer, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			poller.Run(pollCtx)
		}()
		log.Info("event publishing enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	router := apihttp.NewRouter(apihttp.RouterConfig{
		Cart:           apihttp.NewCartHandler(cartSvc, cfg.HTTP.RequestTimeout, log),
		Orders:         apihttp.NewOrdersHandler(orderSvc, cfg.HTTP.RequestTimeout, log),
		Payments:       apihttp.NewPaymentHandler(paymentSvc, cfg.HTTP.RequestTimeout, log),
		Tokens:         auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Expiry),
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		RequestTimeout: cfg.HTTP.RequestTimeout,
		Log:            log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.HTTP.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("storefront listening", "port", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	stopPolling()
	wg.Wait()
	log.Info("storefront stopped")
	return nil
}
