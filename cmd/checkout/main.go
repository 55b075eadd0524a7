// Package main — точка входа checkout-саги: единственный HTTP оркестратор,
// связывающий cart/address/inventory/payment/order сервисы в саго
// completeCheckout, без собственного хранилища состояния.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eco13rus/checkout-saga/internal/checkout"
	"github.com/eco13rus/checkout-saga/internal/client"
	"github.com/eco13rus/checkout-saga/internal/handler"
	"github.com/eco13rus/checkout-saga/internal/middleware"
	"github.com/eco13rus/checkout-saga/pkg/config"
	"github.com/eco13rus/checkout-saga/pkg/healthcheck"
	"github.com/eco13rus/checkout-saga/pkg/httpclient"
	"github.com/eco13rus/checkout-saga/pkg/jwt"
	"github.com/eco13rus/checkout-saga/pkg/kafka"
	"github.com/eco13rus/checkout-saga/pkg/logger"
	"github.com/eco13rus/checkout-saga/pkg/metrics"
	"github.com/eco13rus/checkout-saga/pkg/tracing"
)

// buildVersion — подставляется на сборке через -ldflags "-X main.buildVersion=...";
// значение по умолчанию используется в локальных/dev сборках.
var buildVersion = "0.0.0-dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("ошибка загрузки конфигурации")
	}

	logger.Init(logger.Config{
		Level:  cfg.App.LogLevel,
		Pretty: cfg.App.LogPretty,
	})

	logger.Info().
		Str("service", cfg.App.Name).
		Str("env", cfg.App.Env).
		Msg("запуск checkout-саги")

	// === Observability: Metrics + Tracing ===

	shutdownTracing, err := tracing.InitTracer(tracing.Config{
		ServiceName:    cfg.App.Name,
		ServiceVersion: buildVersion,
		Environment:    cfg.App.Env,
		JaegerEndpoint: cfg.Jaeger.OTLPEndpoint(),
		Enabled:        cfg.Jaeger.Enabled,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("не удалось инициализировать tracing")
	}

	// === Redis (только rate limiting на входе в сагу) ===

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("ошибка закрытия Redis")
		}
	}()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis недоступен при старте, rate limiting будет работать в fail-open режиме")
	}
	pingCancel()

	// === Downstream HTTP клиенты (C1) ===

	cartHTTP := httpclient.New(httpclient.Config{
		Name: "cart", BaseURL: cfg.Downstream.CartBaseURL,
		Timeout: cfg.Downstream.Timeout, MaxRetries: cfg.Downstream.MaxRetries,
	})
	addressHTTP := httpclient.New(httpclient.Config{
		Name: "address", BaseURL: cfg.Downstream.AddressBaseURL,
		Timeout: cfg.Downstream.Timeout, MaxRetries: cfg.Downstream.MaxRetries,
	})
	inventoryHTTP := httpclient.New(httpclient.Config{
		Name: "inventory", BaseURL: cfg.Downstream.InventoryBaseURL,
		Timeout: cfg.Downstream.Timeout, MaxRetries: cfg.Downstream.MaxRetries,
	})
	paymentHTTP := httpclient.New(httpclient.Config{
		Name: "payment", BaseURL: cfg.Downstream.PaymentBaseURL,
		Timeout: cfg.Downstream.Timeout, MaxRetries: cfg.Downstream.MaxRetries,
	})
	orderHTTP := httpclient.New(httpclient.Config{
		Name: "order", BaseURL: cfg.Downstream.OrderBaseURL,
		Timeout: cfg.Downstream.Timeout, MaxRetries: cfg.Downstream.MaxRetries,
	})

	clients := checkout.Clients{
		Cart:      client.NewCartClient(cartHTTP),
		Address:   client.NewAddressClient(addressHTTP),
		Inventory: client.NewInventoryClient(inventoryHTTP),
		Payment:   client.NewPaymentClient(paymentHTTP),
		Order:     client.NewOrderClient(orderHTTP),
	}

	// === Kafka producer (C7, best-effort событие OrderCreated) ===

	producer, err := kafka.NewProducer(kafka.Config{Brokers: cfg.Kafka.Brokers})
	if err != nil {
		logger.Fatal().Err(err).Msg("ошибка создания Kafka producer")
	}
	defer func() {
		if err := producer.Close(); err != nil {
			logger.Error().Err(err).Msg("ошибка закрытия Kafka producer")
		}
	}()

	if err := kafka.EnsureTopics(cfg.Kafka.Brokers, kafka.DefaultEventTopics()); err != nil {
		logger.Warn().Err(err).Msg("не удалось создать топики Kafka (возможно уже существуют)")
	}

	// === Композиция саги (C2–C8) ===

	checkoutSvc := checkout.New(clients, checkout.Config{
		DefaultCurrency:       cfg.Checkout.DefaultCurrency,
		StandardShippingMinor: cfg.Checkout.StandardShipping,
		ExpressMultiplier:     cfg.Checkout.ExpressMultiplier,
		AllowedRoles:          cfg.Checkout.AllowedRoles,
	}, producer)

	// === JWT менеджер ===

	jwtManager, err := jwt.NewManager(jwt.Config{
		PublicKeyPath: cfg.JWT.PublicKeyPath,
		Issuer:        cfg.JWT.Issuer,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("ошибка инициализации JWT менеджера")
	}

	// === Middleware ===

	tracingMW := middleware.NewTracingMiddleware()
	authMW := middleware.NewAuthMiddleware(jwtManager, cfg.Checkout.AllowedRoles)
	rateLimitMW := middleware.NewRateLimitMiddleware(middleware.RateLimitConfig{
		Redis:  redisClient,
		Limit:  100,
		Window: time.Minute,
	})

	// === Readiness: Redis + все downstream ===

	plainHTTP := &http.Client{Timeout: 3 * time.Second}
	readinessCheck := healthcheck.Composite(
		func(ctx context.Context) error { return healthcheck.CheckRedis(ctx, redisClient) },
		func(ctx context.Context) error {
			return healthcheck.CheckDownstream(ctx, plainHTTP, "cart", cfg.Downstream.CartBaseURL)
		},
		func(ctx context.Context) error {
			return healthcheck.CheckDownstream(ctx, plainHTTP, "address", cfg.Downstream.AddressBaseURL)
		},
		func(ctx context.Context) error {
			return healthcheck.CheckDownstream(ctx, plainHTTP, "inventory", cfg.Downstream.InventoryBaseURL)
		},
		func(ctx context.Context) error {
			return healthcheck.CheckDownstream(ctx, plainHTTP, "payment", cfg.Downstream.PaymentBaseURL)
		},
		func(ctx context.Context) error {
			return healthcheck.CheckDownstream(ctx, plainHTTP, "order", cfg.Downstream.OrderBaseURL)
		},
	)

	// Metrics server со своим /readyz, независимым от основного HTTP порта.
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Addr(), cfg.App.Name, metrics.WithReadinessCheck(readinessCheck))
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Error().Err(err).Msg("ошибка Metrics Server")
			}
		}()
	}

	// === Роутер ===

	router := handler.NewRouter(handler.RouterConfig{
		Checkout:       checkoutSvc,
		AuthMW:         authMW,
		RateLimitMW:    rateLimitMW,
		TracingMW:      tracingMW,
		ReadinessCheck: readinessCheck,
		Debug:          cfg.IsDevelopment(),
	})

	srv := &http.Server{
		Addr:         cfg.App.Addr(),
		Handler:      router.Engine(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.App.Addr()).Msg("HTTP сервер checkout-саги запущен")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("ошибка HTTP сервера")
		}
	}()

	// === Graceful shutdown ===

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("получен сигнал завершения, останавливаем сервер...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("ошибка при остановке сервера")
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("ошибка остановки Metrics Server")
		}
	}

	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("ошибка остановки Tracing")
		}
	}

	logger.Info().Msg("checkout-сага остановлена")
}
