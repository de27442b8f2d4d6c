package main

import (
	"context"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/omnimarket-backend/internal/config"
	"github.com/ignatzorin/omnimarket-backend/internal/db"
	"github.com/ignatzorin/omnimarket-backend/internal/events"
	"github.com/ignatzorin/omnimarket-backend/internal/goroutine"
	httpHandlers "github.com/ignatzorin/omnimarket-backend/internal/http/handlers"
	httpRouter "github.com/ignatzorin/omnimarket-backend/internal/http/router"
	"github.com/ignatzorin/omnimarket-backend/internal/logger"
	"github.com/ignatzorin/omnimarket-backend/internal/metrics"
	"github.com/ignatzorin/omnimarket-backend/internal/repository"
	"github.com/ignatzorin/omnimarket-backend/internal/service"
	"github.com/ignatzorin/omnimarket-backend/internal/ws"
	"github.com/ignatzorin/omnimarket-backend/migrations"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logger.Init(cfg.LogLevel)
	if cfg.Env == "development" {
		logger.SetTextFormatter()
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, migrationsFS(cfg.MigrationsPath)); err != nil {
		logger.Log.Fatalf("main: ошибка миграций: %v", err)
	}

	// Общее хранилище счётчиков: rate limit и попытки ввода кода доставки.
	limiterStore, closeLimiter, err := db.NewLimiterStore(ctx, cfg.RedisURL, "omnimarket")
	if err != nil {
		logger.Log.Fatalf("main: ошибка подключения к redis: %v", err)
	}
	defer func() {
		if err := closeLimiter(); err != nil {
			logger.Log.Warnf("main: ошибка закрытия redis: %v", err)
		}
	}()

	tokenManager := service.NewTokenManager(cfg.JWTSecret)

	// Репозитории.
	txManager := repository.NewTxManager(dbConn)
	walletRepo := repository.NewWalletRepository(dbConn)
	productRepo := repository.NewProductRepository(dbConn)
	orderRepo := repository.NewOrderRepository(dbConn)
	subscriptionRepo := repository.NewSubscriptionRepository(dbConn)

	// Вебсокеты.
	hub := ws.NewHub()
	goroutine.SafeGoWithContext(ctx, hub.Run)

	publisher, closePublishers := buildPublisher(cfg, hub)
	defer closePublishers()

	escrowMetrics := metrics.NewEscrowMetrics(nil)
	httpMetrics := metrics.NewHTTPMetrics(nil)

	otpGenerator, err := service.NewNanoidOTPGenerator()
	if err != nil {
		logger.Log.Fatalf("main: ошибка генератора кодов: %v", err)
	}

	// Сервисы.
	cache := service.NewCacheService(ctx)
	walletService := service.NewWalletService(walletRepo)
	productService := service.NewProductService(productRepo, cache)
	escrowService := service.NewEscrowService(txManager, orderRepo, walletRepo, cfg.PlatformUserID, publisher, escrowMetrics)
	orderService := service.NewOrderService(service.OrderServiceDeps{
		Tx:                    txManager,
		Orders:                orderRepo,
		Products:              productRepo,
		Wallets:               walletRepo,
		Escrow:                escrowService,
		OTP:                   otpGenerator,
		Throttle:              service.NewOTPGuard(limiterStore, cfg.OTPMaxAttempts, cfg.OTPAttemptWindow),
		Publisher:             publisher,
		Metrics:               escrowMetrics,
		DefaultCommissionRate: cfg.CommissionRate,
	})
	subscriptionService := service.NewSubscriptionService(txManager, subscriptionRepo, walletRepo)

	sweeper := service.NewReleaseSweeper(orderRepo, escrowService, cfg.ReleaseSweepInterval, cfg.ReleaseSweepBatch)
	sweeper.Start(ctx)

	// HTTP хэндлеры.
	engine := httpRouter.SetupRouter(cfg, httpRouter.Handlers{
		Health: httpHandlers.NewHealthHandler(map[string]httpHandlers.Pinger{
			"database": dbConn,
		}),
		Wallet:       httpHandlers.NewWalletHandler(walletService),
		Product:      httpHandlers.NewProductHandler(productService),
		Order:        httpHandlers.NewOrderHandler(orderService, escrowService),
		Subscription: httpHandlers.NewSubscriptionHandler(subscriptionService),
		WS:           httpHandlers.NewWSHandler(hub, tokenManager, cfg.AllowedOrigins),
		Tokens:       tokenManager,
		LimiterStore: limiterStore,
		HTTPMetrics:  httpMetrics,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	goroutine.SafeGo(func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Log.Errorf("main: ошибка остановки http сервера: %v", err)
		}
	})

	logger.Log.WithField("port", cfg.HTTPPort).Info("main: HTTP сервер запущен")

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// buildPublisher собирает публикацию событий заказов: вебсокеты и брокер из конфигурации.
func buildPublisher(cfg *config.Config, hub *ws.Hub) (events.Publisher, func()) {
	publishers := events.Multi{events.NewWSPublisher(hub)}
	closers := make([]func() error, 0, 1)

	switch cfg.EventBroker {
	case config.EventBrokerKafka:
		kafka := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		publishers = append(publishers, kafka)
		closers = append(closers, kafka.Close)
	case config.EventBrokerRabbitMQ:
		rabbit, err := events.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			logger.Log.Fatalf("main: ошибка подключения к rabbitmq: %v", err)
		}
		publishers = append(publishers, rabbit)
		closers = append(closers, rabbit.Close)
	}

	return publishers, func() {
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				logger.Log.Warnf("main: ошибка закрытия брокера событий: %v", err)
			}
		}
	}
}

// migrationsFS возвращает встроенные миграции или каталог из MIGRATIONS_PATH.
func migrationsFS(path string) fs.FS {
	if path == "" {
		return migrations.FS
	}
	return os.DirFS(path)
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		logger.Log.Errorf("main: ошибка закрытия базы: %v", err)
	}
}
