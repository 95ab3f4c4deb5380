package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-seat-checkout/internal/api/handler"
	"github.com/sanosuguru/go-seat-checkout/internal/api/router"
	"github.com/sanosuguru/go-seat-checkout/internal/application"
	"github.com/sanosuguru/go-seat-checkout/internal/config"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/notification"
	"github.com/sanosuguru/go-seat-checkout/internal/infrastructure/kafka"
	"github.com/sanosuguru/go-seat-checkout/internal/infrastructure/kv"
	"github.com/sanosuguru/go-seat-checkout/internal/infrastructure/postgres"
	"github.com/sanosuguru/go-seat-checkout/internal/infrastructure/rabbitmq"
	redisinfra "github.com/sanosuguru/go-seat-checkout/internal/infrastructure/redis"
	"github.com/sanosuguru/go-seat-checkout/internal/infrastructure/stripe"
	"github.com/sanosuguru/go-seat-checkout/internal/pkg/logger"
	"github.com/sanosuguru/go-seat-checkout/internal/pkg/metrics"
	"github.com/sanosuguru/go-seat-checkout/internal/worker"
)

func main() {
	// .env は開発環境のみ。存在しなくてもよい
	_ = godotenv.Load()

	cfg := config.Load()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Error("起動に失敗しました", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	m := metrics.Init()

	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.RunMigrations(db.DB, "migrations"); err != nil {
		return err
	}

	redisClient, err := redisinfra.NewClient(&cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	gateway, err := stripe.NewGateway(cfg.Stripe.SecretKey, cfg.Stripe.Currency)
	if err != nil {
		return err
	}

	dispatcher, closeDispatcher, err := newDispatcher(cfg.Notifier)
	if err != nil {
		return err
	}
	defer closeDispatcher()

	kvStore := redisinfra.NewStore(redisClient)
	seatLock := kv.NewSeatLock(kvStore, m)
	cartStore := kv.NewCartStore(kvStore)

	seatRepo := postgres.NewSeatRepository(db)
	saleRepo := postgres.NewSaleRepository(db)
	discountRepo := postgres.NewDiscountRepository(db)
	orderRepo := postgres.NewOrderRepository(db)
	txManager := postgres.NewTxManager(db)

	orderValidator := application.NewOrderValidator(seatRepo, saleRepo, discountRepo, cfg.Checkout.MaxSingleSeats)
	cartService := application.NewCartService(orderValidator, seatLock, cartStore, cfg.Checkout.SeatHoldTTL, m)
	checkoutService := application.NewCheckoutService(
		txManager, orderRepo, seatRepo, discountRepo, orderValidator, cartService, gateway, dispatcher, m,
	)

	e := router.New(router.Config{
		CartService:     cartService,
		CheckoutService: checkoutService,
		HealthChecks: []handler.HealthCheck{
			{Name: "postgres", Check: func(ctx context.Context) error { return postgres.Ping(ctx, db) }},
			{Name: "redis", Check: func(ctx context.Context) error { return redisinfra.Ping(ctx, redisClient) }},
		},
		Metrics:     m,
		Auth:        cfg.Auth,
		RateLimit:   cfg.RateLimit,
		MetricsAuth: cfg.Metrics,
	})
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()
	reclaimer := worker.NewStaleOrderReclaimer(checkoutService, cfg.Checkout.ReclaimInterval, cfg.Checkout.PendingOrderTimeout)
	go reclaimer.Start(workerCtx)

	go func() {
		logger.Info("サーバーを起動します", zap.String("port", cfg.Server.Port))
		if err := e.Start(fmt.Sprintf(":%s", cfg.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("サーバー起動エラー", zap.Error(err))
		}
	}()

	// シグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーをシャットダウンしています...")
	reclaimer.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("サーバーシャットダウンエラー: %w", err)
	}

	logger.Info("サーバーが正常にシャットダウンしました")
	return nil
}

// newDispatcher は設定に応じた購入完了通知の送信先を作成する
func newDispatcher(cfg config.NotifierConfig) (notification.Dispatcher, func(), error) {
	var (
		d   notification.Dispatcher
		c   io.Closer
		err error
	)
	switch cfg.Driver {
	case "rabbitmq":
		var n *rabbitmq.Notifier
		n, err = rabbitmq.NewNotifier(cfg.RabbitMQURL, cfg.Queue)
		d, c = n, n
	case "kafka":
		var n *kafka.Notifier
		n, err = kafka.NewNotifier(cfg.KafkaBrokers, cfg.KafkaTopic)
		d, c = n, n
	case "", "none":
		return notification.Nop{}, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("未対応の通知ドライバー: %s", cfg.Driver)
	}
	if err != nil {
		return nil, nil, err
	}

	logger.Info("購入完了通知を有効化", zap.String("driver", cfg.Driver))
	return d, func() {
		if err := c.Close(); err != nil {
			logger.Warn("通知ドライバーのクローズに失敗", zap.Error(err))
		}
	}, nil
}
