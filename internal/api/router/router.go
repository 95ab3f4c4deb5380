package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sanosuguru/go-seat-checkout/internal/api"
	"github.com/sanosuguru/go-seat-checkout/internal/api/handler"
	"github.com/sanosuguru/go-seat-checkout/internal/api/middleware"
	"github.com/sanosuguru/go-seat-checkout/internal/config"
	"github.com/sanosuguru/go-seat-checkout/internal/pkg/metrics"
)

// Config はルーティングに必要な依存
type Config struct {
	CartService     handler.CartServiceInterface
	CheckoutService handler.CheckoutServiceInterface
	HealthChecks    []handler.HealthCheck
	Metrics         *metrics.Metrics
	Auth            config.AuthConfig
	RateLimit       config.RateLimitConfig
	MetricsAuth     config.MetricsConfig
}

// New はミドルウェアとルートを設定したEchoインスタンスを作成する
func New(cfg Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	e.Validator = api.NewValidator()

	middleware.SetupMiddleware(e)
	e.Use(middleware.PrometheusMiddleware(cfg.Metrics))

	healthHandler := handler.NewHealthHandler(cfg.HealthChecks...)
	cartHandler := handler.NewCartHandler(cfg.CartService)
	checkoutHandler := handler.NewCheckoutHandler(cfg.CheckoutService)

	e.GET("/health", healthHandler.Check)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), middleware.MetricsBasicAuth(cfg.MetricsAuth))

	v1 := e.Group("/api/v1", middleware.Identity(cfg.Auth.JWTSecret))

	v1.GET("/cart", cartHandler.Get)
	v1.PUT("/cart", cartHandler.Update, middleware.UserRateLimit(cfg.RateLimit.CartPerSecond, cfg.RateLimit.CartBurst))
	v1.DELETE("/cart", cartHandler.Clear)
	v1.PUT("/cart/payment-reference", cartHandler.SetPaymentReference)
	v1.GET("/cart/price", cartHandler.Price)

	v1.POST("/checkout", checkoutHandler.Checkout)
	v1.GET("/orders/:id", checkoutHandler.Get)
	v1.POST("/orders/:id/refund", checkoutHandler.Refund)

	return e
}
