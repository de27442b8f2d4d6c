package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ulule/limiter/v3"

	"github.com/ignatzorin/omnimarket-backend/internal/config"
	"github.com/ignatzorin/omnimarket-backend/internal/http/handlers"
	"github.com/ignatzorin/omnimarket-backend/internal/http/middleware"
	"github.com/ignatzorin/omnimarket-backend/internal/metrics"
	"github.com/ignatzorin/omnimarket-backend/internal/models"
)

// Handlers набор HTTP обработчиков приложения.
type Handlers struct {
	Health       *handlers.HealthHandler
	Wallet       *handlers.WalletHandler
	Product      *handlers.ProductHandler
	Order        *handlers.OrderHandler
	Subscription *handlers.SubscriptionHandler
	WS           *handlers.WSHandler
	Tokens       middleware.AccessTokenParser
	LimiterStore limiter.Store
	HTTPMetrics  *metrics.HTTPMetrics
}

func SetupRouter(cfg *config.Config, h Handlers) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if h.HTTPMetrics != nil {
		r.Use(h.HTTPMetrics.Middleware())
	}
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	if h.LimiterStore != nil {
		api.Use(middleware.RateLimitMiddleware(h.LimiterStore, cfg.RateLimitLimit, cfg.RateLimitPeriod))
	}

	if h.WS != nil {
		api.GET("/ws", h.WS.Handle)
	}

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(h.Tokens))
	{
		wallet := protected.Group("/wallet")
		wallet.GET("", h.Wallet.GetWallet)
		wallet.POST("/top-up", h.Wallet.TopUp)
		wallet.GET("/transactions", h.Wallet.ListTransactions)

		products := protected.Group("/products")
		products.POST("", h.Product.CreateProduct)
		products.GET("/my", h.Product.ListMyProducts)
		products.GET("/:id", middleware.UUIDValidator("id"), h.Product.GetProduct)

		orders := protected.Group("/orders")
		orders.POST("", h.Order.CreateOrder)
		orders.GET("/my", h.Order.ListMyOrders)

		order := orders.Group("/:id")
		order.Use(middleware.UUIDValidator("id"))
		order.GET("", h.Order.GetOrder)
		order.PUT("/status", h.Order.UpdateStatus)
		order.POST("/confirm-delivery", h.Order.ConfirmDelivery)
		order.POST("/pay-balance", h.Order.PayBalance)
		order.POST("/release-escrow", h.Order.ReleaseEscrow)
		order.POST("/rating", h.Order.SubmitRating)
		order.GET("/payments", h.Order.ListPayments)

		subs := protected.Group("/subscriptions")
		subs.POST("", h.Subscription.Subscribe)
		subs.GET("", h.Subscription.ListSubscriptions)

		admin := protected.Group("/admin")
		admin.Use(middleware.RequireRole(models.RoleAdmin))
		admin.POST("/wallets/:userId/credit", middleware.UUIDValidator("userId"), h.Wallet.AdminCredit)
	}

	return r
}
