package routes

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/handlers"
	"github.com/example/storefront/internal/logger"
	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/services"
)

// Register wires up all HTTP routes. The checkout service is returned so the
// caller can schedule continuation cleanup.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config) *services.CheckoutService {
	telegramService := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat)

	gateway := services.NewGatewayClient(services.GatewayConfig{
		BaseURL:   cfg.GatewayBaseURL,
		APIKey:    cfg.GatewayAPIKey,
		SecretKey: cfg.GatewaySecretKey,
		Timeout:   cfg.GatewayTimeout,
	})
	verifier := services.NewSignatureVerifier(cfg.GatewaySecretKey)
	discounts := services.NewDiscountService(db)

	checkout := services.NewCheckoutService(db, gateway, verifier, discounts, telegramService, services.CheckoutConfig{
		Currency:       cfg.Currency,
		Locale:         cfg.Locale,
		PublicBaseURL:  cfg.PublicBaseURL,
		TempPaymentTTL: cfg.TempPaymentTTL,
		Location:       cfg.StoreLocation,
	})
	afterSales := services.NewAfterSalesService(db, gateway, verifier, discounts, telegramService, services.AfterSalesConfig{
		Locale:                    cfg.Locale,
		Location:                  cfg.StoreLocation,
		RefundWindow:              cfg.RefundWindow,
		ReleaseDiscountOnReversal: cfg.DiscountReleaseOnReversal,
	})
	orders := services.NewOrderService(db)
	buyers := services.NewBuyerService(db)

	paymentHandler := handlers.NewPaymentHandler(checkout, afterSales, cfg.FrontendURL, cfg.Locale)
	orderHandler := handlers.NewOrderHandler(orders, cfg.Locale)
	adminHandler := handlers.NewAdminHandler(orders, afterSales, cfg.Locale)
	profileHandler := handlers.NewProfileHandler(buyers, cfg.Locale)

	limited := middleware.RateLimit(newLimiter(cfg))
	optionalAuth := middleware.OptionalAuth(cfg.JWTSecret)
	requireAuth := middleware.RequireAuth(cfg.JWTSecret)

	api := app.Group("/api")

	// Payment routes
	payment := api.Group("/payment")
	payment.Post("/bin-check", limited, optionalAuth, paymentHandler.BinCheck)
	payment.Post("/basket/quote", limited, paymentHandler.QuoteBasket)
	payment.Post("/discount/check", limited, optionalAuth, paymentHandler.CheckDiscount)
	payment.Post("/non-3ds", limited, optionalAuth, paymentHandler.PayNon3DS)
	payment.Post("/3ds/initialize", limited, optionalAuth, paymentHandler.Initialize3DS)
	payment.Post("/3ds/callback", paymentHandler.Callback3DS)
	payment.Post("/cancel-order", requireAuth, paymentHandler.CancelOrder)
	payment.Post("/refund-order-items", requireAuth, paymentHandler.RefundOrderItems)

	// Protected routes
	protected := api.Group("", requireAuth)
	protected.Get("/orders", orderHandler.ListOrders)
	protected.Get("/orders/:orderNumber", orderHandler.GetOrder)

	protected.Get("/profile", profileHandler.GetProfile)
	protected.Put("/profile", profileHandler.UpdateProfile)
	protected.Get("/profile/addresses", profileHandler.ListAddresses)
	protected.Post("/profile/addresses", profileHandler.CreateAddress)
	protected.Put("/profile/addresses/:id", profileHandler.UpdateAddress)
	protected.Delete("/profile/addresses/:id", profileHandler.DeleteAddress)

	// Admin routes
	admin := api.Group("/admin", requireAuth, middleware.RequireAdmin())
	admin.Get("/stats", adminHandler.DashboardStats)
	admin.Get("/orders", adminHandler.ListAllOrders)
	admin.Post("/orders/:id/ship", adminHandler.ShipOrder)
	admin.Post("/orders/:id/complete", adminHandler.CompleteOrder)
	admin.Post("/refunds/:id/approve", adminHandler.ApproveRefund)
	admin.Post("/refunds/:id/reject", adminHandler.RejectRefund)

	return checkout
}

// newLimiter shares the checkout limit through Redis when it is configured
// and reachable, and falls back to a per-process limiter otherwise.
func newLimiter(cfg *config.Config) middleware.Limiter {
	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = 1
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		err := client.Ping(ctx).Err()
		if err == nil {
			window := time.Duration(float64(burst) / rps * float64(time.Second))
			logger.Info("checkout rate limit backed by redis", "addr", cfg.RedisAddr, "limit", burst, "window", window)
			return middleware.NewRedisRateLimiter(client, burst, window)
		}
		logger.Warn("redis unavailable, using in-process rate limit", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
	}

	return middleware.NewIPRateLimiter(rate.Limit(rps), burst)
}
