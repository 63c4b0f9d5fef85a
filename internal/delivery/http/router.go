package http

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"tradedesk/internal/domain"
	custommiddleware "tradedesk/internal/middleware"
)

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterConfig holds all dependencies for routing
type RouterConfig struct {
	AuthHandler      *AuthHandler
	UserHandler      *UserHandler
	TradingHandler   *TradingHandler
	ArbitrageHandler *ArbitrageHandler
	SupportHandler   *SupportHandler
	AdminHandler     *AdminHandler

	Tokens   *custommiddleware.TokenIssuer
	Users    domain.UserRepository
	Database Pinger
	Jobs     []JobRunner
}

// SetupRoutes configures all HTTP routes
func SetupRoutes(e *echo.Echo, config *RouterConfig) {
	// Middleware
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			// Skip high-frequency polling endpoints
			path := c.Request().URL.Path
			return path == "/health" || path == "/api/trading/prices"
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
	e.Use(middleware.Secure())

	// Health check
	e.GET("/health", healthHandler(config.Database, config.Jobs))

	// API group
	api := e.Group("/api")

	// Auth routes (public)
	auth := api.Group("/auth")
	{
		auth.POST("/login", config.AuthHandler.Login)
		auth.POST("/logout", config.AuthHandler.Logout)
		auth.POST("/register", config.AuthHandler.Register)
	}

	authMW := custommiddleware.AuthMiddleware(config.Tokens, config.Users)

	// User routes (protected with AuthMiddleware)
	protected := api.Group("", authMW)
	{
		protected.GET("/user/me", config.UserHandler.GetMe)

		protected.GET("/wallet", config.UserHandler.GetWallet)
		protected.POST("/wallet/transfer", config.UserHandler.Transfer)
		protected.GET("/wallet/reconcile", config.UserHandler.Reconcile)

		protected.POST("/trading/place", config.TradingHandler.PlaceTrade)
		protected.GET("/trading", config.TradingHandler.ListTrades)
		protected.GET("/trading/prices", config.TradingHandler.GetPrices)

		protected.GET("/arbitrage/trades", config.ArbitrageHandler.ListTrades)

		protected.POST("/kyc", config.SupportHandler.SubmitKYC)
		protected.GET("/kyc", config.SupportHandler.ListKYC)

		protected.POST("/tickets", config.SupportHandler.CreateTicket)
		protected.GET("/tickets", config.SupportHandler.ListTickets)
		protected.GET("/tickets/:id", config.SupportHandler.GetTicket)
		protected.POST("/tickets/:id/messages", config.SupportHandler.AddMessage)
	}

	// Admin routes (protected with Auth + Admin middleware)
	admin := api.Group("/admin", authMW, custommiddleware.AdminMiddleware)
	{
		admin.GET("/users", config.AdminHandler.ListUsers)
		admin.PUT("/users/:id/status", config.AdminHandler.UpdateUserStatus)
		admin.POST("/users/:id/balance", config.AdminHandler.AdjustBalance)

		admin.GET("/trades", config.AdminHandler.ListTrades)
		admin.POST("/trades/:id/settle", config.AdminHandler.SettleTrade)

		admin.GET("/statistics", config.AdminHandler.GetStatistics)
		admin.POST("/settlement/run", config.AdminHandler.RunSettlement)

		admin.GET("/settings", config.AdminHandler.GetSettings)
		admin.PUT("/settings/payout", config.AdminHandler.SetPayout)

		admin.GET("/arbitrage/settings", config.ArbitrageHandler.ListSettings)
		admin.POST("/arbitrage/settings", config.ArbitrageHandler.CreateSetting)
		admin.PUT("/arbitrage/settings/:id", config.ArbitrageHandler.UpdateSetting)
		admin.POST("/arbitrage/:id/settle", config.ArbitrageHandler.SettleTrade)

		admin.GET("/kyc", config.SupportHandler.ListKYCQueue)
		admin.POST("/kyc/:id/review", config.SupportHandler.ReviewKYC)

		admin.GET("/tickets", config.SupportHandler.ListAllTickets)
		admin.POST("/tickets/:id/close", config.SupportHandler.CloseTicket)
	}
}

func healthHandler(db Pinger, jobs []JobRunner) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		states := make(map[string]string, len(jobs))
		for _, j := range jobs {
			states[j.Name()] = j.State()
		}

		body := map[string]interface{}{
			"status":    "healthy",
			"service":   "tradedesk-api",
			"database":  "up",
			"jobs":      states,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}

		if err := db.Ping(ctx); err != nil {
			body["status"] = "degraded"
			body["database"] = "down"
			return ErrorResponse(c, http.StatusServiceUnavailable, "Database unreachable", body)
		}

		return SuccessResponse(c, body)
	}
}
