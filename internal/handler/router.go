// Package handler exposes the dashboard over HTTP: auth routes, the live dashboard stream,
// the trade ledger and the settings page.
package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// NewServer builds the echo instance with every route registered.
func NewServer(logger *zap.Logger, auth Authenticator, authHandler *AuthHandler, dashboardHandler *DashboardHandler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &CustomValidator{Validator: validator.New()}

	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPost, http.MethodDelete},
		AllowCredentials: false,
	}))
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Error(fmt.Sprintf("[PANIC RECOVER] %v", err), zap.ByteString("stack", stack))
			return err
		},
	}))
	e.Use(requestLogger(logger))
	e.Use(WithErrorHandler(logger))

	e.GET("/api/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":    "healthy",
			"service":   "crypto-trading-dashboard",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	api := e.Group("/api")

	public := api.Group("/auth")
	{
		public.POST("/signup", authHandler.SignUp)
		public.POST("/login", authHandler.Login)
		public.POST("/google", authHandler.Google)
		public.POST("/phone/send", authHandler.SendPhoneCode)
		public.POST("/phone/verify", authHandler.VerifyPhoneCode)
	}

	protected := api.Group("", Auth(auth, logger))
	{
		protected.POST("/auth/logout", authHandler.Logout)
		protected.GET("/auth/me", authHandler.Me)

		protected.GET("/dashboard", dashboardHandler.GetDashboard)
		protected.GET("/dashboard/stream", dashboardHandler.Stream)

		protected.GET("/trades", dashboardHandler.ListTrades)
		protected.POST("/trades", dashboardHandler.CreateTrade)
		protected.DELETE("/trades/:id", dashboardHandler.DeleteTrade)

		protected.GET("/settings", dashboardHandler.GetSettings)
		protected.PUT("/settings/api-keys", dashboardHandler.SaveAPIKeys)
	}

	return e
}

// requestLogger logs each request once it has been served. The stream endpoint is skipped.
func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/api/dashboard/stream" || c.Path() == "/api/health"
		},
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Debug("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.Error(v.Error))
			return nil
		},
	})
}
