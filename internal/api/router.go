package api

import (
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/digipilot/account-service/internal/api/handler"
	"github.com/digipilot/account-service/internal/api/middleware"
	"github.com/digipilot/account-service/internal/core/domain"
	"github.com/digipilot/account-service/internal/core/ports"
	"github.com/digipilot/account-service/internal/core/service"
	"github.com/digipilot/account-service/internal/infrastructure/db/postgres"
)

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(db *gorm.DB, mailer ports.Mailer, jwtSecret string, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("account"))

	// --- Dependencies ---
	userRepo := postgres.NewUserRepository(db)
	userService := service.NewUserService(userRepo, mailer, log)
	userHandler := handler.NewUserHandler(userService)
	authHandler := handler.NewAuthHandler(userService, jwtSecret, 24*time.Hour)
	auth := middleware.Auth(jwtSecret)

	// --- Public routes ---
	e.POST("/users", userHandler.Create)
	e.POST("/auth/sign-in", authHandler.SignIn)
	e.POST("/auth/forgot-password", authHandler.ForgotPassword)
	e.POST("/auth/reset-password", authHandler.ResetPassword)

	// --- Authenticated routes ---
	users := e.Group("/users", auth)
	users.GET("/:id", userHandler.Get)
	users.PUT("/:id", userHandler.Update)
	users.DELETE("/:id", userHandler.Delete)
	// Listing every account is restricted to root.
	users.GET("", userHandler.List, middleware.RBAC(domain.RoleRoot))

	// --- Health probes and metrics (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(db)

	e.GET("/health", healthHandler.Liveness)          // liveness  – is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return e
}
