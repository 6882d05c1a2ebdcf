// Package router wires handlers and middleware into the gin engine.
package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/apiplatform/backend/internal/application/admission"
	"github.com/apiplatform/backend/internal/application/metering"
	"github.com/apiplatform/backend/internal/infrastructure/auth"
	"github.com/apiplatform/backend/internal/infrastructure/config"
	"github.com/apiplatform/backend/internal/infrastructure/telemetry"
	"github.com/apiplatform/backend/internal/interfaces/http/handler"
	"github.com/apiplatform/backend/internal/interfaces/http/middleware"
)

// Handlers collects every handler the router mounts.
type Handlers struct {
	Health       *handler.HealthHandler
	Auth         *handler.AuthHandler
	APIKey       *handler.APIKeyHandler
	Plan         *handler.PlanHandler
	Subscription *handler.SubscriptionHandler
	Usage        *handler.UsageHandler
	Admin        *handler.AdminHandler
	Service      *handler.ServiceHandler
}

// Dependencies collects the cross-cutting pieces the router needs.
type Dependencies struct {
	Config     *config.Config
	Logger     *zap.Logger
	JWTService *auth.JWTService
	Admission  *admission.Service
	Recorder   *metering.Recorder
	Metrics    *telemetry.Metrics
}

// New builds the gin engine with all routes mounted.
//
// Three authentication regimes coexist: public endpoints, JWT-protected
// dashboard endpoints, and API-key-metered service endpoints. A dashboard
// token never admits metered traffic and an API key never opens the dashboard.
func New(h Handlers, deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.RequestLogger(deps.Logger),
		middleware.Recovery(deps.Logger),
		middleware.CORS(middleware.CORSConfig{
			AllowOrigins: deps.Config.HTTP.CORSAllowOrigins,
			AllowMethods: deps.Config.HTTP.CORSAllowMethods,
			AllowHeaders: deps.Config.HTTP.CORSAllowHeaders,
		}),
	)

	engine.GET("/health", h.Health.Check)
	if deps.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	v1 := engine.Group("/api/v1")

	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
	}

	dashboard := v1.Group("")
	dashboard.Use(middleware.JWTAuth(deps.JWTService))
	{
		dashboard.GET("/me", h.Auth.Me)

		dashboard.POST("/keys", h.APIKey.Issue)
		dashboard.GET("/keys", h.APIKey.List)
		dashboard.DELETE("/keys/:id", h.APIKey.Revoke)
		dashboard.POST("/keys/:id/rotate", h.APIKey.Rotate)

		dashboard.GET("/plans", h.Plan.List)
		dashboard.GET("/plans/:id", h.Plan.Get)

		dashboard.GET("/subscriptions/me", h.Subscription.Status)

		dashboard.GET("/usage", h.Usage.MyStats)
	}

	admin := v1.Group("/admin")
	admin.Use(middleware.JWTAuth(deps.JWTService), middleware.RequireAdmin())
	{
		admin.GET("/users", h.Admin.ListUsers)
		admin.GET("/users/:id", h.Admin.GetUser)
		admin.POST("/users/:id/suspend", h.Admin.SuspendUser)
		admin.POST("/users/:id/activate", h.Admin.ActivateUser)
		admin.GET("/users/:id/usage", h.Usage.OwnerStats)

		admin.GET("/keys", h.Admin.ListAllKeys)
		admin.DELETE("/keys/:id", h.APIKey.Revoke)

		admin.POST("/plans", h.Plan.Create)
		admin.PUT("/plans/:id", h.Plan.Update)
		admin.DELETE("/plans/:id", h.Plan.Delete)

		admin.POST("/subscriptions", h.Subscription.Assign)
		admin.GET("/subscriptions", h.Subscription.ListAll)

		admin.GET("/usage", h.Usage.GlobalStats)
	}

	v1.GET("/services/available", h.Service.Available)

	services := v1.Group("/services")
	services.Use(middleware.Admission(deps.Admission, deps.Recorder, deps.Logger))
	{
		services.GET("/weather", h.Service.Weather)
		services.GET("/currency", h.Service.Currency)
		services.GET("/random-fact", h.Service.RandomFact)
		services.GET("/ip-lookup", h.Service.IPLookup)
	}

	return engine
}
