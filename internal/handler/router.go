package handler

import (
	"net/http"

	"github.com/finearr/finearr/internal/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MetricsExporter records HTTP metrics and serves the registry.
type MetricsExporter interface {
	middleware.HTTPObserver
	Handler() http.Handler
}

// Router bundles the handlers and middleware served by the API.
type Router struct {
	Config      *ConfigHandler
	Plex        *PlexHandler
	Admin       *AdminHandler
	Requests    *RequestHandler
	Permissions *PermissionHandler
	Users       *UserHandler
	Health      *HealthHandler
	AdminGuard  gin.HandlerFunc
	Metrics     MetricsExporter
	Logger      *zap.Logger
}

// Engine builds the gin engine with every route registered.
func (r Router) Engine() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	if r.Logger != nil {
		engine.Use(middleware.RequestLogger(r.Logger))
	}
	if r.Metrics != nil {
		engine.Use(middleware.Metrics(r.Metrics))
		engine.GET("/metrics", gin.WrapH(r.Metrics.Handler()))
	}

	engine.GET("/health/live", r.Health.LivenessProbe)
	engine.GET("/health/ready", r.Health.ReadinessProbe)

	api := engine.Group("/api")
	{
		api.GET("/config", r.Config.GetConfig)

		auth := api.Group("/auth")
		auth.POST("/plex/pin", r.Plex.CreatePin)
		auth.GET("/plex/pin/:id", r.Plex.CheckPin)
		auth.POST("/plex/login", r.Plex.Login)
		auth.POST("/plex/auto", r.Plex.AutoLogin)
		auth.POST("/admin/login", r.Admin.Login)
		auth.POST("/admin/logout", r.Admin.Logout)

		api.GET("/requests", r.Requests.List)
		api.POST("/requests", r.Requests.Submit)
		api.POST("/users/background", r.Users.UpdateBackground)

		admin := api.Group("")
		admin.Use(r.AdminGuard)
		{
			admin.POST("/requests/:category/:id/approve", r.Requests.Approve)
			admin.POST("/requests/:category/:id/deny", r.Requests.Deny)
			admin.DELETE("/blacklist/:category/:id", r.Requests.Unblacklist)

			admin.GET("/permissions", r.Permissions.Get)
			admin.PUT("/permissions", r.Permissions.Update)

			admin.GET("/admin/accounts", r.Admin.ListAccounts)
			admin.POST("/admin/accounts", r.Admin.CreateAccount)
			admin.PUT("/admin/accounts/:username", r.Admin.UpdateAccount)
			admin.DELETE("/admin/accounts/:username", r.Admin.DeleteAccount)
		}
	}

	return engine
}
