// internal/app/router.go
package app

import (
	accessHandler "tenantcore-service/internal/handlers/access"
	authHandler "tenantcore-service/internal/handlers/auth"
	eventsHandler "tenantcore-service/internal/handlers/events"
	planHandler "tenantcore-service/internal/handlers/plan"
	subscriptionHandler "tenantcore-service/internal/handlers/subscription"
	"tenantcore-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handlers struct {
	AuthHandler         *authHandler.AuthHandler
	PlanHandler         *planHandler.PlanHandler
	SubscriptionHandler *subscriptionHandler.SubscriptionHandler
	AccessHandler       *accessHandler.AccessHandler
	EventsHandler       *eventsHandler.EventsHandler
	AuthMiddleware      *middleware.AuthMiddleware
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== Event Stream ====================
	r.GET("/ws", h.EventsHandler.HandleConnection)

	// ==================== Auth ====================
	authPublic := api.Group("/auth")
	{
		authPublic.POST("/login", h.AuthHandler.Login)
	}

	authProtected := api.Group("/auth")
	authProtected.Use(h.AuthMiddleware.Auth())
	{
		authProtected.POST("/logout", h.AuthHandler.Logout)
		authProtected.POST("/logout-all", h.AuthHandler.LogoutAll)
	}

	// ==================== Plan Catalog ====================
	plans := api.Group("/plans")
	{
		// Public endpoints - no auth required
		plans.GET("", h.PlanHandler.List)
		plans.GET("/compare", h.PlanHandler.Compare)

		// Authenticated endpoints
		plansAuth := plans.Group("")
		plansAuth.Use(h.AuthMiddleware.Auth())
		{
			plansAuth.GET("/:id", h.PlanHandler.Get)
		}
	}

	// ==================== Subscriptions ====================
	subscriptions := api.Group("/subscriptions")
	subscriptions.Use(h.AuthMiddleware.Auth())
	{
		subscriptions.POST("", h.SubscriptionHandler.Subscribe)
		subscriptions.POST("/trial", h.SubscriptionHandler.StartTrial)
		subscriptions.POST("/upgrade", h.SubscriptionHandler.Upgrade)
		subscriptions.POST("/downgrade", h.SubscriptionHandler.Downgrade)
		subscriptions.POST("/cancel", h.SubscriptionHandler.Cancel)
		subscriptions.POST("/renew", h.SubscriptionHandler.Renew)
		subscriptions.POST("/proration-preview", h.SubscriptionHandler.ProrationPreview)

		subscriptions.GET("", h.SubscriptionHandler.List)
		subscriptions.GET("/active", h.SubscriptionHandler.GetActive)
		subscriptions.GET("/remaining-days", h.SubscriptionHandler.RemainingDays)
	}

	// Approval surface is super admin only
	adminSubscriptions := api.Group("/subscriptions")
	adminSubscriptions.Use(h.AuthMiddleware.SuperAdminOnly()...)
	{
		adminSubscriptions.POST("/:id/activate", h.SubscriptionHandler.Activate)
		adminSubscriptions.POST("/:id/reject", h.SubscriptionHandler.Reject)
		adminSubscriptions.POST("/:id/extend-trial", h.SubscriptionHandler.ExtendTrial)
	}

	// ==================== Module Access ====================
	modules := api.Group("/modules")
	modules.Use(h.AuthMiddleware.Auth())
	{
		modules.GET("/:id/access", h.AccessHandler.Check)
		modules.GET("/:id/users", h.AccessHandler.ListUsers)
		modules.POST("/:id/access", h.AccessHandler.Register)
		modules.DELETE("/:id/access/:user_id", h.AccessHandler.Revoke)
	}

	// ==================== Admin ====================
	admin := api.Group("/admin")
	admin.Use(h.AuthMiddleware.SuperAdminOnly()...)
	{
		admin.GET("/ws/stats", h.EventsHandler.Stats)
	}
}
