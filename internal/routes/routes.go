package routes

import (
	"github.com/labstack/echo/v4"

	"notistream/internal/auth"
	"notistream/internal/handlers"
)

func SetupRoutes(api *echo.Group, nc *handlers.NotificationController) {
	// Public routes
	api.GET("/health", handlers.HealthCheck)

	// Auth routes with rate limiting
	authGroup := api.Group("/auth")
	authGroup.Use(auth.RateLimitMiddleware)
	authGroup.POST("/signup", handlers.Signup)
	authGroup.POST("/login", handlers.Login)

	// Protected routes
	api.Use(auth.JWTMiddleware)

	notifications := api.Group("/notifications")
	notifications.POST("", nc.Create)
	notifications.GET("", nc.List)
	notifications.GET("/unread-count", nc.UnreadCount)
	notifications.GET("/stream", nc.Stream)
	notifications.PATCH("/mark-read", nc.MarkAllRead)
	notifications.PATCH("/mark-unread", nc.MarkAllUnread)
	notifications.PATCH("/:id/read", nc.MarkRead)
}
