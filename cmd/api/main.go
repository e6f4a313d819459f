package main

import (
	"log"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"notistream/internal/auth"
	"notistream/internal/broker"
	"notistream/internal/config"
	"notistream/internal/db"
	"notistream/internal/handlers"
	"notistream/internal/migrations"
	"notistream/internal/queue"
	"notistream/internal/routes"
)

func main() {
	if err := config.LoadEnv(); err != nil {
		log.Fatalf("Failed to load environment: %v", err)
	}

	if err := migrations.Up(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	db.InitDB()

	auth.InitSecurity()

	if err := queue.InitQueue(); err != nil {
		log.Fatalf("Failed to initialize task queue: %v", err)
	}
	defer queue.Close()

	b, err := broker.NewRedisBroker(config.GetRedisAddr())
	if err != nil {
		log.Fatalf("Failed to initialize broker: %v", err)
	}
	defer b.Close()

	store := db.NewNotificationStore(db.DB)
	nc := handlers.NewNotificationController(store, queue.Client{}, b)

	e := echo.New()
	e.Use(middleware.Recover())

	api := e.Group("/api/v1")
	routes.SetupRoutes(api, nc)

	port := config.GetEnv("PORT", "8080")
	slog.Info("Starting API server", "port", port)
	e.Logger.Fatal(e.Start(":" + port))
}
