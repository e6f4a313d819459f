package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"notistream/internal/broker"
	"notistream/internal/config"
	"notistream/internal/db"
	"notistream/internal/worker"
)

func main() {
	if err := config.LoadEnv(); err != nil {
		log.Fatalf("Failed to load environment: %v", err)
	}

	db.InitDB()

	b, err := broker.NewRedisBroker(config.GetRedisAddr())
	if err != nil {
		log.Fatalf("Failed to initialize broker: %v", err)
	}
	defer b.Close()

	store := db.NewNotificationStore(db.DB)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := worker.NewWorker(store, b)
	if err := w.Start(ctx); err != nil {
		log.Fatalf("Worker failed: %v", err)
	}
}
