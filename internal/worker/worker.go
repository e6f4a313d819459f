package worker

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"notistream/internal/broker"
	"notistream/internal/config"
	"notistream/internal/notification"
	"notistream/internal/queue"
)

type Worker struct {
	server *asynq.Server
	store  notification.Store
	broker broker.Broker
}

func NewWorker(store notification.Store, b broker.Broker) *Worker {
	redisOpt := asynq.RedisClientOpt{
		Addr: config.GetRedisAddr(),
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				queue.QueueNotificationFanout: 10,
			},
		},
	)

	return &Worker{
		server: server,
		store:  store,
		broker: b,
	}
}

func (w *Worker) Start(ctx context.Context) error {

	mux := asynq.NewServeMux()

	mux.HandleFunc(queue.QueueNotificationFanout, w.handleNotificationFanout)

	slog.Info("Starting worker",
		"queues", []string{queue.QueueNotificationFanout},
		"concurrency", 10)

	if err := w.server.Start(mux); err != nil {
		return err
	}

	slog.Info("Worker started successfully")

	<-ctx.Done()

	w.server.Stop()
	slog.Info("Worker stopped")
	return nil
}
