package queue

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"notistream/internal/config"
	"notistream/internal/notification"
)

const (
	QueueNotificationFanout = "notification_fanout"
)

// FanoutPayload is one "fan out this notification" job. Delivery is
// at-least-once: a redelivered job creates a fresh notification, which is
// acceptable because producers enqueue once per logical event.
type FanoutPayload struct {
	Recipients  []string           `json:"recipients"`
	Scope       notification.Scope `json:"scope"`
	Type        string             `json:"type"`
	Metadata    map[string]string  `json:"metadata"`
	WorkspaceID *string            `json:"workspace_id,omitempty"`
}

var (
	client    *asynq.Client
	inspector *asynq.Inspector
)

// InitQueue initializes the Redis connection for Asynq
func InitQueue() error {
	redisOpt := asynq.RedisClientOpt{
		Addr: config.GetRedisAddr(),
	}

	client = asynq.NewClient(redisOpt)
	inspector = asynq.NewInspector(redisOpt)

	// Test connection
	if err := client.Close(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %v", err)
	}

	// Recreate client after test
	client = asynq.NewClient(redisOpt)

	slog.Info("Successfully initialized task queue")
	return nil
}

// Enqueuer is what the HTTP layer needs from the queue.
type Enqueuer interface {
	EnqueueFanout(payload FanoutPayload) (string, error)
}

// Client is the production Enqueuer backed by the package connection.
type Client struct{}

func (Client) EnqueueFanout(payload FanoutPayload) (string, error) {
	return EnqueueFanout(payload)
}

// EnqueueFanout creates a new task to fan a notification out to its recipients
func EnqueueFanout(payload FanoutPayload) (string, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %v", err)
	}

	task := asynq.NewTask(QueueNotificationFanout, payloadBytes)

	// Enqueue task with retry options
	info, err := client.Enqueue(task,
		asynq.Queue(QueueNotificationFanout),
		asynq.MaxRetry(3),
		asynq.Timeout(1*time.Minute),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue task: %v", err)
	}

	return info.ID, nil
}

// GetTaskStatus returns the current status of a task
func GetTaskStatus(taskID string) (*asynq.TaskInfo, error) {
	info, err := inspector.GetTaskInfo(QueueNotificationFanout, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task info: %v", err)
	}
	return info, nil
}

// Close closes the Redis connection
func Close() error {
	if client != nil {
		return client.Close()
	}
	return nil
}
