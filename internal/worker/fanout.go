package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"notistream/internal/notification"
	"notistream/internal/queue"
)

// handleNotificationFanout turns one queue job into durable rows plus live
// pub/sub events. The task is acked only after the insert transaction commits;
// publish failures after commit are logged and swallowed, the row is the
// source of truth.
func (w *Worker) handleNotificationFanout(ctx context.Context, t *asynq.Task) error {
	var payload queue.FanoutPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		slog.Error("Malformed fanout payload", "error", err)
		return fmt.Errorf("malformed fanout payload: %v: %w", err, asynq.SkipRetry)
	}

	if err := validateFanout(&payload); err != nil {
		// Producer bug, not a transient condition. Dead-letter, never retry.
		slog.Error("Invalid fanout payload", "error", err, "type", payload.Type)
		return fmt.Errorf("invalid fanout payload: %v: %w", err, asynq.SkipRetry)
	}

	resolved, err := w.store.ResolveUserIDs(ctx, payload.Recipients)
	if err != nil {
		return fmt.Errorf("failed to resolve recipients: %w", err)
	}

	if len(resolved) == 0 {
		// Every recipient was deleted between enqueue and processing.
		slog.Info("Fanout resolved to no recipients, skipping",
			"type", payload.Type,
			"requested", len(payload.Recipients))
		return nil
	}

	n := &notification.Notification{
		Scope:       payload.Scope,
		Type:        payload.Type,
		Metadata:    payload.Metadata,
		WorkspaceID: payload.WorkspaceID,
	}

	recipients, err := w.store.InsertWithRecipients(ctx, n, resolved)
	if err != nil {
		return fmt.Errorf("failed to persist notification: %w", err)
	}

	for _, r := range recipients {
		event := notification.Event{
			NotificationID: n.ID,
			RecipientID:    r.ID,
			Scope:          n.Scope,
			Type:           n.Type,
			Metadata:       n.Metadata,
			WorkspaceID:    n.WorkspaceID,
			CreatedAt:      n.CreatedAt,
		}

		eventBytes, err := json.Marshal(event)
		if err != nil {
			slog.Warn("Failed to marshal event", "error", err, "notification_id", n.ID)
			continue
		}

		if err := w.broker.Publish(ctx, r.UserID, eventBytes); err != nil {
			slog.Warn("Failed to publish notification event",
				"error", err,
				"notification_id", n.ID,
				"user_id", r.UserID)
		}
	}

	slog.Info("Successfully processed notification fanout",
		"notification_id", n.ID,
		"type", n.Type,
		"recipients", len(recipients),
		"dropped", len(payload.Recipients)-len(resolved))

	return nil
}

func validateFanout(p *queue.FanoutPayload) error {
	if len(p.Recipients) == 0 {
		return fmt.Errorf("recipients are required")
	}
	if p.Type == "" {
		return fmt.Errorf("type is required")
	}
	switch p.Scope {
	case notification.ScopeSystem, notification.ScopeWorkspace, notification.ScopeUser:
	default:
		return fmt.Errorf("unknown scope %q", p.Scope)
	}
	if p.Scope == notification.ScopeWorkspace && p.WorkspaceID == nil {
		return fmt.Errorf("workspace_id is required for workspace scope")
	}
	return nil
}
