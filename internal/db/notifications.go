package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"notistream/internal/notification"
)

// NotificationStore implements notification.Store over Postgres.
type NotificationStore struct {
	db *sqlx.DB
}

func NewNotificationStore(database *sqlx.DB) *NotificationStore {
	return &NotificationStore{db: database}
}

func (s *NotificationStore) InsertWithRecipients(ctx context.Context, n *notification.Notification, userIDs []string) ([]notification.Recipient, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.Metadata == nil {
		n.Metadata = map[string]string{}
	}

	metadata, err := json.Marshal(n.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO notifications (id, scope, type, metadata, workspace_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, n.ID, n.Scope, n.Type, metadata, n.WorkspaceID, n.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert notification: %w", err)
	}

	recipients := make([]notification.Recipient, 0, len(userIDs))
	values := make([]string, 0, len(userIDs))
	args := make([]interface{}, 0, len(userIDs)*6)
	for i, userID := range userIDs {
		r := notification.Recipient{
			ID:             uuid.NewString(),
			NotificationID: n.ID,
			UserID:         userID,
			WorkspaceID:    n.WorkspaceID,
			Status:         notification.StatusSent,
			CreatedAt:      n.CreatedAt,
			UpdatedAt:      n.CreatedAt,
		}
		recipients = append(recipients, r)

		base := i * 6
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6))
		args = append(args, r.ID, r.NotificationID, r.UserID, r.WorkspaceID, r.Status, r.CreatedAt)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO notification_recipients (id, notification_id, user_id, workspace_id, status, created_at)
		VALUES `+strings.Join(values, ", "),
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to insert recipients: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return recipients, nil
}

func (s *NotificationStore) ResolveUserIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	// Non-UUID recipient IDs can never match a user row; filter them out
	// before the query instead of letting Postgres reject the cast.
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In("SELECT id FROM users WHERE id IN (?)", valid)
	if err != nil {
		return nil, fmt.Errorf("failed to build user query: %w", err)
	}

	var resolved []string
	if err := s.db.SelectContext(ctx, &resolved, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to resolve recipients: %w", err)
	}
	return resolved, nil
}

func (s *NotificationStore) List(ctx context.Context, userID string, page, limit int) ([]notification.RecipientView, int, error) {
	offset := (page - 1) * limit

	var rows []struct {
		notification.Recipient
		NotifID          string    `db:"notif_id"`
		NotifScope       string    `db:"notif_scope"`
		NotifType        string    `db:"notif_type"`
		NotifMetadata    []byte    `db:"notif_metadata"`
		NotifWorkspaceID *string   `db:"notif_workspace_id"`
		NotifCreatedAt   time.Time `db:"notif_created_at"`
	}

	err := s.db.SelectContext(ctx, &rows, `
		SELECT
			r.id, r.notification_id, r.user_id, r.workspace_id, r.status, r.created_at, r.updated_at,
			n.id AS notif_id,
			n.scope AS notif_scope,
			n.type AS notif_type,
			n.metadata AS notif_metadata,
			n.workspace_id AS notif_workspace_id,
			n.created_at AS notif_created_at
		FROM notification_recipients r
		JOIN notifications n ON n.id = r.notification_id
		WHERE r.user_id = $1
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}

	var total int
	err = s.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM notification_recipients WHERE user_id = $1", userID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	views := make([]notification.RecipientView, 0, len(rows))
	for _, row := range rows {
		var metadata map[string]string
		if err := json.Unmarshal(row.NotifMetadata, &metadata); err != nil {
			return nil, 0, fmt.Errorf("failed to parse notification metadata: %w", err)
		}
		views = append(views, notification.RecipientView{
			Recipient: row.Recipient,
			Notification: notification.Notification{
				ID:          row.NotifID,
				Scope:       notification.Scope(row.NotifScope),
				Type:        row.NotifType,
				Metadata:    metadata,
				WorkspaceID: row.NotifWorkspaceID,
				CreatedAt:   row.NotifCreatedAt,
			},
		})
	}
	return views, total, nil
}

func (s *NotificationStore) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM notification_recipients WHERE user_id = $1 AND status = 'SENT'", userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

func (s *NotificationStore) MarkRead(ctx context.Context, userID, recipientID string) error {
	if _, err := uuid.Parse(recipientID); err != nil {
		return notification.ErrNotFound
	}

	// Scoped by owner: a foreign row looks exactly like a missing one.
	res, err := s.db.ExecContext(ctx, `
		UPDATE notification_recipients
		SET status = 'READ', updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND user_id = $2
	`, recipientID, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return notification.ErrNotFound
	}
	return nil
}

func (s *NotificationStore) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.markAll(ctx, userID, notification.StatusSent, notification.StatusRead)
}

func (s *NotificationStore) MarkAllUnread(ctx context.Context, userID string) (int64, error) {
	return s.markAll(ctx, userID, notification.StatusRead, notification.StatusSent)
}

func (s *NotificationStore) markAll(ctx context.Context, userID string, from, to notification.Status) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notification_recipients
		SET status = $1, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $2 AND status = $3
	`, to, userID, from)
	if err != nil {
		return 0, fmt.Errorf("failed to update notification status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read update result: %w", err)
	}
	return affected, nil
}
