package notification

import (
	"context"
	"errors"
	"time"
)

type Scope string

const (
	ScopeSystem    Scope = "SYSTEM"
	ScopeWorkspace Scope = "WORKSPACE"
	ScopeUser      Scope = "USER"
)

type Status string

const (
	StatusSent Status = "SENT"
	StatusRead Status = "READ"
)

// ErrNotFound covers both a missing row and a row owned by another user;
// callers must not be able to tell the two apart.
var ErrNotFound = errors.New("notification not found")

// Notification is one event, shared across all its recipients. Rows are
// immutable once written.
type Notification struct {
	ID          string            `db:"id" json:"id"`
	Scope       Scope             `db:"scope" json:"scope"`
	Type        string            `db:"type" json:"type"`
	Metadata    map[string]string `db:"-" json:"metadata"`
	WorkspaceID *string           `db:"workspace_id" json:"workspace_id,omitempty"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
}

// Recipient is one user's copy of a Notification. Status moves SENT->READ via
// the read-state endpoints and READ->SENT only via the bulk mark-unread.
type Recipient struct {
	ID             string    `db:"id" json:"id"`
	NotificationID string    `db:"notification_id" json:"notification_id"`
	UserID         string    `db:"user_id" json:"user_id"`
	WorkspaceID    *string   `db:"workspace_id" json:"workspace_id,omitempty"`
	Status         Status    `db:"status" json:"status"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// RecipientView is a Recipient joined with its Notification, as returned by
// the list endpoint.
type RecipientView struct {
	Recipient
	Notification Notification `json:"notification"`
}

// Event is the payload published on a user's channel and forwarded verbatim
// on the SSE stream. It carries the renderable content so subscribers do not
// have to re-fetch, but clients are expected to refetch their unread count and
// list on every event rather than trust the stream alone.
type Event struct {
	NotificationID string            `json:"notification_id"`
	RecipientID    string            `json:"recipient_id"`
	Scope          Scope             `json:"scope"`
	Type           string            `json:"type"`
	Metadata       map[string]string `json:"metadata"`
	WorkspaceID    *string           `json:"workspace_id,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Store is the persistence contract for the pipeline. The dispatcher owns
// creation, the read-state handlers own status mutation; every operation that
// takes a userID is scoped to that user's rows only.
type Store interface {
	// InsertWithRecipients writes the notification and one SENT recipient row
	// per user in a single transaction, filling in generated IDs and
	// timestamps. Returns the created recipient rows.
	InsertWithRecipients(ctx context.Context, n *Notification, userIDs []string) ([]Recipient, error)

	// ResolveUserIDs filters ids down to users that exist, silently dropping
	// the rest.
	ResolveUserIDs(ctx context.Context, ids []string) ([]string, error)

	// List returns the user's recipient rows newest-first, with the total row
	// count for pagination.
	List(ctx context.Context, userID string, page, limit int) ([]RecipientView, int, error)

	// CountUnread counts the user's rows with status SENT.
	CountUnread(ctx context.Context, userID string) (int, error)

	// MarkRead sets one row to READ. No-op if already READ; ErrNotFound if the
	// row does not exist or belongs to someone else.
	MarkRead(ctx context.Context, userID, recipientID string) error

	MarkAllRead(ctx context.Context, userID string) (int64, error)
	MarkAllUnread(ctx context.Context, userID string) (int64, error)
}
