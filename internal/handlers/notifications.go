package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"notistream/internal/broker"
	"notistream/internal/notification"
	"notistream/internal/queue"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

type NotificationController struct {
	store    notification.Store
	enqueuer queue.Enqueuer
	broker   broker.Broker
}

func NewNotificationController(store notification.Store, enqueuer queue.Enqueuer, b broker.Broker) *NotificationController {
	return &NotificationController{
		store:    store,
		enqueuer: enqueuer,
		broker:   b,
	}
}

type CreateNotificationRequest struct {
	Recipients  []string            `json:"recipients"`
	Type        string              `json:"type"`
	Content     NotificationContent `json:"content"`
	Scope       *notification.Scope `json:"scope,omitempty"`
	WorkspaceID *string             `json:"workspace_id,omitempty"`
}

type NotificationContent struct {
	Key      string            `json:"key"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type ListResponse struct {
	Data  []notification.RecipientView `json:"data"`
	Total int                          `json:"total"`
	Page  int                          `json:"page"`
	Limit int                          `json:"limit"`
}

// Create enqueues a fan-out job and returns immediately; the worker persists
// and publishes asynchronously.
func (nc *NotificationController) Create(c echo.Context) error {
	var req CreateNotificationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	if len(req.Recipients) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Recipients are required"})
	}
	if req.Type == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Type is required"})
	}
	if req.Content.Key == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Content key is required"})
	}

	scope := notification.ScopeUser
	if req.Scope != nil {
		scope = *req.Scope
	}

	metadata := map[string]string{"key": req.Content.Key}
	for k, v := range req.Content.Metadata {
		metadata[k] = v
	}

	taskID, err := nc.enqueuer.EnqueueFanout(queue.FanoutPayload{
		Recipients:  req.Recipients,
		Scope:       scope,
		Type:        req.Type,
		Metadata:    metadata,
		WorkspaceID: req.WorkspaceID,
	})
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Failed to enqueue notification"})
	}

	return c.JSON(http.StatusAccepted, map[string]string{"task_id": taskID})
}

func (nc *NotificationController) List(c echo.Context) error {
	userID := c.Get("user_id").(string)

	page, err := strconv.Atoi(c.QueryParam("page"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	views, total, err := nc.store.List(c.Request().Context(), userID, page, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list notifications"})
	}

	return c.JSON(http.StatusOK, ListResponse{
		Data:  views,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

func (nc *NotificationController) UnreadCount(c echo.Context) error {
	userID := c.Get("user_id").(string)

	count, err := nc.store.CountUnread(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to count notifications"})
	}

	return c.JSON(http.StatusOK, map[string]int{"count": count})
}

func (nc *NotificationController) MarkRead(c echo.Context) error {
	userID := c.Get("user_id").(string)
	recipientID := c.Param("id")

	err := nc.store.MarkRead(c.Request().Context(), userID, recipientID)
	if errors.Is(err, notification.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Notification not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to mark notification as read"})
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Notification marked as read"})
}

func (nc *NotificationController) MarkAllRead(c echo.Context) error {
	userID := c.Get("user_id").(string)

	updated, err := nc.store.MarkAllRead(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to mark notifications as read"})
	}

	return c.JSON(http.StatusOK, map[string]int64{"updated": updated})
}

func (nc *NotificationController) MarkAllUnread(c echo.Context) error {
	userID := c.Get("user_id").(string)

	updated, err := nc.store.MarkAllUnread(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to mark notifications as unread"})
	}

	return c.JSON(http.StatusOK, map[string]int64{"updated": updated})
}
