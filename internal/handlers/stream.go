package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Stream holds one SSE connection open and forwards every event published on
// the caller's channel. The subscription lives exactly as long as the
// connection: it is opened here and the deferred cancel releases it on every
// exit path, including abrupt disconnects.
//
// The stream carries no delivery guarantee. Clients refetch the unread count
// and list on each event and on reconnect; a gap in the stream is reconciled
// there, never replayed here.
func (nc *NotificationController) Stream(c echo.Context) error {
	userID := c.Get("user_id").(string)

	events, cancel, err := nc.broker.Subscribe(c.Request().Context(), userID)
	if err != nil {
		slog.Error("Failed to subscribe to notification channel", "error", err, "user_id", userID)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to open stream"})
	}
	defer cancel()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	slog.Info("Stream opened", "user_id", userID)

	for {
		select {
		case <-c.Request().Context().Done():
			// Ordinary lifecycle event, not an error.
			slog.Info("Stream closed", "user_id", userID)
			return nil
		case payload, ok := <-events:
			if !ok {
				slog.Info("Stream closed by broker", "user_id", userID)
				return nil
			}
			if _, err := fmt.Fprintf(res, "data: %s\n\n", payload); err != nil {
				slog.Info("Stream write failed, closing", "user_id", userID, "error", err)
				return nil
			}
			res.Flush()
		}
	}
}
