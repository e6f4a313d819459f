package handlers

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notistream/internal/broker"
)

func setupStreamServer(t *testing.T, b *broker.MemoryBroker, userID string) *httptest.Server {
	t.Helper()
	e := echo.New()
	nc := NewNotificationController(newMemStore(), &fakeEnqueuer{}, b)
	e.GET("/notifications/stream", nc.Stream, withUser(userID))
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func TestStreamForwardsPublishedEvents(t *testing.T) {
	b := broker.NewMemoryBroker()
	defer b.Close()
	srv := setupStreamServer(t, b, "u1")

	resp, err := http.Get(srv.URL + "/notifications/stream")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	// Wait for the handler to open its subscription before publishing;
	// the broker has no replay.
	require.Eventually(t, func() bool { return b.SubscriberCount("u1") == 1 },
		time.Second, 10*time.Millisecond)

	require.NoError(t, b.Publish(context.Background(), "u1",
		[]byte(`{"notification_id":"n1","type":"SYSTEM","metadata":{"key":"welcome"}}`)))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "data: {\"notification_id\":\"n1\",\"type\":\"SYSTEM\",\"metadata\":{\"key\":\"welcome\"}}\n", line)

	blank, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "\n", blank)
}

func TestStreamDisconnectReleasesSubscription(t *testing.T) {
	b := broker.NewMemoryBroker()
	defer b.Close()
	srv := setupStreamServer(t, b, "u1")

	resp, err := http.Get(srv.URL + "/notifications/stream")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return b.SubscriberCount("u1") == 1 },
		time.Second, 10*time.Millisecond)

	// Client disconnect is the cleanup trigger.
	resp.Body.Close()

	require.Eventually(t, func() bool { return b.SubscriberCount("u1") == 0 },
		time.Second, 10*time.Millisecond)

	// A publish to the now-unsubscribed channel goes nowhere.
	require.NoError(t, b.Publish(context.Background(), "u1", []byte(`{"type":"SYSTEM"}`)))
}

func TestStreamIsPerConnection(t *testing.T) {
	b := broker.NewMemoryBroker()
	defer b.Close()
	srv := setupStreamServer(t, b, "u1")

	first, err := http.Get(srv.URL + "/notifications/stream")
	require.NoError(t, err)
	defer first.Body.Close()

	second, err := http.Get(srv.URL + "/notifications/stream")
	require.NoError(t, err)
	defer second.Body.Close()

	require.Eventually(t, func() bool { return b.SubscriberCount("u1") == 2 },
		time.Second, 10*time.Millisecond)

	require.NoError(t, b.Publish(context.Background(), "u1", []byte(`{"type":"SYSTEM"}`)))

	for _, resp := range []*http.Response{first, second} {
		line, err := bufio.NewReader(resp.Body).ReadString('\n')
		require.NoError(t, err)
		assert.Equal(t, "data: {\"type\":\"SYSTEM\"}\n", line)
	}
}
