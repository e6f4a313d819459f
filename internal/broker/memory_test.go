package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvWithTimeout(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case payload := <-ch:
		return payload
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestSubscriberReceivesPublish(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()

	events, cancel, err := b.Subscribe(context.Background(), "u1")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, b.Publish(context.Background(), "u1", []byte("hello")))

	assert.Equal(t, []byte("hello"), recvWithTimeout(t, events))
}

func TestNoReplayForLateSubscriber(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()

	require.NoError(t, b.Publish(context.Background(), "u1", []byte("missed")))

	events, cancel, err := b.Subscribe(context.Background(), "u1")
	require.NoError(t, err)
	defer cancel()

	select {
	case payload := <-events:
		t.Fatalf("late subscriber received replayed event: %s", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishDoesNotCrossUsers(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()

	u1Events, cancelU1, err := b.Subscribe(context.Background(), "u1")
	require.NoError(t, err)
	defer cancelU1()

	u2Events, cancelU2, err := b.Subscribe(context.Background(), "u2")
	require.NoError(t, err)
	defer cancelU2()

	require.NoError(t, b.Publish(context.Background(), "u1", []byte("for-u1")))

	assert.Equal(t, []byte("for-u1"), recvWithTimeout(t, u1Events))
	select {
	case payload := <-u2Events:
		t.Fatalf("u2 received u1's event: %s", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTwoSubscriptionsSameUserBothReceive(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()

	first, cancelFirst, err := b.Subscribe(context.Background(), "u1")
	require.NoError(t, err)
	defer cancelFirst()

	second, cancelSecond, err := b.Subscribe(context.Background(), "u1")
	require.NoError(t, err)
	defer cancelSecond()

	require.NoError(t, b.Publish(context.Background(), "u1", []byte("multi-device")))

	assert.Equal(t, []byte("multi-device"), recvWithTimeout(t, first))
	assert.Equal(t, []byte("multi-device"), recvWithTimeout(t, second))
}

func TestCancelReleasesSubscription(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()

	events, cancel, err := b.Subscribe(context.Background(), "u1")
	require.NoError(t, err)

	cancel()
	// Cancel must be safe to repeat.
	cancel()

	_, open := <-events
	assert.False(t, open, "channel should be closed after cancel")
	assert.Zero(t, b.SubscriberCount("u1"))

	// Publishing after cancel must not reach the closed subscription.
	require.NoError(t, b.Publish(context.Background(), "u1", []byte("after-cancel")))
}

func TestSlowSubscriberDropsOldest(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()

	events, cancel, err := b.Subscribe(context.Background(), "u1")
	require.NoError(t, err)
	defer cancel()

	for i := 0; i < subscriberBuffer+1; i++ {
		require.NoError(t, b.Publish(context.Background(), "u1", []byte{byte(i)}))
	}

	// Event 0 was dropped to make room; the backlog starts at 1 and the
	// buffer never exceeds its bound.
	assert.Equal(t, []byte{1}, recvWithTimeout(t, events))
	assert.LessOrEqual(t, len(events), subscriberBuffer)
}

func TestCloseShutsDownSubscribers(t *testing.T) {
	b := NewMemoryBroker()

	events, cancel, err := b.Subscribe(context.Background(), "u1")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, b.Close())

	_, open := <-events
	assert.False(t, open, "channel should be closed after broker close")
}
