package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisBroker broadcasts over Redis pub/sub, one channel per user, so every
// API instance sees publishes from every worker.
type RedisBroker struct {
	rdb *redis.Client
}

func NewRedisBroker(addr string) (*RedisBroker, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisBroker{rdb: rdb}, nil
}

func channelFor(userID string) string {
	return "notifications:user:" + userID
}

func (b *RedisBroker) Publish(ctx context.Context, userID string, payload []byte) error {
	if err := b.rdb.Publish(ctx, channelFor(userID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channelFor(userID), err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, userID string) (<-chan []byte, func(), error) {
	sub := b.rdb.Subscribe(ctx, channelFor(userID))

	// Force the SUBSCRIBE round-trip so a failed subscription surfaces here
	// instead of as a silent dead stream.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to %s: %w", channelFor(userID), err)
	}

	out := make(chan []byte, subscriberBuffer)
	done := make(chan struct{})

	go func() {
		defer close(out)
		src := sub.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-src:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				default:
					select {
					case <-out:
					default:
					}
					select {
					case out <- []byte(msg.Payload):
					default:
					}
					slog.Warn("slow subscriber, dropped oldest event", "user_id", userID)
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			if err := sub.Close(); err != nil {
				slog.Warn("failed to close subscription", "user_id", userID, "error", err)
			}
		})
	}
	return out, cancel, nil
}

func (b *RedisBroker) Close() error {
	return b.rdb.Close()
}
