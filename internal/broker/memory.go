package broker

import (
	"context"
	"log/slog"
	"sync"
)

// subscriberBuffer bounds the per-subscription backlog. A subscriber that
// falls further behind loses its oldest pending events; the client reconciles
// through the read-state endpoints anyway.
const subscriberBuffer = 16

// MemoryBroker is a channel-per-user broadcast for single-instance
// deployments and tests. Multi-instance deployments use RedisBroker.
type MemoryBroker struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan []byte
	closed bool
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		subs: make(map[string]map[int]chan []byte),
	}
}

func (b *MemoryBroker) Publish(_ context.Context, userID string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs[userID] {
		select {
		case ch <- payload:
		default:
			// Full buffer: drop the oldest event to make room.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- payload:
			default:
			}
			slog.Warn("slow subscriber, dropped oldest event", "user_id", userID, "subscription_id", id)
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(_ context.Context, userID string) (<-chan []byte, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan []byte, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}, nil
	}

	b.nextID++
	id := b.nextID
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[int]chan []byte)
	}
	b.subs[userID][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if chans, ok := b.subs[userID]; ok {
				delete(chans, id)
				if len(chans) == 0 {
					delete(b.subs, userID)
				}
				close(ch)
			}
		})
	}
	return ch, cancel, nil
}

// SubscriberCount reports the open subscriptions for a user.
func (b *MemoryBroker) SubscriberCount(userID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[userID])
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for userID, chans := range b.subs {
		for _, ch := range chans {
			close(ch)
		}
		delete(b.subs, userID)
	}
	return nil
}
