package broker

import "context"

// Broker fans a single publish out to every current subscriber of a user's
// channel. There is no history: a subscriber that joins after a publish never
// sees it. Durable state lives in Postgres, not here.
type Broker interface {
	// Publish sends payload to every current subscriber of the user's channel.
	// Publishing with zero subscribers is valid and does nothing.
	Publish(ctx context.Context, userID string, payload []byte) error

	// Subscribe opens a subscription on the user's channel. The returned
	// cancel func must be called exactly once when the subscriber is done; it
	// closes the channel and releases the subscription.
	Subscribe(ctx context.Context, userID string) (<-chan []byte, func(), error)

	Close() error
}
