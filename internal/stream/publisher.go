package stream

import "context"

// Publisher is the outbound side of the event stream. Delivery is
// at-least-once; consumers are expected to dedup.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}
