// Package publisher declares the outbound message port used to fan
// lifecycle notifications out to external consumers.
package publisher

import "context"

// Publisher sends payload to topic and returns the broker's message ID.
// Attributes travel as message metadata and may be nil.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any, attrs map[string]string) (string, error)
}
