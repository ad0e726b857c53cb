// Package messaging abstracts the queues carrying the rotation jobs and their events.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Publisher publishes messages on a topic or a queue
type Publisher interface {
	Publish(ctx context.Context, data ...[]byte) error
}

// Message is a message received from a Consumer
type Message struct {
	ID          string
	Data        []byte
	Attributes  map[string]string
	PublishTime time.Time
	// TryCount is the delivery attempt, or -1 if the queue does not count them
	TryCount int
}

// Decode unmarshals the JSON payload of the message into v
func (m *Message) Decode(v interface{}) error {
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("message %s: unreadable (%d bytes): %w", m.ID, len(m.Data), err)
	}
	return nil
}

// Exhausted returns true if the message has been delivered more than retryCount+1 times.
// It is always false when the queue does not count the deliveries, or when retryCount < 0.
func (m *Message) Exhausted(retryCount int) bool {
	return retryCount >= 0 && m.TryCount > retryCount
}

// Callback processes a Message.
// A temporary error (utils.Temporary) asks for a redelivery, any other error acknowledges the message.
type Callback func(ctx context.Context, m *Message) error

// Consumer pulls messages
type Consumer interface {
	// Pull waits for the next message, calls cb and settles the message according to its result
	Pull(ctx context.Context, cb Callback) error
}

// PublishJSON marshals each value and publishes them in one call
func PublishJSON(ctx context.Context, p Publisher, values ...interface{}) error {
	data := make([][]byte, len(values))
	for i, v := range values {
		var err error
		if data[i], err = json.Marshal(v); err != nil {
			return fmt.Errorf("PublishJSON: %w", err)
		}
	}
	return p.Publish(ctx, data...)
}
