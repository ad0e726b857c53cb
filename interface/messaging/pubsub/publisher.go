package pubsub

import (
	"context"
	"fmt"
	"math"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/airbusgeo/georotate/interface/messaging"
	"github.com/airbusgeo/georotate/internal/utils"
)

type publisherOptions struct {
	maxRetries int
}

type PublisherOption func(o *publisherOptions)

// WithMaxRetries sets the number of retries of the messages that failed with a temporary error
func WithMaxRetries(maxRetries int) PublisherOption {
	return func(o *publisherOptions) {
		o.maxRetries = maxRetries
	}
}

// Publisher implements messaging.Publisher
type Publisher struct {
	client     *pubsub.Client
	topic      *pubsub.Topic
	maxRetries int
}

var _ messaging.Publisher = &Publisher{}

// NewPublisher creates a pubsub publisher on projects/<projectID>/topics/<topic>
func NewPublisher(ctx context.Context, projectID, topic string, opts ...PublisherOption) (*Publisher, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewPublisher.NewClient: %w", err)
	}

	clOpts := publisherOptions{}
	for _, o := range opts {
		o(&clOpts)
	}

	return &Publisher{client: client, topic: client.Topic(topic), maxRetries: clOpts.maxRetries}, nil
}

// Publish implements messaging.Publisher
func (p *Publisher) Publish(ctx context.Context, data ...[]byte) error {
	for retry := 0; ; retry++ {
		failed, err := p.publish(ctx, data)
		if err != nil {
			if !utils.Temporary(err) || retry >= p.maxRetries {
				return fmt.Errorf("Publish: %w", err)
			}
			time.Sleep(time.Second * time.Duration(math.Exp2(float64(retry))))
			data = failed
			continue
		}
		return nil
	}
}

// publish returns the messages that failed, and the last error
func (p *Publisher) publish(ctx context.Context, data [][]byte) ([][]byte, error) {
	results := make([]*pubsub.PublishResult, len(data))
	for i, d := range data {
		results[i] = p.topic.Publish(ctx, &pubsub.Message{Data: d})
	}

	var failed [][]byte
	var lastErr error
	for i, r := range results {
		// blocks until the message is sent
		if _, err := r.Get(ctx); err != nil {
			failed = append(failed, data[i])
			lastErr = err
		}
	}
	return failed, lastErr
}

// Stop flushes the pending messages and closes the client
func (p *Publisher) Stop() {
	p.topic.Stop()
	p.client.Close()
}
