package pubsub

import (
	"context"
	"fmt"
	"os"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/apiv1"
	"cloud.google.com/go/pubsub/apiv1/pubsubpb"
	"github.com/airbusgeo/georotate/interface/messaging"
	"github.com/airbusgeo/georotate/internal/log"
	"github.com/airbusgeo/georotate/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Consumer pulls messages one at a time from a pubsub subscription and extends
// their ack deadline while they are processed.
type Consumer struct {
	ps           *gcppubsub.SubscriberClient
	subscription string
	processOpts  processOptions
}

var _ messaging.Consumer = &Consumer{}

type processOptions struct {
	ExtensionPeriod   time.Duration
	ReturnImmediately bool
	OnErrorRetryDelay time.Duration
}

type ProcessOption func(o *processOptions)

// ExtensionPeriod is the duration by which the ack deadline is extended at a time,
// while the callback is running. It must be <= 10 minutes.
func ExtensionPeriod(t time.Duration) ProcessOption {
	if t > 10*time.Minute {
		panic("ExtensionPeriod must be <= 10 minutes")
	}
	return func(o *processOptions) {
		o.ExtensionPeriod = t
	}
}

// OnErrorRetryDelay is the delay before a message is redelivered after a temporary error.
// A negative delay lets the message expire.
func OnErrorRetryDelay(t time.Duration) ProcessOption {
	return func(o *processOptions) {
		o.OnErrorRetryDelay = t
	}
}

// ReturnImmediately will return nil immediately if there are no messages to process. If
// not set, Pull will block until a message becomes available
func ReturnImmediately() ProcessOption {
	return func(o *processOptions) {
		o.ReturnImmediately = true
	}
}

// DefaultSubscriberClient connects to pubsub, or to the emulator if PUBSUB_EMULATOR_HOST is set
func DefaultSubscriberClient(ctx context.Context) (*gcppubsub.SubscriberClient, error) {
	var o []option.ClientOption
	if addr := os.Getenv("PUBSUB_EMULATOR_HOST"); addr != "" {
		conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, fmt.Errorf("grpc.NewClient: %w", err)
		}
		o = []option.ClientOption{option.WithGRPCConn(conn)}
	}
	return gcppubsub.NewSubscriberClient(ctx, o...)
}

// NewConsumer returns a consumer of projects/<projectID>/subscriptions/<subscriptionID>.
// If ps is nil, DefaultSubscriberClient is used at the first Pull.
func NewConsumer(ps *gcppubsub.SubscriberClient, projectID, subscriptionID string, opts ...ProcessOption) *Consumer {
	c := &Consumer{
		ps:           ps,
		subscription: fmt.Sprintf("projects/%s/subscriptions/%s", projectID, subscriptionID),
		processOpts: processOptions{
			ExtensionPeriod:   8 * time.Minute,
			OnErrorRetryDelay: -1,
		},
	}
	for _, o := range opts {
		o(&c.processOpts)
	}
	return c
}

// Pull implements messaging.Consumer
func (c *Consumer) Pull(ctx context.Context, cb messaging.Callback) error {
	if c.ps == nil {
		var err error
		if c.ps, err = DefaultSubscriberClient(context.Background()); err != nil {
			return fmt.Errorf("create subscriber client: %w", err)
		}
	}

	received, err := c.next(ctx)
	if err != nil || received == nil {
		return err
	}

	ctx, cncl := context.WithCancel(ctx)
	defer cncl()

	// buffered, so that the callback can return after the extender has exited
	done := make(chan error, 1)
	settled := make(chan error)
	go func() {
		settled <- c.keepAlive(ctx, cncl, received.AckId, done)
	}()

	done <- cb(ctx, &messaging.Message{
		ID:          received.Message.MessageId,
		Attributes:  received.Message.Attributes,
		Data:        received.Message.Data,
		PublishTime: received.Message.PublishTime.AsTime(),
		TryCount:    int(received.DeliveryAttempt),
	})
	return <-settled
}

// next blocks until a message is available (or returns nil if ReturnImmediately is set)
func (c *Consumer) next(ctx context.Context) (*pubsubpb.ReceivedMessage, error) {
	req := pubsubpb.PullRequest{
		Subscription:      c.subscription,
		MaxMessages:       1,
		ReturnImmediately: c.processOpts.ReturnImmediately,
	}
	for {
		res, err := c.ps.Pull(ctx, &req)
		if err != nil {
			return nil, fmt.Errorf("ps.pull: %w", err)
		}
		switch len(res.ReceivedMessages) {
		case 0:
			if c.processOpts.ReturnImmediately {
				return nil, nil
			}
		case 1:
			return res.ReceivedMessages[0], nil
		default:
			return nil, fmt.Errorf("pull returned %d!=1 messages", len(res.ReceivedMessages))
		}
	}
}

// keepAlive extends the deadline of the message until the callback returns on done, then settles the message.
// If the deadline cannot be extended, the callback is cancelled.
func (c *Consumer) keepAlive(ctx context.Context, cancel context.CancelFunc, ackID string, done <-chan error) error {
	deadline := time.Now().Add(c.processOpts.ExtensionPeriod)
	next := time.Duration(0)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-done:
			return c.settle(ctx, ackID, err)
		case <-time.After(next):
			if time.Now().After(deadline) {
				cancel()
				return fmt.Errorf("failed to extend past deadline")
			}
			if err := c.modifyAckDeadline(ctx, ackID, c.processOpts.ExtensionPeriod); err != nil {
				next = next / 2
				if next < time.Second {
					next = time.Second
				}
				log.Logger(ctx).With(zap.Error(err)).Sugar().Warnf("error extending, will retry in %v", next)
				continue
			}
			deadline = time.Now().Add(c.processOpts.ExtensionPeriod)
			next = c.processOpts.ExtensionPeriod / 2
		}
	}
}

// settle acknowledges the message, unless err is temporary
func (c *Consumer) settle(ctx context.Context, ackID string, err error) error {
	switch {
	case err == nil:
	case !utils.Temporary(err):
		log.Logger(ctx).Error("fatal error, message acknowledged", zap.Error(err))
	default:
		log.Logger(ctx).Warn("temporary error, message will be redelivered", zap.Error(err))
		if c.processOpts.OnErrorRetryDelay < 0 {
			return nil
		}
		return c.modifyAckDeadline(ctx, ackID, c.processOpts.OnErrorRetryDelay)
	}
	return c.ps.Acknowledge(ctx, &pubsubpb.AcknowledgeRequest{
		Subscription: c.subscription,
		AckIds:       []string{ackID},
	})
}

func (c *Consumer) modifyAckDeadline(ctx context.Context, ackID string, d time.Duration) error {
	return c.ps.ModifyAckDeadline(ctx, &pubsubpb.ModifyAckDeadlineRequest{
		Subscription:       c.subscription,
		AckIds:             []string{ackID},
		AckDeadlineSeconds: int32(d.Seconds()),
	})
}
