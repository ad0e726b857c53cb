package pgqueue

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/airbusgeo/georotate/interface/messaging"
	"github.com/airbusgeo/georotate/internal/log"
	"github.com/airbusgeo/georotate/internal/utils"
	"github.com/btubbs/pgq"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
)

type PublisherOption func(o *Publisher)

func WithMaxRetries(maxRetries int) PublisherOption {
	return func(p *Publisher) {
		p.maxRetries = maxRetries
	}
}

// Publisher implements messaging.Publisher
type Publisher struct {
	worker     *pgq.Worker
	queueName  string
	maxRetries int
}

// Consumer implements messaging.Consumer
type Consumer struct {
	worker    *pgq.Worker
	queueName string
	run       bool
}

var (
	_ messaging.Publisher = &Publisher{}
	_ messaging.Consumer  = &Consumer{}
)

// defaultLogger makes pgq log its warnings as JSON, like the rest of the application
func defaultLogger() pgq.WorkerOption {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.WarnLevel)
	logger.SetOutput(os.Stdout)
	return pgq.SetLogger(logger)
}

// SqlConnect opens and pings the postgres database holding the pgq_jobs table
func SqlConnect(ctx context.Context, dbConnection string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dbConnection)
	if err != nil {
		return nil, fmt.Errorf("pgqueue.Connect: %w", err)
	}
	db.SetMaxOpenConns(5)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pgqueue.Connect: failed to ping database: %w", err)
	}
	return db, nil
}

// NewPublisher returns a pg queue publisher.
func NewPublisher(db *sql.DB, queueName string, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		queueName: queueName,
		worker:    pgq.NewWorker(db, defaultLogger()),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish implements messaging.Publisher
func (p *Publisher) Publish(ctx context.Context, data ...[]byte) error {
	for retry := 0; ; retry++ {
		var failed [][]byte
		var lastErr error
		for _, d := range data {
			if _, err := p.worker.EnqueueJob(p.queueName, d); err != nil {
				failed = append(failed, d)
				lastErr = err
			}
		}
		if lastErr == nil {
			return nil
		}
		if !utils.Temporary(lastErr) || retry >= p.maxRetries {
			return fmt.Errorf("pgQueue.Publish: %w", lastErr)
		}
		time.Sleep(time.Second * time.Duration(math.Exp2(float64(retry))))
		data = failed
	}
}

// NewConsumer returns a pg queue consumer.
// A consumer cannot share the worker with another instance
func NewConsumer(db *sql.DB, queueName string) *Consumer {
	return &Consumer{
		queueName: queueName,
		worker:    pgq.NewWorker(db, defaultLogger()),
	}
}

// Pull implements messaging.Consumer. It runs the pgq worker until Stop is called.
func (c *Consumer) Pull(ctx context.Context, cb messaging.Callback) error {
	handler := func(data []byte) error {
		return c.handle(ctx, cb, data)
	}
	if err := c.worker.RegisterQueue(c.queueName, handler); err != nil {
		return fmt.Errorf("pgQueue.Pull.RegisterQueue: %w", err)
	}
	c.run = true
	return c.worker.Run()
}

// Stop stops the worker started by Pull
func (c *Consumer) Stop() {
	if c.run {
		c.worker.StopChan <- true
	}
}

// handle returns an error to pgq only if the job must be retried
func (c *Consumer) handle(ctx context.Context, cb messaging.Callback, data []byte) error {
	err := cb(ctx, &messaging.Message{
		Data:       data,
		Attributes: map[string]string{},
		TryCount:   -1,
	})
	switch {
	case err == nil:
		return nil
	case utils.Temporary(err):
		log.Logger(ctx).Warn("temporary error, job will be retried", zap.Error(err))
		return err
	default:
		log.Logger(ctx).Error("fatal error, job dropped", zap.Error(err))
		return nil
	}
}
