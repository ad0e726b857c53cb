package mocks

import (
	"context"
	"sync"

	"github.com/airbusgeo/georotate/interface/messaging"
	"github.com/stretchr/testify/mock"
)

// Publisher is a mock of messaging.Publisher that also records the published payloads
type Publisher struct {
	mock.Mock
	mu        sync.Mutex
	published [][]byte
}

func (_m *Publisher) Publish(ctx context.Context, data ...[]byte) error {
	ret := _m.Called(ctx, data)
	if rf, ok := ret.Get(0).(func(context.Context, [][]byte) error); ok {
		return rf(ctx, data)
	}
	if err := ret.Error(0); err != nil {
		return err
	}
	_m.mu.Lock()
	_m.published = append(_m.published, data...)
	_m.mu.Unlock()
	return nil
}

// Published returns the payloads successfully published so far
func (_m *Publisher) Published() [][]byte {
	_m.mu.Lock()
	defer _m.mu.Unlock()
	return append([][]byte(nil), _m.published...)
}

// Consumer is a mock of messaging.Consumer.
// Pull may return a func(context.Context, messaging.Callback) error to call the callback.
type Consumer struct {
	mock.Mock
}

func (_m *Consumer) Pull(ctx context.Context, cb messaging.Callback) error {
	ret := _m.Called(ctx, cb)
	if rf, ok := ret.Get(0).(func(context.Context, messaging.Callback) error); ok {
		return rf(ctx, cb)
	}
	return ret.Error(0)
}
