package mocks

import (
	"context"

	"github.com/airbusgeo/georotate/internal/rotate"
	"github.com/stretchr/testify/mock"
)

// Handler is a mock of image.Handler
type Handler struct {
	mock.Mock
}

// Transform provides a mock function with given fields: ctx, cfg
func (_m *Handler) Transform(ctx context.Context, cfg rotate.Config) error {
	ret := _m.Called(ctx, cfg)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, rotate.Config) error); ok {
		r0 = rf(ctx, cfg)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// Resample provides a mock function with given fields: ctx, cfg
func (_m *Handler) Resample(ctx context.Context, cfg rotate.Config) error {
	ret := _m.Called(ctx, cfg)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, rotate.Config) error); ok {
		r0 = rf(ctx, cfg)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}
