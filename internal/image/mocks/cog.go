package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// CogGenerator is a mock of image.CogGenerator
type CogGenerator struct {
	mock.Mock
}

// Rewrite provides a mock function with given fields: ctx, path, workDir
func (_m *CogGenerator) Rewrite(ctx context.Context, path string, workDir string) error {
	ret := _m.Called(ctx, path, workDir)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string) error); ok {
		r0 = rf(ctx, path, workDir)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}
