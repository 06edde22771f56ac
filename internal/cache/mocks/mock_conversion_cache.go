package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"scriptdeck/internal/model"
)

type MockConversionCache struct {
	mock.Mock
}

func (m *MockConversionCache) Get(ctx context.Context, id string) (*model.Conversion, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversion), args.Error(1)
}

func (m *MockConversionCache) Set(ctx context.Context, conv *model.Conversion) error {
	args := m.Called(ctx, conv)
	return args.Error(0)
}

func (m *MockConversionCache) Invalidate(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
