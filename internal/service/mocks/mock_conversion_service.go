package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"scriptdeck/internal/model"
	"scriptdeck/internal/service"
)

type MockConversionService struct {
	mock.Mock
}

func (m *MockConversionService) Convert(ctx context.Context, r io.Reader, originalFilename string) (*model.Conversion, error) {
	args := m.Called(ctx, r, originalFilename)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversion), args.Error(1)
}

func (m *MockConversionService) List(ctx context.Context, limit, offset int) (*service.ConversionListResult, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ConversionListResult), args.Error(1)
}

func (m *MockConversionService) Get(ctx context.Context, id string) (*model.Conversion, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversion), args.Error(1)
}

func (m *MockConversionService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockConversionService) Download(ctx context.Context, id string) (*service.Download, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Download), args.Error(1)
}

func (m *MockConversionService) SourceLink(ctx context.Context, id string) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}
