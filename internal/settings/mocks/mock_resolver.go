package mocks

import (
	"context"

	"invoicesync/internal/settings"

	"github.com/stretchr/testify/mock"
)

type MockResolver struct {
	mock.Mock
}

var _ settings.Resolver = (*MockResolver)(nil)

func (m *MockResolver) PrefixPath(ctx context.Context, prefix string) (string, error) {
	args := m.Called(ctx, prefix)
	return args.String(0), args.Error(1)
}

func (m *MockResolver) ContactID(ctx context.Context, address string) (string, error) {
	args := m.Called(ctx, address)
	return args.String(0), args.Error(1)
}

func (m *MockResolver) APIKey(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockResolver) InvalidateAPIKey(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
