package mocks

import (
	"context"

	"invoicesync/internal/model"
	"invoicesync/internal/repository"

	"github.com/stretchr/testify/mock"
)

type MockLedgerRepository struct {
	mock.Mock
}

var _ repository.LedgerRepository = (*MockLedgerRepository)(nil)

func (m *MockLedgerRepository) TryLoad(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockLedgerRepository) Save(ctx context.Context, entries []string) error {
	args := m.Called(ctx, entries)
	return args.Error(0)
}

type MockInvoiceSource struct {
	mock.Mock
}

var _ repository.InvoiceSource = (*MockInvoiceSource)(nil)

func (m *MockInvoiceSource) ReadAll(ctx context.Context, path string) ([]model.Invoice, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Invoice), args.Error(1)
}
