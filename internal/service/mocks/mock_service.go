package mocks

import (
	"context"
	"io"

	"invoicesync/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) Upload(ctx context.Context, inv model.Invoice) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

type MockVoucherAPI struct {
	mock.Mock
}

func (m *MockVoucherAPI) CreateVoucher(ctx context.Context, apiKey string, body model.VoucherRequest) (model.VoucherCreated, error) {
	args := m.Called(ctx, apiKey, body)
	return args.Get(0).(model.VoucherCreated), args.Error(1)
}

func (m *MockVoucherAPI) UploadFile(ctx context.Context, apiKey, voucherID, filename string, content io.Reader) error {
	args := m.Called(ctx, apiKey, voucherID, filename, content)
	return args.Error(0)
}
