// Package storage archives uploaded invoice attachments in an S3-compatible object store.
package storage

import (
	"context"
	"io"
	"path"
	"time"
)

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known; -1 lets the backend chunk the stream.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Archive keeps a copy of every attachment that reached the voucher service.
type Archive interface {
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
}

// AttachmentKey is the object key of an invoice attachment, e.g. vouchers/03-2024/RE-1.pdf.
func AttachmentKey(monthYear, invoiceNumber string) string {
	return path.Join("vouchers", monthYear, invoiceNumber+".pdf")
}
