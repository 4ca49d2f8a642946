package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"invoicesync/internal/model"
	"invoicesync/internal/settings"
	"invoicesync/internal/storage"
	"invoicesync/internal/voucher"
)

// MaxAttachmentSize is the largest attachment the voucher service accepts, in bytes.
const MaxAttachmentSize = 5_000_000

// maxAuthAttempts bounds how often one invoice is posted after 401 responses.
const maxAuthAttempts = 2

const tracerName = "invoicesync/internal/service"

var (
	ErrAttachmentMissing     = errors.New("attachment missing")
	ErrAttachmentSizeInvalid = errors.New("attachment size invalid")
	ErrContactNotResolved    = errors.New("contact not resolved")
	ErrAuthRefreshExhausted  = errors.New("api key refused after refresh")
)

// VoucherAPI is the remote voucher service as seen by the uploader.
type VoucherAPI interface {
	CreateVoucher(ctx context.Context, apiKey string, body model.VoucherRequest) (model.VoucherCreated, error)
	UploadFile(ctx context.Context, apiKey, voucherID, filename string, content io.Reader) error
}

var _ VoucherAPI = (*voucher.Client)(nil)

// Uploader pushes a single invoice to the voucher service.
type Uploader interface {
	// Upload creates the voucher and attaches the invoice PDF. A nil error means both succeeded.
	Upload(ctx context.Context, inv model.Invoice) error
}

// VoucherUploader is the Uploader backed by the voucher API.
type VoucherUploader struct {
	api      VoucherAPI
	resolver settings.Resolver
	archive  storage.Archive
	log      *slog.Logger
	tracer   trace.Tracer
}

// NewVoucherUploader wires the uploader. archive may be nil to skip archiving.
func NewVoucherUploader(api VoucherAPI, resolver settings.Resolver, archive storage.Archive, logger *slog.Logger) *VoucherUploader {
	return &VoucherUploader{
		api:      api,
		resolver: resolver,
		archive:  archive,
		log:      logger,
		tracer:   otel.Tracer(tracerName),
	}
}

var _ Uploader = (*VoucherUploader)(nil)

// Upload runs the checks that need no network first: attachment path, existence and size,
// then the contact id. Only then is the voucher posted and the file attached.
func (u *VoucherUploader) Upload(ctx context.Context, inv model.Invoice) (err error) {
	ctx, span := u.tracer.Start(ctx, "voucher.upload", trace.WithAttributes(
		attribute.String("invoice.number", inv.InvoiceNumber),
		attribute.String("invoice.resolved_number", inv.ResolvedNumber()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	path, err := inv.AttachmentPath(ctx, u.resolver)
	if err != nil {
		return err
	}
	content, err := readAttachment(path)
	if err != nil {
		return err
	}

	contactID, err := u.resolver.ContactID(ctx, inv.BillingAddress)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrContactNotResolved, err)
	}
	if contactID == "" {
		return fmt.Errorf("%w: empty contact id for %q", ErrContactNotResolved, inv.BillingAddress)
	}

	body := model.NewVoucherRequest(inv, contactID)
	filename := filepath.Base(path)

	for attempt := 1; ; attempt++ {
		apiKey, err := u.resolver.APIKey(ctx)
		if err != nil {
			return fmt.Errorf("resolve api key: %w", err)
		}

		created, err := u.api.CreateVoucher(ctx, apiKey, body)
		if errors.Is(err, voucher.ErrUnauthorized) {
			// A refused key is never kept, so the next call asks the operator again.
			if invErr := u.resolver.InvalidateAPIKey(ctx); invErr != nil {
				return fmt.Errorf("invalidate api key: %w", invErr)
			}
			if attempt >= maxAuthAttempts {
				return fmt.Errorf("%w: %d attempts", ErrAuthRefreshExhausted, attempt)
			}
			u.log.Warn("voucher api refused the key, retrying with a new one",
				"event", "voucher_unauthorized", "invoice", inv.ResolvedNumber(), "attempt", attempt)
			continue
		}
		if err != nil {
			return fmt.Errorf("create voucher: %w", err)
		}
		span.SetAttributes(attribute.String("voucher.id", created.ID))

		if err := u.api.UploadFile(ctx, apiKey, created.ID, filename, bytes.NewReader(content)); err != nil {
			return fmt.Errorf("upload attachment for voucher %s: %w", created.ID, err)
		}

		u.archiveAttachment(ctx, inv, created.ID, content)
		return nil
	}
}

// readAttachment loads the PDF after checking that it exists and fits the size limit.
func readAttachment(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrAttachmentMissing, path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrAttachmentMissing, path)
	}
	if info.Size() <= 0 || info.Size() > MaxAttachmentSize {
		return nil, fmt.Errorf("%w: %s has %d bytes", ErrAttachmentSizeInvalid, path, info.Size())
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrAttachmentMissing, path, err)
	}
	return content, nil
}

func (u *VoucherUploader) archiveAttachment(ctx context.Context, inv model.Invoice, voucherID string, content []byte) {
	if u.archive == nil {
		return
	}
	key := storage.AttachmentKey(inv.MonthYear(), inv.InvoiceNumber)
	_, err := u.archive.Put(ctx, key, bytes.NewReader(content), storage.PutObjectOptions{
		Size:        int64(len(content)),
		ContentType: "application/pdf",
		Metadata: map[string]string{
			"invoice-number": inv.InvoiceNumber,
			"voucher-id":     voucherID,
		},
	})
	if err != nil {
		u.log.Warn("archiving attachment failed", "event", "archive_failed", "invoice", inv.ResolvedNumber(), "key", key, "error", err.Error())
		return
	}
	u.log.Debug("attachment archived", "event", "archive_stored", "invoice", inv.ResolvedNumber(), "key", key)
}
