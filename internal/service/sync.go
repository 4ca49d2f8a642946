package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"invoicesync/internal/ledger"
	"invoicesync/internal/metrics"
	"invoicesync/internal/model"
	"invoicesync/internal/repository"
)

// Summary describes one sync run.
type Summary struct {
	Total         int      `json:"total"`
	Invalid       int      `json:"invalid"`
	AlreadySynced int      `json:"already_synced"`
	Attempted     int      `json:"attempted"`
	Succeeded     int      `json:"succeeded"`
	Failed        int      `json:"failed"`
	FailedNumbers []string `json:"failed_numbers,omitempty"`
}

// SyncService drives a run: load invoices and ledger, upload what is pending, persist the ledger.
type SyncService struct {
	source   repository.InvoiceSource
	ledger   repository.LedgerRepository
	uploader Uploader
	metrics  *metrics.SyncMetrics
	log      *slog.Logger
	now      func() time.Time
}

// NewSyncService constructs a SyncService. m may be nil.
func NewSyncService(source repository.InvoiceSource, ledgerRepo repository.LedgerRepository, uploader Uploader, m *metrics.SyncMetrics, logger *slog.Logger) *SyncService {
	return &SyncService{
		source:   source,
		ledger:   ledgerRepo,
		uploader: uploader,
		metrics:  m,
		log:      logger,
		now:      time.Now,
	}
}

// Run performs one sync over the invoices at invoicePath.
//
// Invoices are uploaded one at a time in source order. A failed invoice is logged and skipped;
// it stays pending for the next run. The ledger is saved after the loop even when uploads failed
// or ctx was cancelled. A save failure is returned wrapped in ledger.ErrLedgerPersist together with
// the summary of the work that was done.
func (s *SyncService) Run(ctx context.Context, invoicePath string) (Summary, error) {
	var sum Summary

	invoices, done, err := s.load(ctx, invoicePath)
	if err != nil {
		return sum, err
	}
	pending := pendingInvoices(invoices, done)

	sum.Total = len(invoices)
	for _, inv := range invoices {
		if !inv.Validate() {
			sum.Invalid++
		}
	}
	sum.AlreadySynced = sum.Total - sum.Invalid - len(pending)
	s.log.Info("starting sync", "event", "sync_started",
		"total", sum.Total, "already_synced", sum.AlreadySynced, "pending", len(pending))

	for _, inv := range pending {
		if ctx.Err() != nil {
			s.log.Warn("sync interrupted, remaining invoices stay pending", "event", "sync_interrupted",
				"remaining", len(pending)-sum.Attempted)
			break
		}

		sum.Attempted++
		start := s.now()
		err := s.uploader.Upload(ctx, inv)
		elapsed := s.now().Sub(start)
		if s.metrics != nil {
			s.metrics.ObserveUpload(elapsed.Seconds(), err)
		}

		if err != nil {
			sum.Failed++
			sum.FailedNumbers = append(sum.FailedNumbers, inv.ResolvedNumber())
			s.log.Error("error uploading invoice", "event", "invoice_upload_failed",
				"invoice", inv.ResolvedNumber(), "duration_ms", elapsed.Milliseconds(), "error", err.Error())
			continue
		}

		done.Add(inv.InvoiceNumber)
		sum.Succeeded++
		s.log.Info("invoice uploaded", "event", "invoice_uploaded",
			"invoice", inv.ResolvedNumber(), "duration_ms", elapsed.Milliseconds())
	}

	// Persist even after cancellation; the uploads above already happened remotely.
	if err := ledger.Save(context.WithoutCancel(ctx), s.ledger, done); err != nil {
		s.log.Error("LEDGER NOT SAVED: uploaded invoices will be uploaded again on the next run",
			"event", "ledger_persist_failed", "succeeded", sum.Succeeded, "error", err.Error())
		return sum, err
	}

	if s.metrics != nil {
		s.metrics.ObserveRun(sum.AlreadySynced, done.Len(), float64(s.now().Unix()))
	}
	s.log.Info("sync finished", "event", "sync_finished",
		"total", sum.Total, "invalid", sum.Invalid, "already_synced", sum.AlreadySynced, "attempted", sum.Attempted,
		"succeeded", sum.Succeeded, "failed", sum.Failed)
	return sum, nil
}

// Pending lists the invoices a Run would upload, without uploading anything.
func (s *SyncService) Pending(ctx context.Context, invoicePath string) ([]model.Invoice, error) {
	invoices, done, err := s.load(ctx, invoicePath)
	if err != nil {
		return nil, err
	}
	return pendingInvoices(invoices, done), nil
}

// Completed returns the ledger entries in insertion order.
func (s *SyncService) Completed(ctx context.Context) ([]string, error) {
	done, err := ledger.Load(ctx, s.ledger)
	if err != nil {
		return nil, err
	}
	return done.Entries(), nil
}

func (s *SyncService) load(ctx context.Context, invoicePath string) ([]model.Invoice, *ledger.Set, error) {
	invoices, err := s.source.ReadAll(ctx, invoicePath)
	if err != nil {
		return nil, nil, fmt.Errorf("read invoices: %w", err)
	}
	done, err := ledger.Load(ctx, s.ledger)
	if err != nil {
		return nil, nil, err
	}
	return invoices, done, nil
}

// pendingInvoices keeps source order and drops invoices already in the ledger under either their
// raw or their resolved number. A number listed twice in the source is only uploaded once.
func pendingInvoices(invoices []model.Invoice, done *ledger.Set) []model.Invoice {
	seen := make(map[string]struct{}, len(invoices))
	var out []model.Invoice
	for _, inv := range invoices {
		if !inv.Validate() {
			continue
		}
		if done.Contains(inv.InvoiceNumber) || done.Contains(inv.ResolvedNumber()) {
			continue
		}
		if _, dup := seen[inv.InvoiceNumber]; dup {
			continue
		}
		seen[inv.InvoiceNumber] = struct{}{}
		out = append(out, inv)
	}
	return out
}
