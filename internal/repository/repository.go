package repository

import (
	"context"
	"errors"

	"invoicesync/internal/model"
)

// Package repository contains data access abstractions for invoices and the completed ledger.
// Implementations live in subpackages (csvfile, postgres).

// ErrCorrupt marks storage that exists but cannot be decoded.
var ErrCorrupt = errors.New("storage corrupt")

// InvoiceSource reads the invoice export.
type InvoiceSource interface {
	// ReadAll returns every valid invoice in file order. Malformed rows and rows in a
	// foreign currency are logged and skipped; only an unreadable source is an error.
	ReadAll(ctx context.Context, path string) ([]model.Invoice, error)
}

// LedgerRepository persists the set of invoice numbers already synchronized.
type LedgerRepository interface {
	// TryLoad returns stored entries in storage order. Missing storage yields an empty slice.
	TryLoad(ctx context.Context) ([]string, error)

	// Save atomically replaces storage with entries.
	Save(ctx context.Context, entries []string) error
}
