package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"invoicesync/internal/repository"
)

// LedgerPostgres is a PostgreSQL implementation of repository.LedgerRepository.
// Rows are only ever inserted, so the stored set can only grow.
type LedgerPostgres struct {
	db *sql.DB
}

// NewLedgerPostgres creates a new LedgerPostgres repository.
func NewLedgerPostgres(db *sql.DB) *LedgerPostgres {
	return &LedgerPostgres{db: db}
}

var _ repository.LedgerRepository = (*LedgerPostgres)(nil)

// TryLoad returns every completed invoice number in insertion order.
func (r *LedgerPostgres) TryLoad(ctx context.Context) ([]string, error) {
	const q = `
		SELECT invoice_number
		FROM completed_invoices
		ORDER BY position ASC
	`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]string, 0)
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("%w: %v", repository.ErrCorrupt, err)
		}
		entries = append(entries, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Save inserts every entry inside one transaction. Existing rows are left untouched,
// which keeps their original position and sync time.
func (r *LedgerPostgres) Save(ctx context.Context, entries []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}

	const q = `
		INSERT INTO completed_invoices (invoice_number)
		VALUES ($1)
		ON CONFLICT (invoice_number) DO NOTHING
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare ledger insert: %w", err)
	}
	defer stmt.Close()

	for _, n := range entries {
		if _, err := stmt.ExecContext(ctx, n); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert ledger entry %q: %w", n, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}
