package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"invoicesync/internal/repository"
)

// LedgerHeader is the single column of the completed ledger file.
const LedgerHeader = ColInvoiceNumber

// LedgerCSV stores the completed ledger as a one-column CSV file.
type LedgerCSV struct {
	path string
}

// NewLedgerCSV creates a ledger repository backed by the file at path.
func NewLedgerCSV(path string) *LedgerCSV {
	return &LedgerCSV{path: path}
}

var _ repository.LedgerRepository = (*LedgerCSV)(nil)

// Path returns the backing file.
func (l *LedgerCSV) Path() string { return l.path }

// TryLoad returns the recorded invoice numbers. A missing file is a first run, not an error.
func (l *LedgerCSV) TryLoad(ctx context.Context) ([]string, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("open ledger %q: %w", l.path, err)
	}
	defer f.Close()

	return decodeLedger(f)
}

func decodeLedger(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: ledger header: %v", repository.ErrCorrupt, err)
	}
	if h := strings.TrimPrefix(strings.TrimSpace(header[0]), "\ufeff"); h != LedgerHeader {
		return nil, fmt.Errorf("%w: unexpected ledger header %q", repository.ErrCorrupt, h)
	}

	entries := make([]string, 0)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", repository.ErrCorrupt, err)
		}
		if n := strings.TrimSpace(rec[0]); n != "" {
			entries = append(entries, n)
		}
	}
	return entries, nil
}

// Save writes entries to a temporary file next to the ledger, syncs it and renames it
// over the ledger, so a crash leaves either the old or the new file.
func (l *LedgerCSV) Save(ctx context.Context, entries []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(l.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(l.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	w := csv.NewWriter(tmp)
	if err := w.Write([]string{LedgerHeader}); err != nil {
		return fmt.Errorf("write ledger header: %w", err)
	}
	for _, e := range entries {
		if err := w.Write([]string{e}); err != nil {
			return fmt.Errorf("write ledger row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close ledger: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	committed = true
	return nil
}
