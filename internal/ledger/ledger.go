// Package ledger holds the completed set: invoice numbers that already exist remotely.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"invoicesync/internal/repository"
)

var (
	ErrLedgerLoad    = errors.New("ledger load failed")
	ErrLedgerPersist = errors.New("ledger persist failed")
)

// Set is an insertion-ordered set of invoice numbers. It only grows.
type Set struct {
	order []string
	index map[string]struct{}
}

// NewSet builds a set from entries, keeping the first occurrence of duplicates.
func NewSet(entries ...string) *Set {
	s := &Set{index: make(map[string]struct{}, len(entries))}
	for _, e := range entries {
		s.Add(e)
	}
	return s
}

// Add records number. It reports whether the number was new.
func (s *Set) Add(number string) bool {
	if _, ok := s.index[number]; ok {
		return false
	}
	s.index[number] = struct{}{}
	s.order = append(s.order, number)
	return true
}

func (s *Set) Contains(number string) bool {
	_, ok := s.index[number]
	return ok
}

func (s *Set) Len() int { return len(s.order) }

// Entries returns a copy of the numbers in insertion order.
func (s *Set) Entries() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Load reads the ledger. Absent storage is an empty set; unreadable storage is fatal.
func Load(ctx context.Context, repo repository.LedgerRepository) (*Set, error) {
	entries, err := repo.TryLoad(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLedgerLoad, err)
	}
	return NewSet(entries...), nil
}

// Save overwrites storage with the full set. Errors wrap ErrLedgerPersist so callers can tell
// them apart from upload failures: losing the ledger means duplicate vouchers next run.
func Save(ctx context.Context, repo repository.LedgerRepository, s *Set) error {
	if err := repo.Save(ctx, s.Entries()); err != nil {
		return fmt.Errorf("%w: %w", ErrLedgerPersist, err)
	}
	return nil
}
