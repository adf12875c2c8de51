// Package memory is an in-memory export backend, used in tests and when no
// spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"xpense/internal/core"
	"xpense/internal/export"
)

type Store struct {
	mu       sync.Mutex
	expenses []export.ExpenseRow
	balances []core.BalanceRow
}

func New() *Store {
	return &Store{}
}

// Append implements export.ExpenseAppender.
func (s *Store) Append(_ context.Context, row export.ExpenseRow) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenses = append(s.expenses, row)
	return fmt.Sprintf("mem:%d", len(s.expenses)), nil
}

// WriteBalanceSheet implements export.BalanceSheetWriter.
func (s *Store) WriteBalanceSheet(_ context.Context, rows []core.BalanceRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances = make([]core.BalanceRow, len(rows))
	copy(s.balances, rows)
	return nil
}

// Expenses returns a copy of everything appended so far.
func (s *Store) Expenses() []export.ExpenseRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]export.ExpenseRow, len(s.expenses))
	copy(out, s.expenses)
	return out
}

// BalanceSheet returns the last written settlement view.
func (s *Store) BalanceSheet() []core.BalanceRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.BalanceRow, len(s.balances))
	copy(out, s.balances)
	return out
}
