// Package export defines the outbound ports for pushing ledger data to
// external tabular backends (a shared spreadsheet, a file, memory in tests).
// The engine only guarantees the row shape; the encoding belongs to the
// adapter.
package export

import (
	"context"
	"time"

	"xpense/internal/core"
)

// ExpenseRow is the denormalized shape one recorded expense exports as.
type ExpenseRow struct {
	RecordedAt  time.Time
	Description string
	Amount      core.Money
	PayerName   string
	Method      core.SplitMethod
}

type (
	// ExpenseAppender appends one expense row and returns an opaque
	// reference to where it landed.
	ExpenseAppender interface {
		Append(ctx context.Context, row ExpenseRow) (rowRef string, err error)
	}

	// BalanceSheetWriter replaces the exported settlement view with the
	// given rows (name, paid, owed, balance).
	BalanceSheetWriter interface {
		WriteBalanceSheet(ctx context.Context, rows []core.BalanceRow) error
	}
)
