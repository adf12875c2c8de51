// Package worker moves recorded expenses from SQLite into the configured
// export sink (Google Sheets in production).
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"xpense/internal/amqp"
	"xpense/internal/core"
	"xpense/internal/export"
)

// Store is the slice of the storage layer the worker needs.
type Store interface {
	GetExpense(ctx context.Context, id int64) (core.Expense, error)
	GetUser(ctx context.Context, id int64) (core.User, error)
	ListUsers(ctx context.Context) ([]core.User, error)
	ListAllExpenses(ctx context.Context) ([]core.Expense, error)
	ListAllSplits(ctx context.Context) ([]core.Split, error)
	ListPendingExport(ctx context.Context, limit int) ([]int64, error)
	MarkExported(ctx context.Context, id int64) error
	MarkExportError(ctx context.Context, id int64) error
}

// Sink is the export destination: one appended row per expense plus the
// rewritten settlement view.
type Sink interface {
	export.ExpenseAppender
	export.BalanceSheetWriter
}

// Consumer delivers expense.recorded events from the broker.
type Consumer interface {
	ConsumeExpenseRecorded(ctx context.Context, handler func(ctx context.Context, msg *amqp.ExpenseRecordedMessage) error) error
}

// ExportWorker exports recorded expenses one row per expense. AMQP delivery
// is the primary trigger; a periodic scan of unsynced rows is the backup in
// case messages are lost.
type ExportWorker struct {
	store     Store
	sink      Sink
	batchSize int
}

func NewExportWorker(store Store, sink Sink, batchSize int) *ExportWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &ExportWorker{
		store:     store,
		sink:      sink,
		batchSize: batchSize,
	}
}

// HandleRecordedMessage processes a single expense.recorded event.
func (w *ExportWorker) HandleRecordedMessage(ctx context.Context, msg *amqp.ExpenseRecordedMessage) error {
	slog.InfoContext(ctx, "Processing recorded expense",
		"id", msg.ID,
		"version", msg.Version)

	if err := w.exportExpense(ctx, msg.ID); err != nil {
		return fmt.Errorf("export expense %d: %w", msg.ID, err)
	}

	// The expense is already marked exported, so a balance write failure
	// must not requeue the message; the next successful export rewrites
	// the whole view anyway.
	if err := w.syncBalanceSheet(ctx); err != nil {
		slog.ErrorContext(ctx, "Failed to rewrite balance sheet", "error", err)
	}
	return nil
}

// syncBalanceSheet recomputes the settlement view from the full ledger and
// replaces the exported balance tab with it.
func (w *ExportWorker) syncBalanceSheet(ctx context.Context) error {
	users, err := w.store.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	expenses, err := w.store.ListAllExpenses(ctx)
	if err != nil {
		return fmt.Errorf("list expenses: %w", err)
	}
	splits, err := w.store.ListAllSplits(ctx)
	if err != nil {
		return fmt.Errorf("list splits: %w", err)
	}

	byExpense := make(map[int64][]core.Split)
	for _, s := range splits {
		byExpense[s.ExpenseID] = append(byExpense[s.ExpenseID], s)
	}

	rows, dangling := core.BuildBalanceSheet(users, expenses, byExpense)
	for _, d := range dangling {
		slog.WarnContext(ctx, "Dangling user reference in ledger",
			"expense_id", d.ExpenseID, "user_id", d.UserID)
	}

	if err := w.sink.WriteBalanceSheet(ctx, rows); err != nil {
		return fmt.Errorf("write balance sheet: %w", err)
	}
	return nil
}

// exportExpense loads the expense and its payer, appends the row to the
// sink and records the outcome in storage.
func (w *ExportWorker) exportExpense(ctx context.Context, id int64) error {
	expense, err := w.store.GetExpense(ctx, id)
	if err != nil {
		if markErr := w.store.MarkExportError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark export error", "id", id, "error", markErr)
		}
		return fmt.Errorf("get expense: %w", err)
	}

	payerName := fmt.Sprintf("user-%d", expense.PayerID)
	if payer, err := w.store.GetUser(ctx, expense.PayerID); err == nil {
		payerName = payer.Name
	}

	row := export.ExpenseRow{
		RecordedAt:  expense.CreatedAt,
		Description: expense.Description,
		Amount:      expense.Amount,
		PayerName:   payerName,
		Method:      expense.Method,
	}

	ref, err := w.sink.Append(ctx, row)
	if err != nil {
		if markErr := w.store.MarkExportError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark export error", "id", id, "error", markErr)
		}
		return fmt.Errorf("append row: %w", err)
	}

	if err := w.store.MarkExported(ctx, id); err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}

	slog.InfoContext(ctx, "Exported expense", "id", id, "ref", ref)
	return nil
}

// ProcessPending exports expenses that haven't been exported yet.
// This is a backup mechanism in case AMQP messages are lost.
func (w *ExportWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.store.ListPendingExport(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list pending export: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending exports", "count", len(pending))

	exported := 0
	for _, id := range pending {
		if err := w.exportExpense(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to export pending expense", "id", id, "error", err)
			continue
		}
		exported++
	}

	if exported > 0 {
		if err := w.syncBalanceSheet(ctx); err != nil {
			slog.ErrorContext(ctx, "Failed to rewrite balance sheet", "error", err)
		}
	}
	return nil
}

// StartupCheck drains the pending backlog with a larger batch before the
// worker starts consuming, recovering from downtime or missed messages.
func (w *ExportWorker) StartupCheck(ctx context.Context) error {
	pending, err := w.store.ListPendingExport(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("list pending export for startup check: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending exports found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending exports on startup, processing...",
		"count", len(pending))

	succeeded := 0
	failed := 0
	for _, id := range pending {
		if err := w.exportExpense(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed startup export", "id", id, "error", err)
			failed++
			continue
		}
		succeeded++
	}

	if succeeded > 0 {
		if err := w.syncBalanceSheet(ctx); err != nil {
			slog.ErrorContext(ctx, "Failed to rewrite balance sheet", "error", err)
		}
	}

	slog.InfoContext(ctx, "Startup export check completed",
		"succeeded", succeeded,
		"failed", failed)
	return nil
}

// Run blocks consuming AMQP events and scanning for missed rows until the
// context is cancelled.
func (w *ExportWorker) Run(ctx context.Context, consumer Consumer, scanInterval time.Duration) error {
	if scanInterval <= 0 {
		scanInterval = 5 * time.Minute
	}

	if err := w.StartupCheck(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup export check failed", "error", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return consumer.ConsumeExpenseRecorded(ctx, w.HandleRecordedMessage)
	})

	g.Go(func() error {
		ticker := time.NewTicker(scanInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := w.ProcessPending(ctx); err != nil {
					slog.ErrorContext(ctx, "Pending export scan failed", "error", err)
				}
			}
		}
	})

	return g.Wait()
}
