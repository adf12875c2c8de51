package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"xpense/internal/amqp"
	"xpense/internal/core"
	"xpense/internal/export"
	"xpense/internal/export/memory"
	"xpense/internal/storage"
)

type failingSink struct{}

func (failingSink) Append(context.Context, export.ExpenseRow) (string, error) {
	return "", errors.New("sink unavailable")
}

func (failingSink) WriteBalanceSheet(context.Context, []core.BalanceRow) error {
	return errors.New("sink unavailable")
}

func newTestStore(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "worker.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func recordExpense(t *testing.T, repo *storage.SQLiteRepository) int64 {
	t.Helper()
	ctx := context.Background()

	payer := core.User{Name: "alice", Email: "alice@example.com"}
	if err := repo.CreateUser(ctx, &payer); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	other := core.User{Name: "bob", Email: "bob@example.com"}
	if err := repo.CreateUser(ctx, &other); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	expense := core.Expense{
		Amount:      core.Money{Cents: 5000},
		Description: "dinner",
		PayerID:     payer.ID,
		Method:      core.SplitEqual,
	}
	splits := []core.Split{
		{UserID: payer.ID, Amount: core.Money{Cents: 2500}},
		{UserID: other.ID, Amount: core.Money{Cents: 2500}},
	}
	if err := repo.CreateExpense(ctx, &expense, splits); err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}
	return expense.ID
}

func TestHandleRecordedMessage(t *testing.T) {
	repo := newTestStore(t)
	sink := memory.New()
	w := NewExportWorker(repo, sink, 10)
	ctx := context.Background()

	id := recordExpense(t, repo)

	msg := amqp.NewExpenseRecordedMessage(id, 1)
	if err := w.HandleRecordedMessage(ctx, msg); err != nil {
		t.Fatalf("HandleRecordedMessage: %v", err)
	}

	rows := sink.Expenses()
	if len(rows) != 1 {
		t.Fatalf("expected 1 exported row, got %d", len(rows))
	}
	if rows[0].PayerName != "alice" {
		t.Fatalf("expected payer name alice, got %q", rows[0].PayerName)
	}
	if rows[0].Amount.Cents != 5000 {
		t.Fatalf("expected amount 5000, got %d", rows[0].Amount.Cents)
	}

	pending, err := repo.ListPendingExport(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingExport: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending exports after handling, got %d", len(pending))
	}
}

func TestExportRewritesBalanceSheet(t *testing.T) {
	repo := newTestStore(t)
	sink := memory.New()
	w := NewExportWorker(repo, sink, 10)
	ctx := context.Background()

	id := recordExpense(t, repo)

	msg := amqp.NewExpenseRecordedMessage(id, 1)
	if err := w.HandleRecordedMessage(ctx, msg); err != nil {
		t.Fatalf("HandleRecordedMessage: %v", err)
	}

	rows := sink.BalanceSheet()
	if len(rows) != 2 {
		t.Fatalf("expected 2 balance rows after export, got %d", len(rows))
	}
	// alice paid 50.00 and owes her 25.00 share; bob owes the other half.
	if rows[0].User.Name != "alice" || rows[0].Balance.Cents != 2500 {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}
	if rows[1].User.Name != "bob" || rows[1].Balance.Cents != -2500 {
		t.Fatalf("unexpected second row: %+v", rows[1])
	}

	var total int64
	for _, r := range rows {
		total += r.Balance.Cents
	}
	if total != 0 {
		t.Fatalf("balances must net to zero, got %d", total)
	}
}

func TestProcessPendingBacklog(t *testing.T) {
	repo := newTestStore(t)
	sink := memory.New()
	w := NewExportWorker(repo, sink, 10)
	ctx := context.Background()

	id := recordExpense(t, repo)

	if err := w.ProcessPending(ctx); err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}
	if len(sink.Expenses()) != 1 {
		t.Fatalf("expected 1 exported row, got %d", len(sink.Expenses()))
	}
	if len(sink.BalanceSheet()) != 2 {
		t.Fatalf("expected the pending scan to rewrite the balance sheet, got %d rows", len(sink.BalanceSheet()))
	}

	// A second scan has nothing left to do.
	if err := w.ProcessPending(ctx); err != nil {
		t.Fatalf("ProcessPending second pass: %v", err)
	}
	if len(sink.Expenses()) != 1 {
		t.Fatalf("expected expense %d to export exactly once, got %d rows", id, len(sink.Expenses()))
	}
}

func TestExportFailureIsRecorded(t *testing.T) {
	repo := newTestStore(t)
	w := NewExportWorker(repo, failingSink{}, 10)
	ctx := context.Background()

	id := recordExpense(t, repo)

	msg := amqp.NewExpenseRecordedMessage(id, 1)
	if err := w.HandleRecordedMessage(ctx, msg); err == nil {
		t.Fatal("expected an error from a failing sink")
	}

	// The row is flagged so the periodic scan doesn't retry it forever.
	pending, err := repo.ListPendingExport(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingExport: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected errored expense to leave the pending set, got %d", len(pending))
	}
}
