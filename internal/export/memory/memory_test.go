package memory

import (
	"context"
	"testing"
	"time"

	"xpense/internal/core"
	"xpense/internal/export"
)

func TestAppendAndBalanceSheet(t *testing.T) {
	s := New()
	ctx := context.Background()

	ref, err := s.Append(ctx, export.ExpenseRow{
		RecordedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Description: "groceries",
		Amount:      core.Money{Cents: 4250},
		PayerName:   "alice",
		Method:      core.SplitEqual,
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if ref == "" {
		t.Fatal("expected a non-empty row ref")
	}
	if got := len(s.Expenses()); got != 1 {
		t.Fatalf("expected 1 exported expense, got %d", got)
	}

	rows := []core.BalanceRow{
		{User: core.User{ID: 1, Name: "alice"}, Paid: core.Money{Cents: 4250}, Owed: core.Money{Cents: 2125}, Balance: core.Money{Cents: 2125}},
		{User: core.User{ID: 2, Name: "bob"}, Owed: core.Money{Cents: 2125}, Balance: core.Money{Cents: -2125}},
	}
	if err := s.WriteBalanceSheet(ctx, rows); err != nil {
		t.Fatalf("WriteBalanceSheet: %v", err)
	}
	got := s.BalanceSheet()
	if len(got) != 2 {
		t.Fatalf("expected 2 balance rows, got %d", len(got))
	}
	if got[1].Balance.Cents != -2125 {
		t.Fatalf("expected bob balance -2125, got %d", got[1].Balance.Cents)
	}
}
