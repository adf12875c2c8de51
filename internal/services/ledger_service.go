// Package services orchestrates the expense ledger: it is the single write
// authority over the store and re-checks every invariant at the write
// boundary, whatever produced the allocation.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"xpense/internal/core"
)

// Store is the narrow persistence interface the ledger consumes.
type Store interface {
	CreateExpense(ctx context.Context, e *core.Expense, splits []core.Split) error
	GetExpense(ctx context.Context, id int64) (core.Expense, error)
	ListExpensesByUser(ctx context.Context, userID int64) ([]core.Expense, error)
	ListAllExpenses(ctx context.Context) ([]core.Expense, error)
	ListAllSplits(ctx context.Context) ([]core.Split, error)
	ListSplitsByExpense(ctx context.Context, expenseID int64) ([]core.Split, error)
}

// Directory resolves user identities. Identity management itself lives with
// an external collaborator; the ledger only needs lookups.
type Directory interface {
	GetUser(ctx context.Context, id int64) (core.User, error)
	ListUsers(ctx context.Context) ([]core.User, error)
}

// EventPublisher announces committed expenses for the export pipeline.
type EventPublisher interface {
	PublishExpenseRecorded(ctx context.Context, id, version int64) error
}

// NewExpense is the input to RecordExpense.
type NewExpense struct {
	Amount      core.Money
	Description string
	PayerID     int64
	Method      core.SplitMethod
	Allocation  *core.Allocation
}

// LedgerService owns the append-only expense history.
type LedgerService struct {
	store     Store
	directory Directory
	publisher EventPublisher // optional
}

func NewLedgerService(store Store, directory Directory, publisher EventPublisher) *LedgerService {
	return &LedgerService{
		store:     store,
		directory: directory,
		publisher: publisher,
	}
}

// RecordExpense validates and persists one expense with its splits as a
// single atomic unit. The conservation invariant is re-checked here even
// though the calculator already enforced it: the ledger never trusts a
// caller-constructed allocation. On failure nothing is persisted.
func (s *LedgerService) RecordExpense(ctx context.Context, in NewExpense) (core.Expense, error) {
	expense := core.Expense{
		Amount:      in.Amount,
		Description: in.Description,
		PayerID:     in.PayerID,
		Method:      in.Method,
	}
	if err := expense.Validate(); err != nil {
		return core.Expense{}, err
	}
	if in.Allocation == nil || in.Allocation.Len() == 0 {
		return core.Expense{}, core.NewValidationError(core.KindAllocation, core.ErrNoParticipants,
			"expense has no splits")
	}
	if err := in.Allocation.CheckConservation(in.Amount); err != nil {
		return core.Expense{}, err
	}

	if _, err := s.directory.GetUser(ctx, in.PayerID); err != nil {
		return core.Expense{}, fmt.Errorf("payer %d: %w", in.PayerID, core.ErrUnknownUser)
	}
	for _, userID := range in.Allocation.Users() {
		if _, err := s.directory.GetUser(ctx, userID); err != nil {
			return core.Expense{}, fmt.Errorf("beneficiary %d: %w", userID, core.ErrUnknownUser)
		}
	}

	// Split rows get the real expense ID inside the store transaction.
	if err := s.store.CreateExpense(ctx, &expense, in.Allocation.Splits(0)); err != nil {
		return core.Expense{}, fmt.Errorf("record expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense recorded",
		"id", expense.ID,
		"amount", expense.Amount.String(),
		"payer_id", expense.PayerID,
		"method", string(expense.Method),
		"participants", in.Allocation.Len())

	// Export is asynchronous and best-effort: the store is the source of
	// truth and the worker's pending scan recovers lost messages.
	if s.publisher != nil {
		if err := s.publisher.PublishExpenseRecorded(ctx, expense.ID, 1); err != nil {
			slog.ErrorContext(ctx, "Failed to publish expense recorded event",
				"id", expense.ID, "error", err)
		}
	}

	return expense, nil
}

// ExpensesForUser returns every expense in whose split set the user appears,
// in insertion order.
func (s *LedgerService) ExpensesForUser(ctx context.Context, userID int64) ([]core.Expense, error) {
	if _, err := s.directory.GetUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("user %d: %w", userID, core.ErrUnknownUser)
	}
	return s.store.ListExpensesByUser(ctx, userID)
}

// AllExpenses returns the full expense history in insertion order.
func (s *LedgerService) AllExpenses(ctx context.Context) ([]core.Expense, error) {
	return s.store.ListAllExpenses(ctx)
}

// ExpenseWithSplits returns one expense together with its allocation rows.
func (s *LedgerService) ExpenseWithSplits(ctx context.Context, id int64) (core.Expense, []core.Split, error) {
	expense, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, nil, err
	}
	splits, err := s.store.ListSplitsByExpense(ctx, id)
	if err != nil {
		return core.Expense{}, nil, err
	}
	return expense, splits, nil
}

// BalanceSheet recomputes the settlement view from the full ledger history.
// It is a projection: nothing is written, and the result is re-derivable at
// any time from ledger contents alone.
func (s *LedgerService) BalanceSheet(ctx context.Context) ([]core.BalanceRow, error) {
	users, err := s.directory.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	expenses, err := s.store.ListAllExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	splits, err := s.store.ListAllSplits(ctx)
	if err != nil {
		return nil, fmt.Errorf("list splits: %w", err)
	}

	byExpense := make(map[int64][]core.Split)
	for _, sp := range splits {
		byExpense[sp.ExpenseID] = append(byExpense[sp.ExpenseID], sp)
	}

	rows, dangling := core.BuildBalanceSheet(users, expenses, byExpense)
	for _, d := range dangling {
		// Should be unreachable given the ledger's referential checks.
		slog.WarnContext(ctx, "Dangling user reference in ledger",
			"expense_id", d.ExpenseID, "user_id", d.UserID)
	}
	return rows, nil
}
