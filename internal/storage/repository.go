// Package storage provides the SQLite-backed durable store behind the
// ledger: users, expenses and expense splits. Schema changes go through
// embedded golang-migrate migrations.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO

	"xpense/internal/core"
)

type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (and if needed creates) the database at dbPath
// and runs migrations.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateUser inserts a user and populates its ID.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u *core.User) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO users (name, email, mobile, created_at) VALUES (?, ?, ?, ?)",
		u.Name, u.Email, u.Mobile, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("user id: %w", err)
	}
	u.ID = id
	return nil
}

// GetUser returns the user with the given ID, or core.ErrUserNotFound.
func (r *SQLiteRepository) GetUser(ctx context.Context, id int64) (core.User, error) {
	var u core.User
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, email, mobile FROM users WHERE id = ?", id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.Mobile)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, fmt.Errorf("user %d: %w", id, core.ErrUserNotFound)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// ListUsers returns all users ordered by ID.
func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, email, mobile FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []core.User
	for rows.Next() {
		var u core.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Mobile); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// CreateExpense writes the expense row and all of its split rows in one
// transaction. Either everything is committed or nothing is; a failure on
// any split leaves no partial expense behind. The expense's ID and
// CreatedAt are populated on success.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e *core.Expense, splits []core.Split) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	createdAt := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO expenses (amount_cents, description, payer_id, split_method, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.Amount.Cents, e.Description, e.PayerID, string(e.Method), createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	expenseID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("expense id: %w", err)
	}

	for _, s := range splits {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO expense_splits (expense_id, user_id, amount_cents) VALUES (?, ?, ?)",
			expenseID, s.UserID, s.Amount.Cents,
		); err != nil {
			return fmt.Errorf("insert split for user %d: %w", s.UserID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	e.ID = expenseID
	e.CreatedAt = createdAt
	return nil
}

// GetExpense returns one expense by ID, or core.ErrExpenseNotFound.
func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	var (
		e      core.Expense
		cents  int64
		method string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, amount_cents, description, payer_id, split_method, created_at
		 FROM expenses WHERE id = ?`, id,
	).Scan(&e.ID, &cents, &e.Description, &e.PayerID, &method, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("expense %d: %w", id, core.ErrExpenseNotFound)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	e.Amount = core.Money{Cents: cents}
	e.Method = core.SplitMethod(method)
	return e, nil
}

// ListExpensesByUser returns, in insertion order, every expense in whose
// split set the user appears.
func (r *SQLiteRepository) ListExpensesByUser(ctx context.Context, userID int64) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT e.id, e.amount_cents, e.description, e.payer_id, e.split_method, e.created_at
		 FROM expenses e
		 JOIN expense_splits es ON e.id = es.expense_id
		 WHERE es.user_id = ?
		 ORDER BY e.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses for user %d: %w", userID, err)
	}
	defer rows.Close()
	return scanExpenses(rows)
}

// ListAllExpenses returns every expense in insertion order.
func (r *SQLiteRepository) ListAllExpenses(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, amount_cents, description, payer_id, split_method, created_at
		 FROM expenses ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()
	return scanExpenses(rows)
}

func scanExpenses(rows *sql.Rows) ([]core.Expense, error) {
	var expenses []core.Expense
	for rows.Next() {
		var (
			e      core.Expense
			cents  int64
			method string
		)
		if err := rows.Scan(&e.ID, &cents, &e.Description, &e.PayerID, &method, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.Amount = core.Money{Cents: cents}
		e.Method = core.SplitMethod(method)
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return expenses, nil
}

// ListSplitsByExpense returns the split rows of one expense in insertion order.
func (r *SQLiteRepository) ListSplitsByExpense(ctx context.Context, expenseID int64) ([]core.Split, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT expense_id, user_id, amount_cents FROM expense_splits
		 WHERE expense_id = ? ORDER BY id`, expenseID)
	if err != nil {
		return nil, fmt.Errorf("list splits for expense %d: %w", expenseID, err)
	}
	defer rows.Close()
	return scanSplits(rows)
}

// ListAllSplits returns every split row across all expenses.
func (r *SQLiteRepository) ListAllSplits(ctx context.Context) ([]core.Split, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT expense_id, user_id, amount_cents FROM expense_splits ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list splits: %w", err)
	}
	defer rows.Close()
	return scanSplits(rows)
}

func scanSplits(rows *sql.Rows) ([]core.Split, error) {
	var splits []core.Split
	for rows.Next() {
		var (
			s     core.Split
			cents int64
		)
		if err := rows.Scan(&s.ExpenseID, &s.UserID, &cents); err != nil {
			return nil, fmt.Errorf("scan split: %w", err)
		}
		s.Amount = core.Money{Cents: cents}
		splits = append(splits, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate splits: %w", err)
	}
	return splits, nil
}

// ListPendingExport returns IDs of expenses not yet exported, oldest first.
// Expenses flagged with an export error are skipped until retried explicitly.
func (r *SQLiteRepository) ListPendingExport(ctx context.Context, limit int) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id FROM expenses WHERE synced = 0 AND sync_error = 0 ORDER BY id LIMIT ?",
		int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list pending export: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending ids: %w", err)
	}
	return ids, nil
}

// MarkExported marks an expense as successfully exported.
func (r *SQLiteRepository) MarkExported(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE expenses SET synced = 1, sync_error = 0 WHERE id = ?", id); err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	return nil
}

// MarkExportError flags an expense whose export failed.
func (r *SQLiteRepository) MarkExportError(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE expenses SET sync_error = 1 WHERE id = ?", id); err != nil {
		return fmt.Errorf("mark export error: %w", err)
	}
	return nil
}
