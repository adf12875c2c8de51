package core

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// Supported split methods.
const (
	SplitEqual      SplitMethod = "equal"
	SplitExact      SplitMethod = "exact"
	SplitPercentage SplitMethod = "percentage"
)

type (
	// SplitMethod is the strategy used to derive an allocation from a total.
	SplitMethod string

	// User is an identity participating in expenses. Identity is owned by
	// the user directory; the ledger only references IDs.
	User struct {
		ID     int64
		Name   string
		Email  string
		Mobile string
	}

	// Expense is one spending event. Expenses are immutable once recorded:
	// the ledger is append-only and corrections happen via compensating
	// expenses, never updates.
	Expense struct {
		ID          int64
		Amount      Money
		Description string
		PayerID     int64
		Method      SplitMethod
		CreatedAt   time.Time
	}

	// Split is one allocation row of an expense: how much one beneficiary
	// owes for it. The sum of an expense's splits equals its amount.
	Split struct {
		ExpenseID int64
		UserID    int64
		Amount    Money
	}
)

// Valid reports whether m is one of the supported split methods.
func (m SplitMethod) Valid() bool {
	switch m {
	case SplitEqual, SplitExact, SplitPercentage:
		return true
	}
	return false
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return errors.New("empty user name")
	}
	if len(u.Name) > 100 {
		return errors.New("user name too long (max 100 characters)")
	}
	// Email is the users relation's unique key, so it is mandatory.
	if strings.TrimSpace(u.Email) == "" {
		return errors.New("empty user email")
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return fmt.Errorf("invalid user email %q: %w", u.Email, err)
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if e.PayerID <= 0 {
		return ErrUnknownUser
	}
	if !e.Method.Valid() {
		return errors.New("invalid split method")
	}
	return nil
}
