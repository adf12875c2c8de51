package core

// Allocation maps participant user IDs to the amount each owes for one
// expense. It preserves insertion order so that downstream consumers (the
// ledger, exporters) see a deterministic sequence, and it is validated at
// construction: duplicates and negative shares never make it into a value.
type Allocation struct {
	order  []int64
	shares map[int64]Money
}

// NewAllocation builds an empty allocation sized for n participants.
func NewAllocation(n int) *Allocation {
	return &Allocation{
		order:  make([]int64, 0, n),
		shares: make(map[int64]Money, n),
	}
}

// Set records the share owed by userID. It rejects duplicate users and
// negative amounts; zero shares are allowed (a participant may owe nothing
// under exact or percentage splits).
func (a *Allocation) Set(userID int64, share Money) error {
	if _, dup := a.shares[userID]; dup {
		return NewValidationError(KindParticipants, ErrDuplicateUser,
			"user %d appears more than once", userID)
	}
	if share.Cents < 0 {
		return NewValidationError(KindAllocation, ErrNegativeShare,
			"share for user %d is negative (%s)", userID, share)
	}
	a.order = append(a.order, userID)
	a.shares[userID] = share
	return nil
}

// Share returns the amount owed by userID.
func (a *Allocation) Share(userID int64) (Money, bool) {
	m, ok := a.shares[userID]
	return m, ok
}

// Users returns the participant IDs in insertion order.
func (a *Allocation) Users() []int64 {
	out := make([]int64, len(a.order))
	copy(out, a.order)
	return out
}

// Len returns the number of participants.
func (a *Allocation) Len() int {
	return len(a.order)
}

// Total sums all shares.
func (a *Allocation) Total() Money {
	var sum int64
	for _, m := range a.shares {
		sum += m.Cents
	}
	return Money{Cents: sum}
}

// CheckConservation verifies that the shares sum exactly to amount. The
// returned error wraps ErrConservation and names the delta in cents.
func (a *Allocation) CheckConservation(amount Money) error {
	total := a.Total()
	if total.Cents != amount.Cents {
		return NewValidationError(KindAllocation, ErrConservation,
			"splits sum to %s, expense amount is %s (delta %s)",
			total, amount, total.Sub(amount))
	}
	return nil
}

// Splits materializes the allocation as split rows for expenseID, in
// insertion order.
func (a *Allocation) Splits(expenseID int64) []Split {
	out := make([]Split, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, Split{ExpenseID: expenseID, UserID: id, Amount: a.shares[id]})
	}
	return out
}
