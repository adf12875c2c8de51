package core

// BalanceRow is one user's net position across all recorded expenses:
// paid as payer, owed as beneficiary, balance = paid - owed. Rows are a
// projection over ledger state and are never stored.
type BalanceRow struct {
	User    User
	Paid    Money
	Owed    Money
	Balance Money
}

// DanglingRef flags a ledger row referencing a user ID that the directory
// does not know. The ledger's referential checks make this unreachable in
// practice; the builder surfaces it instead of dropping money silently.
type DanglingRef struct {
	ExpenseID int64
	UserID    int64
}

// BuildBalanceSheet aggregates expenses and their splits into one BalanceRow
// per user, in the order users are given. Every known user appears, including
// ones with no activity. The sum of all balances is zero whenever every
// contribution resolves to a known user: each paid amount is owed by the
// expense's own split set.
func BuildBalanceSheet(users []User, expenses []Expense, splitsByExpense map[int64][]Split) ([]BalanceRow, []DanglingRef) {
	paid := make(map[int64]int64, len(users))
	owed := make(map[int64]int64, len(users))
	known := make(map[int64]bool, len(users))
	for _, u := range users {
		known[u.ID] = true
	}

	var dangling []DanglingRef
	for _, e := range expenses {
		if !known[e.PayerID] {
			dangling = append(dangling, DanglingRef{ExpenseID: e.ID, UserID: e.PayerID})
		} else {
			paid[e.PayerID] += e.Amount.Cents
		}
		for _, s := range splitsByExpense[e.ID] {
			if !known[s.UserID] {
				dangling = append(dangling, DanglingRef{ExpenseID: e.ID, UserID: s.UserID})
				continue
			}
			owed[s.UserID] += s.Amount.Cents
		}
	}

	rows := make([]BalanceRow, len(users))
	for i, u := range users {
		p := Money{Cents: paid[u.ID]}
		o := Money{Cents: owed[u.ID]}
		rows[i] = BalanceRow{
			User:    u,
			Paid:    p,
			Owed:    o,
			Balance: p.Sub(o),
		}
	}
	return rows, dangling
}

// BalanceSheetHeader is the column order of the tabular row shape consumed
// by export collaborators.
var BalanceSheetHeader = []string{"name", "paid", "owed", "balance"}

// TabularRow renders the row in the shape export collaborators consume:
// name, paid, owed, balance, amounts formatted with two decimals.
func (r BalanceRow) TabularRow() []string {
	return []string{r.User.Name, r.Paid.String(), r.Owed.String(), r.Balance.String()}
}
