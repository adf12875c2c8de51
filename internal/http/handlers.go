package http

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"xpense/internal/core"
	"xpense/internal/services"
	"xpense/internal/split"
)

type userPayload struct {
	ID     int64  `json:"id,omitempty"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Mobile string `json:"mobile,omitempty"`
}

type createExpenseRequest struct {
	Amount      string `json:"amount"`
	Description string `json:"description"`
	PayerID     int64  `json:"payer_id"`
	Method      string `json:"method"`
	// Participants lists beneficiary user IDs in the order shares should
	// be assigned. The last one absorbs any rounding remainder.
	Participants []int64 `json:"participants"`
	// Amounts maps user ID to a decimal share, required for method "exact".
	Amounts map[string]string `json:"amounts,omitempty"`
	// Percents maps user ID to a percentage, required for method "percentage".
	Percents map[string]float64 `json:"percents,omitempty"`
}

type splitPayload struct {
	UserID int64  `json:"user_id"`
	Amount string `json:"amount"`
}

type expensePayload struct {
	ID          int64          `json:"id"`
	Amount      string         `json:"amount"`
	Description string         `json:"description"`
	PayerID     int64          `json:"payer_id"`
	Method      string         `json:"method"`
	CreatedAt   time.Time      `json:"created_at"`
	Splits      []splitPayload `json:"splits,omitempty"`
}

type balanceRowPayload struct {
	UserID  int64  `json:"user_id"`
	Name    string `json:"name"`
	Paid    string `json:"paid"`
	Owed    string `json:"owed"`
	Balance string `json:"balance"`
}

type errorPayload struct {
	Error string `json:"error"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req userPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Error: "malformed request body"})
		return
	}

	user := core.User{Name: req.Name, Email: req.Email, Mobile: req.Mobile}
	if err := user.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Error: err.Error()})
		return
	}

	if err := s.directory.CreateUser(r.Context(), &user); err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserPayload(user))
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.directory.ListUsers(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]userPayload, 0, len(users))
	for _, u := range users {
		out = append(out, toUserPayload(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Error: "malformed request body"})
		return
	}

	amount, err := core.ParseMoney(req.Amount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Error: fmt.Sprintf("invalid amount %q: %v", req.Amount, err)})
		return
	}
	method := core.SplitMethod(req.Method)

	expense := core.Expense{
		Amount:      amount,
		Description: req.Description,
		PayerID:     req.PayerID,
		Method:      method,
	}
	if err := expense.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Error: err.Error()})
		return
	}

	inputs, err := parseSplitInputs(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Error: err.Error()})
		return
	}

	allocation, err := split.Compute(amount, method, req.Participants, inputs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	recorded, err := s.ledger.RecordExpense(r.Context(), services.NewExpense{
		Amount:      amount,
		Description: req.Description,
		PayerID:     req.PayerID,
		Method:      method,
		Allocation:  allocation,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.invalidateReadCaches()

	out := toExpensePayload(recorded)
	for _, sp := range allocation.Splits(recorded.ID) {
		out.Splits = append(out.Splits, splitPayload{UserID: sp.UserID, Amount: sp.Amount.String()})
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cacheKey := "all"
	var userID int64
	if v := r.URL.Query().Get("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorPayload{Error: fmt.Sprintf("invalid user_id %q", v)})
			return
		}
		userID = id
		cacheKey = "user:" + v
	}

	expenses, ok := s.expensesCache.Get(cacheKey)
	if !ok {
		var err error
		if userID != 0 {
			expenses, err = s.ledger.ExpensesForUser(ctx, userID)
		} else {
			expenses, err = s.ledger.AllExpenses(ctx)
		}
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.expensesCache.Set(cacheKey, expenses)
	}

	out := make([]expensePayload, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpensePayload(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Error: "invalid expense id"})
		return
	}

	expense, splits, err := s.ledger.ExpenseWithSplits(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := toExpensePayload(expense)
	for _, sp := range splits {
		out.Splits = append(out.Splits, splitPayload{UserID: sp.UserID, Amount: sp.Amount.String()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBalanceSheet(w http.ResponseWriter, r *http.Request) {
	rows, err := s.balanceRows(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]balanceRowPayload, 0, len(rows))
	for _, row := range rows {
		out = append(out, balanceRowPayload{
			UserID:  row.User.ID,
			Name:    row.User.Name,
			Paid:    row.Paid.String(),
			Owed:    row.Owed.String(),
			Balance: row.Balance.String(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBalanceSheetCSV(w http.ResponseWriter, r *http.Request) {
	rows, err := s.balanceRows(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="balance-sheet.csv"`)

	cw := csv.NewWriter(w)
	if err := cw.Write(core.BalanceSheetHeader); err != nil {
		slog.ErrorContext(r.Context(), "Failed writing CSV header", "error", err)
		return
	}
	for _, row := range rows {
		if err := cw.Write(row.TabularRow()); err != nil {
			slog.ErrorContext(r.Context(), "Failed writing CSV row", "error", err)
			return
		}
	}
	cw.Flush()
}

func (s *Server) balanceRows(r *http.Request) ([]core.BalanceRow, error) {
	if rows, ok := s.balanceCache.Get("balance"); ok {
		return rows, nil
	}
	rows, err := s.ledger.BalanceSheet(r.Context())
	if err != nil {
		return nil, err
	}
	s.balanceCache.Set("balance", rows)
	return rows, nil
}

// parseSplitInputs converts the JSON maps (string keys) into typed split
// inputs keyed by user ID.
func parseSplitInputs(req createExpenseRequest) (split.Inputs, error) {
	var in split.Inputs

	if len(req.Amounts) > 0 {
		in.Amounts = make(map[int64]core.Money, len(req.Amounts))
		for k, v := range req.Amounts {
			id, err := strconv.ParseInt(k, 10, 64)
			if err != nil {
				return split.Inputs{}, fmt.Errorf("invalid user id %q in amounts", k)
			}
			m, err := core.ParseMoney(v)
			if err != nil {
				return split.Inputs{}, fmt.Errorf("invalid amount %q for user %s: %w", v, k, err)
			}
			in.Amounts[id] = m
		}
	}

	if len(req.Percents) > 0 {
		in.Percents = make(map[int64]float64, len(req.Percents))
		for k, v := range req.Percents {
			id, err := strconv.ParseInt(k, 10, 64)
			if err != nil {
				return split.Inputs{}, fmt.Errorf("invalid user id %q in percents", k)
			}
			in.Percents[id] = v
		}
	}

	return in, nil
}

func toUserPayload(u core.User) userPayload {
	return userPayload{ID: u.ID, Name: u.Name, Email: u.Email, Mobile: u.Mobile}
}

func toExpensePayload(e core.Expense) expensePayload {
	return expensePayload{
		ID:          e.ID,
		Amount:      e.Amount.String(),
		Description: e.Description,
		PayerID:     e.PayerID,
		Method:      string(e.Method),
		CreatedAt:   e.CreatedAt,
	}
}

// writeError maps domain errors to HTTP status codes. Conservation failures
// get 422: the request was well-formed but the ledger refused the write.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, core.ErrConservation):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrUnknownUser),
		errors.Is(err, core.ErrUserNotFound),
		errors.Is(err, core.ErrExpenseNotFound):
		status = http.StatusNotFound
	default:
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			status = http.StatusBadRequest
		} else {
			status = http.StatusInternalServerError
		}
	}

	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, status, errorPayload{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorPayload{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed encoding response", "error", err)
	}
}
