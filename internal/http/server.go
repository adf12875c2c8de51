// Package http exposes the ledger as a JSON API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"xpense/internal/cache"
	"xpense/internal/core"
	applog "xpense/internal/log"
	"xpense/internal/services"
)

// Ledger is the application surface the API serves.
type Ledger interface {
	RecordExpense(ctx context.Context, in services.NewExpense) (core.Expense, error)
	ExpensesForUser(ctx context.Context, userID int64) ([]core.Expense, error)
	AllExpenses(ctx context.Context) ([]core.Expense, error)
	ExpenseWithSplits(ctx context.Context, id int64) (core.Expense, []core.Split, error)
	BalanceSheet(ctx context.Context) ([]core.BalanceRow, error)
}

// Directory manages the user roster.
type Directory interface {
	CreateUser(ctx context.Context, u *core.User) error
	GetUser(ctx context.Context, id int64) (core.User, error)
	ListUsers(ctx context.Context) ([]core.User, error)
}

type Server struct {
	http.Server
	ledger    Ledger
	directory Directory

	// Read projections are cached with a short TTL and purged whenever a
	// write lands, so a balance sheet is never served stale after a record.
	balanceCache  *cache.LRU[[]core.BalanceRow]
	expensesCache *cache.LRU[[]core.Expense]

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// NewServer configures routes and caches, returning a ready-to-run server.
func NewServer(addr string, ledger Ledger, directory Directory) *Server {
	mux := http.NewServeMux()

	s := &Server{
		ledger:           ledger,
		directory:        directory,
		balanceCache:     cache.NewLRU[[]core.BalanceRow](1, 5*time.Minute),
		expensesCache:    cache.NewLRU[[]core.Expense](200, 5*time.Minute),
		stopCacheCleanup: make(chan struct{}),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /api/users", s.handleCreateUser)
	mux.HandleFunc("GET /api/users", s.handleListUsers)

	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("GET /api/expenses/{id}", s.handleGetExpense)

	mux.HandleFunc("GET /api/balance-sheet", s.handleBalanceSheet)
	mux.HandleFunc("GET /api/balance-sheet.csv", s.handleBalanceSheetCSV)

	logger := applog.New("http")
	s.Server = http.Server{
		Addr:              addr,
		Handler:           applog.Middleware(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.startCacheCleanup()

	return s
}

func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cleaned := s.balanceCache.CleanExpired() + s.expensesCache.CleanExpired()
			if cleaned > 0 {
				slog.Debug("Cache cleanup completed", "entries_removed", cleaned)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// invalidateReadCaches drops cached projections after a write.
func (s *Server) invalidateReadCaches() {
	s.balanceCache.Purge()
	s.expensesCache.Purge()
}

// Shutdown stops the cleanup goroutine and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		close(s.stopCacheCleanup)
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
