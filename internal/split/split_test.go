package split

import (
	"errors"
	"strings"
	"testing"

	"xpense/internal/core"
)

func money(cents int64) core.Money { return core.Money{Cents: cents} }

func TestComputeEqual(t *testing.T) {
	tests := []struct {
		name         string
		amountCents  int64
		participants []int64
		wantShares   map[int64]int64
	}{
		{
			name:         "divides evenly",
			amountCents:  9000,
			participants: []int64{1, 2, 3},
			wantShares:   map[int64]int64{1: 3000, 2: 3000, 3: 3000},
		},
		{
			name:         "last participant absorbs remainder",
			amountCents:  10000,
			participants: []int64{1, 2, 3},
			wantShares:   map[int64]int64{1: 3333, 2: 3333, 3: 3334},
		},
		{
			name:         "single participant",
			amountCents:  777,
			participants: []int64{5},
			wantShares:   map[int64]int64{5: 777},
		},
		{
			name:         "amount smaller than participant count",
			amountCents:  2,
			participants: []int64{1, 2, 3},
			wantShares:   map[int64]int64{1: 0, 2: 0, 3: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alloc, err := Compute(money(tt.amountCents), core.SplitEqual, tt.participants, Inputs{})
			if err != nil {
				t.Fatalf("Compute: %v", err)
			}
			if alloc.Total().Cents != tt.amountCents {
				t.Errorf("total = %d, want %d", alloc.Total().Cents, tt.amountCents)
			}
			for id, want := range tt.wantShares {
				got, ok := alloc.Share(id)
				if !ok || got.Cents != want {
					t.Errorf("share[%d] = %d (ok=%v), want %d", id, got.Cents, ok, want)
				}
			}
		})
	}
}

func TestComputeExact(t *testing.T) {
	participants := []int64{1, 2, 3}

	t.Run("valid explicit amounts", func(t *testing.T) {
		alloc, err := Compute(money(10000), core.SplitExact, participants, Inputs{
			Amounts: map[int64]core.Money{1: money(5000), 2: money(3000), 3: money(2000)},
		})
		if err != nil {
			t.Fatalf("Compute: %v", err)
		}
		if alloc.Total().Cents != 10000 {
			t.Errorf("total = %d, want 10000", alloc.Total().Cents)
		}
	})

	t.Run("mismatched sum fails", func(t *testing.T) {
		// 99.99 against an amount of 100.00: one cent off is a rejection.
		_, err := Compute(money(10000), core.SplitExact, participants, Inputs{
			Amounts: map[int64]core.Money{1: money(5000), 2: money(3000), 3: money(1999)},
		})
		if !errors.Is(err, core.ErrAllocationMismatch) {
			t.Fatalf("expected ErrAllocationMismatch, got %v", err)
		}
	})

	t.Run("missing participant amount fails", func(t *testing.T) {
		_, err := Compute(money(10000), core.SplitExact, participants, Inputs{
			Amounts: map[int64]core.Money{1: money(5000), 2: money(5000)},
		})
		var verr *core.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("amount for non-participant fails", func(t *testing.T) {
		_, err := Compute(money(100), core.SplitExact, []int64{1}, Inputs{
			Amounts: map[int64]core.Money{1: money(100), 9: money(0)},
		})
		if !errors.Is(err, core.ErrUnknownUser) {
			t.Fatalf("expected ErrUnknownUser, got %v", err)
		}
	})

	t.Run("negative amount fails", func(t *testing.T) {
		_, err := Compute(money(100), core.SplitExact, []int64{1, 2}, Inputs{
			Amounts: map[int64]core.Money{1: money(200), 2: money(-100)},
		})
		if !errors.Is(err, core.ErrNegativeShare) {
			t.Fatalf("expected ErrNegativeShare, got %v", err)
		}
	})
}

func TestComputePercentage(t *testing.T) {
	t.Run("60/40 on 50.00", func(t *testing.T) {
		alloc, err := Compute(money(5000), core.SplitPercentage, []int64{1, 2}, Inputs{
			Percents: map[int64]float64{1: 60, 2: 40},
		})
		if err != nil {
			t.Fatalf("Compute: %v", err)
		}
		if s, _ := alloc.Share(1); s.Cents != 3000 {
			t.Errorf("share[1] = %d, want 3000", s.Cents)
		}
		if s, _ := alloc.Share(2); s.Cents != 2000 {
			t.Errorf("share[2] = %d, want 2000", s.Cents)
		}
	})

	t.Run("thirds reconstruct the total exactly", func(t *testing.T) {
		alloc, err := Compute(money(10000), core.SplitPercentage, []int64{1, 2, 3}, Inputs{
			Percents: map[int64]float64{1: 33.33, 2: 33.33, 3: 33.34},
		})
		if err != nil {
			t.Fatalf("Compute: %v", err)
		}
		if alloc.Total().Cents != 10000 {
			t.Errorf("total = %d, want 10000", alloc.Total().Cents)
		}
	})

	t.Run("sum over 100 fails", func(t *testing.T) {
		_, err := Compute(money(5000), core.SplitPercentage, []int64{1, 2}, Inputs{
			Percents: map[int64]float64{1: 60, 2: 40.1},
		})
		if !errors.Is(err, core.ErrAllocationMismatch) {
			t.Fatalf("expected ErrAllocationMismatch, got %v", err)
		}
	})

	t.Run("missing percentage fails", func(t *testing.T) {
		_, err := Compute(money(5000), core.SplitPercentage, []int64{1, 2}, Inputs{
			Percents: map[int64]float64{1: 100},
		})
		var verr *core.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("rounding overshoot on a tiny amount fails", func(t *testing.T) {
		// One cent at 50/50/0: both rounded shares get the cent, so the
		// absorbed remainder would be negative.
		_, err := Compute(money(1), core.SplitPercentage, []int64{1, 2, 3}, Inputs{
			Percents: map[int64]float64{1: 50, 2: 50, 3: 0},
		})
		if !errors.Is(err, core.ErrNegativeShare) {
			t.Fatalf("expected ErrNegativeShare, got %v", err)
		}
		var verr *core.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if verr.Kind != core.KindPercentage {
			t.Fatalf("expected percentage kind, got %s", verr.Kind)
		}
		if !strings.Contains(verr.Detail, "overshoot") {
			t.Fatalf("expected the detail to name the rounding conflict, got %q", verr.Detail)
		}
	})
}

func TestComputeGeneralValidation(t *testing.T) {
	t.Run("zero amount", func(t *testing.T) {
		_, err := Compute(money(0), core.SplitEqual, []int64{1}, Inputs{})
		if !errors.Is(err, core.ErrInvalidAmount) {
			t.Fatalf("expected ErrInvalidAmount, got %v", err)
		}
	})
	t.Run("no participants", func(t *testing.T) {
		_, err := Compute(money(100), core.SplitEqual, nil, Inputs{})
		if !errors.Is(err, core.ErrNoParticipants) {
			t.Fatalf("expected ErrNoParticipants, got %v", err)
		}
	})
	t.Run("duplicate participant", func(t *testing.T) {
		_, err := Compute(money(100), core.SplitEqual, []int64{1, 1}, Inputs{})
		if !errors.Is(err, core.ErrDuplicateUser) {
			t.Fatalf("expected ErrDuplicateUser, got %v", err)
		}
	})
	t.Run("unknown method", func(t *testing.T) {
		_, err := Compute(money(100), core.SplitMethod("weighted"), []int64{1}, Inputs{})
		var verr *core.ValidationError
		if !errors.As(err, &verr) || verr.Kind != core.KindMethod {
			t.Fatalf("expected method ValidationError, got %v", err)
		}
	})
}

// Conservation holds for every method on awkward amounts and group sizes.
func TestComputeConservationProperty(t *testing.T) {
	amounts := []int64{1, 2, 99, 100, 9999, 10000, 123457}
	groups := [][]int64{{1}, {1, 2}, {1, 2, 3}, {1, 2, 3, 4, 5, 6, 7}}

	for _, cents := range amounts {
		for _, participants := range groups {
			alloc, err := Compute(money(cents), core.SplitEqual, participants, Inputs{})
			if err != nil {
				t.Fatalf("equal %d/%d: %v", cents, len(participants), err)
			}
			if alloc.Total().Cents != cents {
				t.Errorf("equal %d across %d users: total %d", cents, len(participants), alloc.Total().Cents)
			}
		}
	}
}
