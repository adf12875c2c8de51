// Package split turns a total amount plus a split strategy into a validated
// per-user allocation. It is pure: no I/O, no partial state on failure.
package split

import (
	"math"

	"xpense/internal/core"
)

// Inputs carries the method-specific data for Compute. Equal splits need
// neither field; exact splits read Amounts, percentage splits read Percents.
type Inputs struct {
	Amounts  map[int64]core.Money
	Percents map[int64]float64
}

// percentTolerance is how far the percentage sum may drift from 100.
const percentTolerance = 0.01

// Compute derives the allocation for one expense. The returned allocation
// always sums exactly to amount in cents: whenever division cannot terminate
// in currency units, the last participant absorbs the rounding remainder.
func Compute(amount core.Money, method core.SplitMethod, participants []int64, in Inputs) (*core.Allocation, error) {
	if amount.Cents <= 0 {
		return nil, core.NewValidationError(core.KindAmount, core.ErrInvalidAmount,
			"amount must be positive, got %s", amount)
	}
	if len(participants) == 0 {
		return nil, core.NewValidationError(core.KindParticipants, core.ErrNoParticipants,
			"at least one participant required")
	}
	seen := make(map[int64]bool, len(participants))
	for _, id := range participants {
		if seen[id] {
			return nil, core.NewValidationError(core.KindParticipants, core.ErrDuplicateUser,
				"user %d listed twice", id)
		}
		seen[id] = true
	}

	switch method {
	case core.SplitEqual:
		return computeEqual(amount, participants)
	case core.SplitExact:
		return computeExact(amount, participants, in.Amounts)
	case core.SplitPercentage:
		return computePercentage(amount, participants, in.Percents)
	default:
		return nil, core.NewValidationError(core.KindMethod, nil,
			"unsupported split method %q", method)
	}
}

// computeEqual divides the amount evenly; the last participant takes the
// base share plus whatever remainder integer division left over, so the
// shares reconstruct the total exactly.
func computeEqual(amount core.Money, participants []int64) (*core.Allocation, error) {
	n := int64(len(participants))
	base := amount.Cents / n

	alloc := core.NewAllocation(len(participants))
	assigned := int64(0)
	for i, id := range participants {
		share := base
		if i == len(participants)-1 {
			share = amount.Cents - assigned
		}
		if err := alloc.Set(id, core.Money{Cents: share}); err != nil {
			return nil, err
		}
		assigned += share
	}
	return alloc, nil
}

// computeExact requires an explicit amount for every participant; nothing is
// inferred for a missing one. The amounts must sum to the expense total.
func computeExact(amount core.Money, participants []int64, amounts map[int64]core.Money) (*core.Allocation, error) {
	alloc := core.NewAllocation(len(participants))
	var sum int64
	for _, id := range participants {
		share, ok := amounts[id]
		if !ok {
			return nil, core.NewValidationError(core.KindAllocation, nil,
				"no amount given for user %d", id)
		}
		if err := alloc.Set(id, share); err != nil {
			return nil, err
		}
		sum += share.Cents
	}
	for id := range amounts {
		if _, ok := alloc.Share(id); !ok {
			return nil, core.NewValidationError(core.KindParticipants, core.ErrUnknownUser,
				"amount given for user %d who is not a participant", id)
		}
	}
	if sum != amount.Cents {
		delta := core.Money{Cents: sum - amount.Cents}
		return nil, core.NewValidationError(core.KindAllocation, core.ErrAllocationMismatch,
			"amounts sum to %s, expense amount is %s (delta %s)",
			core.Money{Cents: sum}, amount, delta)
	}
	return alloc, nil
}

// computePercentage converts per-user percentages to cent shares. Each share
// rounds half-up to currency precision and the last participant absorbs the
// remainder, the same tie-break as equal splits.
func computePercentage(amount core.Money, participants []int64, percents map[int64]float64) (*core.Allocation, error) {
	var pctSum float64
	for _, id := range participants {
		pct, ok := percents[id]
		if !ok {
			return nil, core.NewValidationError(core.KindPercentage, nil,
				"no percentage given for user %d", id)
		}
		if pct < 0 {
			return nil, core.NewValidationError(core.KindPercentage, core.ErrNegativeShare,
				"percentage for user %d is negative (%.2f)", id, pct)
		}
		pctSum += pct
	}
	for id := range percents {
		found := false
		for _, p := range participants {
			if p == id {
				found = true
				break
			}
		}
		if !found {
			return nil, core.NewValidationError(core.KindParticipants, core.ErrUnknownUser,
				"percentage given for user %d who is not a participant", id)
		}
	}
	if math.Abs(pctSum-100.0) > percentTolerance {
		return nil, core.NewValidationError(core.KindPercentage, core.ErrAllocationMismatch,
			"percentages sum to %.2f, must be 100", pctSum)
	}

	alloc := core.NewAllocation(len(participants))
	assigned := int64(0)
	for i, id := range participants {
		var share int64
		if i == len(participants)-1 {
			share = amount.Cents - assigned
			// Rounding the other shares can overshoot a tiny total, leaving
			// a negative remainder. Name the conflict, not the participant.
			if share < 0 {
				return nil, core.NewValidationError(core.KindPercentage, core.ErrNegativeShare,
					"rounded shares overshoot the total by %s: %s cannot be split by these percentages",
					core.Money{Cents: -share}, amount)
			}
		} else {
			share = int64(math.Round(float64(amount.Cents) * percents[id] / 100.0))
		}
		if err := alloc.Set(id, core.Money{Cents: share}); err != nil {
			return nil, err
		}
		assigned += share
	}
	return alloc, nil
}
