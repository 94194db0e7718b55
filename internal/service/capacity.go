package service

import (
	"context"
	"fmt"
	"slices"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// counts reports whether a ticket in status holds capacity.  Only paid
// tickets do; a scan moves a ticket out of comprada and frees its slot.
func counts(status string) bool { return status == model.TicketPurchased }

// claim is the capacity a ticket holds on one offering.
type claim struct {
	offering uint64
	amount   int
}

func claimOf(t model.Ticket) claim {
	if !counts(t.Status) || t.Amount <= 0 {
		return claim{}
	}
	return claim{offering: t.OfferingID, amount: t.Amount}
}

// planChange computes the capacity_sold every affected offering must take
// when a ticket moves from before to after.  Releases are netted against
// reservations on the same offering, so re-typing within one offering or
// shrinking an amount never trips the capacity check.  Nothing is mutated;
// an increase that would exceed maximun_capacity returns
// ErrInsufficientCapacity.
func planChange(before, after model.Ticket, offerings map[uint64]model.TicketTypeEvent) (map[uint64]int, error) {
	deltas := map[uint64]int{}
	if c := claimOf(before); c.amount > 0 {
		deltas[c.offering] -= c.amount
	}
	if c := claimOf(after); c.amount > 0 {
		deltas[c.offering] += c.amount
	}
	plan := make(map[uint64]int, len(deltas))
	for _, id := range sortedKeys(deltas) {
		d := deltas[id]
		if d == 0 {
			continue
		}
		o, ok := offerings[id]
		if !ok {
			return nil, fmt.Errorf("offering %d not locked", id)
		}
		sold := o.CapacitySold + d
		if d > 0 && sold > o.MaxCapacity {
			return nil, ErrInsufficientCapacity
		}
		if sold < 0 {
			sold = 0
		}
		plan[id] = sold
	}
	return plan, nil
}

// reserve returns the capacity_sold after adding amount, or
// ErrInsufficientCapacity when fewer than amount admissions remain.
func reserve(o model.TicketTypeEvent, amount int) (int, error) {
	if amount > o.Remaining() {
		return o.CapacitySold, ErrInsufficientCapacity
	}
	return o.CapacitySold + amount, nil
}

// release returns the capacity_sold left after freeing amount, floored at 0.
func release(o model.TicketTypeEvent, amount int) int {
	if sold := o.CapacitySold - amount; sold > 0 {
		return sold
	}
	return 0
}

// lockOfferings locks the given offerings in ascending id order so that
// two transactions touching the same pair never deadlock.
func lockOfferings(ctx context.Context, tx repository.Tx, ids ...uint64) (map[uint64]model.TicketTypeEvent, error) {
	ids = slices.Clone(ids)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	out := make(map[uint64]model.TicketTypeEvent, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		o, err := tx.LockOffering(ctx, id)
		if err != nil {
			return nil, orNotFound(err, ErrOfferingNotFound)
		}
		out[id] = o
	}
	return out, nil
}

// rebalance locks the offerings involved in a ticket change, validates the
// target offering and writes the planned capacity_sold values.  The
// returned offerings reflect the stored state after the change.
func rebalance(ctx context.Context, tx repository.Tx, before, after model.Ticket) ([]model.TicketTypeEvent, error) {
	offerings, err := lockOfferings(ctx, tx, before.OfferingID, after.OfferingID)
	if err != nil {
		return nil, err
	}
	if o, ok := offerings[after.OfferingID]; !ok || o.EventID != after.EventID {
		return nil, ErrOfferingMismatch
	}
	plan, err := planChange(before, after, offerings)
	if err != nil {
		return nil, err
	}
	changed := make([]model.TicketTypeEvent, 0, len(plan))
	for _, id := range sortedKeys(plan) {
		if err := tx.SetCapacitySold(ctx, id, plan[id]); err != nil {
			return nil, fmt.Errorf("set capacity sold: %w", err)
		}
		o := offerings[id]
		o.CapacitySold = plan[id]
		changed = append(changed, o)
	}
	return changed, nil
}

func sortedKeys[V any](m map[uint64]V) []uint64 {
	keys := make([]uint64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
