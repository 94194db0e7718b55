package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/model"
)

func offeringsOf(os ...model.TicketTypeEvent) map[uint64]model.TicketTypeEvent {
	m := make(map[uint64]model.TicketTypeEvent, len(os))
	for _, o := range os {
		m[o.ID] = o
	}
	return m
}

func TestCountsOnlyPurchased(t *testing.T) {
	assert.True(t, counts(model.TicketPurchased))
	assert.False(t, counts(model.TicketPending))
	assert.False(t, counts(model.TicketUsed))
	assert.False(t, counts(model.TicketCancelled))
}

func TestPlanChangeConfirmReservesCapacity(t *testing.T) {
	o := model.TicketTypeEvent{ID: 1, MaxCapacity: 10, CapacitySold: 7}
	before := model.Ticket{ID: 5, OfferingID: 1, Amount: 3, Status: model.TicketPending}
	after := before
	after.Status = model.TicketPurchased

	plan, err := planChange(before, after, offeringsOf(o))
	require.NoError(t, err)
	assert.Equal(t, map[uint64]int{1: 10}, plan)

	after.Amount = 4
	_, err = planChange(before, after, offeringsOf(o))
	assert.ErrorIs(t, err, ErrInsufficientCapacity)
}

func TestPlanChangeNetsWithinOffering(t *testing.T) {
	o := model.TicketTypeEvent{ID: 1, MaxCapacity: 10, CapacitySold: 10}
	before := model.Ticket{ID: 5, OfferingID: 1, Amount: 3, Status: model.TicketPurchased}

	shrink := before
	shrink.Amount = 2
	plan, err := planChange(before, shrink, offeringsOf(o))
	require.NoError(t, err)
	assert.Equal(t, map[uint64]int{1: 9}, plan)

	same := before
	plan, err = planChange(before, same, offeringsOf(o))
	require.NoError(t, err)
	assert.Empty(t, plan)

	grow := before
	grow.Amount = 4
	_, err = planChange(before, grow, offeringsOf(o))
	assert.ErrorIs(t, err, ErrInsufficientCapacity)
}

func TestPlanChangeRetypeMovesCapacity(t *testing.T) {
	from := model.TicketTypeEvent{ID: 1, MaxCapacity: 10, CapacitySold: 4}
	to := model.TicketTypeEvent{ID: 2, MaxCapacity: 5, CapacitySold: 3}
	before := model.Ticket{ID: 5, OfferingID: 1, Amount: 2, Status: model.TicketPurchased}
	after := before
	after.OfferingID = 2

	plan, err := planChange(before, after, offeringsOf(from, to))
	require.NoError(t, err)
	assert.Equal(t, map[uint64]int{1: 2, 2: 5}, plan)

	after.Amount = 3
	_, err = planChange(before, after, offeringsOf(from, to))
	assert.ErrorIs(t, err, ErrInsufficientCapacity)
}

func TestPlanChangeReleasesOnUseAndCancel(t *testing.T) {
	o := model.TicketTypeEvent{ID: 1, MaxCapacity: 10, CapacitySold: 6}
	before := model.Ticket{ID: 5, OfferingID: 1, Amount: 2, Status: model.TicketPurchased}

	for _, status := range []string{model.TicketUsed, model.TicketCancelled} {
		after := before
		after.Status = status
		plan, err := planChange(before, after, offeringsOf(o))
		require.NoError(t, err, status)
		assert.Equal(t, map[uint64]int{1: 4}, plan, status)
	}
}

func TestPlanChangeFloorsAtZero(t *testing.T) {
	o := model.TicketTypeEvent{ID: 1, MaxCapacity: 10, CapacitySold: 1}
	before := model.Ticket{ID: 5, OfferingID: 1, Amount: 3, Status: model.TicketPurchased}
	after := before
	after.Status = model.TicketCancelled

	plan, err := planChange(before, after, offeringsOf(o))
	require.NoError(t, err)
	assert.Equal(t, map[uint64]int{1: 0}, plan)
	assert.Equal(t, 0, release(o, 3))
}

func TestReserve(t *testing.T) {
	o := model.TicketTypeEvent{ID: 1, MaxCapacity: 5, CapacitySold: 3}
	sold, err := reserve(o, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, sold)

	_, err = reserve(o, 3)
	assert.ErrorIs(t, err, ErrInsufficientCapacity)
}

func TestCanTransition(t *testing.T) {
	ok := [][2]string{
		{model.TicketPending, model.TicketPurchased},
		{model.TicketPending, model.TicketCancelled},
		{model.TicketPending, model.TicketPending},
		{model.TicketPurchased, model.TicketUsed},
		{model.TicketPurchased, model.TicketCancelled},
		{model.TicketPurchased, model.TicketPurchased},
	}
	for _, c := range ok {
		assert.True(t, canTransition(c[0], c[1]), "%s -> %s", c[0], c[1])
	}
	bad := [][2]string{
		{model.TicketPending, model.TicketUsed},
		{model.TicketPurchased, model.TicketPending},
		{model.TicketUsed, model.TicketPurchased},
		{model.TicketUsed, model.TicketUsed},
		{model.TicketCancelled, model.TicketPending},
	}
	for _, c := range bad {
		assert.False(t, canTransition(c[0], c[1]), "%s -> %s", c[0], c[1])
	}
}
