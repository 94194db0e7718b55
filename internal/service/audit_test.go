package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/repository/memstore"
)

func TestChangedFieldsTrackSkipsEqualValues(t *testing.T) {
	day := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var c ChangedFields
	c.Track("name", "a", "a")
	c.Track("min_age", ptr(18), ptr(18))
	c.Track("city", (*uint64)(nil), (*uint64)(nil))
	c.Track("price", decimal.RequireFromString("10"), decimal.RequireFromString("10.00"))
	c.Track("start", day, day.In(time.FixedZone("COT", -5*3600)))
	assert.True(t, c.Empty())

	c.Track("name", "a", "b")
	c.Track("min_age", (*int)(nil), ptr(21))
	require.Len(t, c, 2)
	assert.Equal(t, FieldChange{Field: "name", Old: "a", New: "b"}, c[0])
	assert.Equal(t, FieldChange{Field: "min_age", Old: "", New: "21"}, c[1])
	assert.True(t, c.Has("min_age"))
	assert.False(t, c.Has("city"))
}

func TestAuditWriterWritesOneRowPerField(t *testing.T) {
	store := memstore.New()
	var c ChangedFields
	c.Track("status", model.EventActive, model.EventFinished)
	c.Track("event_name", "Old", "New")

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		if err := (AuditWriter{}).Write(ctx, tx, model.EntityEvent, 9, actorRef(4), ChangeEventData, c); err != nil {
			return err
		}
		return (AuditWriter{}).Write(ctx, tx, model.EntityEvent, 9, nil, ChangeEventData, nil)
	})
	require.NoError(t, err)

	logs := store.ChangeLogs()
	require.Len(t, logs, 2)
	assert.Equal(t, ChangeStatus, logs[0].ChangeType)
	assert.Equal(t, ChangeEventData, logs[1].ChangeType)
	assert.Equal(t, "Old", logs[1].OldValue)
	require.NotNil(t, logs[0].ChangedBy)
	assert.EqualValues(t, 4, *logs[0].ChangedBy)
	assert.Nil(t, actorRef(0))
}
