package realtime

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/model"
)

func TestBroadcastPublishesOnEventChannel(t *testing.T) {
	var gotChannel string
	var gotMsg map[string]any
	b := &Broadcaster{publish: func(channel string, message any) error {
		gotChannel = channel
		gotMsg = message.(map[string]any)
		return nil
	}}

	err := b.Broadcast(context.Background(), model.Availability{EventID: 12, Status: model.EventActive, Remaining: 0, SoldOut: true})
	require.NoError(t, err)
	assert.Equal(t, "event-12", gotChannel)
	assert.Equal(t, "availability", gotMsg["type"])
	assert.Equal(t, true, gotMsg["is_sold_out"])
}

func TestBroadcastWrapsPublishError(t *testing.T) {
	boom := errors.New("boom")
	b := &Broadcaster{publish: func(string, any) error { return boom }}
	err := b.Broadcast(context.Background(), model.Availability{EventID: 3})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "event-3")
}

func TestNewWithoutKeysIsNop(t *testing.T) {
	assert.IsType(t, Nop{}, New(config.RealtimeConfig{PublishKey: "pub"}))
}
