// Package realtime pushes availability snapshots to browsers over PubNub.
package realtime

import (
	"context"
	"fmt"

	pubnub "github.com/pubnub/go"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/service"
)

// ChannelFor names the PubNub channel of an event.
func ChannelFor(eventID uint64) string {
	return fmt.Sprintf("event-%d", eventID)
}

type publishFunc func(channel string, message any) error

// Broadcaster implements service.AvailabilityBroadcaster.
type Broadcaster struct {
	publish publishFunc
}

// New returns a PubNub-backed broadcaster, or Nop when the keys are missing.
func New(cfg config.RealtimeConfig) service.AvailabilityBroadcaster {
	if !cfg.Enabled() {
		return Nop{}
	}
	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = cfg.PublishKey
	pnConfig.SubscribeKey = cfg.SubscribeKey
	pnConfig.SecretKey = cfg.SecretKey
	pnConfig.UUID = cfg.UUID
	pn := pubnub.NewPubNub(pnConfig)

	return &Broadcaster{publish: func(channel string, message any) error {
		_, _, err := pn.Publish().Channel(channel).Message(message).Execute()
		return err
	}}
}

// Broadcast publishes the snapshot on the event's channel.
func (b *Broadcaster) Broadcast(ctx context.Context, a model.Availability) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := map[string]any{
		"type":         "availability",
		"event_id":     a.EventID,
		"status":       a.Status,
		"remaining":    a.Remaining,
		"is_sold_out":  a.SoldOut,
		"ticket_types": a.Offerings,
	}
	if err := b.publish(ChannelFor(a.EventID), msg); err != nil {
		return fmt.Errorf("pubnub publish %s: %w", ChannelFor(a.EventID), err)
	}
	return nil
}

// Nop drops every snapshot.
type Nop struct{}

func (Nop) Broadcast(context.Context, model.Availability) error { return nil }
