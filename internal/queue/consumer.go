package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const maxBackoff = 30 * time.Second

// TicketConsumer appends every ticket.confirmed message to a log file.
type TicketConsumer struct {
	URL     string
	LogPath string
	Log     *logrus.Logger
}

// StartTicketConsumer consumes ticket.confirmed into logs/tickets.log until
// ctx is cancelled, reconnecting with exponential backoff.
func StartTicketConsumer(ctx context.Context, url string, log *logrus.Logger) error {
	c := &TicketConsumer{URL: url, LogPath: filepath.Join("logs", "tickets.log"), Log: log}
	return c.Run(ctx)
}

func (c *TicketConsumer) Run(ctx context.Context) error {
	entry := c.Log.WithField("queue", TicketConfirmedQueue)
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			entry.WithError(err).Warnf("dial broker failed, retrying in %s", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		entry.WithError(err).Warn("consume loop ended, reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *TicketConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Log.WithError(err).Warn("set qos failed")
	}
	if _, err := ch.QueueDeclare(TicketConfirmedQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, TicketConfirmedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := c.handle(d.Body); err != nil {
			c.Log.WithError(err).Error("handle ticket.confirmed failed")
			// rejected without requeue so a poison message cannot loop
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func (c *TicketConsumer) handle(body []byte) error {
	var ev TicketConfirmedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.LogPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(c.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(formatTicketLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func formatTicketLine(ev TicketConfirmedEvent) string {
	return fmt.Sprintf("[%s] Ticket confirmed | ticket_id=%d | user_id=%d | event_id=%d | config_type_id=%d | amount=%d | code=%s\n",
		ev.ConfirmedAt, ev.TicketID, ev.UserID, ev.EventID, ev.OfferingID, ev.Amount, ev.UniqueCode)
}

func nextBackoff(d time.Duration) time.Duration {
	if d *= 2; d > maxBackoff {
		return maxBackoff
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
