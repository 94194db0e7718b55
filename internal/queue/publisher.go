package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/event-ticketing/internal/model"
)

type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type openFunc func() (amqpChannel, io.Closer, error)

// Publisher implements service.EventPublisher. It keeps one channel open
// and redials on the next publish after a failure.
type Publisher struct {
	open openFunc
	now  func() time.Time

	mu       sync.Mutex
	ch       amqpChannel
	closer   io.Closer
	declared map[string]bool
}

// dialTimeout bounds a redial, which happens on the request path.
const dialTimeout = 2 * time.Second

func NewPublisher(url string) *Publisher {
	return newPublisher(func() (amqpChannel, io.Closer, error) {
		conn, err := amqp.DialConfig(url, dialConfig())
		if err != nil {
			return nil, nil, fmt.Errorf("dial broker: %w", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("channel open: %w", err)
		}
		return ch, conn, nil
	})
}

func dialConfig() amqp.Config {
	return amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(dialTimeout),
	}
}

func newPublisher(open openFunc) *Publisher {
	return &Publisher{open: open, now: time.Now, declared: map[string]bool{}}
}

func (p *Publisher) TicketConfirmed(ctx context.Context, t model.Ticket) error {
	return p.publish(ctx, TicketConfirmedQueue, newTicketConfirmed(t, p.now()))
}

func (p *Publisher) EventCancelled(ctx context.Context, ev model.Event, cancelled int) error {
	return p.publish(ctx, EventCancelledQueue, newEventCancelled(ev, cancelled, p.now()))
}

func (p *Publisher) publish(ctx context.Context, queue string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", queue, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		ch, closer, err := p.open()
		if err != nil {
			return err
		}
		p.ch, p.closer = ch, closer
		p.declared = map[string]bool{}
	}
	if !p.declared[queue] {
		if _, err := p.ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			p.reset()
			return fmt.Errorf("queue declare %s: %w", queue, err)
		}
		p.declared[queue] = true
	}
	err = p.ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    p.now().UTC(),
		Body:         body,
	})
	if err != nil {
		p.reset()
		return fmt.Errorf("publish %s: %w", queue, err)
	}
	return nil
}

// reset drops the current channel; the caller holds mu.
func (p *Publisher) reset() {
	if p.closer != nil {
		_ = p.closer.Close()
	}
	p.ch, p.closer = nil, nil
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}
