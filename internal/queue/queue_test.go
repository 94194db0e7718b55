package queue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/model"
)

type fakeChannel struct {
	declared   []string
	published  []amqp.Publishing
	keys       []string
	publishErr error
}

func (f *fakeChannel) QueueDeclare(name string, durable, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	if !durable {
		return amqp.Queue{}, errors.New("queue must be durable")
	}
	f.declared = append(f.declared, name)
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

type closerFunc func() error

func (c closerFunc) Close() error { return c() }

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestPublisherSendsPersistentJSON(t *testing.T) {
	ch := &fakeChannel{}
	opens := 0
	p := newPublisher(func() (amqpChannel, io.Closer, error) {
		opens++
		return ch, closerFunc(func() error { return nil }), nil
	})
	p.now = func() time.Time { return fixedNow }

	tk := model.Ticket{ID: 9, UserID: 2, EventID: 5, OfferingID: 7, Amount: 2, UniqueCode: "abc"}
	require.NoError(t, p.TicketConfirmed(context.Background(), tk))
	require.NoError(t, p.TicketConfirmed(context.Background(), tk))
	require.NoError(t, p.EventCancelled(context.Background(), model.Event{ID: 5, Name: "Festival"}, 3))

	assert.Equal(t, 1, opens)
	assert.Equal(t, []string{TicketConfirmedQueue, EventCancelledQueue}, ch.declared)
	assert.Equal(t, []string{TicketConfirmedQueue, TicketConfirmedQueue, EventCancelledQueue}, ch.keys)
	assert.Equal(t, amqp.Persistent, ch.published[0].DeliveryMode)

	var got TicketConfirmedEvent
	require.NoError(t, json.Unmarshal(ch.published[0].Body, &got))
	assert.Equal(t, uint64(9), got.TicketID)
	assert.Equal(t, "2026-03-10T12:00:00Z", got.ConfirmedAt)

	var cancelled EventCancelledEvent
	require.NoError(t, json.Unmarshal(ch.published[2].Body, &cancelled))
	assert.Equal(t, 3, cancelled.CancelledTickets)
}

func TestPublisherRedialsAfterFailure(t *testing.T) {
	broken := &fakeChannel{publishErr: errors.New("channel closed")}
	healthy := &fakeChannel{}
	chans := []*fakeChannel{broken, healthy}
	closed := 0
	p := newPublisher(func() (amqpChannel, io.Closer, error) {
		ch := chans[0]
		chans = chans[1:]
		return ch, closerFunc(func() error { closed++; return nil }), nil
	})

	err := p.TicketConfirmed(context.Background(), model.Ticket{ID: 1})
	assert.Error(t, err)
	assert.Equal(t, 1, closed)

	require.NoError(t, p.TicketConfirmed(context.Background(), model.Ticket{ID: 1}))
	assert.Len(t, healthy.published, 1)
}

func TestPublisherDialError(t *testing.T) {
	p := newPublisher(func() (amqpChannel, io.Closer, error) { return nil, nil, errors.New("refused") })
	assert.EqualError(t, p.EventCancelled(context.Background(), model.Event{}, 0), "refused")
}

func TestPublisherDialGivesUpOnSilentBroker(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				_, _ = io.Copy(io.Discard, conn)
				_ = conn.Close()
			}()
		}
	}()

	p := NewPublisher("amqp://guest:guest@" + ln.Addr().String() + "/")
	start := time.Now()
	err = p.TicketConfirmed(context.Background(), model.Ticket{ID: 1})
	require.Error(t, err)
	assert.Less(t, time.Since(start), dialTimeout+3*time.Second)
}

func TestConsumerAppendsLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tickets.log")
	log := logrus.New()
	log.SetOutput(io.Discard)
	c := &TicketConsumer{LogPath: path, Log: log}

	body, err := json.Marshal(newTicketConfirmed(model.Ticket{ID: 4, UserID: 2, EventID: 5, OfferingID: 6, Amount: 1, UniqueCode: "xyz"}, fixedNow))
	require.NoError(t, err)
	require.NoError(t, c.handle(body))
	require.NoError(t, c.handle(body))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := "[2026-03-10T12:00:00Z] Ticket confirmed | ticket_id=4 | user_id=2 | event_id=5 | config_type_id=6 | amount=1 | code=xyz\n"
	assert.Equal(t, line+line, string(data))

	assert.Error(t, c.handle([]byte("{not json")))
}

func TestBackoffIsCapped(t *testing.T) {
	d := time.Second
	for i := 0; i < 10; i++ {
		d = nextBackoff(d)
	}
	assert.Equal(t, maxBackoff, d)
	assert.Equal(t, 4*time.Second, nextBackoff(2*time.Second))
}

func TestSleepStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleep(ctx, time.Hour))
}
