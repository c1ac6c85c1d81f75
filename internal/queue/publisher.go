package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ExchangeName is the fanout exchange all task events go through. No
// routing key discrimination: every bound queue receives every event.
const ExchangeName = "task_events"

// ErrNotConnected is returned by Publish when the broker connection was
// never established or has been lost. Callers log it and move on; a
// broker outage must never fail the task mutation that triggered the
// publish.
var ErrNotConnected = errors.New("message bus not connected")

// Publisher is the process-wide handle on the task_events exchange. It
// is created once at startup and shared by all request handlers; Publish
// is safe for concurrent use. When the initial dial fails the publisher
// stays in a disconnected state and every publish is a logged no-op.
type Publisher struct {
	mu        sync.Mutex
	conn      *amqp.Connection
	ch        *amqp.Channel
	connected bool
	logger    *slog.Logger
}

// NewPublisher dials the broker and declares the fanout exchange. A
// dial failure does not abort startup: the returned publisher is inert
// and reports ErrNotConnected on use.
func NewPublisher(url string, logger *slog.Logger) *Publisher {
	p := &Publisher{logger: logger}
	conn, err := amqp.Dial(url)
	if err != nil {
		logger.Warn("message bus unreachable, publishing disabled", "err", err)
		return p
	}
	ch, err := conn.Channel()
	if err != nil {
		logger.Warn("message bus channel open failed, publishing disabled", "err", err)
		_ = conn.Close()
		return p
	}
	if err := ch.ExchangeDeclare(ExchangeName, "fanout", true, false, false, false, nil); err != nil {
		logger.Warn("exchange declare failed, publishing disabled", "err", err)
		_ = ch.Close()
		_ = conn.Close()
		return p
	}
	p.conn = conn
	p.ch = ch
	p.connected = true
	logger.Info("connected to message bus", "exchange", ExchangeName)
	return p
}

// Publish sends one event envelope to the exchange. Messages are
// persistent so a broker restart does not drop queued events.
func (p *Publisher) Publish(ctx context.Context, event TaskEventType, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected || p.conn == nil || p.conn.IsClosed() {
		return ErrNotConnected
	}

	body, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx,
		ExchangeName,
		"", // fanout ignores the routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		})
}

// Connected reports whether the startup dial succeeded and the
// connection is still open.
func (p *Publisher) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected && p.conn != nil && !p.conn.IsClosed()
}

// Close tears the connection down at shutdown.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return
	}
	p.connected = false
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
