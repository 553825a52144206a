package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/oggyb/devmatch/internal/metrics"
)

// Routing keys for domain events.
const (
	MatchCreated    = "match.created"
	MatchConnected  = "match.connected"
	ReportSubmitted = "report.submitted"
)

// Event is the envelope published for every routing key.
type Event struct {
	Type       string            `json:"type"`
	UserID     string            `json:"user_id"`
	OtherID    string            `json:"other_id,omitempty"`
	ResourceID string            `json:"resource_id,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Publisher publishes domain events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event Event) error
	Close() error
}

// NewPublisher builds a RabbitMQ publisher or a noop publisher when AMQP is disabled.
func NewPublisher(amqpURL, exchange string, log *slog.Logger) Publisher {
	if amqpURL == "" {
		log.Info("event publishing disabled, using noop", "reason", "empty amqp url")
		return Noop{}
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		log.Warn("event publishing disabled, using noop", "err", err)
		return Noop{}
	}

	ch, err := conn.Channel()
	if err != nil {
		log.Warn("event publishing disabled, using noop", "err", err)
		_ = conn.Close()
		return Noop{}
	}

	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		log.Warn("event publishing disabled, using noop", "err", err)
		_ = ch.Close()
		_ = conn.Close()
		return Noop{}
	}

	log.Info("rabbitmq connected", "exchange", exchange)
	return &amqpPublisher{conn: conn, ch: ch, exchange: exchange, log: log}
}

type amqpPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	log      *slog.Logger
}

func (p *amqpPublisher) Publish(ctx context.Context, routingKey string, event Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	event.Type = routingKey
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.OccurredAt,
		Body:         body,
	})
	if err != nil {
		metrics.EventPublishErrorsTotal.Inc()
		p.log.Error("event publish failed", "routing_key", routingKey, "err", err)
	}
	return err
}

func (p *amqpPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, string, Event) error { return nil }
func (Noop) Close() error                                  { return nil }

// Recorder keeps published events in memory. Used by tests.
type Recorder struct {
	mu     sync.Mutex
	Events []Event
}

func (r *Recorder) Publish(_ context.Context, routingKey string, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event.Type = routingKey
	r.Events = append(r.Events, event)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Types returns the routing keys seen so far, in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		out = append(out, e.Type)
	}
	return out
}
