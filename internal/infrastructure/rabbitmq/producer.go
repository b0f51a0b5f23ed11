// Package rabbitmq publishes transaction lifecycle events to a topic
// exchange for the downstream SWIFT forwarder.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"github.com/aryan0dhankhar/paymentsportal/internal/domain"
)

// Publisher is implemented by anything that can ship lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body any) error
	PublishTransactionEvent(ctx context.Context, event domain.TransactionEvent) error
	Close()
}

var (
	_ Publisher = (*EventProducer)(nil)
	_ Publisher = (*NoopPublisher)(nil)
)

// channel is the subset of *amqp091.Channel the producer uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// EventProducer holds one connection and channel to the broker.
type EventProducer struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	channel  channel
	open     func() (channel, error)
	exchange string
	declared bool
	logger   *slog.Logger
}

// NoopPublisher drops events; it stands in when no broker is configured.
type NoopPublisher struct {
	logger *slog.Logger
}

func NewNoopPublisher(logger *slog.Logger) *NoopPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopPublisher{logger: logger}
}

func (p *NoopPublisher) Publish(_ context.Context, routingKey string, _ any) error {
	p.logger.Debug("event publish skipped", slog.String("routing_key", routingKey))
	return nil
}

func (p *NoopPublisher) PublishTransactionEvent(ctx context.Context, event domain.TransactionEvent) error {
	return p.Publish(ctx, event.Type, event)
}

func (p *NoopPublisher) Close() {}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	if idx := strings.Index(strings.ToLower(clean), "amqp"); idx > 0 {
		clean = clean[idx:]
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// redactURL hides the password for logging.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "amqp://invalid"
	}
	return u.Redacted()
}

// NewEventProducer dials the broker with a bounded timeout.
func NewEventProducer(amqpURL, exchange string, logger *slog.Logger) (*EventProducer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if exchange == "" {
		return nil, errors.New("events exchange is required")
	}
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("invalid rabbitmq url: %w", err)
	}

	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	open := func() (channel, error) { return conn.Channel() }
	ch, err := open()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	logger.Info("rabbitmq connected", slog.String("url", redactURL(cleanURL)), slog.String("exchange", exchange))
	return newProducer(ch, open, exchange, logger, conn), nil
}

func newProducer(ch channel, open func() (channel, error), exchange string, logger *slog.Logger, conn *amqp091.Connection) *EventProducer {
	return &EventProducer{conn: conn, channel: ch, open: open, exchange: exchange, logger: logger}
}

// Publish sends body as JSON with routingKey. A failed declare or publish
// reopens the channel once and tries again.
func (p *EventProducer) Publish(ctx context.Context, routingKey string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.send(ctx, routingKey, msg)
	if err == nil {
		return nil
	}
	p.logger.Warn("publish failed; reopening channel",
		slog.String("exchange", p.exchange),
		slog.String("routing_key", routingKey),
		slog.String("error", err.Error()),
	)
	if reopenErr := p.reopen(); reopenErr != nil {
		return fmt.Errorf("publish %s: %w", routingKey, errors.Join(err, reopenErr))
	}
	if err := p.send(ctx, routingKey, msg); err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return nil
}

func (p *EventProducer) send(ctx context.Context, routingKey string, msg amqp091.Publishing) error {
	if !p.declared {
		if err := p.channel.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange: %w", err)
		}
		p.declared = true
	}
	return p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
}

func (p *EventProducer) reopen() error {
	if p.open == nil {
		return errors.New("no connection to reopen channel on")
	}
	ch, err := p.open()
	if err != nil {
		return err
	}
	_ = p.channel.Close()
	p.channel = ch
	p.declared = false
	return nil
}

// PublishTransactionEvent routes event by its type, e.g. transaction.verified.
func (p *EventProducer) PublishTransactionEvent(ctx context.Context, event domain.TransactionEvent) error {
	return p.Publish(ctx, event.Type, event)
}

// Close closes the channel and the connection.
func (p *EventProducer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
