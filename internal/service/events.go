package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/finearr/finearr/internal/config"
	"github.com/finearr/finearr/internal/models"
	"github.com/finearr/finearr/pkg/logger"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Ledger event types. They double as AMQP routing keys.
const (
	EventRequestPending       = "request.pending"
	EventRequestApproved      = "request.approved"
	EventRequestDenied        = "request.denied"
	EventRequestUnblacklisted = "request.unblacklisted"
)

const publishConfirmTimeout = 5 * time.Second

// LedgerEvent describes one request lifecycle transition.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type LedgerEvent struct {
	ID         uuid.UUID       `json:"id"`
	Type       string          `json:"type"`
	Category   models.Category `json:"category"`
	ItemID     string          `json:"itemId"`
	Title      string          `json:"title,omitempty"`
	Actor      string          `json:"actor"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// EventPublisher publishes ledger events. Implementations must be safe for
// concurrent use.
type EventPublisher interface {
	Publish(ctx context.Context, event LedgerEvent) error
}

// NoopPublisher discards events.
type NoopPublisher struct{}

// Publish implements EventPublisher.
func (NoopPublisher) Publish(context.Context, LedgerEvent) error { return nil }

// ErrEventQueueFull is returned by AsyncPublisher when its queue has no room.
var ErrEventQueueFull = errors.New("ledger event queue full")

// ErrPublisherClosed is returned by AsyncPublisher after Close.
var ErrPublisherClosed = errors.New("ledger event publisher closed")

// AsyncPublisher queues events and publishes them in order on a single
// worker goroutine, so ledger transitions never wait on the broker.
type AsyncPublisher struct {
	next    EventPublisher
	timeout time.Duration
	queue   chan LedgerEvent
	done    chan struct{}
	log     *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// NewAsyncPublisher starts the worker. Each event gets timeout to reach
// next; size bounds the number of queued events.
func NewAsyncPublisher(next EventPublisher, size int, timeout time.Duration) *AsyncPublisher {
	if size <= 0 {
		size = 1
	}
	p := &AsyncPublisher{
		next:    next,
		timeout: timeout,
		queue:   make(chan LedgerEvent, size),
		done:    make(chan struct{}),
		log:     logger.Named("events"),
	}
	go p.run()
	return p
}

// Publish implements EventPublisher. It only enqueues.
func (p *AsyncPublisher) Publish(_ context.Context, event LedgerEvent) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPublisherClosed
	}

	select {
	case p.queue <- event:
		return nil
	default:
		return ErrEventQueueFull
	}
}

func (p *AsyncPublisher) run() {
	defer close(p.done)

	for event := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		err := p.next.Publish(ctx, event)
		cancel()

		if err != nil {
			p.log.Warn("Failed to publish ledger event",
				zap.Error(err),
				zap.String("eventType", event.Type),
				zap.String("itemId", event.ItemID),
			)
		}
	}
}

// Close stops accepting events and waits until the queued ones were handed
// to the next publisher or ctx ends.
func (p *AsyncPublisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MessagePublisher publishes ledger events to a RabbitMQ topic exchange
// with publisher confirms.
type MessagePublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	config  *config.RabbitMQConfig
	mu      sync.Mutex
}

// NewMessagePublisher connects to RabbitMQ and declares the exchange.
func NewMessagePublisher(cfg *config.RabbitMQConfig) (*MessagePublisher, error) {
	mp := &MessagePublisher{
		config: cfg,
	}

	if err := mp.connect(); err != nil {
		return nil, err
	}

	return mp, nil
}

func (mp *MessagePublisher) connect() error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	connURL := fmt.Sprintf("amqp://%s:%s@%s:%d/",
		mp.config.User, mp.config.Password, mp.config.Host, mp.config.Port)

	conn, err := amqp.Dial(connURL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	// Enable publisher confirms
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	if err := ch.ExchangeDeclare(
		mp.config.Exchange, // name
		"topic",            // type
		true,               // durable
		false,              // auto-deleted
		false,              // internal
		false,              // no-wait
		nil,                // arguments
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	mp.conn = conn
	mp.channel = ch

	logger.Log.Info("Connected to RabbitMQ",
		zap.String("exchange", mp.config.Exchange),
	)

	return nil
}

// Publish implements EventPublisher. It returns once the broker confirmed
// the message, the confirm timeout elapsed or ctx ended.
func (mp *MessagePublisher) Publish(ctx context.Context, event LedgerEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	confirmation, err := mp.publish(ctx, event, body)
	if err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, publishConfirmTimeout)
	defer cancel()

	acked, err := confirmation.WaitContext(waitCtx)
	if err != nil {
		return fmt.Errorf("waiting for publish confirmation: %w", err)
	}
	if !acked {
		return fmt.Errorf("message was not acknowledged by broker")
	}

	logger.Log.Debug("Published ledger event",
		zap.String("eventId", event.ID.String()),
		zap.String("routingKey", event.Type),
	)

	return nil
}

func (mp *MessagePublisher) publish(ctx context.Context, event LedgerEvent, body []byte) (*amqp.DeferredConfirmation, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.channel == nil {
		return nil, fmt.Errorf("channel is not initialized")
	}

	confirmation, err := mp.channel.PublishWithDeferredConfirmWithContext(
		ctx,
		mp.config.Exchange, // exchange
		event.Type,         // routing key
		false,              // mandatory
		false,              // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.OccurredAt,
			MessageId:    event.ID.String(),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to publish message: %w", err)
	}
	if confirmation == nil {
		return nil, fmt.Errorf("publisher confirms are not enabled on the channel")
	}
	return confirmation, nil
}

// Close closes the channel and connection.
func (mp *MessagePublisher) Close() error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	var errs []error
	if mp.channel != nil {
		if err := mp.channel.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if mp.conn != nil {
		if err := mp.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing publisher: %v", errs)
	}

	logger.Log.Info("RabbitMQ publisher closed")
	return nil
}

// IsHealthy reports whether the connection is open.
func (mp *MessagePublisher) IsHealthy() bool {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	return mp.conn != nil && !mp.conn.IsClosed() && mp.channel != nil
}

func newLedgerEvent(eventType string, entry models.RequestEntry, actor string) LedgerEvent {
	return LedgerEvent{
		ID:         uuid.New(),
		Type:       eventType,
		Category:   entry.Category,
		ItemID:     string(entry.ID),
		Title:      entry.Title,
		Actor:      actor,
		OccurredAt: time.Now().UTC(),
	}
}
