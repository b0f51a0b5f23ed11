package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/paymentsportal/internal/domain"
	"github.com/aryan0dhankhar/paymentsportal/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/paymentsportal/internal/infrastructure/rabbitmq"
	"github.com/aryan0dhankhar/paymentsportal/internal/observability/metrics"
	"github.com/aryan0dhankhar/paymentsportal/internal/reliability/circuitbreaker"
)

// Emitter is what the services use to announce a lifecycle change. Emit never
// fails the caller: the state change has already been committed.
type Emitter interface {
	Emit(ctx context.Context, event domain.TransactionEvent)
}

// Dispatcher sends each event to the live hub and to the broker. Broker
// publishes go through a circuit breaker so an unavailable broker costs one
// fast rejection per event instead of a timeout.
type Dispatcher struct {
	publisher rabbitmq.Publisher
	hub       *Hub
	breaker   *circuitbreaker.CircuitBreaker
	timeout   time.Duration
	logger    *slog.Logger
}

func NewDispatcher(publisher rabbitmq.Publisher, hub *Hub, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	breaker := circuitbreaker.NewCircuitBreaker(5, 2, 30*time.Second)
	breaker.SetStateChangeCallback(func(from, to circuitbreaker.State) {
		log.Warn("event broker circuit changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})
	return &Dispatcher{
		publisher: publisher,
		hub:       hub,
		breaker:   breaker,
		timeout:   2 * time.Second,
		logger:    log,
	}
}

func (d *Dispatcher) Emit(ctx context.Context, event domain.TransactionEvent) {
	if d.hub != nil {
		d.hub.Broadcast(event)
	}
	if d.publisher == nil {
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	err := d.breaker.Execute(func() error {
		return d.publisher.PublishTransactionEvent(pubCtx, event)
	})
	switch {
	case err == nil:
		metrics.ObserveEventPublished(event.Type, "success")
	case errors.Is(err, circuitbreaker.ErrOpen):
		metrics.ObserveEventPublished(event.Type, "rejected")
	default:
		metrics.ObserveEventPublished(event.Type, "error")
		logger.FromContext(ctx, d.logger).Error("failed to publish transaction event",
			slog.String("event", event.Type),
			slog.String("transaction_id", event.TransactionID),
			slog.String("error", err.Error()),
		)
	}
}
