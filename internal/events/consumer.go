package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mmynk/splitledger/internal/metrics"
)

// Handler processes one event. A returned error requeues the delivery.
type Handler func(ctx context.Context, event *ExpenseEvent) error

// errChannelClosed is returned when the broker closes the delivery channel.
var errChannelClosed = errors.New("delivery channel closed")

// Consume declares queueName, binds it to every expense event and feeds the
// deliveries to handle until ctx is cancelled or the channel closes.
func (c *Client) Consume(ctx context.Context, queueName string, handle Handler) error {
	_, err := c.channel.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := c.channel.QueueBind(queueName, ExpenseBinding, c.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	if err := c.channel.Qos(10, 0, false); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}

	msgs, err := c.channel.Consume(
		queueName, // queue
		"",        // consumer
		false,     // auto-ack
		false,     // exclusive
		false,     // no-local
		false,     // no-wait
		nil,       // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Consuming expense events", "queue", queueName, "exchange", c.exchangeName)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errChannelClosed
			}

			event, err := ExpenseEventFromJSON(delivery.Body)
			if err != nil {
				slog.ErrorContext(ctx, "Dropping malformed event", "error", err, "routing_key", delivery.RoutingKey)
				metrics.EventsConsumed.WithLabelValues(delivery.RoutingKey, "malformed").Inc()
				delivery.Nack(false, false) // reject and don't requeue
				continue
			}

			if err := handle(ctx, event); err != nil {
				slog.ErrorContext(ctx, "Failed to handle event",
					"error", err,
					"type", event.Type,
					"group_id", event.GroupID,
				)
				metrics.EventsConsumed.WithLabelValues(event.Type, "error").Inc()
				delivery.Nack(false, !delivery.Redelivered) // one retry, then drop
				continue
			}

			metrics.EventsConsumed.WithLabelValues(event.Type, "ok").Inc()
			delivery.Ack(false)
		}
	}
}

// Dialer opens a fresh client for each connection attempt.
type Dialer func() (*Client, error)

// consumeFunc is the per-connection consume step used by RunConsumer.
type consumeFunc func(ctx context.Context) error

// RunConsumer keeps a consumer alive, reconnecting with exponential backoff
// after connection failures, until ctx is cancelled.
func RunConsumer(ctx context.Context, dial Dialer, queueName string, handle Handler) error {
	return runWithRetry(ctx, func(ctx context.Context) error {
		client, err := dial()
		if err != nil {
			return err
		}
		defer client.Close()
		return client.Consume(ctx, queueName, handle)
	})
}

func runWithRetry(ctx context.Context, consume consumeFunc) error {
	attempt := 0
	for {
		start := time.Now()
		err := consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil && !isConnectionError(err) {
			return err
		}

		// A connection that stayed up for a while resets the backoff
		if time.Since(start) > time.Minute {
			attempt = 0
		}
		wait := exponentialBackoff(attempt)
		attempt++

		slog.WarnContext(ctx, "AMQP consumer disconnected, reconnecting",
			"error", err,
			"attempt", attempt,
			"backoff", wait,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// exponentialBackoff returns 1s, 2s, 4s, ... capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	if attempt > 5 {
		return 30 * time.Second
	}
	d := time.Second << attempt
	if d > 30*time.Second {
		return 30 * time.Second
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errChannelClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "dial", "eof", "channel/connection is not open", "broken pipe"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
