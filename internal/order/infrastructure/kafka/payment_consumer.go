package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/restaurant-ordering/internal/order/domain"
	"github.com/dmehra2102/restaurant-ordering/pkg/tracing"
)

type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type PaymentHandler interface {
	MarkPaid(ctx context.Context, tenantID, orderID string) error
	MarkPaymentFailed(ctx context.Context, tenantID, orderID, reason string) error
}

type Deduper interface {
	Key(topic string, partition int, offset int64) string
	Seen(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// PaymentConsumer applies payment outcomes to the ledger.
type PaymentConsumer struct {
	log    *slog.Logger
	reader Reader
	orders PaymentHandler
	idem   Deduper
	tracer trace.Tracer

	// retryMin and retryMax bound the backoff between attempts at one message.
	retryMin time.Duration
	retryMax time.Duration
}

func NewPaymentConsumer(log *slog.Logger, reader Reader, orders PaymentHandler, idem Deduper) *PaymentConsumer {
	return &PaymentConsumer{
		log:    log,
		reader: reader,
		orders: orders,
		idem:   idem,
		tracer: otel.Tracer("payment-consumer"),

		retryMin: 200 * time.Millisecond,
		retryMax: 10 * time.Second,
	}
}

// Run consumes until ctx is done. A message that fails is retried until it
// succeeds; later offsets are not fetched or committed meanwhile, so a
// committed offset never skips an unapplied payment.
func (c *PaymentConsumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if err := c.handleWithRetry(ctx, msg); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Error("commit failed", "offset", msg.Offset, "err", err)
		}
	}
}

func (c *PaymentConsumer) handleWithRetry(ctx context.Context, msg kafka.Message) error {
	wait := c.retryMin
	for attempt := 1; ; attempt++ {
		err := c.handle(ctx, msg)
		if err == nil {
			return nil
		}
		c.log.Error("payment event failed, retrying",
			"partition", msg.Partition, "offset", msg.Offset, "attempt", attempt, "backoff", wait, "err", err)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		wait = min(wait*2, c.retryMax)
	}
}

func (c *PaymentConsumer) handle(ctx context.Context, msg kafka.Message) error {
	key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
	seen, err := c.idem.Seen(ctx, key)
	if err != nil {
		return err
	}
	if seen {
		c.log.Info("duplicate message skipped", "key", key)
		return nil
	}
	if err := c.apply(ctx, msg); err != nil {
		if rErr := c.idem.Release(ctx, key); rErr != nil {
			c.log.Error("idempotency release failed", "key", key, "err", rErr)
		}
		return err
	}
	return nil
}

func (c *PaymentConsumer) apply(ctx context.Context, msg kafka.Message) error {
	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	eventType := headerValue(msg.Headers, "event_type")
	msgCtx, span := c.tracer.Start(msgCtx, "Consume"+eventType)
	defer span.End()

	switch eventType {
	case domain.EventPaymentProcessed:
		var ev domain.PaymentProcessed
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			c.log.Error("unmarshal failed", "type", eventType, "err", err)
			return nil
		}
		tenantID := firstNonEmpty(ev.TenantID, headerValue(msg.Headers, "tenant_id"))
		err := c.orders.MarkPaid(msgCtx, tenantID, ev.OrderID)
		if errors.Is(err, domain.ErrOrderNotFound) {
			c.log.Warn("payment for unknown order", "tenant_id", tenantID, "order_id", ev.OrderID)
			return nil
		}
		return err

	case domain.EventPaymentFailed:
		var ev domain.PaymentFailedEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			c.log.Error("unmarshal failed", "type", eventType, "err", err)
			return nil
		}
		tenantID := firstNonEmpty(ev.TenantID, headerValue(msg.Headers, "tenant_id"))
		err := c.orders.MarkPaymentFailed(msgCtx, tenantID, ev.OrderID, ev.Reason)
		if errors.Is(err, domain.ErrOrderNotFound) {
			c.log.Warn("payment failure for unknown order", "tenant_id", tenantID, "order_id", ev.OrderID)
			return nil
		}
		return err

	default:
		c.log.Debug("ignoring event", "type", eventType)
		return nil
	}
}

func headerValue(h []kafka.Header, key string) string {
	for _, hh := range h {
		if hh.Key == key {
			return string(hh.Value)
		}
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
