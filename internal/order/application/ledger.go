package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/restaurant-ordering/internal/order/domain"
	"github.com/dmehra2102/restaurant-ordering/pkg/outbox"
	"github.com/dmehra2102/restaurant-ordering/pkg/tracing"
)

const paymentActor = "payment-service"

type Settings struct {
	DefaultTaxRate   decimal.Decimal
	DeliveryFeeCents int64
	Currency         string
	Location         *time.Location
}

type Ledger struct {
	log      *slog.Logger
	repo     OrderRepository
	settings Settings
	now      func() time.Time
	newID    func() string
	tracer   trace.Tracer
}

type Option func(*Ledger)

func WithClock(now func() time.Time) Option { return func(l *Ledger) { l.now = now } }

func WithIDGenerator(fn func() string) Option { return func(l *Ledger) { l.newID = fn } }

func NewLedger(log *slog.Logger, repo OrderRepository, settings Settings, opts ...Option) *Ledger {
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	l := &Ledger{
		log:      log,
		repo:     repo,
		settings: settings,
		now:      time.Now,
		newID:    uuid.NewString,
		tracer:   otel.Tracer("order-ledger"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type CreateOrderInput struct {
	CustomerID          string
	RestaurantID        string
	Lines               []domain.Line
	DeliveryAddress     *string
	SpecialInstructions *string
	TipCents            int64
}

// CreateOrder numbers, prices and stores an order with its lines in one
// transaction. Nothing is written unless every step succeeds.
func (l *Ledger) CreateOrder(ctx context.Context, tenantID string, in CreateOrderInput) (domain.Order, error) {
	ctx, span := l.tracer.Start(ctx, "Ledger.CreateOrder", trace.WithAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("restaurant_id", in.RestaurantID),
	))
	defer span.End()

	if err := domain.CheckLines(in.Lines); err != nil {
		return domain.Order{}, err
	}
	if in.TipCents < 0 {
		return domain.Order{}, domain.ErrInvalidTip
	}

	now := l.now()
	day := domain.BusinessDay(now, l.settings.Location)

	var created domain.Order
	err := l.repo.InTx(ctx, func(tx LedgerTx) error {
		seq, err := tx.NextOrderSequence(ctx, tenantID, day)
		if err != nil {
			return fmt.Errorf("next order sequence: %w", err)
		}
		rate, ok, err := tx.RestaurantTaxRate(ctx, tenantID, in.RestaurantID)
		if err != nil {
			return fmt.Errorf("restaurant tax rate: %w", err)
		}
		if !ok {
			rate = l.settings.DefaultTaxRate
		}

		o, err := domain.NewOrder(domain.Draft{
			ID:                  l.newID(),
			TenantID:            tenantID,
			OrderNumber:         domain.FormatOrderNumber(day, seq),
			CustomerID:          in.CustomerID,
			RestaurantID:        in.RestaurantID,
			Lines:               in.Lines,
			DeliveryAddress:     in.DeliveryAddress,
			SpecialInstructions: in.SpecialInstructions,
		}, domain.Pricing{
			TaxRatePercent:   rate,
			DeliveryFeeCents: l.settings.DeliveryFeeCents,
			TipCents:         in.TipCents,
			Currency:         l.settings.Currency,
		}, now)
		if err != nil {
			return err
		}

		if err := tx.InsertOrder(ctx, o); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		ev, err := outbox.NewEvent(tenantID, domain.AggregateType, o.ID, domain.EventOrderPlaced, domain.NewOrderPlaced(o), tracing.Traceparent(ctx))
		if err != nil {
			return err
		}
		if err := tx.AppendOutbox(ctx, ev); err != nil {
			return fmt.Errorf("append outbox: %w", err)
		}
		created = o
		return nil
	})
	if err != nil {
		return domain.Order{}, l.persistence(err)
	}

	l.log.Info("order created",
		"tenant_id", tenantID,
		"order_id", created.ID,
		"order_number", created.OrderNumber,
		"total_cents", created.TotalCents,
	)
	return created, nil
}

// UpdateStatus applies one state machine transition under a row lock. A
// rejected transition leaves the stored order untouched.
func (l *Ledger) UpdateStatus(ctx context.Context, tenantID, orderID string, to domain.Status, actor string) (domain.Order, error) {
	ctx, span := l.tracer.Start(ctx, "Ledger.UpdateStatus", trace.WithAttributes(
		attribute.String("order_id", orderID),
		attribute.String("to", string(to)),
	))
	defer span.End()

	var updated domain.Order
	err := l.repo.InTx(ctx, func(tx LedgerTx) error {
		o, err := tx.GetForUpdate(ctx, tenantID, orderID)
		if err != nil {
			return err
		}
		ch, err := o.TransitionTo(to, actor, l.now())
		if err != nil {
			return err
		}
		if err := l.recordTransition(ctx, tx, o, ch); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return domain.Order{}, l.persistence(err)
	}

	l.log.Info("order status changed", "tenant_id", tenantID, "order_id", orderID, "to", to, "actor", actor)
	return updated, nil
}

// MarkPaid records a successful payment and confirms a pending order.
// Repeated deliveries are harmless.
func (l *Ledger) MarkPaid(ctx context.Context, tenantID, orderID string) error {
	err := l.repo.InTx(ctx, func(tx LedgerTx) error {
		o, err := tx.GetForUpdate(ctx, tenantID, orderID)
		if err != nil {
			return err
		}
		if o.PaymentStatus == domain.PaymentPaid {
			return nil
		}
		o.PaymentStatus = domain.PaymentPaid
		o.UpdatedAt = l.now().UTC()

		if o.Status != domain.StatusPending {
			l.log.Warn("payment for non-pending order", "tenant_id", tenantID, "order_id", orderID, "status", o.Status)
			return tx.UpdateOrder(ctx, o)
		}
		ch, err := o.TransitionTo(domain.StatusConfirmed, paymentActor, l.now())
		if err != nil {
			return err
		}
		return l.recordTransition(ctx, tx, o, ch)
	})
	if err != nil {
		return l.persistence(err)
	}
	return nil
}

func (l *Ledger) MarkPaymentFailed(ctx context.Context, tenantID, orderID, reason string) error {
	err := l.repo.InTx(ctx, func(tx LedgerTx) error {
		o, err := tx.GetForUpdate(ctx, tenantID, orderID)
		if err != nil {
			return err
		}
		if o.PaymentStatus != domain.PaymentPending {
			return nil
		}
		o.PaymentStatus = domain.PaymentFailed
		o.UpdatedAt = l.now().UTC()
		return tx.UpdateOrder(ctx, o)
	})
	if err != nil {
		return l.persistence(err)
	}
	l.log.Warn("order payment failed", "tenant_id", tenantID, "order_id", orderID, "reason", reason)
	return nil
}

func (l *Ledger) recordTransition(ctx context.Context, tx LedgerTx, o domain.Order, ch domain.StatusChange) error {
	if err := tx.UpdateOrder(ctx, o); err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if err := tx.AppendHistory(ctx, ch); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	ev, err := outbox.NewEvent(o.TenantID, domain.AggregateType, o.ID, domain.EventOrderStatusChanged, domain.OrderStatusChanged{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		TenantID:    o.TenantID,
		From:        ch.From,
		To:          ch.To,
		Actor:       ch.Actor,
		ChangedAt:   ch.ChangedAt,
	}, tracing.Traceparent(ctx))
	if err != nil {
		return err
	}
	return tx.AppendOutbox(ctx, ev)
}

func (l *Ledger) GetOrder(ctx context.Context, tenantID, orderID string) (domain.Order, error) {
	return l.repo.Get(ctx, tenantID, orderID)
}

// OrderHistory returns the recorded status transitions of an order, oldest
// first. An order that never moved has an empty history.
func (l *Ledger) OrderHistory(ctx context.Context, tenantID, orderID string) ([]domain.StatusChange, error) {
	if _, err := l.repo.Get(ctx, tenantID, orderID); err != nil {
		return nil, err
	}
	h, err := l.repo.History(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if h == nil {
		h = []domain.StatusChange{}
	}
	return h, nil
}

func (l *Ledger) ListOrders(ctx context.Context, tenantID string, f domain.ListFilter) (domain.Page, error) {
	f = f.Normalize()
	orders, total, err := l.repo.List(ctx, tenantID, f)
	if err != nil {
		return domain.Page{}, err
	}
	return domain.Page{Orders: orders, Total: total, Page: f.Page, PageSize: f.PageSize}, nil
}

// RestaurantSummary counts orders per status and totals today's revenue,
// where today is the ledger's business day.
func (l *Ledger) RestaurantSummary(ctx context.Context, tenantID, restaurantID string) (domain.Summary, error) {
	now := l.now()
	start, end := domain.DayBounds(now, l.settings.Location)
	s, err := l.repo.Summary(ctx, tenantID, restaurantID, start, end)
	if err != nil {
		return domain.Summary{}, err
	}
	s.RestaurantID = restaurantID
	s.Day = domain.BusinessDay(now, l.settings.Location).Format(time.DateOnly)
	if s.CountsByStatus == nil {
		s.CountsByStatus = make(map[domain.Status]int, len(domain.AllStatuses))
	}
	for _, st := range domain.AllStatuses {
		if _, ok := s.CountsByStatus[st]; !ok {
			s.CountsByStatus[st] = 0
		}
	}
	return s, nil
}

// persistence leaves domain failures as they are and marks everything else as
// a storage failure.
func (l *Ledger) persistence(err error) error {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrEmptyOrder),
		errors.Is(err, domain.ErrInvalidLine),
		errors.Is(err, domain.ErrInvalidTip),
		errors.Is(err, context.Canceled):
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
}
