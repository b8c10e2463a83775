package application

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	cart "github.com/dmehra2102/restaurant-ordering/internal/cart/domain"
	orderapp "github.com/dmehra2102/restaurant-ordering/internal/order/application"
	order "github.com/dmehra2102/restaurant-ordering/internal/order/domain"
	"github.com/dmehra2102/restaurant-ordering/pkg/idempotency"
)

var (
	ErrEmptyCart  = errors.New("cart is empty")
	ErrInProgress = errors.New("checkout already in progress")
)

type Input struct {
	DeliveryAddress     *string
	SpecialInstructions *string
	TipCents            int64
	// IdempotencyKey is optional. A repeated key returns the first order.
	IdempotencyKey string
}

type Coordinator struct {
	log      *slog.Logger
	carts    Carts
	orders   Orders
	requests Requests
	tracer   trace.Tracer
}

// NewCoordinator wires checkout. requests may be nil, which disables
// idempotency keys.
func NewCoordinator(log *slog.Logger, carts Carts, orders Orders, requests Requests) *Coordinator {
	return &Coordinator{
		log:      log,
		carts:    carts,
		orders:   orders,
		requests: requests,
		tracer:   otel.Tracer("checkout"),
	}
}

// Checkout turns the user's cart into an order. The cart is read and
// validated once; the order is built from that snapshot, so later cart edits
// cannot change it. Failing to clear the cart afterwards does not fail the
// checkout.
func (c *Coordinator) Checkout(ctx context.Context, tenantID, userID string, in Input) (order.Order, error) {
	ctx, span := c.tracer.Start(ctx, "Checkout", trace.WithAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("user_id", userID),
	))
	defer span.End()

	if in.IdempotencyKey == "" || c.requests == nil {
		return c.placeOrder(ctx, tenantID, userID, in)
	}

	key := c.requests.RequestKey(tenantID, userID, in.IdempotencyKey)
	state, orderID, err := c.requests.Begin(ctx, key)
	if err != nil {
		c.log.Warn("idempotency store unavailable, checking out without it", "tenant_id", tenantID, "user_id", userID, "err", err)
		return c.placeOrder(ctx, tenantID, userID, in)
	}
	switch state {
	case idempotency.InFlight:
		return order.Order{}, ErrInProgress
	case idempotency.Done:
		c.log.Info("checkout replayed", "tenant_id", tenantID, "user_id", userID, "order_id", orderID)
		return c.orders.GetOrder(ctx, tenantID, orderID)
	}

	o, err := c.placeOrder(ctx, tenantID, userID, in)
	if err != nil {
		if rErr := c.requests.Release(ctx, key); rErr != nil {
			c.log.Warn("idempotency release failed", "key", key, "err", rErr)
		}
		return order.Order{}, err
	}
	if err := c.requests.Complete(ctx, key, o.ID); err != nil {
		c.log.Warn("idempotency complete failed", "key", key, "order_id", o.ID, "err", err)
	}
	return o, nil
}

func (c *Coordinator) placeOrder(ctx context.Context, tenantID, userID string, in Input) (order.Order, error) {
	crt, err := c.carts.Get(ctx, tenantID, userID)
	if err != nil {
		return order.Order{}, err
	}
	if crt == nil || crt.IsEmpty() {
		return order.Order{}, ErrEmptyCart
	}

	v, err := c.carts.ValidateCart(ctx, crt)
	if err != nil {
		return order.Order{}, err
	}
	if !v.Valid {
		return order.Order{}, &cart.InvalidError{Issues: v.Issues}
	}

	o, err := c.orders.CreateOrder(ctx, tenantID, orderapp.CreateOrderInput{
		CustomerID:          userID,
		RestaurantID:        crt.RestaurantID,
		Lines:               lines(crt),
		DeliveryAddress:     in.DeliveryAddress,
		SpecialInstructions: in.SpecialInstructions,
		TipCents:            in.TipCents,
	})
	if err != nil {
		return order.Order{}, err
	}

	if err := c.carts.Clear(ctx, tenantID, userID); err != nil {
		c.log.Error("cart clear after checkout failed", "tenant_id", tenantID, "user_id", userID, "order_id", o.ID, "err", err)
	}
	c.log.Info("checkout complete", "tenant_id", tenantID, "user_id", userID, "order_id", o.ID, "order_number", o.OrderNumber)
	return o, nil
}

func lines(c *cart.Cart) []order.Line {
	out := make([]order.Line, 0, len(c.Items))
	for _, it := range c.Items {
		out = append(out, order.Line{
			MenuItemID:          it.MenuItemID,
			Name:                it.Name,
			Quantity:            it.Quantity,
			UnitPriceCents:      it.UnitPriceCents,
			SpecialInstructions: it.Instructions,
		})
	}
	return out
}
