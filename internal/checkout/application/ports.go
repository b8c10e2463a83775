package application

import (
	"context"

	cart "github.com/dmehra2102/restaurant-ordering/internal/cart/domain"
	orderapp "github.com/dmehra2102/restaurant-ordering/internal/order/application"
	order "github.com/dmehra2102/restaurant-ordering/internal/order/domain"
	"github.com/dmehra2102/restaurant-ordering/pkg/idempotency"
)

type Carts interface {
	Get(ctx context.Context, tenantID, userID string) (*cart.Cart, error)
	ValidateCart(ctx context.Context, c *cart.Cart) (cart.Validation, error)
	Clear(ctx context.Context, tenantID, userID string) error
}

type Orders interface {
	CreateOrder(ctx context.Context, tenantID string, in orderapp.CreateOrderInput) (order.Order, error)
	GetOrder(ctx context.Context, tenantID, orderID string) (order.Order, error)
}

// Requests guards against a checkout being submitted twice.
type Requests interface {
	RequestKey(tenantID, userID, key string) string
	Begin(ctx context.Context, key string) (idempotency.State, string, error)
	Complete(ctx context.Context, key, result string) error
	Release(ctx context.Context, key string) error
}
