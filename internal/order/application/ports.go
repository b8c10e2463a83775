package application

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/restaurant-ordering/internal/order/domain"
	"github.com/dmehra2102/restaurant-ordering/pkg/outbox"
)

// OrderRepository reads orders and opens ledger transactions. Get returns
// domain.ErrOrderNotFound for an unknown id.
type OrderRepository interface {
	InTx(ctx context.Context, fn func(tx LedgerTx) error) error
	Get(ctx context.Context, tenantID, orderID string) (domain.Order, error)
	List(ctx context.Context, tenantID string, f domain.ListFilter) ([]domain.Order, int, error)
	Summary(ctx context.Context, tenantID, restaurantID string, dayStart, dayEnd time.Time) (domain.Summary, error)
	// History lists an order's transitions, oldest first.
	History(ctx context.Context, tenantID, orderID string) ([]domain.StatusChange, error)
}

// LedgerTx is the set of writes that must commit together.
type LedgerTx interface {
	NextOrderSequence(ctx context.Context, tenantID string, day time.Time) (int, error)
	// RestaurantTaxRate reports ok=false when the restaurant has no rate set.
	RestaurantTaxRate(ctx context.Context, tenantID, restaurantID string) (rate decimal.Decimal, ok bool, err error)
	InsertOrder(ctx context.Context, o domain.Order) error
	GetForUpdate(ctx context.Context, tenantID, orderID string) (domain.Order, error)
	UpdateOrder(ctx context.Context, o domain.Order) error
	AppendHistory(ctx context.Context, ch domain.StatusChange) error
	AppendOutbox(ctx context.Context, ev outbox.Event) error
}
