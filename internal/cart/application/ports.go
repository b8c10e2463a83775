package application

import (
	"context"

	"github.com/dmehra2102/restaurant-ordering/internal/cart/domain"
	catalog "github.com/dmehra2102/restaurant-ordering/internal/catalog/domain"
)

type Catalog interface {
	GetItem(ctx context.Context, tenantID, restaurantID, menuItemID string) (catalog.MenuItem, error)
}

// CartStore holds whole cart documents. Load returns domain.ErrCartNotFound
// when there is no cart for the pair.
type CartStore interface {
	Load(ctx context.Context, tenantID, userID string) (*domain.Cart, error)
	Save(ctx context.Context, c *domain.Cart) error
	Delete(ctx context.Context, tenantID, userID string) error
}
