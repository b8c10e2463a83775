package application

import (
	"context"

	"github.com/dmehra2102/restaurant-ordering/internal/catalog/domain"
)

type MenuRepository interface {
	GetMenuItem(ctx context.Context, tenantID, restaurantID, menuItemID string) (domain.MenuItem, error)
}
