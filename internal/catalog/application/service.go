package application

import (
	"context"

	"github.com/dmehra2102/restaurant-ordering/internal/catalog/domain"
)

// Service is a read-only lookup over the menu. Reads always hit the store.
type Service struct {
	repo MenuRepository
}

func NewService(repo MenuRepository) *Service {
	return &Service{repo: repo}
}

// GetItem returns domain.ErrMenuItemNotFound when the item does not exist for
// the tenant and restaurant.
func (s *Service) GetItem(ctx context.Context, tenantID, restaurantID, menuItemID string) (domain.MenuItem, error) {
	return s.repo.GetMenuItem(ctx, tenantID, restaurantID, menuItemID)
}
