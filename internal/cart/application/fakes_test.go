package application

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmehra2102/restaurant-ordering/internal/cart/domain"
	catalog "github.com/dmehra2102/restaurant-ordering/internal/catalog/domain"
)

type fakeCatalog struct {
	mu    sync.Mutex
	items map[string]catalog.MenuItem
	err   error
}

func newFakeCatalog(items ...catalog.MenuItem) *fakeCatalog {
	fc := &fakeCatalog{items: map[string]catalog.MenuItem{}}
	for _, it := range items {
		fc.items[it.ID] = it
	}
	return fc
}

func (f *fakeCatalog) GetItem(_ context.Context, _, restaurantID, menuItemID string) (catalog.MenuItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return catalog.MenuItem{}, f.err
	}
	it, ok := f.items[menuItemID]
	if !ok || it.RestaurantID != restaurantID {
		return catalog.MenuItem{}, catalog.ErrMenuItemNotFound
	}
	return it, nil
}

func (f *fakeCatalog) set(it catalog.MenuItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[it.ID] = it
}

func (f *fakeCatalog) remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, id)
}

var errDown = errors.New("backend down")

// memStore is an in-memory CartStore that can be told to fail.
type memStore struct {
	mu       sync.Mutex
	carts    map[string]*domain.Cart
	failLoad bool
	failSave bool
	failDel  bool
	saves    int
}

func newMemStore() *memStore { return &memStore{carts: map[string]*domain.Cart{}} }

func key(tenantID, userID string) string { return fmt.Sprintf("%s:%s", tenantID, userID) }

func (m *memStore) Load(_ context.Context, tenantID, userID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLoad {
		return nil, errDown
	}
	c, ok := m.carts[key(tenantID, userID)]
	if !ok {
		return nil, domain.ErrCartNotFound
	}
	return c.Clone(), nil
}

func (m *memStore) Save(_ context.Context, c *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return errDown
	}
	m.saves++
	m.carts[key(c.TenantID, c.UserID)] = c.Clone()
	return nil
}

func (m *memStore) Delete(_ context.Context, tenantID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDel {
		return errDown
	}
	delete(m.carts, key(tenantID, userID))
	return nil
}

func (m *memStore) has(tenantID, userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.carts[key(tenantID, userID)]
	return ok
}

func (m *memStore) get(tenantID, userID string) *domain.Cart {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.carts[key(tenantID, userID)]
}
