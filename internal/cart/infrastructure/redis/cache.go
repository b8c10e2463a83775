package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/restaurant-ordering/internal/cart/domain"
)

// Cache stores each cart as one JSON document whose key expires together with
// the cart.
type Cache struct {
	rdb redis.Cmdable
	now func() time.Time
}

func NewCache(rdb redis.Cmdable) *Cache {
	return &Cache{rdb: rdb, now: time.Now}
}

func Key(tenantID, userID string) string {
	return fmt.Sprintf("cart:%s:%s", tenantID, userID)
}

func (c *Cache) Load(ctx context.Context, tenantID, userID string) (*domain.Cart, error) {
	raw, err := c.rdb.Get(ctx, Key(tenantID, userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrCartNotFound
	}
	if err != nil {
		return nil, err
	}

	var cart domain.Cart
	if err := json.Unmarshal(raw, &cart); err != nil {
		return nil, fmt.Errorf("decode cached cart: %w", err)
	}
	if cart.Items == nil {
		cart.Items = []domain.Item{}
	}
	return &cart, nil
}

func (c *Cache) Save(ctx context.Context, cart *domain.Cart) error {
	raw, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	ttl := cart.ExpiresAt.Sub(c.now())
	if ttl < time.Second {
		ttl = time.Second
	}
	return c.rdb.Set(ctx, Key(cart.TenantID, cart.UserID), raw, ttl).Err()
}

func (c *Cache) Delete(ctx context.Context, tenantID, userID string) error {
	return c.rdb.Del(ctx, Key(tenantID, userID)).Err()
}
