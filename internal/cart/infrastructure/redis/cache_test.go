package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/restaurant-ordering/internal/cart/domain"
)

func newCache(t *testing.T) (*Cache, *miniredis.Miniredis, time.Time) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	now := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)
	c := NewCache(rdb)
	c.now = func() time.Time { return now }
	return c, mr, now
}

func TestCacheRoundTripAndTTL(t *testing.T) {
	c, mr, now := newCache(t)
	ctx := context.Background()

	cart := domain.New("t1", "u1", now, domain.DefaultTTL)
	note := "extra lime"
	_, err := cart.Add(domain.Item{ID: "l1", RestaurantID: "r1", MenuItemID: "pad-thai", Name: "Pad Thai", UnitPriceCents: 1000, Quantity: 2, Instructions: &note, AddedAt: now})
	require.NoError(t, err)
	require.NoError(t, c.Save(ctx, cart))

	assert.Equal(t, domain.DefaultTTL, mr.TTL("cart:t1:u1"))

	got, err := c.Load(ctx, "t1", "u1")
	require.NoError(t, err)
	assert.Equal(t, cart, got)
}

func TestCacheExpiresWithCart(t *testing.T) {
	c, mr, now := newCache(t)
	ctx := context.Background()
	require.NoError(t, c.Save(ctx, domain.New("t1", "u1", now, time.Hour)))

	mr.FastForward(time.Hour + time.Second)
	_, err := c.Load(ctx, "t1", "u1")
	assert.ErrorIs(t, err, domain.ErrCartNotFound)
}

func TestCacheTenantIsolationAndDelete(t *testing.T) {
	c, _, now := newCache(t)
	ctx := context.Background()
	require.NoError(t, c.Save(ctx, domain.New("t1", "u1", now, time.Hour)))

	_, err := c.Load(ctx, "t2", "u1")
	assert.ErrorIs(t, err, domain.ErrCartNotFound)

	require.NoError(t, c.Delete(ctx, "t1", "u1"))
	require.NoError(t, c.Delete(ctx, "t1", "u1"))
	_, err = c.Load(ctx, "t1", "u1")
	assert.ErrorIs(t, err, domain.ErrCartNotFound)
}

func TestCacheReportsOutage(t *testing.T) {
	c, mr, _ := newCache(t)
	mr.Close()

	_, err := c.Load(context.Background(), "t1", "u1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrCartNotFound)
}
