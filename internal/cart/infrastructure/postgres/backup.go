package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/restaurant-ordering/internal/cart/domain"
	"github.com/dmehra2102/restaurant-ordering/internal/platform/pgdb"
)

// Backup is the durable cart tier. A cleared cart is kept as a tombstone so a
// late mirror carrying an older write cannot bring it back.
type Backup struct {
	log  *slog.Logger
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewBackup(log *slog.Logger, pool *pgxpool.Pool) *Backup {
	return &Backup{log: log, pool: pool, now: time.Now}
}

func (b *Backup) Load(ctx context.Context, tenantID, userID string) (*domain.Cart, error) {
	c := &domain.Cart{TenantID: tenantID, UserID: userID, Items: []domain.Item{}}
	var restaurantID *string
	err := b.pool.QueryRow(ctx, `
		SELECT restaurant_id, updated_at, expires_at
		FROM carts
		WHERE tenant_id = $1 AND user_id = $2 AND deleted_at IS NULL`,
		tenantID, userID).Scan(&restaurantID, &c.UpdatedAt, &c.ExpiresAt)
	if pgdb.IsNoRows(err) {
		return nil, domain.ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if restaurantID != nil {
		c.RestaurantID = *restaurantID
	}

	rows, err := b.pool.Query(ctx, `
		SELECT id, restaurant_id, menu_item_id, name, unit_price_cents, quantity, instructions, added_at
		FROM cart_items
		WHERE tenant_id = $1 AND user_id = $2
		ORDER BY position`, tenantID, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it domain.Item
		if err := rows.Scan(&it.ID, &it.RestaurantID, &it.MenuItemID, &it.Name, &it.UnitPriceCents, &it.Quantity, &it.Instructions, &it.AddedAt); err != nil {
			return nil, err
		}
		c.Items = append(c.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	c.UpdatedAt = c.UpdatedAt.UTC()
	c.ExpiresAt = c.ExpiresAt.UTC()
	c.Recalculate()
	return c, nil
}

// Save replaces the stored cart unless a newer write (or a newer tombstone) is
// already there.
func (b *Backup) Save(ctx context.Context, c *domain.Cart) error {
	return pgdb.InTx(ctx, b.pool, func(tx pgx.Tx) error {
		var restaurantID *string
		if c.RestaurantID != "" {
			restaurantID = &c.RestaurantID
		}
		ct, err := tx.Exec(ctx, `
			INSERT INTO carts (tenant_id, user_id, restaurant_id, updated_at, expires_at, deleted_at)
			VALUES ($1,$2,$3,$4,$5,NULL)
			ON CONFLICT (tenant_id, user_id) DO UPDATE
			SET restaurant_id = EXCLUDED.restaurant_id,
			    updated_at = EXCLUDED.updated_at,
			    expires_at = EXCLUDED.expires_at,
			    deleted_at = NULL
			WHERE carts.updated_at < EXCLUDED.updated_at`,
			c.TenantID, c.UserID, restaurantID, c.UpdatedAt, c.ExpiresAt)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			b.log.Debug("stale cart write skipped", "tenant_id", c.TenantID, "user_id", c.UserID, "updated_at", c.UpdatedAt)
			return nil
		}

		if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE tenant_id = $1 AND user_id = $2`, c.TenantID, c.UserID); err != nil {
			return err
		}
		batch := &pgx.Batch{}
		for i, it := range c.Items {
			batch.Queue(`
				INSERT INTO cart_items (tenant_id, user_id, id, position, restaurant_id, menu_item_id, name, unit_price_cents, quantity, instructions, added_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
				c.TenantID, c.UserID, it.ID, i, it.RestaurantID, it.MenuItemID, it.Name, it.UnitPriceCents, it.Quantity, it.Instructions, it.AddedAt)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

// Delete tombstones the cart. The tombstone is written even when no cart row
// exists yet, since a mirror of an earlier write may still be in flight.
func (b *Backup) Delete(ctx context.Context, tenantID, userID string) error {
	now := b.now().UTC()
	return pgdb.InTx(ctx, b.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO carts (tenant_id, user_id, restaurant_id, updated_at, expires_at, deleted_at)
			VALUES ($1,$2,NULL,$3,$3,$3)
			ON CONFLICT (tenant_id, user_id) DO UPDATE
			SET restaurant_id = NULL,
			    deleted_at = $3,
			    expires_at = $3,
			    updated_at = GREATEST(carts.updated_at, $3)`,
			tenantID, userID, now)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM cart_items WHERE tenant_id = $1 AND user_id = $2`, tenantID, userID)
		return err
	})
}

// PurgeExpired drops tombstones and expired carts last written before cutoff.
func (b *Backup) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	ct, err := b.pool.Exec(ctx, `
		DELETE FROM carts
		WHERE (deleted_at IS NOT NULL AND deleted_at < $1) OR expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

// RunJanitor purges carts and tombstones older than retention every interval
// until ctx is done.
func (b *Backup) RunJanitor(ctx context.Context, interval, retention time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := b.PurgeExpired(ctx, b.now().Add(-retention))
			if err != nil {
				b.log.Error("cart purge failed", "err", err)
				continue
			}
			if n > 0 {
				b.log.Info("expired carts purged", "count", n)
			}
		}
	}
}
