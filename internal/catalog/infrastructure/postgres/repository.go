package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/restaurant-ordering/internal/catalog/domain"
	"github.com/dmehra2102/restaurant-ordering/internal/platform/pgdb"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) GetMenuItem(ctx context.Context, tenantID, restaurantID, menuItemID string) (domain.MenuItem, error) {
	var m domain.MenuItem
	err := r.pool.QueryRow(ctx, `
		SELECT id, restaurant_id, name, price_cents, available
		FROM menu_items
		WHERE tenant_id = $1 AND restaurant_id = $2 AND id = $3`,
		tenantID, restaurantID, menuItemID).
		Scan(&m.ID, &m.RestaurantID, &m.Name, &m.PriceCents, &m.Available)
	if pgdb.IsNoRows(err) {
		return domain.MenuItem{}, domain.ErrMenuItemNotFound
	}
	if err != nil {
		return domain.MenuItem{}, fmt.Errorf("get menu item %s: %w", menuItemID, err)
	}
	return m, nil
}

// UpsertMenuItem is used by seeding and tests; the catalog itself is owned by
// the operator dashboard.
func (r *Repository) UpsertMenuItem(ctx context.Context, tenantID string, m domain.MenuItem) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO menu_items (tenant_id, id, restaurant_id, name, price_cents, available, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now())
		ON CONFLICT (tenant_id, id) DO UPDATE
		SET restaurant_id=$3, name=$4, price_cents=$5, available=$6, updated_at=now()`,
		tenantID, m.ID, m.RestaurantID, m.Name, m.PriceCents, m.Available)
	return err
}

// UpsertRestaurant stores a restaurant and its tax rate. A nil rate means the
// platform default applies.
func (r *Repository) UpsertRestaurant(ctx context.Context, tenantID, id, name string, taxRate *decimal.Decimal) error {
	var rate *string
	if taxRate != nil {
		s := taxRate.String()
		rate = &s
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO restaurants (tenant_id, id, name, tax_rate)
		VALUES ($1,$2,$3,$4::numeric)
		ON CONFLICT (tenant_id, id) DO UPDATE
		SET name=$3, tax_rate=$4::numeric`,
		tenantID, id, name, rate)
	return err
}
