package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/restaurant-ordering/internal/order/application"
	"github.com/dmehra2102/restaurant-ordering/internal/order/domain"
	"github.com/dmehra2102/restaurant-ordering/internal/platform/pgdb"
	"github.com/dmehra2102/restaurant-ordering/pkg/outbox"
)

const orderColumns = `id, tenant_id, order_number, customer_id, restaurant_id, status, payment_status,
	subtotal_cents, tax_cents, delivery_fee_cents, tip_cents, total_cents, currency,
	delivery_address, special_instructions, created_at, updated_at, delivered_at`

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) InTx(ctx context.Context, fn func(tx application.LedgerTx) error) error {
	return pgdb.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&ledgerTx{tx: tx})
	})
}

func (r *Repository) Get(ctx context.Context, tenantID, orderID string) (domain.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE tenant_id = $1 AND id = $2`, tenantID, orderID))
	if err != nil {
		return domain.Order{}, err
	}
	o.Items, err = loadItems(ctx, r.pool, tenantID, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (r *Repository) List(ctx context.Context, tenantID string, f domain.ListFilter) ([]domain.Order, int, error) {
	where := []string{"tenant_id = $1"}
	args := []any{tenantID}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != nil {
		add("status = $%d", string(*f.Status))
	}
	if f.RestaurantID != "" {
		add("restaurant_id = $%d", f.RestaurantID)
	}
	if f.CustomerID != "" {
		add("customer_id = $%d", f.CustomerID)
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at < $%d", *f.To)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM orders WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	args = append(args, f.PageSize, f.Offset())
	rows, err := r.pool.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM orders WHERE %s ORDER BY created_at DESC, order_number DESC LIMIT $%d OFFSET $%d`,
		orderColumns, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Order, error) {
		return scanOrder(row)
	})
	if err != nil {
		return nil, 0, err
	}

	for i := range orders {
		orders[i].Items, err = loadItems(ctx, r.pool, tenantID, orders[i].ID)
		if err != nil {
			return nil, 0, err
		}
	}
	return orders, total, nil
}

func (r *Repository) Summary(ctx context.Context, tenantID, restaurantID string, dayStart, dayEnd time.Time) (domain.Summary, error) {
	s := domain.Summary{CountsByStatus: map[domain.Status]int{}}

	rows, err := r.pool.Query(ctx, `
		SELECT status, count(*)
		FROM orders
		WHERE tenant_id = $1 AND restaurant_id = $2
		GROUP BY status`, tenantID, restaurantID)
	if err != nil {
		return s, fmt.Errorf("count orders by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return s, err
		}
		s.CountsByStatus[domain.Status(st)] = n
	}
	if err := rows.Err(); err != nil {
		return s, err
	}

	err = r.pool.QueryRow(ctx, `
		SELECT count(*), COALESCE(sum(total_cents), 0)
		FROM orders
		WHERE tenant_id = $1 AND restaurant_id = $2
		  AND created_at >= $3 AND created_at < $4
		  AND status <> $5`,
		tenantID, restaurantID, dayStart, dayEnd, string(domain.StatusCancelled)).
		Scan(&s.TodayOrders, &s.TodayRevenueCents)
	if err != nil {
		return s, fmt.Errorf("today's revenue: %w", err)
	}
	return s, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadItems(ctx context.Context, q querier, tenantID, orderID string) ([]domain.Item, error) {
	rows, err := q.Query(ctx, `
		SELECT line_no, menu_item_id, name, quantity, unit_price_cents, line_total_cents, special_instructions
		FROM order_items
		WHERE tenant_id = $1 AND order_id = $2
		ORDER BY line_no`, tenantID, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Item, error) {
		var it domain.Item
		err := row.Scan(&it.LineNo, &it.MenuItemID, &it.Name, &it.Quantity, &it.UnitPriceCents, &it.LineTotalCents, &it.SpecialInstructions)
		return it, err
	})
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	var status, payment string
	err := row.Scan(&o.ID, &o.TenantID, &o.OrderNumber, &o.CustomerID, &o.RestaurantID, &status, &payment,
		&o.SubtotalCents, &o.TaxCents, &o.DeliveryFeeCents, &o.TipCents, &o.TotalCents, &o.Currency,
		&o.DeliveryAddress, &o.SpecialInstructions, &o.CreatedAt, &o.UpdatedAt, &o.DeliveredAt)
	if pgdb.IsNoRows(err) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("scan order: %w", err)
	}
	o.Status = domain.Status(status)
	o.PaymentStatus = domain.PaymentStatus(payment)
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	if o.DeliveredAt != nil {
		at := o.DeliveredAt.UTC()
		o.DeliveredAt = &at
	}
	return o, nil
}

type ledgerTx struct {
	tx pgx.Tx
}

// NextOrderSequence bumps the tenant's counter for day. The row lock it takes
// serialises concurrent order creation for the tenant until commit.
func (t *ledgerTx) NextOrderSequence(ctx context.Context, tenantID string, day time.Time) (int, error) {
	var seq int
	err := t.tx.QueryRow(ctx, `
		INSERT INTO order_sequences (tenant_id, day, last_value)
		VALUES ($1, $2, 1)
		ON CONFLICT (tenant_id, day) DO UPDATE
		SET last_value = order_sequences.last_value + 1
		RETURNING last_value`, tenantID, day).Scan(&seq)
	return seq, err
}

func (t *ledgerTx) RestaurantTaxRate(ctx context.Context, tenantID, restaurantID string) (decimal.Decimal, bool, error) {
	var rate *string
	err := t.tx.QueryRow(ctx,
		`SELECT tax_rate::text FROM restaurants WHERE tenant_id = $1 AND id = $2`,
		tenantID, restaurantID).Scan(&rate)
	if pgdb.IsNoRows(err) || (err == nil && rate == nil) {
		return decimal.Decimal{}, false, nil
	}
	if err != nil {
		return decimal.Decimal{}, false, err
	}
	d, err := decimal.NewFromString(*rate)
	if err != nil {
		return decimal.Decimal{}, false, fmt.Errorf("parse tax rate %q: %w", *rate, err)
	}
	return d, true, nil
}

func (t *ledgerTx) InsertOrder(ctx context.Context, o domain.Order) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		o.ID, o.TenantID, o.OrderNumber, o.CustomerID, o.RestaurantID, string(o.Status), string(o.PaymentStatus),
		o.SubtotalCents, o.TaxCents, o.DeliveryFeeCents, o.TipCents, o.TotalCents, o.Currency,
		o.DeliveryAddress, o.SpecialInstructions, o.CreatedAt, o.UpdatedAt, o.DeliveredAt)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, it := range o.Items {
		batch.Queue(`INSERT INTO order_items (tenant_id, order_id, line_no, menu_item_id, name, quantity, unit_price_cents, line_total_cents, special_instructions)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			o.TenantID, o.ID, it.LineNo, it.MenuItemID, it.Name, it.Quantity, it.UnitPriceCents, it.LineTotalCents, it.SpecialInstructions)
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

func (t *ledgerTx) GetForUpdate(ctx context.Context, tenantID, orderID string) (domain.Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE tenant_id = $1 AND id = $2 FOR UPDATE`, tenantID, orderID))
	if err != nil {
		return domain.Order{}, err
	}
	o.Items, err = loadItems(ctx, t.tx, tenantID, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

// UpdateOrder writes the mutable columns only. Money and lines are fixed at
// creation.
func (t *ledgerTx) UpdateOrder(ctx context.Context, o domain.Order) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE orders
		SET status = $3, payment_status = $4, updated_at = $5, delivered_at = $6
		WHERE tenant_id = $1 AND id = $2`,
		o.TenantID, o.ID, string(o.Status), string(o.PaymentStatus), o.UpdatedAt, o.DeliveredAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (t *ledgerTx) AppendHistory(ctx context.Context, ch domain.StatusChange) error {
	var actor *string
	if ch.Actor != "" {
		actor = &ch.Actor
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO order_status_history (tenant_id, order_id, from_status, to_status, actor, changed_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		ch.TenantID, ch.OrderID, string(ch.From), string(ch.To), actor, ch.ChangedAt)
	return err
}

func (t *ledgerTx) AppendOutbox(ctx context.Context, ev outbox.Event) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO outbox (tenant_id, aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,'pending')`,
		ev.TenantID, ev.AggregateType, ev.AggregateID, ev.Type, ev.Payload, ev.Headers, ev.Traceparent)
	return err
}

// History returns the recorded transitions of one order, oldest first.
func (r *Repository) History(ctx context.Context, tenantID, orderID string) ([]domain.StatusChange, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT from_status, to_status, COALESCE(actor, ''), changed_at
		FROM order_status_history
		WHERE tenant_id = $1 AND order_id = $2
		ORDER BY id`, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.StatusChange, error) {
		ch := domain.StatusChange{TenantID: tenantID, OrderID: orderID}
		var from, to string
		err := row.Scan(&from, &to, &ch.Actor, &ch.ChangedAt)
		ch.From, ch.To = domain.Status(from), domain.Status(to)
		return ch, err
	})
}
