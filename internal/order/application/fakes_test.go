package application

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/restaurant-ordering/internal/order/domain"
	"github.com/dmehra2102/restaurant-ordering/pkg/outbox"
)

var errDB = errors.New("connection reset")

func okey(tenantID, id string) string { return tenantID + "/" + id }

func cloneOrder(o domain.Order) domain.Order {
	o.Items = append([]domain.Item(nil), o.Items...)
	return o
}

// memRepo keeps committed state and hands each transaction a private copy.
type memRepo struct {
	mu      sync.Mutex
	orders  map[string]domain.Order
	seqs    map[string]int
	rates   map[string]decimal.Decimal
	history []domain.StatusChange
	events  []outbox.Event

	failInsert error
	failOutbox error
	failUpdate error
}

func newMemRepo() *memRepo {
	return &memRepo{
		orders: map[string]domain.Order{},
		seqs:   map[string]int{},
		rates:  map[string]decimal.Decimal{},
	}
}

func (m *memRepo) InTx(ctx context.Context, fn func(tx LedgerTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{
		repo:    m,
		orders:  make(map[string]domain.Order, len(m.orders)),
		seqs:    make(map[string]int, len(m.seqs)),
		history: append([]domain.StatusChange(nil), m.history...),
		events:  append([]outbox.Event(nil), m.events...),
	}
	for k, v := range m.orders {
		tx.orders[k] = cloneOrder(v)
	}
	for k, v := range m.seqs {
		tx.seqs[k] = v
	}
	if err := fn(tx); err != nil {
		return err
	}
	m.orders, m.seqs, m.history, m.events = tx.orders, tx.seqs, tx.history, tx.events
	return nil
}

func (m *memRepo) Get(_ context.Context, tenantID, orderID string) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[okey(tenantID, orderID)]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (m *memRepo) List(_ context.Context, tenantID string, f domain.ListFilter) ([]domain.Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Order
	for _, o := range m.orders {
		switch {
		case o.TenantID != tenantID,
			f.Status != nil && o.Status != *f.Status,
			f.RestaurantID != "" && o.RestaurantID != f.RestaurantID,
			f.CustomerID != "" && o.CustomerID != f.CustomerID,
			f.From != nil && o.CreatedAt.Before(*f.From),
			f.To != nil && !o.CreatedAt.Before(*f.To):
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNumber > out[j].OrderNumber })

	total := len(out)
	lo := min(f.Offset(), total)
	hi := min(lo+f.PageSize, total)
	return out[lo:hi], total, nil
}

func (m *memRepo) Summary(_ context.Context, tenantID, restaurantID string, start, end time.Time) (domain.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := domain.Summary{CountsByStatus: map[domain.Status]int{}}
	for _, o := range m.orders {
		if o.TenantID != tenantID || o.RestaurantID != restaurantID {
			continue
		}
		s.CountsByStatus[o.Status]++
		if !o.CreatedAt.Before(start) && o.CreatedAt.Before(end) && o.Status != domain.StatusCancelled {
			s.TodayOrders++
			s.TodayRevenueCents += o.TotalCents
		}
	}
	return s, nil
}

func (m *memRepo) History(_ context.Context, tenantID, orderID string) ([]domain.StatusChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.StatusChange
	for _, ch := range m.history {
		if ch.TenantID == tenantID && ch.OrderID == orderID {
			out = append(out, ch)
		}
	}
	return out, nil
}

type memTx struct {
	repo    *memRepo
	orders  map[string]domain.Order
	seqs    map[string]int
	history []domain.StatusChange
	events  []outbox.Event
}

func (t *memTx) NextOrderSequence(_ context.Context, tenantID string, day time.Time) (int, error) {
	k := tenantID + "/" + day.Format(time.DateOnly)
	t.seqs[k]++
	return t.seqs[k], nil
}

func (t *memTx) RestaurantTaxRate(_ context.Context, tenantID, restaurantID string) (decimal.Decimal, bool, error) {
	r, ok := t.repo.rates[okey(tenantID, restaurantID)]
	return r, ok, nil
}

func (t *memTx) InsertOrder(_ context.Context, o domain.Order) error {
	if t.repo.failInsert != nil {
		return t.repo.failInsert
	}
	t.orders[okey(o.TenantID, o.ID)] = cloneOrder(o)
	return nil
}

func (t *memTx) GetForUpdate(_ context.Context, tenantID, orderID string) (domain.Order, error) {
	o, ok := t.orders[okey(tenantID, orderID)]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (t *memTx) UpdateOrder(_ context.Context, o domain.Order) error {
	if t.repo.failUpdate != nil {
		return t.repo.failUpdate
	}
	t.orders[okey(o.TenantID, o.ID)] = cloneOrder(o)
	return nil
}

func (t *memTx) AppendHistory(_ context.Context, ch domain.StatusChange) error {
	t.history = append(t.history, ch)
	return nil
}

func (t *memTx) AppendOutbox(_ context.Context, ev outbox.Event) error {
	if t.repo.failOutbox != nil {
		return t.repo.failOutbox
	}
	t.events = append(t.events, ev)
	return nil
}
