package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/restaurant-ordering/internal/cart/domain"
	catalog "github.com/dmehra2102/restaurant-ordering/internal/catalog/domain"
)

type Service struct {
	log     *slog.Logger
	catalog Catalog
	store   CartStore
	ttl     time.Duration
	now     func() time.Time
	newID   func() string
	tracer  trace.Tracer
}

type Option func(*Service)

func WithTTL(ttl time.Duration) Option { return func(s *Service) { s.ttl = ttl } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithIDGenerator(fn func() string) Option { return func(s *Service) { s.newID = fn } }

func NewService(log *slog.Logger, catalog Catalog, store CartStore, opts ...Option) *Service {
	s := &Service{
		log:     log,
		catalog: catalog,
		store:   store,
		ttl:     domain.DefaultTTL,
		now:     time.Now,
		newID:   uuid.NewString,
		tracer:  otel.Tracer("cart-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type AddItemInput struct {
	RestaurantID string
	MenuItemID   string
	Quantity     int
	Instructions *string
}

// Get returns the user's cart, or nil when there is none. An expired cart is
// deleted and reported as none.
func (s *Service) Get(ctx context.Context, tenantID, userID string) (*domain.Cart, error) {
	c, err := s.store.Load(ctx, tenantID, userID)
	if errors.Is(err, domain.ErrCartNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if c.Expired(s.now()) {
		if err := s.store.Delete(ctx, tenantID, userID); err != nil {
			s.log.Warn("expired cart delete failed", "tenant_id", tenantID, "user_id", userID, "err", err)
		}
		return nil, nil
	}
	c.Recalculate()
	return c, nil
}

func (s *Service) AddItem(ctx context.Context, tenantID, userID string, in AddItemInput) (*domain.Cart, error) {
	ctx, span := s.tracer.Start(ctx, "Cart.AddItem", trace.WithAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("menu_item_id", in.MenuItemID),
	))
	defer span.End()

	if in.Quantity < 1 {
		return nil, domain.ErrInvalidQuantity
	}

	mi, err := s.catalog.GetItem(ctx, tenantID, in.RestaurantID, in.MenuItemID)
	if errors.Is(err, catalog.ErrMenuItemNotFound) {
		return nil, fmt.Errorf("%w: menu item %s", domain.ErrItemNotFound, in.MenuItemID)
	}
	if err != nil {
		return nil, err
	}
	if !mi.Available {
		return nil, fmt.Errorf("%w: %s", domain.ErrItemUnavailable, mi.Name)
	}

	c, err := s.Get(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if c == nil {
		c = domain.New(tenantID, userID, now, s.ttl)
	}

	_, err = c.Add(domain.Item{
		ID:             s.newID(),
		RestaurantID:   mi.RestaurantID,
		MenuItemID:     mi.ID,
		Name:           mi.Name,
		UnitPriceCents: mi.PriceCents,
		Quantity:       in.Quantity,
		Instructions:   in.Instructions,
		AddedAt:        now.UTC(),
	})
	if err != nil {
		return nil, err
	}
	return s.save(ctx, c, now)
}

func (s *Service) UpdateItem(ctx context.Context, tenantID, userID, itemID string, ch domain.ItemChanges) (*domain.Cart, error) {
	c, err := s.Get(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, domain.ErrCartNotFound
	}
	if err := c.Update(itemID, ch); err != nil {
		return nil, err
	}
	return s.save(ctx, c, s.now())
}

func (s *Service) RemoveItem(ctx context.Context, tenantID, userID, itemID string) (*domain.Cart, error) {
	zero := 0
	return s.UpdateItem(ctx, tenantID, userID, itemID, domain.ItemChanges{Quantity: &zero})
}

func (s *Service) Clear(ctx context.Context, tenantID, userID string) error {
	return s.store.Delete(ctx, tenantID, userID)
}

// Validate loads the cart and checks it against the live catalog.
func (s *Service) Validate(ctx context.Context, tenantID, userID string) (domain.Validation, error) {
	c, err := s.Get(ctx, tenantID, userID)
	if err != nil {
		return domain.Validation{}, err
	}
	return s.ValidateCart(ctx, c)
}

// ValidateCart checks every line of c for removal, unavailability and price
// drift. It never modifies c.
func (s *Service) ValidateCart(ctx context.Context, c *domain.Cart) (domain.Validation, error) {
	ctx, span := s.tracer.Start(ctx, "Cart.Validate")
	defer span.End()

	if c == nil || c.IsEmpty() {
		return domain.Validation{Valid: false, Issues: []domain.Issue{domain.EmptyCartIssue()}}, nil
	}

	issues := []domain.Issue{}
	for _, it := range c.Items {
		mi, err := s.catalog.GetItem(ctx, c.TenantID, it.RestaurantID, it.MenuItemID)
		switch {
		case errors.Is(err, catalog.ErrMenuItemNotFound):
			issues = append(issues, domain.RemovedIssue(it))
		case err != nil:
			return domain.Validation{}, fmt.Errorf("validate item %s: %w", it.MenuItemID, err)
		case !mi.Available:
			issues = append(issues, domain.UnavailableIssue(it))
		case mi.PriceCents != it.UnitPriceCents:
			issues = append(issues, domain.PriceChangedIssue(it, mi.PriceCents))
		}
	}
	return domain.Validation{Valid: len(issues) == 0, Issues: issues}, nil
}

func (s *Service) save(ctx context.Context, c *domain.Cart, now time.Time) (*domain.Cart, error) {
	c.Touch(now, s.ttl)
	if err := s.store.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}
