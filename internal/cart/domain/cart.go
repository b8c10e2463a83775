package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrCartNotFound       = errors.New("cart not found")
	ErrItemNotFound       = errors.New("item not found")
	ErrItemUnavailable    = errors.New("item is not available")
	ErrRestaurantMismatch = errors.New("cart already holds items from another restaurant")
	ErrInvalidQuantity    = errors.New("quantity must be at least 1")
	// ErrPersistence means neither the cache nor the backup accepted a write.
	ErrPersistence = errors.New("cart could not be persisted")
)

// DefaultTTL is how long a cart survives without being written.
const DefaultTTL = 24 * time.Hour

type Item struct {
	ID             string    `json:"id"`
	RestaurantID   string    `json:"restaurantId"`
	MenuItemID     string    `json:"menuItemId"`
	Name           string    `json:"name"`
	UnitPriceCents int64     `json:"unitPriceCents"`
	Quantity       int       `json:"quantity"`
	Instructions   *string   `json:"instructions,omitempty"`
	AddedAt        time.Time `json:"addedAt"`
}

func (i Item) LineTotalCents() int64 {
	return i.UnitPriceCents * int64(i.Quantity)
}

// Cart is the shopping cart of one user within one tenant. SubtotalCents and
// ItemCount are derived from Items by Recalculate and are never set directly.
type Cart struct {
	TenantID      string    `json:"tenantId"`
	UserID        string    `json:"userId"`
	RestaurantID  string    `json:"restaurantId,omitempty"`
	Items         []Item    `json:"items"`
	SubtotalCents int64     `json:"subtotalCents"`
	ItemCount     int       `json:"itemCount"`
	UpdatedAt     time.Time `json:"updatedAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

func New(tenantID, userID string, now time.Time, ttl time.Duration) *Cart {
	c := &Cart{
		TenantID: tenantID,
		UserID:   userID,
		Items:    []Item{},
	}
	c.Touch(now, ttl)
	return c
}

func (c *Cart) IsEmpty() bool { return len(c.Items) == 0 }

func (c *Cart) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}

// Touch records a write and restarts the expiry window.
func (c *Cart) Touch(now time.Time, ttl time.Duration) {
	c.UpdatedAt = now.UTC()
	c.ExpiresAt = c.UpdatedAt.Add(ttl)
}

func (c *Cart) Recalculate() {
	var subtotal int64
	var count int
	for _, it := range c.Items {
		subtotal += it.LineTotalCents()
		count += it.Quantity
	}
	c.SubtotalCents = subtotal
	c.ItemCount = count
	if len(c.Items) == 0 {
		c.RestaurantID = ""
	}
}

func (c *Cart) indexOf(itemID string) int {
	for i, it := range c.Items {
		if it.ID == itemID {
			return i
		}
	}
	return -1
}

func (c *Cart) indexOfMenuItem(menuItemID string) int {
	for i, it := range c.Items {
		if it.MenuItemID == menuItemID {
			return i
		}
	}
	return -1
}

// Add merges item into the cart. An item for a menu item already in the cart
// increases that line's quantity and replaces its instructions; otherwise
// item is appended as a new line. The cart is unchanged on error.
func (c *Cart) Add(item Item) (Item, error) {
	if item.Quantity < 1 {
		return Item{}, ErrInvalidQuantity
	}
	if !c.IsEmpty() && c.RestaurantID != item.RestaurantID {
		return Item{}, fmt.Errorf("%w: cart restaurant %s, item restaurant %s", ErrRestaurantMismatch, c.RestaurantID, item.RestaurantID)
	}

	if i := c.indexOfMenuItem(item.MenuItemID); i >= 0 {
		c.Items[i].Quantity += item.Quantity
		c.Items[i].Instructions = item.Instructions
		c.Recalculate()
		return c.Items[i], nil
	}

	c.RestaurantID = item.RestaurantID
	c.Items = append(c.Items, item)
	c.Recalculate()
	return item, nil
}

type ItemChanges struct {
	Quantity     *int
	Instructions *string
}

// Update applies changes to one line. A quantity of zero or less removes it.
func (c *Cart) Update(itemID string, ch ItemChanges) error {
	i := c.indexOf(itemID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}

	if ch.Quantity != nil && *ch.Quantity <= 0 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		c.Recalculate()
		return nil
	}
	if ch.Quantity != nil {
		c.Items[i].Quantity = *ch.Quantity
	}
	if ch.Instructions != nil {
		c.Items[i].Instructions = ch.Instructions
	}
	c.Recalculate()
	return nil
}

func (c *Cart) Clone() *Cart {
	out := *c
	out.Items = make([]Item, len(c.Items))
	copy(out.Items, c.Items)
	return &out
}
