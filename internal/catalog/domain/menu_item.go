package domain

import "errors"

var ErrMenuItemNotFound = errors.New("menu item not found")

// MenuItem is the live catalog view of one purchasable item.
type MenuItem struct {
	ID           string
	RestaurantID string
	Name         string
	PriceCents   int64
	Available    bool
}
