package domain

import "time"

// Summary is a live view of one restaurant's orders.
type Summary struct {
	RestaurantID      string         `json:"restaurantId"`
	CountsByStatus    map[Status]int `json:"countsByStatus"`
	TodayOrders       int            `json:"todayOrders"`
	TodayRevenueCents int64          `json:"todayRevenueCents"`
	Day               string         `json:"day"`
}

type ListFilter struct {
	Status       *Status
	RestaurantID string
	CustomerID   string
	From         *time.Time
	To           *time.Time
	Page         int
	PageSize     int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize clamps paging to sane bounds.
func (f ListFilter) Normalize() ListFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	return f
}

func (f ListFilter) Offset() int { return (f.Page - 1) * f.PageSize }

type Page struct {
	Orders   []Order `json:"orders"`
	Total    int     `json:"total"`
	Page     int     `json:"page"`
	PageSize int     `json:"pageSize"`
}
