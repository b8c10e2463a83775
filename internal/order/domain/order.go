package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrEmptyOrder    = errors.New("order has no items")
	ErrInvalidLine   = errors.New("order line is invalid")
	ErrInvalidTip    = errors.New("tip must not be negative")
	// ErrPersistence wraps relational failures on order writes.
	ErrPersistence = errors.New("order could not be persisted")
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// Item is a line of a placed order. It is a snapshot and is never re-derived
// from the catalog.
type Item struct {
	LineNo              int     `json:"lineNo"`
	MenuItemID          string  `json:"menuItemId"`
	Name                string  `json:"name"`
	Quantity            int     `json:"quantity"`
	UnitPriceCents      int64   `json:"unitPriceCents"`
	LineTotalCents      int64   `json:"lineTotalCents"`
	SpecialInstructions *string `json:"specialInstructions,omitempty"`
}

type Order struct {
	ID                  string        `json:"id"`
	TenantID            string        `json:"tenantId"`
	OrderNumber         string        `json:"orderNumber"`
	CustomerID          string        `json:"customerId"`
	RestaurantID        string        `json:"restaurantId"`
	Status              Status        `json:"status"`
	PaymentStatus       PaymentStatus `json:"paymentStatus"`
	SubtotalCents       int64         `json:"subtotalCents"`
	TaxCents            int64         `json:"taxCents"`
	DeliveryFeeCents    int64         `json:"deliveryFeeCents"`
	TipCents            int64         `json:"tipCents"`
	TotalCents          int64         `json:"totalCents"`
	Currency            string        `json:"currency"`
	DeliveryAddress     *string       `json:"deliveryAddress,omitempty"`
	SpecialInstructions *string       `json:"specialInstructions,omitempty"`
	Items               []Item        `json:"items"`
	CreatedAt           time.Time     `json:"createdAt"`
	UpdatedAt           time.Time     `json:"updatedAt"`
	DeliveredAt         *time.Time    `json:"deliveredAt,omitempty"`
}

type Line struct {
	MenuItemID          string
	Name                string
	Quantity            int
	UnitPriceCents      int64
	SpecialInstructions *string
}

// Pricing holds the charges that do not come from the lines.
type Pricing struct {
	TaxRatePercent   decimal.Decimal
	DeliveryFeeCents int64
	TipCents         int64
	Currency         string
}

type Draft struct {
	ID                  string
	TenantID            string
	OrderNumber         string
	CustomerID          string
	RestaurantID        string
	Lines               []Line
	DeliveryAddress     *string
	SpecialInstructions *string
}

// NewOrder prices a draft. Totals are fixed here and never recomputed.
func NewOrder(d Draft, p Pricing, now time.Time) (Order, error) {
	if err := CheckLines(d.Lines); err != nil {
		return Order{}, err
	}
	if p.TipCents < 0 {
		return Order{}, ErrInvalidTip
	}

	items := make([]Item, 0, len(d.Lines))
	var subtotal int64
	for i, l := range d.Lines {
		lineTotal := l.UnitPriceCents * int64(l.Quantity)
		subtotal += lineTotal
		items = append(items, Item{
			LineNo:              i + 1,
			MenuItemID:          l.MenuItemID,
			Name:                l.Name,
			Quantity:            l.Quantity,
			UnitPriceCents:      l.UnitPriceCents,
			LineTotalCents:      lineTotal,
			SpecialInstructions: l.SpecialInstructions,
		})
	}

	tax := Tax(subtotal, p.TaxRatePercent)
	now = now.UTC()
	return Order{
		ID:                  d.ID,
		TenantID:            d.TenantID,
		OrderNumber:         d.OrderNumber,
		CustomerID:          d.CustomerID,
		RestaurantID:        d.RestaurantID,
		Status:              StatusPending,
		PaymentStatus:       PaymentPending,
		SubtotalCents:       subtotal,
		TaxCents:            tax,
		DeliveryFeeCents:    p.DeliveryFeeCents,
		TipCents:            p.TipCents,
		TotalCents:          subtotal + tax + p.DeliveryFeeCents + p.TipCents,
		Currency:            p.Currency,
		DeliveryAddress:     d.DeliveryAddress,
		SpecialInstructions: d.SpecialInstructions,
		Items:               items,
		CreatedAt:           now,
		UpdatedAt:           now,
	}, nil
}

func CheckLines(lines []Line) error {
	if len(lines) == 0 {
		return ErrEmptyOrder
	}
	for i, l := range lines {
		if l.MenuItemID == "" || l.Quantity < 1 || l.UnitPriceCents < 0 {
			return fmt.Errorf("%w: line %d", ErrInvalidLine, i+1)
		}
	}
	return nil
}

// Tax applies a percentage rate to subtotal, rounding half away from zero to
// whole cents.
func Tax(subtotalCents int64, ratePercent decimal.Decimal) int64 {
	return decimal.NewFromInt(subtotalCents).
		Mul(ratePercent).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}
