package domain

import "time"

const AggregateType = "order"

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
)

type OrderPlaced struct {
	OrderID      string       `json:"orderId"`
	OrderNumber  string       `json:"orderNumber"`
	TenantID     string       `json:"tenantId"`
	CustomerID   string       `json:"customerId"`
	RestaurantID string       `json:"restaurantId"`
	TotalCents   int64        `json:"totalCents"`
	Currency     string       `json:"currency"`
	Items        []PlacedItem `json:"items"`
	PlacedAt     time.Time    `json:"placedAt"`
}

type PlacedItem struct {
	MenuItemID string `json:"menuItemId"`
	Quantity   int    `json:"quantity"`
}

func NewOrderPlaced(o Order) OrderPlaced {
	items := make([]PlacedItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, PlacedItem{MenuItemID: it.MenuItemID, Quantity: it.Quantity})
	}
	return OrderPlaced{
		OrderID:      o.ID,
		OrderNumber:  o.OrderNumber,
		TenantID:     o.TenantID,
		CustomerID:   o.CustomerID,
		RestaurantID: o.RestaurantID,
		TotalCents:   o.TotalCents,
		Currency:     o.Currency,
		Items:        items,
		PlacedAt:     o.CreatedAt,
	}
}

type OrderStatusChanged struct {
	OrderID     string    `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	TenantID    string    `json:"tenantId"`
	From        Status    `json:"from"`
	To          Status    `json:"to"`
	Actor       string    `json:"actor,omitempty"`
	ChangedAt   time.Time `json:"changedAt"`
}

// Payment events arrive from the payment service on its own topic.
const (
	EventPaymentProcessed = "PaymentProcessed"
	EventPaymentFailed    = "PaymentFailed"
)

type PaymentProcessed struct {
	TenantID    string `json:"tenantId"`
	OrderID     string `json:"orderId"`
	AmountCents int64  `json:"amountCents"`
}

type PaymentFailedEvent struct {
	TenantID string `json:"tenantId"`
	OrderID  string `json:"orderId"`
	Reason   string `json:"reason"`
}
