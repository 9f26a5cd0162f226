package domain

import "time"

type Order struct {
	ID                  string      `json:"id"`
	CustomerID          string      `json:"customerId"`
	RestaurantID        string      `json:"restaurantId"`
	Status              OrderStatus `json:"status"`
	DeliveryAddress     string      `json:"deliveryAddress"`
	Phone               string      `json:"phone"`
	Notes               string      `json:"notes,omitempty"`
	CancelReason        string      `json:"cancelReason,omitempty"`
	TotalCents          int64       `json:"totalCents"`
	EstimatedDeliveryAt *time.Time  `json:"estimatedDeliveryAt,omitempty"`
	DeliveredAt         *time.Time  `json:"deliveredAt,omitempty"`
	CreatedAt           time.Time   `json:"createdAt"`
	Lines               []OrderLine `json:"lineItems,omitempty"`
}

// OrderLine is one catalog item inside an order. The unit price is a
// snapshot taken when the line was added and is never re-read from the
// catalog. Lines have no identity outside their order.
type OrderLine struct {
	ID             string    `json:"id"`
	OrderID        string    `json:"orderId"`
	CatalogItemID  string    `json:"catalogItemId"`
	ItemName       string    `json:"itemName"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unitPriceCents"`
	TotalCents     int64     `json:"totalCents"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Line returns the line for the given catalog item, or nil.
func (o *Order) Line(catalogItemID string) *OrderLine {
	for i := range o.Lines {
		if o.Lines[i].CatalogItemID == catalogItemID {
			return &o.Lines[i]
		}
	}
	return nil
}

// CustomerStatistics is a read-side projection over a customer's orders.
// Completed means DELIVERED; the spent total covers completed orders only.
type CustomerStatistics struct {
	CustomerID      string `json:"customerId"`
	TotalOrders     int    `json:"totalOrders"`
	CompletedOrders int    `json:"completedOrders"`
	CancelledOrders int    `json:"cancelledOrders"`
	TotalSpentCents int64  `json:"totalSpentCents"`
}
