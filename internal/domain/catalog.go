package domain

import "time"

const RestaurantStatusApproved = "approved"

type Restaurant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// CatalogItem is a sellable menu item. Quantity is the shared stock
// count consumed by order placement and restored by cancellation; it is
// never written by cart mutation.
type CatalogItem struct {
	ID           string    `json:"id"`
	RestaurantID string    `json:"restaurantId"`
	Name         string    `json:"name"`
	PriceCents   int64     `json:"priceCents"`
	Available    bool      `json:"available"`
	Quantity     int       `json:"quantity"`
	CreatedAt    time.Time `json:"createdAt"`
}
