package order

import (
	"context"
	"time"

	"foodorder/internal/domain"
)

type CreateOrderInput struct {
	CustomerID      string
	RestaurantID    string
	DeliveryAddress string
	Phone           string
	Notes           string
}

// Repository persists orders and their lines. Place and Cancel own the
// only write paths to catalog stock; both run as a single transaction
// with row-level locks so a check never races its decrement.
type Repository interface {
	Create(ctx context.Context, in CreateOrderInput) (*domain.Order, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	AddLine(ctx context.Context, orderID string, item domain.CatalogItem, quantity int) error
	RemoveLine(ctx context.Context, orderID, catalogItemID string) error
	SetLineQuantity(ctx context.Context, orderID, catalogItemID string, quantity int) error

	Place(ctx context.Context, orderID string, estimatedDelivery time.Time) error
	Cancel(ctx context.Context, orderID, reason string) error
	UpdateStatus(ctx context.Context, orderID string, from, to domain.OrderStatus) error

	ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error)
	ListByRestaurant(ctx context.Context, restaurantID string) ([]domain.Order, error)
	ListByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error)
	ListActive(ctx context.Context) ([]domain.Order, error)

	CustomerStatistics(ctx context.Context, customerID string) (*domain.CustomerStatistics, error)
}
