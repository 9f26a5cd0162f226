package catalog

import (
	"context"

	"foodorder/internal/domain"
)

// Repository reads catalog items. Stock writes are deliberately absent:
// quantity is only mutated inside the order repository's placement and
// cancellation transactions.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.CatalogItem, error)
	ListByRestaurant(ctx context.Context, restaurantID string) ([]domain.CatalogItem, error)
}
