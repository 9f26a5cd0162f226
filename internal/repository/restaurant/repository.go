package restaurant

import (
	"context"

	"foodorder/internal/domain"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Restaurant, error)
}
