package catalog

import (
	"context"
	"errors"
	"io"
	"log"

	"foodorder/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{pool: pool, logger: logger}
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.CatalogItem, error) {
	const q = `
SELECT id::text, restaurant_id::text, name, price_cents, available, quantity, created_at
FROM catalog_items
WHERE id = $1
`
	var item domain.CatalogItem
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&item.ID,
		&item.RestaurantID,
		&item.Name,
		&item.PriceCents,
		&item.Available,
		&item.Quantity,
		&item.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("catalog repo: get id=%s error=%v", id, err)
		return nil, err
	}
	return &item, nil
}

func (r *postgresRepo) ListByRestaurant(ctx context.Context, restaurantID string) ([]domain.CatalogItem, error) {
	const q = `
SELECT id::text, restaurant_id::text, name, price_cents, available, quantity, created_at
FROM catalog_items
WHERE restaurant_id = $1
ORDER BY name ASC
`
	rows, err := r.pool.Query(ctx, q, restaurantID)
	if err != nil {
		r.logger.Printf("catalog repo: list restaurant_id=%s error=%v", restaurantID, err)
		return nil, err
	}
	defer rows.Close()

	var result []domain.CatalogItem
	for rows.Next() {
		var item domain.CatalogItem
		if err := rows.Scan(
			&item.ID,
			&item.RestaurantID,
			&item.Name,
			&item.PriceCents,
			&item.Available,
			&item.Quantity,
			&item.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		r.logger.Printf("catalog repo: list rows restaurant_id=%s error=%v", restaurantID, err)
		return nil, err
	}
	return result, nil
}
