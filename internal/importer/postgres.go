package importer

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) MenuStore {
	return &postgresStore{pool: pool}
}

func (s *postgresStore) UpsertRestaurant(ctx context.Context, name, status string) (string, error) {
	const q = `
INSERT INTO restaurants (name, status)
VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE SET status = EXCLUDED.status
RETURNING id::text
`
	var id string
	if err := s.pool.QueryRow(ctx, q, name, status).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

func (s *postgresStore) UpsertItem(ctx context.Context, restaurantID string, item ItemRecord) error {
	const q = `
INSERT INTO catalog_items (restaurant_id, name, price_cents, available, quantity)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (restaurant_id, name) DO UPDATE
SET price_cents = EXCLUDED.price_cents,
    available = EXCLUDED.available,
    quantity = EXCLUDED.quantity
`
	_, err := s.pool.Exec(ctx, q, restaurantID, item.Name, item.PriceCents, item.Available, item.Quantity)
	return err
}
