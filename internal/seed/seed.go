package seed

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type itemSeed struct {
	Name       string
	PriceCents int64
	Available  bool
	Quantity   int
}

// Apply inserts basic seed data for manual testing. It is idempotent via ON CONFLICT.
func Apply(ctx context.Context, pool *pgxpool.Pool) error {
	restaurantID, err := ensureRestaurant(ctx, pool, "Demo Pizzeria", "approved")
	if err != nil {
		return fmt.Errorf("ensure restaurant: %w", err)
	}

	items := []itemSeed{
		{
			Name:       "Margherita",
			PriceCents: 1050,
			Available:  true,
			Quantity:   25,
		},
		{
			Name:       "Quattro Formaggi",
			PriceCents: 1350,
			Available:  true,
			Quantity:   15,
		},
		{
			Name:       "Tiramisu",
			PriceCents: 650,
			Available:  true,
			Quantity:   10,
		},
		{
			Name:       "Seasonal Special",
			PriceCents: 1550,
			Available:  false,
			Quantity:   0,
		},
	}

	for _, item := range items {
		if err := upsertItem(ctx, pool, restaurantID, item); err != nil {
			return fmt.Errorf("upsert item %s: %w", item.Name, err)
		}
	}

	return nil
}

func ensureRestaurant(ctx context.Context, pool *pgxpool.Pool, name, status string) (string, error) {
	const q = `
INSERT INTO restaurants (name, status)
VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE SET status = EXCLUDED.status
RETURNING id::text
`
	var id string
	if err := pool.QueryRow(ctx, q, name, status).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

func upsertItem(ctx context.Context, pool *pgxpool.Pool, restaurantID string, item itemSeed) error {
	const q = `
INSERT INTO catalog_items (restaurant_id, name, price_cents, available, quantity)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (restaurant_id, name) DO UPDATE
SET price_cents = EXCLUDED.price_cents,
    available = EXCLUDED.available,
    quantity = EXCLUDED.quantity
`
	_, err := pool.Exec(ctx, q, restaurantID, item.Name, item.PriceCents, item.Available, item.Quantity)
	return err
}
