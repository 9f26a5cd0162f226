package order

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

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

const orderColumns = `id::text, customer_id::text, restaurant_id::text, status, delivery_address, phone, notes, cancel_reason, total_cents, estimated_delivery_at, delivered_at, created_at`

func (r *postgresRepo) Create(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	const q = `
INSERT INTO orders (customer_id, restaurant_id, status, delivery_address, phone, notes)
VALUES ($1, $2, 'PENDING', $3, $4, $5)
RETURNING ` + orderColumns + `
`
	row := r.pool.QueryRow(ctx, q, in.CustomerID, in.RestaurantID, in.DeliveryAddress, in.Phone, in.Notes)
	order, err := scanOrder(row)
	if err != nil {
		r.logger.Printf("order repo: create customer_id=%s error=%v", in.CustomerID, err)
		return nil, err
	}
	return order, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	const q = `
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1
`
	order, err := scanOrder(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	const linesQuery = `
SELECT id::text, order_id::text, catalog_item_id::text, item_name, quantity, unit_price_cents, total_cents, created_at
FROM order_lines
WHERE order_id = $1
ORDER BY created_at ASC
`
	rows, err := r.pool.Query(ctx, linesQuery, order.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(
			&line.ID,
			&line.OrderID,
			&line.CatalogItemID,
			&line.ItemName,
			&line.Quantity,
			&line.UnitPriceCents,
			&line.TotalCents,
			&line.CreatedAt,
		); err != nil {
			return nil, err
		}
		order.Lines = append(order.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return order, nil
}

// AddLine merges quantity into an existing line for the same catalog
// item or inserts a new one, then recomputes the order total, all in
// one transaction. The order row is locked so the PENDING check cannot
// race a concurrent placement.
func (r *postgresRepo) AddLine(ctx context.Context, orderID string, item domain.CatalogItem, quantity int) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := lockPendingOrder(ctx, tx, orderID); err != nil {
		return err
	}

	var lineID string
	var existingQty int
	var unitPrice int64
	err = tx.QueryRow(ctx, `
SELECT id::text, quantity, unit_price_cents
FROM order_lines
WHERE order_id = $1 AND catalog_item_id = $2
`, orderID, item.ID).Scan(&lineID, &existingQty, &unitPrice)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	if err == nil {
		newQty := existingQty + quantity
		if _, err := tx.Exec(ctx, `
UPDATE order_lines
SET quantity = $1, total_cents = $2
WHERE id = $3
`, newQty, unitPrice*int64(newQty), lineID); err != nil {
			return err
		}
	} else {
		unitPrice = item.PriceCents
		if _, err := tx.Exec(ctx, `
INSERT INTO order_lines (order_id, catalog_item_id, item_name, quantity, unit_price_cents, total_cents)
VALUES ($1, $2, $3, $4, $5, $6)
`, orderID, item.ID, item.Name, quantity, unitPrice, unitPrice*int64(quantity)); err != nil {
			return err
		}
	}

	if err := updateOrderTotal(ctx, tx, orderID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// RemoveLine deletes the line if present. Removing an absent line is a
// successful no-op.
func (r *postgresRepo) RemoveLine(ctx context.Context, orderID, catalogItemID string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := lockPendingOrder(ctx, tx, orderID); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
DELETE FROM order_lines
WHERE order_id = $1 AND catalog_item_id = $2
`, orderID, catalogItemID); err != nil {
		return err
	}

	if err := updateOrderTotal(ctx, tx, orderID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *postgresRepo) SetLineQuantity(ctx context.Context, orderID, catalogItemID string, quantity int) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := lockPendingOrder(ctx, tx, orderID); err != nil {
		return err
	}

	var unitPrice int64
	err = tx.QueryRow(ctx, `
SELECT unit_price_cents
FROM order_lines
WHERE order_id = $1 AND catalog_item_id = $2
`, orderID, catalogItemID).Scan(&unitPrice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}

	if _, err := tx.Exec(ctx, `
UPDATE order_lines
SET quantity = $1, total_cents = $2
WHERE order_id = $3 AND catalog_item_id = $4
`, quantity, unitPrice*int64(quantity), orderID, catalogItemID); err != nil {
		return err
	}

	if err := updateOrderTotal(ctx, tx, orderID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type placementLine struct {
	catalogItemID string
	itemName      string
	quantity      int
}

// Place confirms a PENDING order and consumes stock as one atomic unit.
// Catalog rows are locked FOR UPDATE in catalog-item-id order before
// validation, so two placements contending for the last units serialize
// and the loser fails cleanly with nothing written.
func (r *postgresRepo) Place(ctx context.Context, orderID string, estimatedDelivery time.Time) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	status, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if status != domain.StatusPending {
		return &domain.InvalidTransitionError{From: status, To: domain.StatusConfirmed}
	}

	lines, err := placementLines(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return domain.ErrEmptyOrder
	}

	for _, line := range lines {
		var available bool
		var stock int
		err := tx.QueryRow(ctx, `
SELECT available, quantity
FROM catalog_items
WHERE id = $1
FOR UPDATE
`, line.catalogItemID).Scan(&available, &stock)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("item %s: %w", line.itemName, domain.ErrNotFound)
			}
			return err
		}
		if !available {
			return fmt.Errorf("item %s: %w", line.itemName, domain.ErrItemUnavailable)
		}
		if stock < line.quantity {
			return fmt.Errorf("item %s has %d left, need %d: %w", line.itemName, stock, line.quantity, domain.ErrInsufficientStock)
		}
	}

	for _, line := range lines {
		cmd, err := tx.Exec(ctx, `
UPDATE catalog_items
SET quantity = quantity - $2
WHERE id = $1 AND quantity >= $2
`, line.catalogItemID, line.quantity)
		if err != nil {
			return err
		}
		// The row is locked above, so a zero-row update means another
		// writer slipped between check and decrement outside this
		// discipline. Surface it as a retryable conflict.
		if cmd.RowsAffected() == 0 {
			return fmt.Errorf("item %s: %w", line.itemName, domain.ErrConflict)
		}
	}

	if _, err := tx.Exec(ctx, `
UPDATE orders
SET status = 'CONFIRMED', estimated_delivery_at = $2
WHERE id = $1
`, orderID, estimatedDelivery); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	r.logger.Printf("order repo: placed order_id=%s lines=%d", orderID, len(lines))
	return nil
}

// Cancel flips the order to CANCELLED. If placement already consumed
// stock (CONFIRMED or PREPARING), each line's quantity is restored in
// the same transaction before the status changes, so the restoration
// happens exactly once.
func (r *postgresRepo) Cancel(ctx context.Context, orderID, reason string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	status, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if !status.Cancellable() {
		return &domain.InvalidTransitionError{From: status, To: domain.StatusCancelled}
	}

	if status != domain.StatusPending {
		lines, err := placementLines(ctx, tx, orderID)
		if err != nil {
			return err
		}
		for _, line := range lines {
			if _, err := tx.Exec(ctx, `
UPDATE catalog_items
SET quantity = quantity + $2
WHERE id = $1
`, line.catalogItemID, line.quantity); err != nil {
				return err
			}
		}
	}

	if _, err := tx.Exec(ctx, `
UPDATE orders
SET status = 'CANCELLED', cancel_reason = $2
WHERE id = $1
`, orderID, reason); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	r.logger.Printf("order repo: cancelled order_id=%s from=%s", orderID, status)
	return nil
}

// UpdateStatus performs a compare-and-swap on the status column.
// DELIVERED additionally stamps the completion time.
func (r *postgresRepo) UpdateStatus(ctx context.Context, orderID string, from, to domain.OrderStatus) error {
	const q = `
UPDATE orders
SET status = $3,
    delivered_at = CASE WHEN $3 = 'DELIVERED' THEN now() ELSE delivered_at END
WHERE id = $1 AND status = $2
`
	cmd, err := r.pool.Exec(ctx, q, orderID, from, to)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.ErrNotFound
		}
		return fmt.Errorf("order %s moved away from %s: %w", orderID, from, domain.ErrConflict)
	}
	return nil
}

func (r *postgresRepo) ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	const q = `
SELECT ` + orderColumns + `
FROM orders
WHERE customer_id = $1
ORDER BY created_at DESC
`
	return r.listOrders(ctx, q, customerID)
}

func (r *postgresRepo) ListByRestaurant(ctx context.Context, restaurantID string) ([]domain.Order, error) {
	const q = `
SELECT ` + orderColumns + `
FROM orders
WHERE restaurant_id = $1
ORDER BY created_at DESC
`
	return r.listOrders(ctx, q, restaurantID)
}

func (r *postgresRepo) ListByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	const q = `
SELECT ` + orderColumns + `
FROM orders
WHERE status = $1
ORDER BY created_at DESC
`
	return r.listOrders(ctx, q, status)
}

func (r *postgresRepo) ListActive(ctx context.Context) ([]domain.Order, error) {
	const q = `
SELECT ` + orderColumns + `
FROM orders
WHERE status IN ('CONFIRMED', 'PREPARING', 'READY', 'OUT_FOR_DELIVERY')
ORDER BY created_at ASC
`
	return r.listOrders(ctx, q)
}

func (r *postgresRepo) CustomerStatistics(ctx context.Context, customerID string) (*domain.CustomerStatistics, error) {
	const q = `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE status = 'DELIVERED'),
       COUNT(*) FILTER (WHERE status = 'CANCELLED'),
       COALESCE(SUM(total_cents) FILTER (WHERE status = 'DELIVERED'), 0)
FROM orders
WHERE customer_id = $1
`
	stats := domain.CustomerStatistics{CustomerID: customerID}
	err := r.pool.QueryRow(ctx, q, customerID).Scan(
		&stats.TotalOrders,
		&stats.CompletedOrders,
		&stats.CancelledOrders,
		&stats.TotalSpentCents,
	)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *postgresRepo) listOrders(ctx context.Context, q string, args ...interface{}) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		r.logger.Printf("order repo: list error=%v", err)
		return nil, err
	}
	defer rows.Close()

	var result []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// lockOrder takes the order row lock and returns the current status.
// Cancellation and placement on the same order serialize on this lock.
func lockOrder(ctx context.Context, tx pgx.Tx, orderID string) (domain.OrderStatus, error) {
	var status domain.OrderStatus
	err := tx.QueryRow(ctx, `
SELECT status
FROM orders
WHERE id = $1
FOR UPDATE
`, orderID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	return status, nil
}

func lockPendingOrder(ctx context.Context, tx pgx.Tx, orderID string) error {
	status, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if status != domain.StatusPending {
		return fmt.Errorf("order is %s: %w", status, domain.ErrOrderNotModifiable)
	}
	return nil
}

// placementLines reads the order's lines sorted by catalog item id so
// every transaction acquires catalog row locks in the same order.
func placementLines(ctx context.Context, tx pgx.Tx, orderID string) ([]placementLine, error) {
	rows, err := tx.Query(ctx, `
SELECT catalog_item_id::text, item_name, quantity
FROM order_lines
WHERE order_id = $1
ORDER BY catalog_item_id ASC
`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []placementLine
	for rows.Next() {
		var line placementLine
		if err := rows.Scan(&line.catalogItemID, &line.itemName, &line.quantity); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func updateOrderTotal(ctx context.Context, tx pgx.Tx, orderID string) error {
	_, err := tx.Exec(ctx, `
UPDATE orders
SET total_cents = COALESCE((
	SELECT SUM(total_cents)
	FROM order_lines
	WHERE order_id = $1
), 0)
WHERE id = $1
`, orderID)
	return err
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var order domain.Order
	if err := row.Scan(
		&order.ID,
		&order.CustomerID,
		&order.RestaurantID,
		&order.Status,
		&order.DeliveryAddress,
		&order.Phone,
		&order.Notes,
		&order.CancelReason,
		&order.TotalCents,
		&order.EstimatedDeliveryAt,
		&order.DeliveredAt,
		&order.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &order, nil
}
