package order

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"foodorder/internal/domain"
	"foodorder/internal/migrate"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	customerA = "11111111-1111-1111-1111-111111111111"
	customerB = "22222222-2222-2222-2222-222222222222"
)

func testPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set; skipping postgres integration test")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	if err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	resetTables(ctx, t, pool)
	return pool
}

func resetTables(ctx context.Context, t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	if _, err := pool.Exec(ctx, `TRUNCATE order_lines, orders, catalog_items, restaurants RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func insertRestaurant(ctx context.Context, t *testing.T, pool *pgxpool.Pool, name string) string {
	t.Helper()
	var id string
	err := pool.QueryRow(ctx, `
INSERT INTO restaurants (name, status) VALUES ($1, 'approved') RETURNING id::text
`, name).Scan(&id)
	if err != nil {
		t.Fatalf("insert restaurant: %v", err)
	}
	return id
}

func insertItem(ctx context.Context, t *testing.T, pool *pgxpool.Pool, restaurantID, name string, priceCents int64, quantity int, available bool) domain.CatalogItem {
	t.Helper()
	item := domain.CatalogItem{
		RestaurantID: restaurantID,
		Name:         name,
		PriceCents:   priceCents,
		Available:    available,
		Quantity:     quantity,
	}
	err := pool.QueryRow(ctx, `
INSERT INTO catalog_items (restaurant_id, name, price_cents, available, quantity)
VALUES ($1, $2, $3, $4, $5)
RETURNING id::text
`, restaurantID, name, priceCents, available, quantity).Scan(&item.ID)
	if err != nil {
		t.Fatalf("insert item: %v", err)
	}
	return item
}

func itemStock(ctx context.Context, t *testing.T, pool *pgxpool.Pool, itemID string) int {
	t.Helper()
	var quantity int
	if err := pool.QueryRow(ctx, `SELECT quantity FROM catalog_items WHERE id = $1`, itemID).Scan(&quantity); err != nil {
		t.Fatalf("read stock: %v", err)
	}
	return quantity
}

func createOrder(ctx context.Context, t *testing.T, repo Repository, customerID, restaurantID string) *domain.Order {
	t.Helper()
	order, err := repo.Create(ctx, CreateOrderInput{
		CustomerID:      customerID,
		RestaurantID:    restaurantID,
		DeliveryAddress: "12 Via Roma",
		Phone:           "+39 055 000000",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

func TestCartMutationsRecomputeTotal(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()

	restaurantID := insertRestaurant(ctx, t, pool, "Trattoria")
	pizza := insertItem(ctx, t, pool, restaurantID, "Margherita", 1000, 10, true)
	cake := insertItem(ctx, t, pool, restaurantID, "Tiramisu", 650, 10, true)

	repo := NewPostgres(pool, nil)
	order := createOrder(ctx, t, repo, customerA, restaurantID)
	if order.Status != domain.StatusPending || order.TotalCents != 0 {
		t.Fatalf("new order should be empty and PENDING, got %+v", order)
	}

	if err := repo.AddLine(ctx, order.ID, pizza, 3); err != nil {
		t.Fatalf("AddLine: %v", err)
	}
	got, _ := repo.GetByID(ctx, order.ID)
	if got.TotalCents != 3000 {
		t.Fatalf("total = %d, want 3000", got.TotalCents)
	}

	// Adding the same item again merges into one line.
	if err := repo.AddLine(ctx, order.ID, pizza, 2); err != nil {
		t.Fatalf("AddLine merge: %v", err)
	}
	got, _ = repo.GetByID(ctx, order.ID)
	if len(got.Lines) != 1 || got.Lines[0].Quantity != 5 {
		t.Fatalf("expected one merged line of 5, got %+v", got.Lines)
	}
	if got.TotalCents != 5000 {
		t.Fatalf("total = %d, want 5000", got.TotalCents)
	}

	if err := repo.AddLine(ctx, order.ID, cake, 2); err != nil {
		t.Fatalf("AddLine cake: %v", err)
	}
	got, _ = repo.GetByID(ctx, order.ID)
	if got.TotalCents != 6300 {
		t.Fatalf("total = %d, want 6300", got.TotalCents)
	}
	if len(got.Lines) != 2 || got.Lines[0].CatalogItemID != pizza.ID {
		t.Fatalf("lines should keep insertion order, got %+v", got.Lines)
	}

	if err := repo.SetLineQuantity(ctx, order.ID, cake.ID, 1); err != nil {
		t.Fatalf("SetLineQuantity: %v", err)
	}
	got, _ = repo.GetByID(ctx, order.ID)
	if got.TotalCents != 5650 {
		t.Fatalf("total = %d, want 5650", got.TotalCents)
	}

	if err := repo.RemoveLine(ctx, order.ID, pizza.ID); err != nil {
		t.Fatalf("RemoveLine: %v", err)
	}
	// Removing an absent line is a no-op that still succeeds.
	if err := repo.RemoveLine(ctx, order.ID, pizza.ID); err != nil {
		t.Fatalf("idempotent RemoveLine: %v", err)
	}
	got, _ = repo.GetByID(ctx, order.ID)
	if got.TotalCents != 650 || len(got.Lines) != 1 {
		t.Fatalf("total = %d lines = %d, want 650 / 1", got.TotalCents, len(got.Lines))
	}

	if err := repo.SetLineQuantity(ctx, order.ID, pizza.ID, 2); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("setting quantity on an absent line should be ErrNotFound, got %v", err)
	}

	// Cart mutation never touches stock.
	if stock := itemStock(ctx, t, pool, pizza.ID); stock != 10 {
		t.Fatalf("pizza stock = %d, want untouched 10", stock)
	}
}

// Mirrors the full lifecycle: build a cart up to the exact stock level,
// place it, cancel it, and verify stock round-trips exactly once.
func TestPlaceAndCancelLifecycle(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()

	restaurantID := insertRestaurant(ctx, t, pool, "Trattoria")
	itemX := insertItem(ctx, t, pool, restaurantID, "Margherita", 1000, 5, true)

	repo := NewPostgres(pool, nil)
	order := createOrder(ctx, t, repo, customerA, restaurantID)

	if err := repo.AddLine(ctx, order.ID, itemX, 3); err != nil {
		t.Fatalf("AddLine: %v", err)
	}
	if err := repo.AddLine(ctx, order.ID, itemX, 2); err != nil {
		t.Fatalf("AddLine: %v", err)
	}

	eta := time.Now().Add(45 * time.Minute)
	if err := repo.Place(ctx, order.ID, eta); err != nil {
		t.Fatalf("Place: %v", err)
	}

	placed, _ := repo.GetByID(ctx, order.ID)
	if placed.Status != domain.StatusConfirmed {
		t.Fatalf("status = %s, want CONFIRMED", placed.Status)
	}
	if placed.EstimatedDeliveryAt == nil {
		t.Fatal("estimated delivery must be stamped on confirmation")
	}
	if placed.TotalCents != 5000 {
		t.Fatalf("total = %d, want 5000", placed.TotalCents)
	}
	if stock := itemStock(ctx, t, pool, itemX.ID); stock != 0 {
		t.Fatalf("stock after placement = %d, want 0", stock)
	}

	if err := repo.Cancel(ctx, order.ID, "changed my mind"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	cancelled, _ := repo.GetByID(ctx, order.ID)
	if cancelled.Status != domain.StatusCancelled {
		t.Fatalf("status = %s, want CANCELLED", cancelled.Status)
	}
	if cancelled.CancelReason != "changed my mind" {
		t.Fatalf("cancel reason = %q", cancelled.CancelReason)
	}
	if stock := itemStock(ctx, t, pool, itemX.ID); stock != 5 {
		t.Fatalf("stock after cancellation = %d, want restored 5", stock)
	}

	// Second cancellation must fail without double-restoring.
	var invalid *domain.InvalidTransitionError
	if err := repo.Cancel(ctx, order.ID, ""); !errors.As(err, &invalid) {
		t.Fatalf("second cancel should fail with InvalidTransitionError, got %v", err)
	}
	if stock := itemStock(ctx, t, pool, itemX.ID); stock != 5 {
		t.Fatalf("stock after double cancel = %d, want 5", stock)
	}

	// Placing a cancelled order fails.
	if err := repo.Place(ctx, order.ID, eta); !errors.As(err, &invalid) {
		t.Fatalf("place after cancel should fail with InvalidTransitionError, got %v", err)
	}
}

func TestPlaceEmptyOrder(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()

	restaurantID := insertRestaurant(ctx, t, pool, "Trattoria")
	repo := NewPostgres(pool, nil)
	order := createOrder(ctx, t, repo, customerA, restaurantID)

	if err := repo.Place(ctx, order.ID, time.Now().Add(time.Hour)); !errors.Is(err, domain.ErrEmptyOrder) {
		t.Fatalf("expected ErrEmptyOrder, got %v", err)
	}
}

func TestPlaceAllOrNothing(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()

	restaurantID := insertRestaurant(ctx, t, pool, "Trattoria")
	plenty := insertItem(ctx, t, pool, restaurantID, "Margherita", 1000, 10, true)
	scarce := insertItem(ctx, t, pool, restaurantID, "Tiramisu", 650, 5, true)

	repo := NewPostgres(pool, nil)
	order := createOrder(ctx, t, repo, customerA, restaurantID)
	if err := repo.AddLine(ctx, order.ID, plenty, 2); err != nil {
		t.Fatalf("AddLine: %v", err)
	}
	if err := repo.AddLine(ctx, order.ID, scarce, 3); err != nil {
		t.Fatalf("AddLine: %v", err)
	}

	// Stock drops between pre-check and placement.
	if _, err := pool.Exec(ctx, `UPDATE catalog_items SET quantity = 1 WHERE id = $1`, scarce.ID); err != nil {
		t.Fatalf("shrink stock: %v", err)
	}

	err := repo.Place(ctx, order.ID, time.Now().Add(time.Hour))
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	// Nothing was decremented, the order is still PENDING.
	if stock := itemStock(ctx, t, pool, plenty.ID); stock != 10 {
		t.Fatalf("plenty stock = %d, want untouched 10", stock)
	}
	got, _ := repo.GetByID(ctx, order.ID)
	if got.Status != domain.StatusPending {
		t.Fatalf("status = %s, want PENDING", got.Status)
	}
}

func TestPlaceUnavailableItem(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()

	restaurantID := insertRestaurant(ctx, t, pool, "Trattoria")
	item := insertItem(ctx, t, pool, restaurantID, "Margherita", 1000, 10, true)

	repo := NewPostgres(pool, nil)
	order := createOrder(ctx, t, repo, customerA, restaurantID)
	if err := repo.AddLine(ctx, order.ID, item, 1); err != nil {
		t.Fatalf("AddLine: %v", err)
	}

	if _, err := pool.Exec(ctx, `UPDATE catalog_items SET available = false WHERE id = $1`, item.ID); err != nil {
		t.Fatalf("disable item: %v", err)
	}

	if err := repo.Place(ctx, order.ID, time.Now().Add(time.Hour)); !errors.Is(err, domain.ErrItemUnavailable) {
		t.Fatalf("expected ErrItemUnavailable, got %v", err)
	}
	if stock := itemStock(ctx, t, pool, item.ID); stock != 10 {
		t.Fatalf("stock = %d, want untouched 10", stock)
	}
}

// Two orders contend for the last unit of stock. Exactly one placement
// must win; the loser stays PENDING and stock never goes negative.
func TestConcurrentPlacementNoOversell(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()

	restaurantID := insertRestaurant(ctx, t, pool, "Trattoria")
	itemY := insertItem(ctx, t, pool, restaurantID, "Last Slice", 450, 1, true)

	repo := NewPostgres(pool, nil)
	orderOne := createOrder(ctx, t, repo, customerA, restaurantID)
	orderTwo := createOrder(ctx, t, repo, customerB, restaurantID)
	for _, id := range []string{orderOne.ID, orderTwo.ID} {
		if err := repo.AddLine(ctx, id, itemY, 1); err != nil {
			t.Fatalf("AddLine: %v", err)
		}
	}

	eta := time.Now().Add(time.Hour)
	results := make([]error, 2)
	var wg sync.WaitGroup
	for i, id := range []string{orderOne.ID, orderTwo.ID} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			results[i] = repo.Place(ctx, id, eta)
		}(i, id)
	}
	wg.Wait()

	var wins, losses int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, domain.ErrInsufficientStock) || errors.Is(err, domain.ErrConflict):
			losses++
		default:
			t.Fatalf("unexpected placement error: %v", err)
		}
	}
	if wins != 1 || losses != 1 {
		t.Fatalf("wins = %d losses = %d, want exactly one of each", wins, losses)
	}

	if stock := itemStock(ctx, t, pool, itemY.ID); stock != 0 {
		t.Fatalf("stock = %d, want 0 and never negative", stock)
	}

	var confirmed, pending int
	for _, id := range []string{orderOne.ID, orderTwo.ID} {
		got, err := repo.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		switch got.Status {
		case domain.StatusConfirmed:
			confirmed++
		case domain.StatusPending:
			pending++
		default:
			t.Fatalf("unexpected status %s", got.Status)
		}
	}
	if confirmed != 1 || pending != 1 {
		t.Fatalf("confirmed = %d pending = %d, want 1/1", confirmed, pending)
	}
}

func TestCartImmutableAfterConfirmation(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()

	restaurantID := insertRestaurant(ctx, t, pool, "Trattoria")
	item := insertItem(ctx, t, pool, restaurantID, "Margherita", 1000, 10, true)

	repo := NewPostgres(pool, nil)
	order := createOrder(ctx, t, repo, customerA, restaurantID)
	if err := repo.AddLine(ctx, order.ID, item, 2); err != nil {
		t.Fatalf("AddLine: %v", err)
	}
	if err := repo.Place(ctx, order.ID, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Place: %v", err)
	}

	before, _ := repo.GetByID(ctx, order.ID)

	if err := repo.AddLine(ctx, order.ID, item, 1); !errors.Is(err, domain.ErrOrderNotModifiable) {
		t.Fatalf("AddLine after confirm: got %v", err)
	}
	if err := repo.RemoveLine(ctx, order.ID, item.ID); !errors.Is(err, domain.ErrOrderNotModifiable) {
		t.Fatalf("RemoveLine after confirm: got %v", err)
	}
	if err := repo.SetLineQuantity(ctx, order.ID, item.ID, 1); !errors.Is(err, domain.ErrOrderNotModifiable) {
		t.Fatalf("SetLineQuantity after confirm: got %v", err)
	}

	after, _ := repo.GetByID(ctx, order.ID)
	if after.TotalCents != before.TotalCents || len(after.Lines) != len(before.Lines) || after.Lines[0].Quantity != before.Lines[0].Quantity {
		t.Fatalf("order changed by rejected mutation: before %+v after %+v", before, after)
	}
}

func TestCancelPendingDoesNotRestore(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()

	restaurantID := insertRestaurant(ctx, t, pool, "Trattoria")
	item := insertItem(ctx, t, pool, restaurantID, "Margherita", 1000, 10, true)

	repo := NewPostgres(pool, nil)
	order := createOrder(ctx, t, repo, customerA, restaurantID)
	if err := repo.AddLine(ctx, order.ID, item, 4); err != nil {
		t.Fatalf("AddLine: %v", err)
	}

	if err := repo.Cancel(ctx, order.ID, ""); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	// A pending cart never consumed stock, so nothing comes back.
	if stock := itemStock(ctx, t, pool, item.ID); stock != 10 {
		t.Fatalf("stock = %d, want 10", stock)
	}
}

func TestUpdateStatusCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()

	restaurantID := insertRestaurant(ctx, t, pool, "Trattoria")
	item := insertItem(ctx, t, pool, restaurantID, "Margherita", 1000, 10, true)

	repo := NewPostgres(pool, nil)
	order := createOrder(ctx, t, repo, customerA, restaurantID)
	if err := repo.AddLine(ctx, order.ID, item, 1); err != nil {
		t.Fatalf("AddLine: %v", err)
	}
	if err := repo.Place(ctx, order.ID, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Place: %v", err)
	}

	// Stale from-status loses the swap.
	err := repo.UpdateStatus(ctx, order.ID, domain.StatusPending, domain.StatusPreparing)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict for stale status, got %v", err)
	}

	if err := repo.UpdateStatus(ctx, order.ID, domain.StatusConfirmed, domain.StatusPreparing); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := repo.UpdateStatus(ctx, order.ID, domain.StatusPreparing, domain.StatusReady); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := repo.UpdateStatus(ctx, order.ID, domain.StatusReady, domain.StatusOutForDelivery); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := repo.UpdateStatus(ctx, order.ID, domain.StatusOutForDelivery, domain.StatusDelivered); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	got, _ := repo.GetByID(ctx, order.ID)
	if got.Status != domain.StatusDelivered {
		t.Fatalf("status = %s, want DELIVERED", got.Status)
	}
	if got.DeliveredAt == nil {
		t.Fatal("delivery must stamp delivered_at")
	}

	if err := repo.UpdateStatus(ctx, "33333333-3333-3333-3333-333333333333", domain.StatusPending, domain.StatusConfirmed); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing order, got %v", err)
	}
}

func TestCustomerStatistics(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()

	restaurantID := insertRestaurant(ctx, t, pool, "Trattoria")
	item := insertItem(ctx, t, pool, restaurantID, "Margherita", 1000, 100, true)

	repo := NewPostgres(pool, nil)

	deliver := func(qty int) {
		order := createOrder(ctx, t, repo, customerA, restaurantID)
		if err := repo.AddLine(ctx, order.ID, item, qty); err != nil {
			t.Fatalf("AddLine: %v", err)
		}
		if err := repo.Place(ctx, order.ID, time.Now().Add(time.Hour)); err != nil {
			t.Fatalf("Place: %v", err)
		}
		for _, step := range [][2]domain.OrderStatus{
			{domain.StatusConfirmed, domain.StatusPreparing},
			{domain.StatusPreparing, domain.StatusReady},
			{domain.StatusReady, domain.StatusOutForDelivery},
			{domain.StatusOutForDelivery, domain.StatusDelivered},
		} {
			if err := repo.UpdateStatus(ctx, order.ID, step[0], step[1]); err != nil {
				t.Fatalf("UpdateStatus: %v", err)
			}
		}
	}

	deliver(2) // 2000 cents
	deliver(3) // 3000 cents

	cancelled := createOrder(ctx, t, repo, customerA, restaurantID)
	if err := repo.AddLine(ctx, cancelled.ID, item, 1); err != nil {
		t.Fatalf("AddLine: %v", err)
	}
	if err := repo.Cancel(ctx, cancelled.ID, "no longer hungry"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	createOrder(ctx, t, repo, customerA, restaurantID) // still pending
	createOrder(ctx, t, repo, customerB, restaurantID) // other customer

	stats, err := repo.CustomerStatistics(ctx, customerA)
	if err != nil {
		t.Fatalf("CustomerStatistics: %v", err)
	}
	if stats.TotalOrders != 4 {
		t.Fatalf("total = %d, want 4", stats.TotalOrders)
	}
	if stats.CompletedOrders != 2 {
		t.Fatalf("completed = %d, want 2", stats.CompletedOrders)
	}
	if stats.CancelledOrders != 1 {
		t.Fatalf("cancelled = %d, want 1", stats.CancelledOrders)
	}
	if stats.TotalSpentCents != 5000 {
		t.Fatalf("spent = %d, want 5000", stats.TotalSpentCents)
	}
}

func TestListQueries(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()

	restaurantID := insertRestaurant(ctx, t, pool, "Trattoria")
	item := insertItem(ctx, t, pool, restaurantID, "Margherita", 1000, 100, true)

	repo := NewPostgres(pool, nil)

	pendingOrder := createOrder(ctx, t, repo, customerA, restaurantID)
	confirmedOrder := createOrder(ctx, t, repo, customerB, restaurantID)
	if err := repo.AddLine(ctx, confirmedOrder.ID, item, 1); err != nil {
		t.Fatalf("AddLine: %v", err)
	}
	if err := repo.Place(ctx, confirmedOrder.ID, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Place: %v", err)
	}

	byCustomer, err := repo.ListByCustomer(ctx, customerA)
	if err != nil {
		t.Fatalf("ListByCustomer: %v", err)
	}
	if len(byCustomer) != 1 || byCustomer[0].ID != pendingOrder.ID {
		t.Fatalf("unexpected customer orders %+v", byCustomer)
	}

	byRestaurant, err := repo.ListByRestaurant(ctx, restaurantID)
	if err != nil {
		t.Fatalf("ListByRestaurant: %v", err)
	}
	if len(byRestaurant) != 2 {
		t.Fatalf("restaurant orders = %d, want 2", len(byRestaurant))
	}

	pending, err := repo.ListByStatus(ctx, domain.StatusPending)
	if err != nil {
		t.Fatalf("ListByStatus: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != pendingOrder.ID {
		t.Fatalf("unexpected pending orders %+v", pending)
	}

	active, err := repo.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 1 || active[0].ID != confirmedOrder.ID {
		t.Fatalf("unexpected active orders %+v", active)
	}
}
