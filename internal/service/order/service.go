package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"foodorder/internal/domain"
	orderrepo "foodorder/internal/repository/order"
)

const defaultDeliveryEstimate = 45 * time.Minute

// Service exposes the order lifecycle: cart editing while PENDING,
// the placement transaction, post-placement status transitions and
// cancellation with stock restoration.
type Service struct {
	orders           orderRepo
	catalog          catalogRepo
	restaurants      restaurantRepo
	deliveryEstimate time.Duration
	now              func() time.Time
}

type orderRepo interface {
	Create(ctx context.Context, in orderrepo.CreateOrderInput) (*domain.Order, error)
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

type catalogRepo interface {
	GetByID(ctx context.Context, id string) (*domain.CatalogItem, error)
}

type restaurantRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Restaurant, error)
}

type Option func(*Service)

// WithDeliveryEstimate overrides the default estimated-delivery window
// stamped on confirmation.
func WithDeliveryEstimate(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.deliveryEstimate = d
		}
	}
}

func New(orders orderRepo, catalog catalogRepo, restaurants restaurantRepo, opts ...Option) *Service {
	s := &Service{
		orders:           orders,
		catalog:          catalog,
		restaurants:      restaurants,
		deliveryEstimate: defaultDeliveryEstimate,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateInput struct {
	CustomerID      string `json:"customerId"`
	RestaurantID    string `json:"restaurantId"`
	DeliveryAddress string `json:"deliveryAddress"`
	Phone           string `json:"phone"`
	Notes           string `json:"notes"`
}

// Create opens a new empty PENDING order for an approved restaurant.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Order, error) {
	if strings.TrimSpace(in.CustomerID) == "" {
		return nil, fmt.Errorf("%w: customerId required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(in.RestaurantID) == "" {
		return nil, fmt.Errorf("%w: restaurantId required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(in.DeliveryAddress) == "" {
		return nil, fmt.Errorf("%w: deliveryAddress required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(in.Phone) == "" {
		return nil, fmt.Errorf("%w: phone required", domain.ErrInvalidInput)
	}

	restaurant, err := s.restaurants.GetByID(ctx, in.RestaurantID)
	if err != nil {
		return nil, err
	}
	if restaurant.Status != domain.RestaurantStatusApproved {
		return nil, domain.ErrRestaurantNotApproved
	}

	return s.orders.Create(ctx, orderrepo.CreateOrderInput{
		CustomerID:      in.CustomerID,
		RestaurantID:    in.RestaurantID,
		DeliveryAddress: strings.TrimSpace(in.DeliveryAddress),
		Phone:           strings.TrimSpace(in.Phone),
		Notes:           strings.TrimSpace(in.Notes),
	})
}

// AddItem merges quantity into the cart line for the catalog item. The
// stock check here is a non-binding pre-check against the would-be
// merged quantity; stock is only consumed at placement.
func (s *Service) AddItem(ctx context.Context, orderID, catalogItemID string, quantity int) (*domain.Order, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", domain.ErrInvalidInput)
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.StatusPending {
		return nil, fmt.Errorf("order is %s: %w", order.Status, domain.ErrOrderNotModifiable)
	}

	item, err := s.catalog.GetByID(ctx, catalogItemID)
	if err != nil {
		return nil, err
	}
	if item.RestaurantID != order.RestaurantID {
		return nil, domain.ErrRestaurantMismatch
	}
	if !item.Available {
		return nil, fmt.Errorf("item %s: %w", item.Name, domain.ErrItemUnavailable)
	}

	merged := quantity
	if line := order.Line(catalogItemID); line != nil {
		merged += line.Quantity
	}
	if merged > item.Quantity {
		return nil, fmt.Errorf("item %s has %d left, want %d: %w", item.Name, item.Quantity, merged, domain.ErrInsufficientStock)
	}

	if err := s.orders.AddLine(ctx, orderID, *item, quantity); err != nil {
		return nil, err
	}
	return s.orders.GetByID(ctx, orderID)
}

// RemoveItem drops the line for the catalog item. Removing an absent
// line succeeds.
func (s *Service) RemoveItem(ctx context.Context, orderID, catalogItemID string) (*domain.Order, error) {
	if err := s.orders.RemoveLine(ctx, orderID, catalogItemID); err != nil {
		return nil, err
	}
	return s.orders.GetByID(ctx, orderID)
}

// UpdateQuantity sets the exact quantity of an existing line. A
// non-positive quantity behaves as RemoveItem. Only availability is
// re-validated; the binding stock check happens at placement.
func (s *Service) UpdateQuantity(ctx context.Context, orderID, catalogItemID string, quantity int) (*domain.Order, error) {
	if quantity <= 0 {
		return s.RemoveItem(ctx, orderID, catalogItemID)
	}

	item, err := s.catalog.GetByID(ctx, catalogItemID)
	if err != nil {
		return nil, err
	}
	if !item.Available {
		return nil, fmt.Errorf("item %s: %w", item.Name, domain.ErrItemUnavailable)
	}

	if err := s.orders.SetLineQuantity(ctx, orderID, catalogItemID, quantity); err != nil {
		return nil, err
	}
	return s.orders.GetByID(ctx, orderID)
}

// Place converts the PENDING cart into a CONFIRMED order, consuming
// stock atomically. All re-validation runs inside the repository
// transaction under row locks; on any failure nothing is written.
func (s *Service) Place(ctx context.Context, orderID string) (*domain.Order, error) {
	eta := s.now().Add(s.deliveryEstimate)
	if err := s.orders.Place(ctx, orderID, eta); err != nil {
		return nil, err
	}
	return s.orders.GetByID(ctx, orderID)
}

// Cancel moves the order to CANCELLED from PENDING, CONFIRMED or
// PREPARING. Stock consumed by placement is restored exactly once; a
// PENDING cart is simply discarded.
func (s *Service) Cancel(ctx context.Context, orderID, reason string) (*domain.Order, error) {
	if err := s.orders.Cancel(ctx, orderID, strings.TrimSpace(reason)); err != nil {
		return nil, err
	}
	return s.orders.GetByID(ctx, orderID)
}

// UpdateStatus applies a transition from the status table. Transitions
// with inventory side effects are routed to their dedicated operations:
// confirmation must go through Place, cancellation through Cancel.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, next domain.OrderStatus) (*domain.Order, error) {
	if _, err := domain.ParseStatus(string(next)); err != nil {
		return nil, err
	}
	if next == domain.StatusCancelled {
		return s.Cancel(ctx, orderID, "")
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, &domain.InvalidTransitionError{From: order.Status, To: next}
	}
	if next == domain.StatusConfirmed {
		return nil, fmt.Errorf("%w: confirmation requires placement", domain.ErrInvalidInput)
	}

	if err := s.orders.UpdateStatus(ctx, orderID, order.Status, next); err != nil {
		return nil, err
	}
	return s.orders.GetByID(ctx, orderID)
}

func (s *Service) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.orders.GetByID(ctx, orderID)
}

func (s *Service) ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	return s.orders.ListByCustomer(ctx, customerID)
}

func (s *Service) ListByRestaurant(ctx context.Context, restaurantID string) ([]domain.Order, error) {
	return s.orders.ListByRestaurant(ctx, restaurantID)
}

func (s *Service) ListByStatus(ctx context.Context, raw string) ([]domain.Order, error) {
	status, err := domain.ParseStatus(raw)
	if err != nil {
		return nil, err
	}
	return s.orders.ListByStatus(ctx, status)
}

// ListActive returns orders a kitchen still has to act on: confirmed
// through out-for-delivery.
func (s *Service) ListActive(ctx context.Context) ([]domain.Order, error) {
	return s.orders.ListActive(ctx)
}

// ListPending returns carts not yet placed.
func (s *Service) ListPending(ctx context.Context) ([]domain.Order, error) {
	return s.orders.ListByStatus(ctx, domain.StatusPending)
}

// CustomerStatistics is a read-side fold over the customer's persisted
// orders; it never touches the transactional core.
func (s *Service) CustomerStatistics(ctx context.Context, customerID string) (*domain.CustomerStatistics, error) {
	return s.orders.CustomerStatistics(ctx, customerID)
}
