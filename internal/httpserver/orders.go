package httpserver

import (
	"context"
	"errors"
	"net/http"

	"foodorder/internal/domain"
	ordersvc "foodorder/internal/service/order"
	"github.com/gin-gonic/gin"
)

// Consumer-side views of the services, kept narrow so handlers are
// testable with stubs.
type orderService interface {
	Create(ctx context.Context, in ordersvc.CreateInput) (*domain.Order, error)
	Get(ctx context.Context, orderID string) (*domain.Order, error)
	AddItem(ctx context.Context, orderID, catalogItemID string, quantity int) (*domain.Order, error)
	RemoveItem(ctx context.Context, orderID, catalogItemID string) (*domain.Order, error)
	UpdateQuantity(ctx context.Context, orderID, catalogItemID string, quantity int) (*domain.Order, error)
	Place(ctx context.Context, orderID string) (*domain.Order, error)
	Cancel(ctx context.Context, orderID, reason string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, orderID string, next domain.OrderStatus) (*domain.Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error)
	ListByRestaurant(ctx context.Context, restaurantID string) ([]domain.Order, error)
	ListByStatus(ctx context.Context, raw string) ([]domain.Order, error)
	ListActive(ctx context.Context) ([]domain.Order, error)
	ListPending(ctx context.Context) ([]domain.Order, error)
	CustomerStatistics(ctx context.Context, customerID string) (*domain.CustomerStatistics, error)
}

type catalogReader interface {
	ListByRestaurant(ctx context.Context, restaurantID string) ([]domain.CatalogItem, error)
}

type addItemRequest struct {
	CatalogItemID string `json:"catalogItemId" binding:"required"`
	Quantity      int    `json:"quantity" binding:"required"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func createOrderHandler(svc orderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in ordersvc.CreateInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		order, err := svc.Create(c.Request.Context(), in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, order)
	}
}

func getOrderHandler(svc orderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := svc.Get(c.Request.Context(), c.Param("orderId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func listOrdersHandler(svc orderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var (
			orders []domain.Order
			err    error
		)
		switch {
		case c.Query("status") != "":
			orders, err = svc.ListByStatus(ctx, c.Query("status"))
		case c.Query("active") == "true":
			orders, err = svc.ListActive(ctx)
		case c.Query("pending") == "true":
			orders, err = svc.ListPending(ctx)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "one of status, active or pending is required"})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, orderList(orders))
	}
}

func addItemHandler(svc orderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req addItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		order, err := svc.AddItem(c.Request.Context(), c.Param("orderId"), req.CatalogItemID, req.Quantity)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func updateQuantityHandler(svc orderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req quantityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		order, err := svc.UpdateQuantity(c.Request.Context(), c.Param("orderId"), c.Param("itemId"), req.Quantity)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func removeItemHandler(svc orderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := svc.RemoveItem(c.Request.Context(), c.Param("orderId"), c.Param("itemId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func placeOrderHandler(svc orderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := svc.Place(c.Request.Context(), c.Param("orderId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func cancelOrderHandler(svc orderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req cancelRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
				return
			}
		}
		order, err := svc.Cancel(c.Request.Context(), c.Param("orderId"), req.Reason)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func updateStatusHandler(svc orderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		order, err := svc.UpdateStatus(c.Request.Context(), c.Param("orderId"), domain.OrderStatus(req.Status))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func customerOrdersHandler(svc orderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := svc.ListByCustomer(c.Request.Context(), c.Param("customerId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, orderList(orders))
	}
}

func customerStatisticsHandler(svc orderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := svc.CustomerStatistics(c.Request.Context(), c.Param("customerId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func restaurantOrdersHandler(svc orderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := svc.ListByRestaurant(c.Request.Context(), c.Param("restaurantId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, orderList(orders))
	}
}

func restaurantMenuHandler(svc catalogReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := svc.ListByRestaurant(c.Request.Context(), c.Param("restaurantId"))
		if err != nil {
			respondError(c, err)
			return
		}
		if items == nil {
			items = []domain.CatalogItem{}
		}
		c.JSON(http.StatusOK, items)
	}
}

func orderList(orders []domain.Order) []domain.Order {
	if orders == nil {
		return []domain.Order{}
	}
	return orders
}

// respondError maps the domain error taxonomy onto HTTP status codes:
// not-found 404, invalid input 400, retryable conflicts 409,
// business-rule violations 422.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "retryable": true})
	case domain.IsBusinessRule(err):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
