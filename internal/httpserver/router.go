package httpserver

import (
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Deps carries the services the handlers depend on.
type Deps struct {
	OrderSvc orderService
	Catalog  catalogReader
}

// buildRouter wires routes for the API.
func buildRouter(logger *log.Logger, db *pgxpool.Pool, deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())
	router.Use(cors.Default())

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))

	orders := router.Group("/orders")
	{
		orders.POST("", createOrderHandler(deps.OrderSvc))
		orders.GET("", listOrdersHandler(deps.OrderSvc))
		orders.GET("/:orderId", getOrderHandler(deps.OrderSvc))
		orders.POST("/:orderId/items", addItemHandler(deps.OrderSvc))
		orders.PATCH("/:orderId/items/:itemId", updateQuantityHandler(deps.OrderSvc))
		orders.DELETE("/:orderId/items/:itemId", removeItemHandler(deps.OrderSvc))
		orders.POST("/:orderId/place", placeOrderHandler(deps.OrderSvc))
		orders.POST("/:orderId/cancel", cancelOrderHandler(deps.OrderSvc))
		orders.PATCH("/:orderId/status", updateStatusHandler(deps.OrderSvc))
	}

	customers := router.Group("/customers")
	{
		customers.GET("/:customerId/orders", customerOrdersHandler(deps.OrderSvc))
		customers.GET("/:customerId/statistics", customerStatisticsHandler(deps.OrderSvc))
	}

	restaurants := router.Group("/restaurants")
	{
		restaurants.GET("/:restaurantId/orders", restaurantOrdersHandler(deps.OrderSvc))
		restaurants.GET("/:restaurantId/menu", restaurantMenuHandler(deps.Catalog))
	}

	return router
}
