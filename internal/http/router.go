package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/sanchey92/checkout-service/internal/http/handlers"
	"github.com/sanchey92/checkout-service/internal/http/middlewares"
)

type Services struct {
	Orders handlers.OrderService
	Carts  handlers.CartService
	DB     handlers.Pinger
}

func NewRouter(log *slog.Logger, svc Services) *gin.Engine {
	r := gin.New()
	r.Use(middlewares.Recovery(log), middlewares.Logger(log))

	r.GET("/healthz", handlers.Health(svc.DB, log))

	api := r.Group("/api/v1", middlewares.UserCode())

	cart := api.Group("/cart")
	cart.GET("", handlers.GetCart(svc.Carts, log))
	cart.DELETE("", handlers.ClearCart(svc.Carts, log))
	cart.POST("/items", handlers.AddCartItem(svc.Carts, log))
	cart.PATCH("/items/:code", handlers.UpdateCartItem(svc.Carts, log))
	cart.DELETE("/items/:code", handlers.RemoveCartItem(svc.Carts, log))

	orders := api.Group("/orders")
	orders.POST("", handlers.CreateOrder(svc.Orders, log))
	orders.GET("", handlers.ListOrders(svc.Orders, log))
	orders.GET("/:code", handlers.GetOrder(svc.Orders, log))
	orders.POST("/:code/cancel", handlers.CancelOrder(svc.Orders, log))

	admin := api.Group("/admin")
	admin.PATCH("/orders/:code/status", handlers.UpdateOrderStatus(svc.Orders, log))

	return r
}
