package handlers

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/sanchey92/checkout-service/internal/http/lib/api/decode"
	"github.com/sanchey92/checkout-service/internal/http/lib/api/response"
	"github.com/sanchey92/checkout-service/internal/http/middlewares"
	"github.com/sanchey92/checkout-service/internal/service/cart"
)

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func GetCart(svc CartService, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		current, err := svc.GetOrCreateCart(c.Request.Context(), middlewares.CurrentUser(c))
		if err != nil {
			response.Error(c, log, err)
			return
		}
		response.OK(c, current)
	}
}

func AddCartItem(svc CartService, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req cart.AddItemRequest
		if err := decode.JSON(c.Request, &req); err != nil {
			response.Error(c, log, err)
			return
		}

		updated, err := svc.AddItem(c.Request.Context(), middlewares.CurrentUser(c), req)
		if err != nil {
			response.Error(c, log, err)
			return
		}
		response.Created(c, updated)
	}
}

func UpdateCartItem(svc CartService, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateItemRequest
		if err := decode.JSON(c.Request, &req); err != nil {
			response.Error(c, log, err)
			return
		}

		updated, err := svc.UpdateItem(c.Request.Context(), middlewares.CurrentUser(c), c.Param("code"), req.Quantity)
		if err != nil {
			response.Error(c, log, err)
			return
		}
		response.OK(c, updated)
	}
}

func RemoveCartItem(svc CartService, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		updated, err := svc.RemoveItem(c.Request.Context(), middlewares.CurrentUser(c), c.Param("code"))
		if err != nil {
			response.Error(c, log, err)
			return
		}
		response.OK(c, updated)
	}
}

func ClearCart(svc CartService, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.ClearCart(c.Request.Context(), middlewares.CurrentUser(c)); err != nil {
			response.Error(c, log, err)
			return
		}
		response.NoContent(c)
	}
}
