package handlers

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/sanchey92/checkout-service/internal/domain/model"
	"github.com/sanchey92/checkout-service/internal/http/lib/api/decode"
	"github.com/sanchey92/checkout-service/internal/http/lib/api/response"
	"github.com/sanchey92/checkout-service/internal/http/middlewares"
)

// createOrderRequest is flat: the shipping fields (address, ward, district,
// city, full_name, phone, note) sit next to address_code.
type createOrderRequest struct {
	AddressCode string `json:"address_code"`
	model.ShippingDetails
	PaymentMethod string `json:"payment_method"`
	CouponCode    string `json:"coupon_code"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type cancelOrderResponse struct {
	Code      string `json:"code"`
	Cancelled bool   `json:"cancelled"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func CreateOrder(svc OrderService, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createOrderRequest
		if err := decode.JSON(c.Request, &req); err != nil {
			response.Error(c, log, err)
			return
		}

		summary, err := svc.Create(c.Request.Context(), &model.CreateOrderCommand{
			UserCode:      middlewares.CurrentUser(c),
			AddressCode:   req.AddressCode,
			Shipping:      req.ShippingDetails,
			PaymentMethod: req.PaymentMethod,
			CouponCode:    req.CouponCode,
		})
		if err != nil {
			response.Error(c, log, err)
			return
		}
		response.Created(c, summary)
	}
}

func GetOrder(svc OrderService, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := svc.Get(c.Request.Context(), middlewares.CurrentUser(c), c.Param("code"))
		if err != nil {
			response.Error(c, log, err)
			return
		}
		response.OK(c, summary)
	}
}

func ListOrders(svc OrderService, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		summaries, err := svc.List(c.Request.Context(), middlewares.CurrentUser(c))
		if err != nil {
			response.Error(c, log, err)
			return
		}
		response.OK(c, gin.H{"orders": summaries})
	}
}

// CancelOrder accepts an empty body; the reason is optional.
func CancelOrder(svc OrderService, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req cancelOrderRequest
		if c.Request.ContentLength != 0 {
			if err := decode.JSON(c.Request, &req); err != nil {
				response.Error(c, log, err)
				return
			}
		}

		code := c.Param("code")
		ok, err := svc.Cancel(c.Request.Context(), middlewares.CurrentUser(c), code, req.Reason)
		if err != nil {
			response.Error(c, log, err)
			return
		}
		response.OK(c, cancelOrderResponse{Code: code, Cancelled: ok})
	}
}

func UpdateOrderStatus(svc OrderService, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateStatusRequest
		if err := decode.JSON(c.Request, &req); err != nil {
			response.Error(c, log, err)
			return
		}

		summary, err := svc.UpdateStatus(c.Request.Context(), c.Param("code"), req.Status)
		if err != nil {
			response.Error(c, log, err)
			return
		}
		response.OK(c, summary)
	}
}
