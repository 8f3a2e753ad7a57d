package order

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sanchey92/checkout-service/internal/domain/model"
)

// Summary is the externally visible projection of an order.
type Summary struct {
	Code           string            `json:"code"`
	Status         model.OrderStatus `json:"status"`
	TotalAmount    decimal.Decimal   `json:"total_amount"`
	ShippingFee    decimal.Decimal   `json:"shipping_fee"`
	DiscountAmount decimal.Decimal   `json:"discount_amount"`
	FinalAmount    decimal.Decimal   `json:"final_amount"`
	OrderDate      time.Time         `json:"order_date"`
	CouponCode     string            `json:"coupon_code,omitempty"`
	CancelReason   string            `json:"cancel_reason,omitempty"`
	Payment        *PaymentSummary   `json:"payment,omitempty"`
	Items          []SummaryItem     `json:"items"`
}

type SummaryItem struct {
	ProductCode  string          `json:"product_code"`
	Quantity     int             `json:"quantity"`
	PriceAtOrder decimal.Decimal `json:"price_at_order"`
	Size         string          `json:"size,omitempty"`
	Color        string          `json:"color,omitempty"`
}

type PaymentSummary struct {
	Code   string              `json:"code"`
	Amount decimal.Decimal     `json:"amount"`
	Method string              `json:"method"`
	Status model.PaymentStatus `json:"status"`
}

func NewSummary(o *model.Order) *Summary {
	s := &Summary{
		Code:           o.Code,
		Status:         o.Status,
		TotalAmount:    o.TotalAmount,
		ShippingFee:    o.ShippingFee,
		DiscountAmount: o.DiscountAmount,
		FinalAmount:    o.FinalAmount,
		OrderDate:      o.OrderDate,
		CouponCode:     o.CouponCode,
		CancelReason:   o.CancelReason,
		Items:          make([]SummaryItem, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		s.Items = append(s.Items, SummaryItem{
			ProductCode:  it.ProductCode,
			Quantity:     it.Quantity,
			PriceAtOrder: it.PriceAtOrder,
			Size:         it.Size,
			Color:        it.Color,
		})
	}
	if p := o.Payment; p != nil {
		s.Payment = &PaymentSummary{Code: p.Code, Amount: p.Amount, Method: p.Method, Status: p.Status}
	}
	return s
}
