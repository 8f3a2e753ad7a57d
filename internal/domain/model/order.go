package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "Pending"
	OrderConfirmed OrderStatus = "Confirmed"
	OrderShipped   OrderStatus = "Shipped"
	OrderCompleted OrderStatus = "Completed"
	OrderCancelled OrderStatus = "Cancelled"
)

var orderStatuses = []OrderStatus{OrderPending, OrderConfirmed, OrderShipped, OrderCompleted, OrderCancelled}

// ParseOrderStatus accepts any casing of a known status.
func ParseOrderStatus(s string) (OrderStatus, error) {
	for _, st := range orderStatuses {
		if strings.EqualFold(strings.TrimSpace(s), string(st)) {
			return st, nil
		}
	}
	return "", Validation("unknown order status %q", s)
}

type Order struct {
	Code           string          `json:"code"            db:"code"`
	UserCode       string          `json:"user_code"       db:"user_code"`
	AddressCode    string          `json:"address_code"    db:"address_code"`
	CouponCode     string          `json:"coupon_code"     db:"coupon_code"`
	OrderDate      time.Time       `json:"order_date"      db:"order_date"`
	TotalAmount    decimal.Decimal `json:"total_amount"    db:"total_amount"`
	ShippingFee    decimal.Decimal `json:"shipping_fee"    db:"shipping_fee"`
	DiscountAmount decimal.Decimal `json:"discount_amount" db:"discount_amount"`
	FinalAmount    decimal.Decimal `json:"final_amount"    db:"final_amount"`
	Status         OrderStatus     `json:"status"          db:"status"`
	CancelReason   string          `json:"cancel_reason"   db:"cancel_reason"`
	Items          []OrderItem     `json:"items"           db:"-"`
	Payment        *Payment        `json:"payment"         db:"-"`
	UpdatedAt      time.Time       `json:"updated_at"      db:"updated_at"`
}

// OrderItem is an immutable snapshot of a cart line at purchase time.
type OrderItem struct {
	Code         string          `json:"code"           db:"code"`
	OrderCode    string          `json:"order_code"     db:"order_code"`
	ProductCode  string          `json:"product_code"   db:"product_code"`
	Quantity     int             `json:"quantity"       db:"quantity"`
	PriceAtOrder decimal.Decimal `json:"price_at_order" db:"price_at_order"`
	Size         string          `json:"size"           db:"size"`
	Color        string          `json:"color"          db:"color"`
}

type CreateOrderCommand struct {
	UserCode      string          `json:"user_code"`
	AddressCode   string          `json:"address_code"`
	Shipping      ShippingDetails `json:"shipping"`
	PaymentMethod string          `json:"payment_method"`
	CouponCode    string          `json:"coupon_code"`
}

// NewOrder prices items and attaches a pending payment for the final amount.
func NewOrder(userCode, addressCode, couponCode, paymentMethod string, items []OrderItem) *Order {
	now := time.Now().UTC()
	code := NewCode()

	for i := range items {
		items[i].OrderCode = code
		if items[i].Code == "" {
			items[i].Code = NewCode()
		}
	}

	totals := CalculateTotals(items)

	return &Order{
		Code:           code,
		UserCode:       userCode,
		AddressCode:    addressCode,
		CouponCode:     couponCode,
		OrderDate:      now,
		TotalAmount:    totals.Total,
		ShippingFee:    totals.ShippingFee,
		DiscountAmount: totals.Discount,
		FinalAmount:    totals.Final,
		Status:         OrderPending,
		Items:          items,
		Payment: &Payment{
			Code:      NewCode(),
			OrderCode: code,
			Amount:    totals.Final,
			Method:    paymentMethod,
			Status:    PaymentPending,
			CreatedAt: now,
		},
		UpdatedAt: now,
	}
}

// CheckCancellable rejects cancellation of completed or already cancelled
// orders.
func (o *Order) CheckCancellable() error {
	switch o.Status {
	case OrderCompleted:
		return Conflict("order %s is completed and cannot be cancelled", o.Code)
	case OrderCancelled:
		return Conflict("order %s is already cancelled", o.Code)
	}
	return nil
}

// Cancel moves the order to Cancelled. The caller restores stock for every
// item in the same transaction.
func (o *Order) Cancel(reason string) error {
	if err := o.CheckCancellable(); err != nil {
		return err
	}
	o.Status = OrderCancelled
	o.CancelReason = strings.TrimSpace(reason)
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdateStatus is the administrative status change. It reports whether the
// change cancelled the order, in which case stock has to be restored.
func (o *Order) UpdateStatus(status OrderStatus) (cancelled bool, err error) {
	if status == OrderCancelled {
		if err = o.Cancel(""); err != nil {
			return false, err
		}
		return true, nil
	}
	if o.Status == OrderCancelled {
		return false, Conflict("order %s is cancelled; its stock was already restored", o.Code)
	}
	o.Status = status
	o.UpdatedAt = time.Now().UTC()
	return false, nil
}
