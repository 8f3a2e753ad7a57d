package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderCancelled     = "OrderCancelled"
	EventOrderStatusChanged = "OrderStatusChanged"
)

type OrderCreatedEvent struct {
	OrderCode     string          `json:"order_code"`
	UserCode      string          `json:"user_code"`
	FinalAmount   decimal.Decimal `json:"final_amount"`
	PaymentCode   string          `json:"payment_code"`
	PaymentMethod string          `json:"payment_method"`
	Items         []OrderItem     `json:"items"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

type OrderCancelledEvent struct {
	OrderCode  string      `json:"order_code"`
	UserCode   string      `json:"user_code"`
	Reason     string      `json:"reason"`
	Items      []OrderItem `json:"items"`
	OccurredAt time.Time   `json:"occurred_at"`
}

type OrderStatusChangedEvent struct {
	OrderCode  string      `json:"order_code"`
	From       OrderStatus `json:"from"`
	To         OrderStatus `json:"to"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// UpdateOrderStatusCommand arrives on the command topic from fulfilment.
type UpdateOrderStatusCommand struct {
	OrderCode string `json:"order_code"`
	Status    string `json:"status"`
}
