package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "Pending"
	PaymentPaid    PaymentStatus = "Paid"
	PaymentFailed  PaymentStatus = "Failed"
)

type Payment struct {
	Code          string          `json:"code"           db:"code"`
	OrderCode     string          `json:"order_code"     db:"order_code"`
	Amount        decimal.Decimal `json:"amount"         db:"amount"`
	Method        string          `json:"method"         db:"method"`
	Status        PaymentStatus   `json:"status"         db:"status"`
	TransactionID *string         `json:"transaction_id" db:"transaction_id"`
	PaymentDate   *time.Time      `json:"payment_date"   db:"payment_date"`
	CreatedAt     time.Time       `json:"created_at"     db:"created_at"`
}
