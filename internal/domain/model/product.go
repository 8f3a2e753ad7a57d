package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	Code          string          `json:"code"           db:"code"`
	Name          string          `json:"name"           db:"name"`
	Price         decimal.Decimal `json:"price"          db:"price"`
	StockQuantity int             `json:"stock_quantity" db:"stock_quantity"`
	IsActive      bool            `json:"is_active"      db:"is_active"`
	UpdatedAt     time.Time       `json:"updated_at"     db:"updated_at"`

	dirty bool
}

// DeductStock removes quantity units from stock. On failure the stock is
// left untouched.
func (p *Product) DeductStock(quantity int) error {
	if quantity <= 0 {
		return Validation("quantity must be positive, got %d", quantity)
	}
	if p.StockQuantity < quantity {
		return InsufficientStock(p.Name, p.StockQuantity, quantity)
	}
	p.StockQuantity -= quantity
	p.dirty = true
	return nil
}

// RestoreStock returns quantity units to stock. Only order cancellation
// calls it; there is no upper bound.
func (p *Product) RestoreStock(quantity int) error {
	if quantity <= 0 {
		return Validation("quantity must be positive, got %d", quantity)
	}
	p.StockQuantity += quantity
	p.dirty = true
	return nil
}

// Dirty reports whether stock changed since the product was loaded.
func (p *Product) Dirty() bool { return p.dirty }
