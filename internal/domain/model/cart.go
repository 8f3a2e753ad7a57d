package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Cart struct {
	Code      string     `json:"code"       db:"code"`
	UserCode  string     `json:"user_code"  db:"user_code"`
	Items     []CartItem `json:"items"      db:"-"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// CartItem is a cart line together with the current state of its product.
type CartItem struct {
	Code        string `json:"code"         db:"code"`
	CartCode    string `json:"cart_code"    db:"cart_code"`
	ProductCode string `json:"product_code" db:"product_code"`
	Quantity    int    `json:"quantity"     db:"quantity"`
	Size        string `json:"size"         db:"size"`
	Color       string `json:"color"        db:"color"`

	ProductName   string          `json:"product_name" db:"-"`
	Price         decimal.Decimal `json:"price"        db:"-"`
	StockQuantity int             `json:"stock"        db:"-"`
	IsActive      bool            `json:"is_active"    db:"-"`
}

func NewCart(userCode string) *Cart {
	return &Cart{
		Code:      NewCode(),
		UserCode:  userCode,
		CreatedAt: time.Now().UTC(),
	}
}

func (c *Cart) IsEmpty() bool { return c == nil || len(c.Items) == 0 }

// Find returns the line with the same product and variant.
func (c *Cart) Find(productCode, size, color string) (*CartItem, bool) {
	for i := range c.Items {
		it := &c.Items[i]
		if it.ProductCode == productCode && it.Size == size && it.Color == color {
			return it, true
		}
	}
	return nil, false
}

func (c *Cart) Item(code string) (*CartItem, bool) {
	for i := range c.Items {
		if c.Items[i].Code == code {
			return &c.Items[i], true
		}
	}
	return nil, false
}

// Subtotal is the cart value at current product prices.
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}
