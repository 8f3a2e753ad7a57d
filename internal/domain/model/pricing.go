package model

import "github.com/shopspring/decimal"

var (
	// FreeShippingThreshold is the line total from which shipping is free.
	FreeShippingThreshold = decimal.NewFromInt(1_000_000)
	FlatShippingFee       = decimal.NewFromInt(30_000)
)

type Totals struct {
	Total       decimal.Decimal `json:"total_amount"`
	ShippingFee decimal.Decimal `json:"shipping_fee"`
	Discount    decimal.Decimal `json:"discount_amount"`
	Final       decimal.Decimal `json:"final_amount"`
}

func LineTotal(price decimal.Decimal, quantity int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity)))
}

func ShippingFee(total decimal.Decimal) decimal.Decimal {
	if total.GreaterThanOrEqual(FreeShippingThreshold) {
		return decimal.Zero
	}
	return FlatShippingFee
}

// FinalAmount never goes below zero.
func FinalAmount(total, shipping, discount decimal.Decimal) decimal.Decimal {
	final := total.Add(shipping).Sub(discount)
	if final.IsNegative() {
		return decimal.Zero
	}
	return final
}

// CalculateTotals prices the given order lines. Coupons are not resolved
// yet, so the discount is always zero.
func CalculateTotals(items []OrderItem) Totals {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(LineTotal(it.PriceAtOrder, it.Quantity))
	}
	return totalsWithDiscount(total, decimal.Zero)
}

func totalsWithDiscount(total, discount decimal.Decimal) Totals {
	shipping := ShippingFee(total)
	return Totals{
		Total:       total,
		ShippingFee: shipping,
		Discount:    discount,
		Final:       FinalAmount(total, shipping, discount),
	}
}
