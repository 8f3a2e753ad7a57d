package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sanchey92/checkout-service/internal/domain/model"
	"github.com/sanchey92/checkout-service/internal/storage"
)

const orderColumns = `code, user_code, address_code, coupon_code, order_date, total_amount, shipping_fee,
                      discount_amount, final_amount, status, cancel_reason, updated_at`

func (s *Storage) InsertOrder(ctx context.Context, o *model.Order) error {
	return s.RunInTx(ctx, func(ctx context.Context) error {
		q := s.conn(ctx)

		if _, err := q.ExecContext(ctx,
			`INSERT INTO orders (`+orderColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			o.Code, o.UserCode, o.AddressCode, o.CouponCode, toUnix(o.OrderDate), o.TotalAmount, o.ShippingFee,
			o.DiscountAmount, o.FinalAmount, o.Status, o.CancelReason, toUnix(o.UpdatedAt)); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for i, it := range o.Items {
			if _, err := q.ExecContext(ctx,
				`INSERT INTO order_items (code, order_code, product_code, quantity, price_at_order, size, color, seq)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				it.Code, o.Code, it.ProductCode, it.Quantity, it.PriceAtOrder, it.Size, it.Color, i); err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}

		if p := o.Payment; p != nil {
			var paid sql.NullInt64
			if p.PaymentDate != nil {
				paid = sql.NullInt64{Int64: toUnix(*p.PaymentDate), Valid: true}
			}
			if _, err := q.ExecContext(ctx,
				`INSERT INTO payments (code, order_code, amount, method, status, transaction_id, payment_date, created_at)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				p.Code, o.Code, p.Amount, p.Method, p.Status, p.TransactionID, paid, toUnix(p.CreatedAt)); err != nil {
				return fmt.Errorf("insert payment: %w", err)
			}
		}
		return nil
	})
}

func (s *Storage) GetOrder(ctx context.Context, code string) (*model.Order, error) {
	o, err := scanOrder(s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE code = ?`, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	if err = s.attachDetails(ctx, []*model.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

// LockOrder is GetOrder; see LockProducts.
func (s *Storage) LockOrder(ctx context.Context, code string) (*model.Order, error) {
	return s.GetOrder(ctx, code)
}

func (s *Storage) ListOrdersByUser(ctx context.Context, userCode string) ([]*model.Order, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_code = ? ORDER BY order_date DESC, code`, userCode)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	var orders []*model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	if err = s.attachDetails(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Storage) UpdateOrderStatus(ctx context.Context, o *model.Order) error {
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE orders SET status = ?, cancel_reason = ?, updated_at = ? WHERE code = ?`,
		o.Status, o.CancelReason, toUnix(o.UpdatedAt), o.Code)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return expectRow(res)
}

func scanOrder(row rowScanner) (*model.Order, error) {
	o := &model.Order{}
	var orderDate, updated int64
	err := row.Scan(&o.Code, &o.UserCode, &o.AddressCode, &o.CouponCode, &orderDate, &o.TotalAmount,
		&o.ShippingFee, &o.DiscountAmount, &o.FinalAmount, &o.Status, &o.CancelReason, &updated)
	if err != nil {
		return nil, err
	}
	o.OrderDate = fromUnix(orderDate)
	o.UpdatedAt = fromUnix(updated)
	return o, nil
}

func (s *Storage) attachDetails(ctx context.Context, orders []*model.Order) error {
	if len(orders) == 0 {
		return nil
	}

	byCode := make(map[string]*model.Order, len(orders))
	codes := make([]string, 0, len(orders))
	for _, o := range orders {
		byCode[o.Code] = o
		codes = append(codes, o.Code)
	}
	in := placeholders(len(codes))

	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT code, order_code, product_code, quantity, price_at_order, size, color
         FROM order_items
         WHERE order_code IN (`+in+`)
         ORDER BY order_code, seq`, stringArgs(codes)...)
	if err != nil {
		return fmt.Errorf("get order items: %w", err)
	}
	for rows.Next() {
		var it model.OrderItem
		if err = rows.Scan(&it.Code, &it.OrderCode, &it.ProductCode, &it.Quantity, &it.PriceAtOrder, &it.Size, &it.Color); err != nil {
			rows.Close()
			return fmt.Errorf("scan order item: %w", err)
		}
		o := byCode[it.OrderCode]
		o.Items = append(o.Items, it)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return fmt.Errorf("iterate order items: %w", err)
	}

	rows, err = s.conn(ctx).QueryContext(ctx,
		`SELECT code, order_code, amount, method, status, transaction_id, payment_date, created_at
         FROM payments
         WHERE order_code IN (`+in+`)`, stringArgs(codes)...)
	if err != nil {
		return fmt.Errorf("get payments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		p := &model.Payment{}
		var (
			txID    sql.NullString
			paid    sql.NullInt64
			created int64
		)
		if err = rows.Scan(&p.Code, &p.OrderCode, &p.Amount, &p.Method, &p.Status, &txID, &paid, &created); err != nil {
			return fmt.Errorf("scan payment: %w", err)
		}
		if txID.Valid {
			p.TransactionID = &txID.String
		}
		if paid.Valid {
			t := fromUnix(paid.Int64)
			p.PaymentDate = &t
		}
		p.CreatedAt = fromUnix(created)
		byCode[p.OrderCode].Payment = p
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("iterate payments: %w", err)
	}
	return nil
}
