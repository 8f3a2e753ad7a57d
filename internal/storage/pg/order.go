package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sanchey92/checkout-service/internal/domain/model"
	"github.com/sanchey92/checkout-service/internal/storage"
)

const orderColumns = `code, user_code, address_code, coupon_code, order_date, total_amount, shipping_fee,
                      discount_amount, final_amount, status, cancel_reason, updated_at`

// InsertOrder writes the order, its items and its payment.
func (s *Storage) InsertOrder(ctx context.Context, o *model.Order) error {
	batch := &pgx.Batch{}

	batch.Queue(`INSERT INTO orders (`+orderColumns+`)
                 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		o.Code, o.UserCode, o.AddressCode, o.CouponCode, o.OrderDate, o.TotalAmount, o.ShippingFee,
		o.DiscountAmount, o.FinalAmount, o.Status, o.CancelReason, o.UpdatedAt)

	for i, it := range o.Items {
		batch.Queue(`INSERT INTO order_items (code, order_code, product_code, quantity, price_at_order, size, color, position)
                     VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			it.Code, o.Code, it.ProductCode, it.Quantity, it.PriceAtOrder, it.Size, it.Color, i)
	}

	if p := o.Payment; p != nil {
		batch.Queue(`INSERT INTO payments (code, order_code, amount, method, status, transaction_id, payment_date, created_at)
                     VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			p.Code, o.Code, p.Amount, p.Method, p.Status, p.TransactionID, p.PaymentDate, p.CreatedAt)
	}

	br := s.conn(ctx).SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("insert order: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *Storage) GetOrder(ctx context.Context, code string) (*model.Order, error) {
	return s.getOrder(ctx, code, false)
}

// LockOrder loads the order and locks its row until the transaction ends.
func (s *Storage) LockOrder(ctx context.Context, code string) (*model.Order, error) {
	return s.getOrder(ctx, code, true)
}

func (s *Storage) getOrder(ctx context.Context, code string, forUpdate bool) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE code = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	o, err := scanOrder(s.conn(ctx).QueryRow(ctx, query, code))
	if errors.Is(err, pgx.ErrNoRows) {
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

// ListOrdersByUser returns the user's orders, newest first.
func (s *Storage) ListOrdersByUser(ctx context.Context, userCode string) ([]*model.Order, error) {
	query := `SELECT ` + orderColumns + `
              FROM orders
              WHERE user_code = $1
              ORDER BY order_date DESC, code`

	rows, err := s.conn(ctx).Query(ctx, query, userCode)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []*model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	if err = s.attachDetails(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Storage) UpdateOrderStatus(ctx context.Context, o *model.Order) error {
	query := `UPDATE orders
              SET status = $2, cancel_reason = $3, updated_at = $4
              WHERE code = $1`

	tag, err := s.conn(ctx).Exec(ctx, query, o.Code, o.Status, o.CancelReason, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	o := &model.Order{}
	err := row.Scan(&o.Code, &o.UserCode, &o.AddressCode, &o.CouponCode, &o.OrderDate, &o.TotalAmount,
		&o.ShippingFee, &o.DiscountAmount, &o.FinalAmount, &o.Status, &o.CancelReason, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// attachDetails loads items and payments for all orders in two queries.
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

	rows, err := s.conn(ctx).Query(ctx,
		`SELECT code, order_code, product_code, quantity, price_at_order, size, color
         FROM order_items
         WHERE order_code = ANY($1)
         ORDER BY order_code, position`, codes)
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

	rows, err = s.conn(ctx).Query(ctx,
		`SELECT code, order_code, amount, method, status, transaction_id, payment_date, created_at
         FROM payments
         WHERE order_code = ANY($1)`, codes)
	if err != nil {
		return fmt.Errorf("get payments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		p := &model.Payment{}
		if err = rows.Scan(&p.Code, &p.OrderCode, &p.Amount, &p.Method, &p.Status, &p.TransactionID, &p.PaymentDate, &p.CreatedAt); err != nil {
			return fmt.Errorf("scan payment: %w", err)
		}
		byCode[p.OrderCode].Payment = p
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("iterate payments: %w", err)
	}
	return nil
}
