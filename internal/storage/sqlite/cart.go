package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sanchey92/checkout-service/internal/domain/model"
	"github.com/sanchey92/checkout-service/internal/storage"
)

func (s *Storage) GetCartByUser(ctx context.Context, userCode string) (*model.Cart, error) {
	cart := &model.Cart{}
	var created int64

	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT code, user_code, created_at FROM carts WHERE user_code = ?`, userCode).
		Scan(&cart.Code, &cart.UserCode, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	cart.CreatedAt = fromUnix(created)

	query := `SELECT ci.code, ci.cart_code, ci.product_code, ci.quantity, ci.size, ci.color,
                     p.name, p.price, p.stock_quantity, p.is_active
              FROM cart_items ci
              JOIN products p ON p.code = ci.product_code
              WHERE ci.cart_code = ?
              ORDER BY ci.seq`

	rows, err := s.conn(ctx).QueryContext(ctx, query, cart.Code)
	if err != nil {
		return nil, fmt.Errorf("get cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it model.CartItem
		if err = rows.Scan(&it.Code, &it.CartCode, &it.ProductCode, &it.Quantity, &it.Size, &it.Color,
			&it.ProductName, &it.Price, &it.StockQuantity, &it.IsActive); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		cart.Items = append(cart.Items, it)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart items: %w", err)
	}
	return cart, nil
}

// LockCart only checks that the cart exists; the single connection already
// serializes transactions.
func (s *Storage) LockCart(ctx context.Context, userCode string) error {
	var code string
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT code FROM carts WHERE user_code = ?`, userCode).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock cart: %w", err)
	}
	return nil
}

func (s *Storage) CreateCart(ctx context.Context, c *model.Cart) error {
	query := `INSERT INTO carts (code, user_code, created_at)
              VALUES (?, ?, ?)
              ON CONFLICT (user_code) DO NOTHING`

	if _, err := s.conn(ctx).ExecContext(ctx, query, c.Code, c.UserCode, toUnix(c.CreatedAt)); err != nil {
		return fmt.Errorf("create cart: %w", err)
	}
	return nil
}

func (s *Storage) InsertCartItem(ctx context.Context, it *model.CartItem) error {
	query := `INSERT INTO cart_items (code, cart_code, product_code, quantity, size, color, seq)
              VALUES (?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM cart_items))`

	if _, err := s.conn(ctx).ExecContext(ctx, query,
		it.Code, it.CartCode, it.ProductCode, it.Quantity, it.Size, it.Color); err != nil {
		return fmt.Errorf("insert cart item: %w", err)
	}
	return nil
}

func (s *Storage) UpdateCartItemQuantity(ctx context.Context, itemCode string, quantity int) error {
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE cart_items SET quantity = ? WHERE code = ?`, quantity, itemCode)
	if err != nil {
		return fmt.Errorf("update cart item: %w", err)
	}
	return expectRow(res)
}

func (s *Storage) DeleteCartItem(ctx context.Context, itemCode string) error {
	res, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM cart_items WHERE code = ?`, itemCode)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	return expectRow(res)
}

func (s *Storage) ClearCart(ctx context.Context, userCode string) error {
	query := `DELETE FROM cart_items
              WHERE cart_code IN (SELECT code FROM carts WHERE user_code = ?)`

	if _, err := s.conn(ctx).ExecContext(ctx, query, userCode); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
