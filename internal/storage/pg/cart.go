package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sanchey92/checkout-service/internal/domain/model"
	"github.com/sanchey92/checkout-service/internal/storage"
)

// GetCartByUser returns the user's cart with its lines and the current state
// of each line's product.
func (s *Storage) GetCartByUser(ctx context.Context, userCode string) (*model.Cart, error) {
	cart := &model.Cart{}

	err := s.conn(ctx).QueryRow(ctx,
		`SELECT code, user_code, created_at FROM carts WHERE user_code = $1`, userCode).
		Scan(&cart.Code, &cart.UserCode, &cart.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	query := `SELECT ci.code, ci.cart_code, ci.product_code, ci.quantity, ci.size, ci.color,
                     p.name, p.price, p.stock_quantity, p.is_active
              FROM cart_items ci
              JOIN products p ON p.code = ci.product_code
              WHERE ci.cart_code = $1
              ORDER BY ci.created_at, ci.code`

	rows, err := s.conn(ctx).Query(ctx, query, cart.Code)
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

// LockCart takes a row lock on the user's cart that is held until the
// surrounding transaction ends. Checkout and cart edits for the same user
// serialize on it.
func (s *Storage) LockCart(ctx context.Context, userCode string) error {
	var code string
	err := s.conn(ctx).QueryRow(ctx,
		`SELECT code FROM carts WHERE user_code = $1 FOR UPDATE`, userCode).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock cart: %w", err)
	}
	return nil
}

// CreateCart is a no-op when the user already has a cart.
func (s *Storage) CreateCart(ctx context.Context, c *model.Cart) error {
	query := `INSERT INTO carts (code, user_code, created_at)
              VALUES ($1, $2, $3)
              ON CONFLICT (user_code) DO NOTHING`

	if _, err := s.conn(ctx).Exec(ctx, query, c.Code, c.UserCode, c.CreatedAt); err != nil {
		return fmt.Errorf("create cart: %w", err)
	}
	return nil
}

func (s *Storage) InsertCartItem(ctx context.Context, it *model.CartItem) error {
	query := `INSERT INTO cart_items (code, cart_code, product_code, quantity, size, color)
              VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := s.conn(ctx).Exec(ctx, query,
		it.Code, it.CartCode, it.ProductCode, it.Quantity, it.Size, it.Color); err != nil {
		return fmt.Errorf("insert cart item: %w", err)
	}
	return nil
}

func (s *Storage) UpdateCartItemQuantity(ctx context.Context, itemCode string, quantity int) error {
	tag, err := s.conn(ctx).Exec(ctx,
		`UPDATE cart_items SET quantity = $2 WHERE code = $1`, itemCode, quantity)
	if err != nil {
		return fmt.Errorf("update cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Storage) DeleteCartItem(ctx context.Context, itemCode string) error {
	tag, err := s.conn(ctx).Exec(ctx, `DELETE FROM cart_items WHERE code = $1`, itemCode)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ClearCart removes every line from the user's cart. The cart row stays.
func (s *Storage) ClearCart(ctx context.Context, userCode string) error {
	query := `DELETE FROM cart_items
              WHERE cart_code IN (SELECT code FROM carts WHERE user_code = $1)`

	if _, err := s.conn(ctx).Exec(ctx, query, userCode); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
