package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sanchey92/checkout-service/internal/domain/model"
	"github.com/sanchey92/checkout-service/internal/storage"
)

const productColumns = `code, name, price, stock_quantity, is_active, updated_at`

func scanProduct(row pgx.Row) (*model.Product, error) {
	p := &model.Product{}
	if err := row.Scan(&p.Code, &p.Name, &p.Price, &p.StockQuantity, &p.IsActive, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

// UpsertProduct writes a catalog entry. Catalog management lives elsewhere;
// this is used for seeding.
func (s *Storage) UpsertProduct(ctx context.Context, p *model.Product) error {
	query := `INSERT INTO products (code, name, price, stock_quantity, is_active, updated_at)
              VALUES ($1, $2, $3, $4, $5, now())
              ON CONFLICT (code) DO UPDATE SET
                  name = EXCLUDED.name,
                  price = EXCLUDED.price,
                  stock_quantity = EXCLUDED.stock_quantity,
                  is_active = EXCLUDED.is_active,
                  updated_at = now()`

	if _, err := s.conn(ctx).Exec(ctx, query, p.Code, p.Name, p.Price, p.StockQuantity, p.IsActive); err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

func (s *Storage) GetProduct(ctx context.Context, code string) (*model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE code = $1`

	p, err := scanProduct(s.conn(ctx).QueryRow(ctx, query, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// LockProducts loads the given products with row locks held until the
// surrounding transaction ends. Rows are locked in code order so concurrent
// checkouts touching the same products cannot deadlock. Unknown codes are
// absent from the result.
func (s *Storage) LockProducts(ctx context.Context, codes []string) (map[string]*model.Product, error) {
	query := `SELECT ` + productColumns + `
              FROM products
              WHERE code = ANY($1)
              ORDER BY code
              FOR UPDATE`

	rows, err := s.conn(ctx).Query(ctx, query, codes)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()

	products := make(map[string]*model.Product, len(codes))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products[p.Code] = p
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	return products, nil
}

func (s *Storage) SaveStock(ctx context.Context, p *model.Product) error {
	query := `UPDATE products
              SET stock_quantity = $2, updated_at = now()
              WHERE code = $1`

	tag, err := s.conn(ctx).Exec(ctx, query, p.Code, p.StockQuantity)
	if err != nil {
		return fmt.Errorf("save stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
