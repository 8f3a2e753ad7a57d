package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sanchey92/checkout-service/internal/domain/model"
	"github.com/sanchey92/checkout-service/internal/storage"
)

const productColumns = `code, name, price, stock_quantity, is_active, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*model.Product, error) {
	p := &model.Product{}
	var updated int64
	if err := row.Scan(&p.Code, &p.Name, &p.Price, &p.StockQuantity, &p.IsActive, &updated); err != nil {
		return nil, err
	}
	p.UpdatedAt = fromUnix(updated)
	return p, nil
}

// UpsertProduct writes a catalog entry. Catalog management lives elsewhere;
// the embedded store uses this for seeding.
func (s *Storage) UpsertProduct(ctx context.Context, p *model.Product) error {
	query := `INSERT INTO products (` + productColumns + `)
              VALUES (?, ?, ?, ?, ?, ?)
              ON CONFLICT (code) DO UPDATE SET
                  name = excluded.name,
                  price = excluded.price,
                  stock_quantity = excluded.stock_quantity,
                  is_active = excluded.is_active,
                  updated_at = excluded.updated_at`

	if _, err := s.conn(ctx).ExecContext(ctx, query,
		p.Code, p.Name, p.Price, p.StockQuantity, p.IsActive, toUnix(time.Now())); err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

func (s *Storage) GetProduct(ctx context.Context, code string) (*model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE code = ?`

	p, err := scanProduct(s.conn(ctx).QueryRowContext(ctx, query, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// LockProducts loads the given products. The single connection already
// serializes writers, so no row lock is taken.
func (s *Storage) LockProducts(ctx context.Context, codes []string) (map[string]*model.Product, error) {
	products := make(map[string]*model.Product, len(codes))
	if len(codes) == 0 {
		return products, nil
	}

	query := `SELECT ` + productColumns + `
              FROM products
              WHERE code IN (` + placeholders(len(codes)) + `)
              ORDER BY code`

	rows, err := s.conn(ctx).QueryContext(ctx, query, stringArgs(codes)...)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()

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
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE products SET stock_quantity = ?, updated_at = ? WHERE code = ?`,
		p.StockQuantity, toUnix(time.Now()), p.Code)
	if err != nil {
		return fmt.Errorf("save stock: %w", err)
	}
	return expectRow(res)
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
