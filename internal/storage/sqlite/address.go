package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sanchey92/checkout-service/internal/domain/model"
	"github.com/sanchey92/checkout-service/internal/storage"
)

func (s *Storage) InsertAddress(ctx context.Context, a *model.Address) error {
	query := `INSERT INTO addresses (code, user_code, address_line, city, is_default, created_at)
              VALUES (?, ?, ?, ?, ?, ?)`

	if _, err := s.conn(ctx).ExecContext(ctx, query,
		a.Code, a.UserCode, a.Line, a.City, a.IsDefault, toUnix(a.CreatedAt)); err != nil {
		return fmt.Errorf("insert address: %w", err)
	}
	return nil
}

func (s *Storage) GetAddress(ctx context.Context, code string) (*model.Address, error) {
	query := `SELECT code, user_code, address_line, city, is_default, created_at
              FROM addresses WHERE code = ?`

	a := &model.Address{}
	var created int64
	err := s.conn(ctx).QueryRowContext(ctx, query, code).
		Scan(&a.Code, &a.UserCode, &a.Line, &a.City, &a.IsDefault, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get address: %w", err)
	}
	a.CreatedAt = fromUnix(created)
	return a, nil
}
