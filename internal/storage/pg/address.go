package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sanchey92/checkout-service/internal/domain/model"
	"github.com/sanchey92/checkout-service/internal/storage"
)

func (s *Storage) InsertAddress(ctx context.Context, a *model.Address) error {
	query := `INSERT INTO addresses (code, user_code, address_line, city, is_default, created_at)
              VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := s.conn(ctx).Exec(ctx, query,
		a.Code, a.UserCode, a.Line, a.City, a.IsDefault, a.CreatedAt); err != nil {
		return fmt.Errorf("insert address: %w", err)
	}
	return nil
}

func (s *Storage) GetAddress(ctx context.Context, code string) (*model.Address, error) {
	query := `SELECT code, user_code, address_line, city, is_default, created_at
              FROM addresses WHERE code = $1`

	a := &model.Address{}
	err := s.conn(ctx).QueryRow(ctx, query, code).
		Scan(&a.Code, &a.UserCode, &a.Line, &a.City, &a.IsDefault, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get address: %w", err)
	}
	return a, nil
}
