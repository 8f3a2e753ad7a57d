package order

import (
	"context"
	"errors"

	"github.com/sanchey92/checkout-service/internal/domain/model"
	"github.com/sanchey92/checkout-service/internal/storage"
)

func (s *Service) Get(ctx context.Context, userCode, orderCode string) (*Summary, error) {
	o, err := s.repo.GetOrder(ctx, orderCode)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, model.NotFound("order %s not found", orderCode)
	}
	if err != nil {
		return nil, wrap("service.Get", err)
	}
	if o.UserCode != userCode {
		return nil, model.Forbidden("order %s belongs to another user", orderCode)
	}
	return NewSummary(o), nil
}

func (s *Service) List(ctx context.Context, userCode string) ([]*Summary, error) {
	orders, err := s.repo.ListOrdersByUser(ctx, userCode)
	if err != nil {
		return nil, wrap("service.List", err)
	}

	out := make([]*Summary, 0, len(orders))
	for _, o := range orders {
		out = append(out, NewSummary(o))
	}
	return out, nil
}
