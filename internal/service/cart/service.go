package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sanchey92/checkout-service/internal/domain/model"
	"github.com/sanchey92/checkout-service/internal/storage"
)

type Repository interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetCartByUser(ctx context.Context, userCode string) (*model.Cart, error)
	LockCart(ctx context.Context, userCode string) error
	CreateCart(ctx context.Context, c *model.Cart) error
	ClearCart(ctx context.Context, userCode string) error
	GetProduct(ctx context.Context, code string) (*model.Product, error)
	InsertCartItem(ctx context.Context, it *model.CartItem) error
	UpdateCartItemQuantity(ctx context.Context, itemCode string, quantity int) error
	DeleteCartItem(ctx context.Context, itemCode string) error
}

type Service struct {
	logger *slog.Logger
	repo   Repository
}

func NewCartService(l *slog.Logger, repo Repository) *Service {
	return &Service{logger: l, repo: repo}
}

type AddItemRequest struct {
	ProductCode string `json:"product_code"`
	Quantity    int    `json:"quantity"`
	Size        string `json:"size"`
	Color       string `json:"color"`
}

// GetOrCreateCart returns the user's cart with its lines, creating an empty
// cart on first use.
func (s *Service) GetOrCreateCart(ctx context.Context, userCode string) (*model.Cart, error) {
	var cart *model.Cart
	err := s.repo.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		cart, err = s.getOrCreate(ctx, userCode)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("service.GetOrCreateCart: %w", err)
	}
	return cart, nil
}

// getOrCreate locks the user's cart, creating it first if needed, and
// returns it with its lines.
func (s *Service) getOrCreate(ctx context.Context, userCode string) (*model.Cart, error) {
	err := s.repo.LockCart(ctx, userCode)
	if errors.Is(err, storage.ErrNotFound) {
		if err = s.repo.CreateCart(ctx, model.NewCart(userCode)); err != nil {
			return nil, err
		}
		s.logger.Debug("cart created", slog.String("user", userCode))
		err = s.repo.LockCart(ctx, userCode)
	}
	if err != nil {
		return nil, err
	}
	return s.repo.GetCartByUser(ctx, userCode)
}

func (s *Service) AddItem(ctx context.Context, userCode string, req AddItemRequest) (*model.Cart, error) {
	if req.Quantity < 1 {
		return nil, model.Validation("quantity must be at least 1")
	}

	var cart *model.Cart
	err := s.repo.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		cart, err = s.getOrCreate(ctx, userCode)
		if err != nil {
			return err
		}

		p, err := s.repo.GetProduct(ctx, req.ProductCode)
		if errors.Is(err, storage.ErrNotFound) {
			return model.NotFound("product %s not found", req.ProductCode)
		}
		if err != nil {
			return err
		}
		if !p.IsActive {
			return model.Validation("product %q is no longer available", p.Name)
		}

		quantity := req.Quantity
		line, exists := cart.Find(p.Code, req.Size, req.Color)
		if exists {
			quantity += line.Quantity
		}
		if quantity > p.StockQuantity {
			return model.Validation("only %d of %q left in stock", p.StockQuantity, p.Name)
		}

		if exists {
			err = s.repo.UpdateCartItemQuantity(ctx, line.Code, quantity)
		} else {
			err = s.repo.InsertCartItem(ctx, &model.CartItem{
				Code:        model.NewCode(),
				CartCode:    cart.Code,
				ProductCode: p.Code,
				Quantity:    quantity,
				Size:        req.Size,
				Color:       req.Color,
			})
		}
		if err != nil {
			return err
		}

		cart, err = s.repo.GetCartByUser(ctx, userCode)
		return err
	})
	if err != nil {
		return nil, wrap("service.AddItem", err)
	}
	return cart, nil
}

func (s *Service) UpdateItem(ctx context.Context, userCode, itemCode string, quantity int) (*model.Cart, error) {
	if quantity < 1 {
		return nil, model.Validation("quantity must be at least 1")
	}
	return s.changeItem(ctx, "service.UpdateItem", userCode, itemCode, func(ctx context.Context) error {
		return s.repo.UpdateCartItemQuantity(ctx, itemCode, quantity)
	})
}

func (s *Service) RemoveItem(ctx context.Context, userCode, itemCode string) (*model.Cart, error) {
	return s.changeItem(ctx, "service.RemoveItem", userCode, itemCode, func(ctx context.Context) error {
		return s.repo.DeleteCartItem(ctx, itemCode)
	})
}

// changeItem applies fn to a line after checking that it is in the user's
// cart.
func (s *Service) changeItem(ctx context.Context, op, userCode, itemCode string, fn func(ctx context.Context) error) (*model.Cart, error) {
	var cart *model.Cart
	err := s.repo.RunInTx(ctx, func(ctx context.Context) error {
		err := s.repo.LockCart(ctx, userCode)
		if errors.Is(err, storage.ErrNotFound) {
			return model.NotFound("cart item %s not found", itemCode)
		}
		if err != nil {
			return err
		}
		if cart, err = s.repo.GetCartByUser(ctx, userCode); err != nil {
			return err
		}
		if _, ok := cart.Item(itemCode); !ok {
			return model.NotFound("cart item %s not found", itemCode)
		}

		if err = fn(ctx); err != nil {
			return err
		}
		cart, err = s.repo.GetCartByUser(ctx, userCode)
		return err
	})
	if err != nil {
		return nil, wrap(op, err)
	}
	return cart, nil
}

// ClearCart removes every line from the user's cart.
func (s *Service) ClearCart(ctx context.Context, userCode string) error {
	if err := s.repo.ClearCart(ctx, userCode); err != nil {
		return fmt.Errorf("service.ClearCart: %w", err)
	}
	return nil
}

func wrap(op string, err error) error {
	if _, ok := model.KindOf(err); ok {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
