package handlers

import (
	"context"

	"github.com/sanchey92/checkout-service/internal/domain/model"
	"github.com/sanchey92/checkout-service/internal/service/cart"
	"github.com/sanchey92/checkout-service/internal/service/order"
)

type OrderService interface {
	Create(ctx context.Context, cmd *model.CreateOrderCommand) (*order.Summary, error)
	Cancel(ctx context.Context, userCode, orderCode, reason string) (bool, error)
	Get(ctx context.Context, userCode, orderCode string) (*order.Summary, error)
	List(ctx context.Context, userCode string) ([]*order.Summary, error)
	UpdateStatus(ctx context.Context, orderCode, status string) (*order.Summary, error)
}

type CartService interface {
	GetOrCreateCart(ctx context.Context, userCode string) (*model.Cart, error)
	AddItem(ctx context.Context, userCode string, req cart.AddItemRequest) (*model.Cart, error)
	UpdateItem(ctx context.Context, userCode, itemCode string, quantity int) (*model.Cart, error)
	RemoveItem(ctx context.Context, userCode, itemCode string) (*model.Cart, error)
	ClearCart(ctx context.Context, userCode string) error
}
