package order

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sanchey92/checkout-service/internal/domain/model"
)

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type CartStore interface {
	LockCart(ctx context.Context, userCode string) error
	GetCartByUser(ctx context.Context, userCode string) (*model.Cart, error)
	ClearCart(ctx context.Context, userCode string) error
}

type ProductStore interface {
	LockProducts(ctx context.Context, codes []string) (map[string]*model.Product, error)
	SaveStock(ctx context.Context, p *model.Product) error
}

type AddressStore interface {
	GetAddress(ctx context.Context, code string) (*model.Address, error)
	InsertAddress(ctx context.Context, a *model.Address) error
}

type OrderStore interface {
	InsertOrder(ctx context.Context, o *model.Order) error
	GetOrder(ctx context.Context, code string) (*model.Order, error)
	LockOrder(ctx context.Context, code string) (*model.Order, error)
	ListOrdersByUser(ctx context.Context, userCode string) ([]*model.Order, error)
	UpdateOrderStatus(ctx context.Context, o *model.Order) error
}

type OutboxSaver interface {
	InsertOutboxMsg(ctx context.Context, msg *model.OutboxMessage) error
}

type Repository interface {
	TxRunner
	CartStore
	ProductStore
	AddressStore
	OrderStore
	OutboxSaver
}

type Service struct {
	logger     *slog.Logger
	repo       Repository
	eventTopic string
}

func NewOrderService(l *slog.Logger, repo Repository, eventTopic string) *Service {
	return &Service{
		logger:     l,
		repo:       repo,
		eventTopic: eventTopic,
	}
}

// wrap annotates infrastructure errors and passes business errors through
// untouched.
func wrap(op string, err error) error {
	if _, ok := model.KindOf(err); ok {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *Service) reject(op string, err error, attrs ...any) {
	kind, _ := model.KindOf(err)
	attrs = append(attrs, slog.String("kind", string(kind)), slog.String("reason", err.Error()))
	s.logger.Warn(op+" rejected", attrs...)
}
