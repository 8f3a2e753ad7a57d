package order

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/sanchey92/checkout-service/internal/domain/model"
	"github.com/sanchey92/checkout-service/internal/storage"
)

// Create turns the user's cart into an order. Stock deduction, address
// creation, the order with its items and payment, the cart clear and the
// OrderCreated event commit together or not at all.
func (s *Service) Create(ctx context.Context, cmd *model.CreateOrderCommand) (*Summary, error) {
	if strings.TrimSpace(cmd.UserCode) == "" {
		return nil, model.Validation("user code is required")
	}
	if strings.TrimSpace(cmd.PaymentMethod) == "" {
		return nil, model.Validation("payment method is required")
	}

	var order *model.Order

	err := s.repo.RunInTx(ctx, func(ctx context.Context) error {
		err := s.repo.LockCart(ctx, cmd.UserCode)
		if errors.Is(err, storage.ErrNotFound) {
			return model.Validation("cart is empty")
		}
		if err != nil {
			return err
		}

		cart, err := s.repo.GetCartByUser(ctx, cmd.UserCode)
		if errors.Is(err, storage.ErrNotFound) || (err == nil && cart.IsEmpty()) {
			return model.Validation("cart is empty")
		}
		if err != nil {
			return err
		}

		items, err := s.deductStock(ctx, cart)
		if err != nil {
			return err
		}

		addressCode, err := s.resolveAddress(ctx, cmd)
		if err != nil {
			return err
		}

		order = model.NewOrder(cmd.UserCode, addressCode, strings.TrimSpace(cmd.CouponCode),
			strings.TrimSpace(cmd.PaymentMethod), items)

		if err = s.repo.InsertOrder(ctx, order); err != nil {
			return err
		}
		if err = s.repo.ClearCart(ctx, cmd.UserCode); err != nil {
			return err
		}

		return s.publish(ctx, model.EventOrderCreated, order.Code, model.OrderCreatedEvent{
			OrderCode:     order.Code,
			UserCode:      order.UserCode,
			FinalAmount:   order.FinalAmount,
			PaymentCode:   order.Payment.Code,
			PaymentMethod: order.Payment.Method,
			Items:         order.Items,
			OccurredAt:    order.OrderDate,
		})
	})
	if err != nil {
		if _, ok := model.KindOf(err); ok {
			s.reject("create order", err, slog.String("user", cmd.UserCode))
		}
		return nil, wrap("service.Create", err)
	}

	s.logger.Info("order created",
		slog.String("code", order.Code),
		slog.String("user", order.UserCode),
		slog.String("final_amount", order.FinalAmount.String()),
		slog.Int("items", len(order.Items)))

	return NewSummary(order), nil
}

// deductStock locks every product in the cart, deducts each line and writes
// the new stock levels back. Any failing line aborts the whole checkout.
func (s *Service) deductStock(ctx context.Context, cart *model.Cart) ([]model.OrderItem, error) {
	codes := productCodes(len(cart.Items), func(i int) string { return cart.Items[i].ProductCode })

	products, err := s.repo.LockProducts(ctx, codes)
	if err != nil {
		return nil, err
	}

	items := make([]model.OrderItem, 0, len(cart.Items))
	for _, line := range cart.Items {
		p, ok := products[line.ProductCode]
		if !ok {
			return nil, model.NotFound("product %s not found", line.ProductCode)
		}
		if !p.IsActive {
			return nil, model.Validation("product %q is no longer available", p.Name)
		}
		if err = p.DeductStock(line.Quantity); err != nil {
			return nil, err
		}

		items = append(items, model.OrderItem{
			ProductCode:  p.Code,
			Quantity:     line.Quantity,
			PriceAtOrder: p.Price,
			Size:         line.Size,
			Color:        line.Color,
		})
	}

	if err = s.saveStock(ctx, codes, products); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Service) saveStock(ctx context.Context, codes []string, products map[string]*model.Product) error {
	for _, code := range codes {
		if p, ok := products[code]; ok && p.Dirty() {
			if err := s.repo.SaveStock(ctx, p); err != nil {
				return err
			}
		}
	}
	return nil
}

// productCodes returns the distinct product codes in lock order.
func productCodes(n int, code func(i int) string) []string {
	seen := make(map[string]struct{}, n)
	codes := make([]string, 0, n)
	for i := 0; i < n; i++ {
		c := code(i)
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}
