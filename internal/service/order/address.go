package order

import (
	"context"
	"errors"
	"strings"

	"github.com/sanchey92/checkout-service/internal/domain/model"
	"github.com/sanchey92/checkout-service/internal/storage"
)

// resolveAddress returns the saved address named by the command, or saves
// the free-text shipping details as a new non-default address.
func (s *Service) resolveAddress(ctx context.Context, cmd *model.CreateOrderCommand) (string, error) {
	if code := strings.TrimSpace(cmd.AddressCode); code != "" {
		a, err := s.repo.GetAddress(ctx, code)
		if errors.Is(err, storage.ErrNotFound) {
			return "", model.NotFound("address %s not found", code)
		}
		if err != nil {
			return "", err
		}
		if a.UserCode != cmd.UserCode {
			return "", model.Forbidden("address %s belongs to another user", code)
		}
		return a.Code, nil
	}

	if cmd.Shipping.IsEmpty() {
		return "", model.Validation("Address is required")
	}

	a := model.NewShippingAddress(cmd.UserCode, cmd.Shipping)
	if err := s.repo.InsertAddress(ctx, a); err != nil {
		return "", err
	}
	return a.Code, nil
}
