package cart

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanchey92/checkout-service/internal/domain/model"
	"github.com/sanchey92/checkout-service/internal/storage/sqlite"
)

func setup(t *testing.T) (*Service, *sqlite.Storage) {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := sqlite.NewSQLiteStorage(ctx, logger, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.UpsertProduct(ctx, &model.Product{
		Code: "TEE", Name: "Tee", Price: decimal.NewFromInt(150_000), StockQuantity: 5, IsActive: true,
	}))
	require.NoError(t, store.UpsertProduct(ctx, &model.Product{
		Code: "OLD", Name: "Old", Price: decimal.NewFromInt(1), StockQuantity: 5, IsActive: false,
	}))

	return NewCartService(logger, store), store
}

func TestGetOrCreateCart(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	first, err := svc.GetOrCreateCart(ctx, "U1")
	require.NoError(t, err)
	assert.True(t, first.IsEmpty())
	assert.Equal(t, "U1", first.UserCode)

	second, err := svc.GetOrCreateCart(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, first.Code, second.Code)
}

func TestAddItem_MergesSameVariant(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "U1", AddItemRequest{ProductCode: "TEE", Quantity: 1, Size: "M"})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "U1", AddItemRequest{ProductCode: "TEE", Quantity: 2, Size: "M"})
	require.NoError(t, err)
	cart, err := svc.AddItem(ctx, "U1", AddItemRequest{ProductCode: "TEE", Quantity: 1, Size: "L"})
	require.NoError(t, err)

	require.Len(t, cart.Items, 2)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.Equal(t, "M", cart.Items[0].Size)
	assert.Equal(t, 1, cart.Items[1].Quantity)
	assert.True(t, cart.Subtotal().Equal(decimal.NewFromInt(600_000)))
}

func TestAddItem_Rejections(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "U1", AddItemRequest{ProductCode: "TEE", Quantity: 0})
	assert.True(t, model.IsKind(err, model.KindValidation))

	_, err = svc.AddItem(ctx, "U1", AddItemRequest{ProductCode: "NOPE", Quantity: 1})
	assert.True(t, model.IsKind(err, model.KindNotFound))

	_, err = svc.AddItem(ctx, "U1", AddItemRequest{ProductCode: "OLD", Quantity: 1})
	assert.True(t, model.IsKind(err, model.KindValidation))

	_, err = svc.AddItem(ctx, "U1", AddItemRequest{ProductCode: "TEE", Quantity: 6})
	assert.True(t, model.IsKind(err, model.KindValidation))
}

func TestUpdateAndRemoveItem(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	cart, err := svc.AddItem(ctx, "U1", AddItemRequest{ProductCode: "TEE", Quantity: 1})
	require.NoError(t, err)
	code := cart.Items[0].Code

	cart, err = svc.UpdateItem(ctx, "U1", code, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, cart.Items[0].Quantity)

	_, err = svc.UpdateItem(ctx, "U1", code, 0)
	assert.True(t, model.IsKind(err, model.KindValidation))

	_, err = svc.UpdateItem(ctx, "U2", code, 2)
	assert.True(t, model.IsKind(err, model.KindNotFound), "another user's line is invisible")

	cart, err = svc.RemoveItem(ctx, "U1", code)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())

	_, err = svc.RemoveItem(ctx, "U1", code)
	assert.True(t, model.IsKind(err, model.KindNotFound))
}

func TestClearCart(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "U1", AddItemRequest{ProductCode: "TEE", Quantity: 2})
	require.NoError(t, err)

	require.NoError(t, svc.ClearCart(ctx, "U1"))

	cart, err := svc.GetOrCreateCart(ctx, "U1")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}
