package sqlite

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanchey92/checkout-service/internal/domain/model"
	"github.com/sanchey92/checkout-service/internal/storage"
)

func setupTestDB(t *testing.T) *Storage {
	t.Helper()
	s, err := NewSQLiteStorage(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedProduct(t *testing.T, s *Storage, code string, price int64, stock int) {
	t.Helper()
	require.NoError(t, s.UpsertProduct(context.Background(), &model.Product{
		Code:          code,
		Name:          "Product " + code,
		Price:         decimal.NewFromInt(price),
		StockQuantity: stock,
		IsActive:      true,
	}))
}

func TestProducts_LockAndSaveStock(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	seedProduct(t, s, "P1", 100, 5)
	seedProduct(t, s, "P2", 200, 1)

	products, err := s.LockProducts(ctx, []string{"P2", "P1", "MISSING"})
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.True(t, products["P1"].Price.Equal(decimal.NewFromInt(100)))

	p := products["P1"]
	require.NoError(t, p.DeductStock(2))
	require.NoError(t, s.SaveStock(ctx, p))

	got, err := s.GetProduct(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.StockQuantity)
	assert.True(t, got.IsActive)
}

func TestProducts_NegativeStockRejectedBySchema(t *testing.T) {
	s := setupTestDB(t)
	seedProduct(t, s, "P1", 100, 1)

	err := s.SaveStock(context.Background(), &model.Product{Code: "P1", StockQuantity: -1})
	assert.Error(t, err)
}

func TestGetProduct_NotFound(t *testing.T) {
	s := setupTestDB(t)

	_, err := s.GetProduct(context.Background(), "NOPE")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCart_Lifecycle(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	seedProduct(t, s, "P1", 100, 5)
	seedProduct(t, s, "P2", 250, 5)

	_, err := s.GetCartByUser(ctx, "U1")
	require.ErrorIs(t, err, storage.ErrNotFound)

	c := model.NewCart("U1")
	require.NoError(t, s.CreateCart(ctx, c))
	require.NoError(t, s.CreateCart(ctx, model.NewCart("U1")), "second create is a no-op")

	require.NoError(t, s.InsertCartItem(ctx, &model.CartItem{Code: "I1", CartCode: c.Code, ProductCode: "P1", Quantity: 2, Size: "M"}))
	require.NoError(t, s.InsertCartItem(ctx, &model.CartItem{Code: "I2", CartCode: c.Code, ProductCode: "P2", Quantity: 1, Color: "red"}))

	cart, err := s.GetCartByUser(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, c.Code, cart.Code)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, "I1", cart.Items[0].Code)
	assert.Equal(t, "Product P1", cart.Items[0].ProductName)
	assert.Equal(t, "M", cart.Items[0].Size)
	assert.Equal(t, "red", cart.Items[1].Color)
	assert.True(t, cart.Subtotal().Equal(decimal.NewFromInt(450)))

	require.NoError(t, s.UpdateCartItemQuantity(ctx, "I1", 4))
	require.NoError(t, s.DeleteCartItem(ctx, "I2"))
	assert.ErrorIs(t, s.DeleteCartItem(ctx, "I2"), storage.ErrNotFound)
	assert.ErrorIs(t, s.UpdateCartItemQuantity(ctx, "I9", 1), storage.ErrNotFound)

	cart, err = s.GetCartByUser(ctx, "U1")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 4, cart.Items[0].Quantity)

	require.NoError(t, s.ClearCart(ctx, "U1"))
	cart, err = s.GetCartByUser(ctx, "U1")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}

func TestOrder_RoundTrip(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	seedProduct(t, s, "P1", 500_000, 5)

	addr := model.NewShippingAddress("U1", model.ShippingDetails{Street: "1 Road", FullName: "A", Phone: "1"})
	require.NoError(t, s.InsertAddress(ctx, addr))

	o := model.NewOrder("U1", addr.Code, "", "COD", []model.OrderItem{
		{ProductCode: "P1", Quantity: 2, PriceAtOrder: decimal.NewFromInt(500_000), Size: "L"},
	})
	require.NoError(t, s.InsertOrder(ctx, o))

	got, err := s.GetOrder(ctx, o.Code)
	require.NoError(t, err)
	assert.Equal(t, model.OrderPending, got.Status)
	assert.True(t, got.TotalAmount.Equal(decimal.NewFromInt(1_000_000)))
	assert.True(t, got.ShippingFee.IsZero())
	assert.True(t, got.FinalAmount.Equal(decimal.NewFromInt(1_000_000)))
	assert.Equal(t, o.OrderDate.UnixMicro(), got.OrderDate.UnixMicro())
	require.Len(t, got.Items, 1)
	assert.Equal(t, "L", got.Items[0].Size)
	require.NotNil(t, got.Payment)
	assert.Equal(t, model.PaymentPending, got.Payment.Status)
	assert.Nil(t, got.Payment.TransactionID)
	assert.Nil(t, got.Payment.PaymentDate)

	require.NoError(t, got.Cancel("too slow"))
	require.NoError(t, s.UpdateOrderStatus(ctx, got))

	list, err := s.ListOrdersByUser(ctx, "U1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.OrderCancelled, list[0].Status)
	assert.Equal(t, "too slow", list[0].CancelReason)
	require.Len(t, list[0].Items, 1)

	_, err = s.GetOrder(ctx, "NOPE")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestOrder_UnknownAddressRejected(t *testing.T) {
	s := setupTestDB(t)
	seedProduct(t, s, "P1", 10, 5)

	o := model.NewOrder("U1", "NOADDRESS", "", "COD", []model.OrderItem{
		{ProductCode: "P1", Quantity: 1, PriceAtOrder: decimal.NewFromInt(10)},
	})
	assert.Error(t, s.InsertOrder(context.Background(), o))
}

func TestRunInTx_RollbackOnError(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	seedProduct(t, s, "P1", 100, 5)
	boom := errors.New("boom")

	err := s.RunInTx(ctx, func(ctx context.Context) error {
		products, err := s.LockProducts(ctx, []string{"P1"})
		if err != nil {
			return err
		}
		if err = products["P1"].DeductStock(5); err != nil {
			return err
		}
		if err = s.SaveStock(ctx, products["P1"]); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	p, err := s.GetProduct(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.StockQuantity)
}

func TestOutbox_Batch(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		require.NoError(t, s.InsertOutboxMsg(ctx, &model.OutboxMessage{
			Topic:     "order-events",
			Key:       key,
			EventType: model.EventOrderCreated,
			Payload:   []byte(`{"order_code":"` + key + `"}`),
			Headers:   map[string]string{"order-code": key},
		}))
	}

	msgs, err := s.ClaimBatch(ctx, 2, 3, time.Minute)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", msgs[0].Key)
	assert.Equal(t, "a", msgs[0].Headers["order-code"])

	msgs2, err := s.ClaimBatch(ctx, 10, 3, time.Minute)
	require.NoError(t, err)
	require.Len(t, msgs2, 1, "leased rows are not handed out twice")
	assert.Equal(t, "c", msgs2[0].Key)

	require.NoError(t, s.MarkPublished(ctx, msgs[0].ID))
	require.NoError(t, s.UpdateRetryCount(ctx, msgs[1].ID, "broker down", time.Now().Add(-time.Second)))
	require.NoError(t, s.UpdateRetryCount(ctx, msgs2[0].ID, "broker down", time.Now().Add(time.Hour)))

	due, err := s.ClaimBatch(ctx, 10, 3, time.Minute)
	require.NoError(t, err)
	require.Len(t, due, 1, "only the row whose backoff elapsed is due")
	assert.Equal(t, "b", due[0].Key)
	assert.Equal(t, 1, due[0].RetryCount)
}

func TestOutbox_RetryCutoff(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, s.InsertOutboxMsg(ctx, &model.OutboxMessage{
		Topic: "order-events", Key: "a", EventType: model.EventOrderCreated, Payload: []byte(`{}`),
	}))
	msgs, err := s.ClaimBatch(ctx, 10, 2, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	past := time.Now().Add(-time.Second)
	require.NoError(t, s.UpdateRetryCount(ctx, msgs[0].ID, "broker down", past))
	require.NoError(t, s.UpdateRetryCount(ctx, msgs[0].ID, "broker down", past))

	msgs, err = s.ClaimBatch(ctx, 10, 2, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
