//go:build integration

package pg_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanchey92/checkout-service/internal/domain/model"
	"github.com/sanchey92/checkout-service/internal/service/order"
	"github.com/sanchey92/checkout-service/internal/storage/pg"
)

// Run with: PG_TEST_DSN=postgres://... go test -tags integration ./internal/storage/pg/

func setupPG(t *testing.T) *pg.Storage {
	t.Helper()
	dsn := os.Getenv("PG_TEST_DSN")
	if dsn == "" {
		t.Skip("PG_TEST_DSN is not set")
	}

	ctx := context.Background()
	s, err := pg.NewPGStorage(ctx, slog.New(slog.NewTextHandler(io.Discard, nil)), &pg.StorageConfig{
		DSN:             dsn,
		MaxConns:        20,
		MinConns:        1,
		MaxConnLife:     time.Minute,
		MaxConnIdleTime: time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Migrate(ctx))
	return s
}

func seedProduct(t *testing.T, s *pg.Storage, code, price string, stock int) {
	t.Helper()
	require.NoError(t, s.UpsertProduct(context.Background(), &model.Product{
		Code:          code,
		Name:          "Product " + code,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		IsActive:      true,
	}))
}

func fillCart(t *testing.T, s *pg.Storage, user, product string, qty int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.CreateCart(ctx, model.NewCart(user)))
	cart, err := s.GetCartByUser(ctx, user)
	require.NoError(t, err)
	require.NoError(t, s.InsertCartItem(ctx, &model.CartItem{
		Code:        model.NewCode(),
		CartCode:    cart.Code,
		ProductCode: product,
		Quantity:    qty,
	}))
}

func stockOf(t *testing.T, s *pg.Storage, code string) int {
	t.Helper()
	p, err := s.GetProduct(context.Background(), code)
	require.NoError(t, err)
	return p.StockQuantity
}

func checkout(svc *order.Service, user string) (*order.Summary, error) {
	return svc.Create(context.Background(), &model.CreateOrderCommand{
		UserCode: user,
		Shipping: model.ShippingDetails{
			Street:   "12 Nguyen Trai",
			City:     "Ho Chi Minh",
			FullName: "Le Binh",
			Phone:    "0911111111",
		},
		PaymentMethod: "COD",
	})
}

func newService(s *pg.Storage) *order.Service {
	return order.NewOrderService(slog.New(slog.NewTextHandler(io.Discard, nil)), s, "order-events")
}

func TestPG_ConcurrentCheckoutsNeverOversell(t *testing.T) {
	s := setupPG(t)
	svc := newService(s)
	run := model.NewCode()
	product := "HOT-" + run

	const buyers = 10
	seedProduct(t, s, product, "10000", 3)
	for i := 0; i < buyers; i++ {
		fillCart(t, s, fmt.Sprintf("U%d-%s", i, run), product, 1)
	}

	errs := make(chan error, buyers)
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			_, err := checkout(svc, user)
			errs <- err
		}(fmt.Sprintf("U%d-%s", i, run))
	}
	wg.Wait()
	close(errs)

	var ok, short int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case model.IsKind(err, model.KindInsufficientStock):
			short++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 3, ok)
	assert.Equal(t, buyers-3, short)
	assert.Equal(t, 0, stockOf(t, s, product))
}

func TestPG_DoubleSubmitConsumesCartOnce(t *testing.T) {
	s := setupPG(t)
	svc := newService(s)
	run := model.NewCode()
	product, user := "P-"+run, "U-"+run

	seedProduct(t, s, product, "200000", 10)
	fillCart(t, s, user, product, 2)

	const attempts = 5
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := checkout(svc, user)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, model.IsKind(err, model.KindValidation), "unexpected error: %v", err)
	}

	assert.Equal(t, 1, ok)
	assert.Equal(t, 8, stockOf(t, s, product))
	orders, err := svc.List(context.Background(), user)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestPG_OrderRoundTripKeepsDecimals(t *testing.T) {
	s := setupPG(t)
	svc := newService(s)
	run := model.NewCode()
	product, user := "D-"+run, "U-"+run

	seedProduct(t, s, product, "199999.99", 5)
	fillCart(t, s, user, product, 3)

	created, err := checkout(svc, user)
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), user, created.Code)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("599999.97").Equal(got.TotalAmount), got.TotalAmount.String())
	assert.True(t, decimal.NewFromInt(30000).Equal(got.ShippingFee))
	assert.True(t, decimal.RequireFromString("629999.97").Equal(got.FinalAmount))
	require.Len(t, got.Items, 1)
	assert.True(t, decimal.RequireFromString("199999.99").Equal(got.Items[0].PriceAtOrder))
	require.NotNil(t, got.Payment)
	assert.Equal(t, model.PaymentPending, got.Payment.Status)

	ok, err := svc.Cancel(context.Background(), user, created.Code, "changed my mind")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 5, stockOf(t, s, product))
}

func TestPG_RunInTxRollsBack(t *testing.T) {
	s := setupPG(t)
	ctx := context.Background()
	product := "R-" + model.NewCode()
	seedProduct(t, s, product, "1000", 5)

	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(ctx context.Context) error {
		locked, err := s.LockProducts(ctx, []string{product})
		if err != nil {
			return err
		}
		p := locked[product]
		if err = p.DeductStock(5); err != nil {
			return err
		}
		if err = s.SaveStock(ctx, p); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 5, stockOf(t, s, product))
}

func TestPG_ClaimBatchLeasesRows(t *testing.T) {
	s := setupPG(t)
	ctx := context.Background()
	key := model.NewCode()

	require.NoError(t, s.InsertOutboxMsg(ctx, &model.OutboxMessage{
		Topic:     "order-events",
		Key:       key,
		EventType: model.EventOrderCreated,
		Payload:   []byte(`{}`),
		Headers:   map[string]string{"order-code": key},
	}))

	first, err := s.ClaimBatch(ctx, 10_000, 1_000, time.Minute)
	require.NoError(t, err)
	ours := find(first, key)
	require.NotNil(t, ours)
	assert.Equal(t, key, ours.Headers["order-code"])

	second, err := s.ClaimBatch(ctx, 10_000, 1_000, time.Minute)
	require.NoError(t, err)
	assert.Nil(t, find(second, key), "a leased row is not claimed again")

	require.NoError(t, s.UpdateRetryCount(ctx, ours.ID, "broker down", time.Now().Add(-time.Second)))
	third, err := s.ClaimBatch(ctx, 10_000, 1_000, time.Minute)
	require.NoError(t, err)
	again := find(third, key)
	require.NotNil(t, again, "due again once the backoff has elapsed")
	assert.Equal(t, 1, again.RetryCount)

	for _, batch := range [][]*model.OutboxMessage{first, second, third} {
		for _, m := range batch {
			require.NoError(t, s.MarkPublished(ctx, m.ID))
		}
	}
}

func find(msgs []*model.OutboxMessage, key string) *model.OutboxMessage {
	for _, m := range msgs {
		if m.Key == key {
			return m
		}
	}
	return nil
}
