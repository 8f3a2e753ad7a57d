package order

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/sanchey92/checkout-service/internal/domain/model"
	"github.com/sanchey92/checkout-service/internal/storage/sqlite"
)

const testTopic = "order-events"

type OrderServiceSuite struct {
	suite.Suite
	ctx   context.Context
	store *sqlite.Storage
	svc   *Service
}

func TestOrderServiceSuite(t *testing.T) {
	suite.Run(t, new(OrderServiceSuite))
}

func (s *OrderServiceSuite) SetupTest() {
	s.ctx = context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := sqlite.NewSQLiteStorage(s.ctx, logger, ":memory:")
	s.Require().NoError(err)
	s.store = store
	s.svc = NewOrderService(logger, store, testTopic)
}

func (s *OrderServiceSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func (s *OrderServiceSuite) seedProduct(code string, price int64, stock int) {
	s.Require().NoError(s.store.UpsertProduct(s.ctx, &model.Product{
		Code:          code,
		Name:          "Product " + code,
		Price:         decimal.NewFromInt(price),
		StockQuantity: stock,
		IsActive:      true,
	}))
}

func (s *OrderServiceSuite) addToCart(user, product string, qty int, size string) {
	s.Require().NoError(s.store.CreateCart(s.ctx, model.NewCart(user)))
	cart, err := s.store.GetCartByUser(s.ctx, user)
	s.Require().NoError(err)
	s.Require().NoError(s.store.InsertCartItem(s.ctx, &model.CartItem{
		Code:        model.NewCode(),
		CartCode:    cart.Code,
		ProductCode: product,
		Quantity:    qty,
		Size:        size,
	}))
}

func (s *OrderServiceSuite) stock(code string) int {
	p, err := s.store.GetProduct(s.ctx, code)
	s.Require().NoError(err)
	return p.StockQuantity
}

func (s *OrderServiceSuite) cartSize(user string) int {
	cart, err := s.store.GetCartByUser(s.ctx, user)
	s.Require().NoError(err)
	return len(cart.Items)
}

func (s *OrderServiceSuite) events() []string {
	msgs, err := s.store.ClaimBatch(s.ctx, 100, 10, 0)
	s.Require().NoError(err)
	types := make([]string, 0, len(msgs))
	for _, m := range msgs {
		s.Equal(testTopic, m.Topic)
		types = append(types, m.EventType)
	}
	return types
}

func shipping() model.ShippingDetails {
	return model.ShippingDetails{
		Street:   "12 Nguyen Trai",
		Ward:     "Ward 2",
		District: "District 5",
		City:     "Ho Chi Minh",
		FullName: "Le Binh",
		Phone:    "0911111111",
	}
}

func (s *OrderServiceSuite) checkout(user string) (*Summary, error) {
	return s.svc.Create(s.ctx, &model.CreateOrderCommand{
		UserCode:      user,
		Shipping:      shipping(),
		PaymentMethod: "COD",
	})
}

func (s *OrderServiceSuite) TestCreate_EndToEnd() {
	s.seedProduct("P1", 500_000, 5)
	s.addToCart("U1", "P1", 1, "M")

	sum, err := s.checkout("U1")
	s.Require().NoError(err)

	s.Equal(model.OrderPending, sum.Status)
	s.True(sum.TotalAmount.Equal(decimal.NewFromInt(500_000)))
	s.True(sum.ShippingFee.Equal(decimal.NewFromInt(30_000)))
	s.True(sum.DiscountAmount.IsZero())
	s.True(sum.FinalAmount.Equal(decimal.NewFromInt(530_000)))
	s.Require().Len(sum.Items, 1)
	s.Equal("P1", sum.Items[0].ProductCode)
	s.Equal("M", sum.Items[0].Size)
	s.True(sum.Items[0].PriceAtOrder.Equal(decimal.NewFromInt(500_000)))

	s.Equal(4, s.stock("P1"))
	s.Equal(0, s.cartSize("U1"))

	o, err := s.store.GetOrder(s.ctx, sum.Code)
	s.Require().NoError(err)
	s.Require().NotNil(o.Payment)
	s.Equal(model.PaymentPending, o.Payment.Status)
	s.True(o.Payment.Amount.Equal(decimal.NewFromInt(530_000)))
	s.Equal("COD", o.Payment.Method)

	addr, err := s.store.GetAddress(s.ctx, o.AddressCode)
	s.Require().NoError(err)
	s.Equal("U1", addr.UserCode)
	s.False(addr.IsDefault)
	s.Equal("12 Nguyen Trai, Ward 2, District 5 | Receiver: Le Binh, Phone: 0911111111", addr.Line)

	s.Equal([]string{model.EventOrderCreated}, s.events())
}

func (s *OrderServiceSuite) TestCreate_AtomicWhenAnyItemLacksStock() {
	s.seedProduct("A", 100_000, 10)
	s.seedProduct("B", 100_000, 1)
	s.addToCart("U1", "A", 2, "")
	s.addToCart("U1", "B", 3, "")

	_, err := s.checkout("U1")
	s.Require().Error(err)
	s.True(model.IsKind(err, model.KindInsufficientStock))

	var e *model.Error
	s.Require().ErrorAs(err, &e)
	s.Equal("Product B", e.Product)

	s.Equal(10, s.stock("A"))
	s.Equal(1, s.stock("B"))
	s.Equal(2, s.cartSize("U1"))

	orders, err := s.store.ListOrdersByUser(s.ctx, "U1")
	s.Require().NoError(err)
	s.Empty(orders)
	s.Empty(s.events())
}

func (s *OrderServiceSuite) TestCreate_SameProductAcrossVariants() {
	s.seedProduct("P1", 10_000, 3)
	s.addToCart("U1", "P1", 2, "M")
	s.addToCart("U1", "P1", 2, "L")

	_, err := s.checkout("U1")
	s.True(model.IsKind(err, model.KindInsufficientStock))
	s.Equal(3, s.stock("P1"))
}

func (s *OrderServiceSuite) TestCreate_EmptyCart() {
	_, err := s.checkout("U1")
	s.True(model.IsKind(err, model.KindValidation))

	s.Require().NoError(s.store.CreateCart(s.ctx, model.NewCart("U1")))
	_, err = s.checkout("U1")
	s.True(model.IsKind(err, model.KindValidation))
}

func (s *OrderServiceSuite) TestCreate_AddressRequired() {
	s.seedProduct("P1", 10_000, 3)
	s.addToCart("U1", "P1", 1, "")

	_, err := s.svc.Create(s.ctx, &model.CreateOrderCommand{UserCode: "U1", PaymentMethod: "COD"})
	s.True(model.IsKind(err, model.KindValidation))
	s.Contains(err.Error(), "Address is required")
	s.Equal(3, s.stock("P1"))
	s.Equal(1, s.cartSize("U1"))
}

func (s *OrderServiceSuite) TestCreate_AddressWithoutStreet() {
	s.seedProduct("P1", 10_000, 3)
	s.addToCart("U1", "P1", 1, "")

	sum, err := s.svc.Create(s.ctx, &model.CreateOrderCommand{
		UserCode: "U1",
		Shipping: model.ShippingDetails{
			Ward:     "Ward 2",
			District: "District 5",
			City:     "Ho Chi Minh",
			FullName: "Le Binh",
			Phone:    "0911111111",
		},
		PaymentMethod: "COD",
	})
	s.Require().NoError(err)

	o, err := s.store.GetOrder(s.ctx, sum.Code)
	s.Require().NoError(err)
	a, err := s.store.GetAddress(s.ctx, o.AddressCode)
	s.Require().NoError(err)
	s.Equal("Ward 2, District 5 | Receiver: Le Binh, Phone: 0911111111", a.Line)
	s.Equal("Ho Chi Minh", a.City)
}

func (s *OrderServiceSuite) TestCreate_PaymentMethodRequired() {
	_, err := s.svc.Create(s.ctx, &model.CreateOrderCommand{UserCode: "U1", Shipping: shipping()})
	s.True(model.IsKind(err, model.KindValidation))
}

func (s *OrderServiceSuite) TestCreate_SavedAddress() {
	s.seedProduct("P1", 10_000, 5)
	mine := model.NewShippingAddress("U1", shipping())
	theirs := model.NewShippingAddress("U2", shipping())
	s.Require().NoError(s.store.InsertAddress(s.ctx, mine))
	s.Require().NoError(s.store.InsertAddress(s.ctx, theirs))
	s.addToCart("U1", "P1", 1, "")

	create := func(code string) (*Summary, error) {
		return s.svc.Create(s.ctx, &model.CreateOrderCommand{UserCode: "U1", AddressCode: code, PaymentMethod: "CARD"})
	}

	_, err := create("MISSING")
	s.True(model.IsKind(err, model.KindNotFound))

	_, err = create(theirs.Code)
	s.True(model.IsKind(err, model.KindForbidden))
	s.Equal(5, s.stock("P1"))

	sum, err := create(mine.Code)
	s.Require().NoError(err)

	o, err := s.store.GetOrder(s.ctx, sum.Code)
	s.Require().NoError(err)
	s.Equal(mine.Code, o.AddressCode)
}

func (s *OrderServiceSuite) TestCreate_FreeShippingAtThreshold() {
	s.seedProduct("P1", 1_000_000, 1)
	s.addToCart("U1", "P1", 1, "")

	sum, err := s.checkout("U1")
	s.Require().NoError(err)
	s.True(sum.ShippingFee.IsZero())
	s.True(sum.FinalAmount.Equal(decimal.NewFromInt(1_000_000)))
}

func (s *OrderServiceSuite) TestCreate_InactiveProduct() {
	s.Require().NoError(s.store.UpsertProduct(s.ctx, &model.Product{
		Code: "OLD", Name: "Retired", Price: decimal.NewFromInt(1), StockQuantity: 5, IsActive: false,
	}))
	s.addToCart("U1", "OLD", 1, "")

	_, err := s.checkout("U1")
	s.True(model.IsKind(err, model.KindValidation))
	s.Equal(5, s.stock("OLD"))
}

func (s *OrderServiceSuite) TestCreate_PriceAtOrderSurvivesPriceChange() {
	s.seedProduct("P1", 200_000, 5)
	s.addToCart("U1", "P1", 2, "")

	sum, err := s.checkout("U1")
	s.Require().NoError(err)

	s.seedProduct("P1", 999_000, 3)

	got, err := s.svc.Get(s.ctx, "U1", sum.Code)
	s.Require().NoError(err)
	s.True(got.Items[0].PriceAtOrder.Equal(decimal.NewFromInt(200_000)))
	s.True(got.TotalAmount.Equal(decimal.NewFromInt(400_000)))
	s.True(got.FinalAmount.Equal(decimal.NewFromInt(430_000)))
}

func (s *OrderServiceSuite) TestCancel_RestoresStockExactlyOnce() {
	s.seedProduct("P", 50_000, 10)
	s.addToCart("U1", "P", 2, "")

	sum, err := s.checkout("U1")
	s.Require().NoError(err)
	s.Equal(8, s.stock("P"))

	ok, err := s.svc.Cancel(s.ctx, "U1", sum.Code, "ordered by mistake")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(10, s.stock("P"))

	got, err := s.svc.Get(s.ctx, "U1", sum.Code)
	s.Require().NoError(err)
	s.Equal(model.OrderCancelled, got.Status)
	s.Equal("ordered by mistake", got.CancelReason)

	ok, err = s.svc.Cancel(s.ctx, "U1", sum.Code, "again")
	s.False(ok)
	s.True(model.IsKind(err, model.KindConflict))
	s.Equal(10, s.stock("P"))

	s.Equal([]string{model.EventOrderCreated, model.EventOrderCancelled}, s.events())
}

func (s *OrderServiceSuite) TestCancel_OtherUserForbidden() {
	s.seedProduct("P", 50_000, 10)
	s.addToCart("U1", "P", 2, "")
	sum, err := s.checkout("U1")
	s.Require().NoError(err)

	_, err = s.svc.Cancel(s.ctx, "U2", sum.Code, "not mine")
	s.True(model.IsKind(err, model.KindForbidden))

	got, err := s.svc.Get(s.ctx, "U1", sum.Code)
	s.Require().NoError(err)
	s.Equal(model.OrderPending, got.Status)
	s.Equal(8, s.stock("P"))
}

func (s *OrderServiceSuite) TestCancel_NotFound() {
	_, err := s.svc.Cancel(s.ctx, "U1", "NOPE", "")
	s.True(model.IsKind(err, model.KindNotFound))
}

func (s *OrderServiceSuite) TestCancel_CompletedOrder() {
	s.seedProduct("P", 50_000, 10)
	s.addToCart("U1", "P", 1, "")
	sum, err := s.checkout("U1")
	s.Require().NoError(err)

	_, err = s.svc.UpdateStatus(s.ctx, sum.Code, "Completed")
	s.Require().NoError(err)

	_, err = s.svc.Cancel(s.ctx, "U1", sum.Code, "too late")
	s.True(model.IsKind(err, model.KindConflict))
	s.Equal(9, s.stock("P"))
}

func (s *OrderServiceSuite) TestUpdateStatus() {
	s.seedProduct("P", 50_000, 10)
	s.addToCart("U1", "P", 3, "")
	sum, err := s.checkout("U1")
	s.Require().NoError(err)

	_, err = s.svc.UpdateStatus(s.ctx, sum.Code, "teleported")
	s.True(model.IsKind(err, model.KindValidation))

	got, err := s.svc.UpdateStatus(s.ctx, sum.Code, "shipped")
	s.Require().NoError(err)
	s.Equal(model.OrderShipped, got.Status)
	s.Equal(7, s.stock("P"))

	got, err = s.svc.UpdateStatus(s.ctx, sum.Code, "Cancelled")
	s.Require().NoError(err)
	s.Equal(model.OrderCancelled, got.Status)
	s.Equal(10, s.stock("P"))

	_, err = s.svc.UpdateStatus(s.ctx, sum.Code, "Pending")
	s.True(model.IsKind(err, model.KindConflict))
	s.Equal(10, s.stock("P"))

	_, err = s.svc.UpdateStatus(s.ctx, "NOPE", "Shipped")
	s.True(model.IsKind(err, model.KindNotFound))

	s.Equal([]string{model.EventOrderCreated, model.EventOrderStatusChanged, model.EventOrderCancelled}, s.events())
}

func (s *OrderServiceSuite) TestGetAndList() {
	s.seedProduct("P", 10_000, 10)
	s.addToCart("U1", "P", 1, "")
	first, err := s.checkout("U1")
	s.Require().NoError(err)
	s.addToCart("U1", "P", 2, "")
	second, err := s.checkout("U1")
	s.Require().NoError(err)

	_, err = s.svc.Get(s.ctx, "U2", first.Code)
	s.True(model.IsKind(err, model.KindForbidden))

	_, err = s.svc.Get(s.ctx, "U1", "NOPE")
	s.True(model.IsKind(err, model.KindNotFound))

	list, err := s.svc.List(s.ctx, "U1")
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.ElementsMatch([]string{first.Code, second.Code}, []string{list[0].Code, list[1].Code})

	empty, err := s.svc.List(s.ctx, "U2")
	s.Require().NoError(err)
	s.Empty(empty)
}

func (s *OrderServiceSuite) TestConcurrentCheckoutsNeverOversell() {
	const buyers = 10
	s.seedProduct("HOT", 10_000, 3)
	for i := 0; i < buyers; i++ {
		s.addToCart(fmt.Sprintf("U%d", i), "HOT", 1, "")
	}

	errs := make(chan error, buyers)
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			_, err := s.checkout(user)
			errs <- err
		}(fmt.Sprintf("U%d", i))
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
			s.Failf("unexpected error", "%v", err)
		}
	}

	s.Equal(3, ok)
	s.Equal(buyers-3, short)
	s.Equal(0, s.stock("HOT"))
}

func (s *OrderServiceSuite) TestConcurrentDoubleSubmitConsumesCartOnce() {
	s.seedProduct("P1", 200_000, 10)
	s.addToCart("U1", "P1", 2, "M")

	const attempts = 5
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.checkout("U1")
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
		s.True(model.IsKind(err, model.KindValidation), "unexpected error: %v", err)
	}

	s.Equal(1, ok)
	s.Equal(8, s.stock("P1"))

	orders, err := s.svc.List(s.ctx, "U1")
	s.Require().NoError(err)
	s.Len(orders, 1)
}
