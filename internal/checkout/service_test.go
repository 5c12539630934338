package checkout

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veloshop/storefront-backend/internal/cart"
	"github.com/veloshop/storefront-backend/internal/coupons"
	"github.com/veloshop/storefront-backend/internal/orders"
	"github.com/veloshop/storefront-backend/internal/settings"
	"github.com/veloshop/storefront-backend/internal/stock"
	"github.com/veloshop/storefront-backend/pkg/db/models"
	"github.com/veloshop/storefront-backend/pkg/enums"
	pkgerrors "github.com/veloshop/storefront-backend/pkg/errors"
	"github.com/veloshop/storefront-backend/pkg/pagination"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeCartRepo struct {
	cart    *models.Cart
	items   []models.CartItem
	cleared bool
}

func (f *fakeCartRepo) WithTx(_ *gorm.DB) cart.Repository { return f }

func (f *fakeCartRepo) CreateCart(_ context.Context, _ *models.Cart) error { return nil }

func (f *fakeCartRepo) FindCartByUser(_ context.Context, _ uuid.UUID) (*models.Cart, error) {
	if f.cart == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return f.cart, nil
}

func (f *fakeCartRepo) FindCartBySession(_ context.Context, _ string) (*models.Cart, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeCartRepo) FindCartByID(_ context.Context, _ uuid.UUID) (*models.Cart, error) {
	return f.cart, nil
}

func (f *fakeCartRepo) DeleteCart(_ context.Context, _ uuid.UUID) error { return nil }

func (f *fakeCartRepo) FindItem(_ context.Context, _, _ uuid.UUID, _ *uuid.UUID) (*models.CartItem, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeCartRepo) FindItemByID(_ context.Context, _, _ uuid.UUID) (*models.CartItem, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeCartRepo) CreateItem(_ context.Context, _ *models.CartItem) error { return nil }

func (f *fakeCartRepo) UpdateItem(_ context.Context, _ uuid.UUID, _ map[string]any) error {
	return nil
}

func (f *fakeCartRepo) DeleteItem(_ context.Context, _ uuid.UUID) error { return nil }

func (f *fakeCartRepo) ListItems(_ context.Context, _ uuid.UUID) ([]models.CartItem, error) {
	return f.items, nil
}

func (f *fakeCartRepo) ClearItems(_ context.Context, _ uuid.UUID) error {
	f.cleared = true
	f.items = nil
	return nil
}

type fakeOrdersRepo struct {
	order *models.Order
	items []models.OrderItem
}

func (f *fakeOrdersRepo) WithTx(_ *gorm.DB) orders.Repository { return f }

func (f *fakeOrdersRepo) Create(_ context.Context, order *models.Order) error {
	f.order = order
	return nil
}

func (f *fakeOrdersRepo) CreateItems(_ context.Context, items []models.OrderItem) error {
	f.items = items
	return nil
}

func (f *fakeOrdersRepo) FindByID(_ context.Context, _ uuid.UUID) (*models.Order, error) {
	return f.order, nil
}

func (f *fakeOrdersRepo) FindByConversationID(_ context.Context, _ string) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeOrdersRepo) ListByUser(_ context.Context, _ uuid.UUID, _ pagination.Params) (*orders.OrderList, error) {
	return &orders.OrderList{}, nil
}

func (f *fakeOrdersRepo) ListAll(_ context.Context, _ pagination.Params) (*orders.OrderList, error) {
	return &orders.OrderList{}, nil
}

func (f *fakeOrdersRepo) Update(_ context.Context, _ uuid.UUID, _ map[string]any) error {
	return nil
}

func (f *fakeOrdersRepo) CreateSalesLog(_ context.Context, _ *models.SalesLog) error { return nil }

func (f *fakeOrdersRepo) ListSalesLogs(_ context.Context, _ uuid.UUID) ([]models.SalesLog, error) {
	return nil, nil
}

type fakeStockRepo struct {
	productStock map[uuid.UUID]int
	logs         []*models.StockLog
}

func (f *fakeStockRepo) WithTx(_ *gorm.DB) stock.Repository { return f }

func (f *fakeStockRepo) DecrementProduct(_ context.Context, productID uuid.UUID, qty int) (int, bool, error) {
	current := f.productStock[productID]
	if current < qty {
		return 0, false, nil
	}
	f.productStock[productID] = current - qty
	return current - qty, true, nil
}

func (f *fakeStockRepo) IncrementProduct(_ context.Context, productID uuid.UUID, qty int) (int, bool, error) {
	f.productStock[productID] += qty
	return f.productStock[productID], true, nil
}

func (f *fakeStockRepo) DecrementVariant(_ context.Context, _ uuid.UUID, _ int) (int, bool, error) {
	return 0, false, nil
}

func (f *fakeStockRepo) IncrementVariant(_ context.Context, _ uuid.UUID, qty int) (int, bool, error) {
	return qty, true, nil
}

func (f *fakeStockRepo) AppendLog(_ context.Context, log *models.StockLog) error {
	f.logs = append(f.logs, log)
	return nil
}

func (f *fakeStockRepo) FindLogByID(_ context.Context, _ uuid.UUID) (*models.StockLog, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeStockRepo) ListLogs(_ context.Context, _ *uuid.UUID) ([]models.StockLog, error) {
	return nil, nil
}

func (f *fakeStockRepo) UpdateLog(_ context.Context, _ uuid.UUID, _ map[string]any) error {
	return nil
}

type fakeCouponRepo struct {
	coupon        *models.Coupon
	incremented   int
	failIncrement bool
}

func (f *fakeCouponRepo) WithTx(_ *gorm.DB) coupons.Repository { return f }

func (f *fakeCouponRepo) Create(_ context.Context, _ *models.Coupon) error { return nil }

func (f *fakeCouponRepo) Update(_ context.Context, _ uuid.UUID, _ map[string]any) error { return nil }

func (f *fakeCouponRepo) Delete(_ context.Context, _ uuid.UUID) error { return nil }

func (f *fakeCouponRepo) FindByID(_ context.Context, _ uuid.UUID) (*models.Coupon, error) {
	if f.coupon == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return f.coupon, nil
}

func (f *fakeCouponRepo) FindByCode(_ context.Context, code string) (*models.Coupon, error) {
	if f.coupon == nil || f.coupon.Code != strings.ToUpper(code) {
		return nil, gorm.ErrRecordNotFound
	}
	return f.coupon, nil
}

func (f *fakeCouponRepo) List(_ context.Context) ([]models.Coupon, error) { return nil, nil }

func (f *fakeCouponRepo) IncrementUsage(_ context.Context, _ uuid.UUID) (bool, error) {
	if f.failIncrement {
		return false, nil
	}
	if f.coupon.UsageLimit != nil && f.coupon.UsedCount >= *f.coupon.UsageLimit {
		return false, nil
	}
	f.coupon.UsedCount++
	f.incremented++
	return true, nil
}

func (f *fakeCouponRepo) DecrementUsage(_ context.Context, _ uuid.UUID) error {
	if f.coupon.UsedCount > 0 {
		f.coupon.UsedCount--
	}
	return nil
}

type fakeCatalog struct {
	products map[uuid.UUID]*models.Product
	variants map[uuid.UUID]*models.ProductVariant
}

func (f *fakeCatalog) FindProductByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	product, ok := f.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return product, nil
}

func (f *fakeCatalog) FindVariantByID(_ context.Context, id uuid.UUID) (*models.ProductVariant, error) {
	variant, ok := f.variants[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return variant, nil
}

type fakeAddresses struct {
	address *models.Address
}

func (f *fakeAddresses) FindByID(_ context.Context, _, _ uuid.UUID) (*models.Address, error) {
	if f.address == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return f.address, nil
}

type fakeSettings struct {
	shipping settings.Shipping
}

func (f *fakeSettings) Get(_ context.Context, _ string) (string, error) { return "", nil }

func (f *fakeSettings) Set(_ context.Context, _, _ string) error { return nil }

func (f *fakeSettings) List(_ context.Context) ([]models.Setting, error) { return nil, nil }

func (f *fakeSettings) Shipping(_ context.Context) (settings.Shipping, error) {
	return f.shipping, nil
}

type fakeSequencer struct {
	next int64
}

func (f *fakeSequencer) NextDailySequence(_ context.Context, _ string, _ time.Time) (int64, error) {
	f.next++
	return f.next, nil
}

type checkoutFixture struct {
	svc     Service
	carts   *fakeCartRepo
	orders  *fakeOrdersRepo
	stock   *fakeStockRepo
	coupons *fakeCouponRepo
	catalog *fakeCatalog
	address *models.Address
	userID  uuid.UUID
	cartID  uuid.UUID
	product *models.Product
}

func newCheckoutFixture(t *testing.T, productStock int, coupon *models.Coupon) *checkoutFixture {
	t.Helper()

	userID := uuid.New()
	cartID := uuid.New()
	product := &models.Product{
		ID:         uuid.New(),
		Name:       "Aero Frame",
		SKU:        "SKU-AERO",
		PriceCents: 10000,
		Stock:      productStock,
		TrackStock: true,
		IsActive:   true,
	}
	address := &models.Address{
		ID:         uuid.New(),
		UserID:     userID,
		FullName:   "Nora Vale",
		Line1:      "12 Harbor Way",
		City:       "Portland",
		PostalCode: "97201",
		Country:    "US",
	}

	carts := &fakeCartRepo{
		cart: &models.Cart{ID: cartID, UserID: &userID},
		items: []models.CartItem{{
			ID:             uuid.New(),
			CartID:         cartID,
			ProductID:      product.ID,
			Quantity:       1,
			UnitPriceCents: 9000, // stale snapshot; checkout reprices live
		}},
	}
	ordersRepo := &fakeOrdersRepo{}
	stockRepo := &fakeStockRepo{productStock: map[uuid.UUID]int{product.ID: productStock}}
	couponRepo := &fakeCouponRepo{coupon: coupon}
	catalog := &fakeCatalog{products: map[uuid.UUID]*models.Product{product.ID: product}}

	svc, err := NewService(
		fakeTxRunner{},
		carts,
		ordersRepo,
		stockRepo,
		couponRepo,
		catalog,
		&fakeAddresses{address: address},
		&fakeSettings{shipping: settings.Shipping{FreeThresholdCents: 5000, FlatFeeCents: 1500, Currency: "USD"}},
		&fakeSequencer{},
		nil,
	)
	if err != nil {
		t.Fatalf("new checkout service: %v", err)
	}

	return &checkoutFixture{
		svc:     svc,
		carts:   carts,
		orders:  ordersRepo,
		stock:   stockRepo,
		coupons: couponRepo,
		catalog: catalog,
		address: address,
		userID:  userID,
		cartID:  cartID,
		product: product,
	}
}

func TestExecuteWorkedExample(t *testing.T) {
	coupon := &models.Coupon{
		ID:            uuid.New(),
		Code:          "SAVE10",
		Type:          enums.CouponTypePercentage,
		Percent:       func() *float64 { v := 10.0; return &v }(),
		MinOrderCents: 5000,
		IsActive:      true,
	}
	fx := newCheckoutFixture(t, 5, coupon)

	order, err := fx.svc.Execute(context.Background(), fx.userID, Input{
		AddressID:  fx.address.ID,
		CouponCode: "SAVE10",
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	if order.SubtotalCents != 10000 {
		t.Fatalf("expected live-priced subtotal 10000, got %d", order.SubtotalCents)
	}
	if order.DiscountCents != 1000 {
		t.Fatalf("expected discount 1000, got %d", order.DiscountCents)
	}
	if order.ShippingCents != 0 {
		t.Fatalf("expected free shipping over threshold, got %d", order.ShippingCents)
	}
	if order.TotalCents != 9000 {
		t.Fatalf("expected total 9000, got %d", order.TotalCents)
	}
	if order.Status != enums.OrderStatusPending || order.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("expected pending order, got %s/%s", order.Status, order.PaymentStatus)
	}
	if !strings.HasPrefix(order.OrderNumber, "VS-") || !strings.HasSuffix(order.OrderNumber, "-0001") {
		t.Fatalf("unexpected order number %q", order.OrderNumber)
	}

	if fx.stock.productStock[fx.product.ID] != 4 {
		t.Fatalf("expected stock 4 after sale, got %d", fx.stock.productStock[fx.product.ID])
	}
	if len(fx.stock.logs) != 1 || fx.stock.logs[0].Type != enums.StockLogTypeOut || fx.stock.logs[0].Quantity != 1 {
		t.Fatalf("expected one out ledger row of quantity 1, got %+v", fx.stock.logs)
	}
	if fx.coupons.incremented != 1 {
		t.Fatalf("expected coupon usage incremented once, got %d", fx.coupons.incremented)
	}
	if !fx.carts.cleared {
		t.Fatal("expected cart items cleared")
	}
	if len(fx.orders.items) != 1 || fx.orders.items[0].ProductName != "Aero Frame" {
		t.Fatalf("expected denormalized order item, got %+v", fx.orders.items)
	}
	if fx.orders.items[0].UnitPriceCents != 10000 {
		t.Fatalf("expected live unit price on order item, got %d", fx.orders.items[0].UnitPriceCents)
	}
}

func TestExecuteInsufficientStockFailsWholeCheckout(t *testing.T) {
	fx := newCheckoutFixture(t, 0, nil)

	_, err := fx.svc.Execute(context.Background(), fx.userID, Input{AddressID: fx.address.ID})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}

	if fx.orders.order != nil {
		t.Fatal("no order may be created when stock validation fails")
	}
	if len(fx.stock.logs) != 0 {
		t.Fatal("no ledger rows may be written on failure")
	}
	if fx.carts.cleared {
		t.Fatal("cart must stay intact on failure")
	}
}

func TestExecuteCouponCapStopsCheckout(t *testing.T) {
	limit := 1
	coupon := &models.Coupon{
		ID:         uuid.New(),
		Code:       "ONCE",
		Type:       enums.CouponTypeFixed,
		ValueCents: func() *int { v := 500; return &v }(),
		UsageLimit: &limit,
		UsedCount:  0,
		IsActive:   true,
	}
	fx := newCheckoutFixture(t, 5, coupon)

	// Simulate a concurrent checkout landing between validation and the
	// conditional increment.
	fx.coupons.failIncrement = true

	_, err := fx.svc.Execute(context.Background(), fx.userID, Input{
		AddressID:  fx.address.ID,
		CouponCode: "ONCE",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict at the usage cap, got %v", err)
	}
	if fx.coupons.incremented != 0 {
		t.Fatal("used count must not move past the cap")
	}
}

func TestExecuteAppliesFlatShippingUnderThreshold(t *testing.T) {
	fx := newCheckoutFixture(t, 5, nil)
	fx.product.PriceCents = 3000 // below the 5000 free-shipping threshold

	order, err := fx.svc.Execute(context.Background(), fx.userID, Input{AddressID: fx.address.ID})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if order.ShippingCents != 1500 {
		t.Fatalf("expected flat shipping fee 1500, got %d", order.ShippingCents)
	}
	if order.TotalCents != 4500 {
		t.Fatalf("expected total 4500, got %d", order.TotalCents)
	}
}

func TestExecuteEmptyCart(t *testing.T) {
	fx := newCheckoutFixture(t, 5, nil)
	fx.carts.items = nil

	_, err := fx.svc.Execute(context.Background(), fx.userID, Input{AddressID: fx.address.ID})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for empty cart, got %v", err)
	}
}
