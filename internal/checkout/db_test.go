package checkout

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/veloshop/storefront-backend/internal/cart"
	"github.com/veloshop/storefront-backend/internal/catalog"
	"github.com/veloshop/storefront-backend/internal/coupons"
	"github.com/veloshop/storefront-backend/internal/orders"
	"github.com/veloshop/storefront-backend/internal/settings"
	"github.com/veloshop/storefront-backend/internal/stock"
	"github.com/veloshop/storefront-backend/pkg/db"
	"github.com/veloshop/storefront-backend/pkg/db/models"
	"github.com/veloshop/storefront-backend/pkg/enums"
	pkgerrors "github.com/veloshop/storefront-backend/pkg/errors"
)

// The model tags carry postgres defaults sqlite cannot parse, so the test
// schema is created with explicit DDL; ids are always assigned in app code.
var checkoutTestDDL = []string{
	`CREATE TABLE categories (
		id text PRIMARY KEY,
		name text NOT NULL,
		slug text NOT NULL UNIQUE,
		description text,
		parent_id text,
		image_path text,
		sort_order integer NOT NULL DEFAULT 0,
		is_active boolean NOT NULL DEFAULT true,
		created_at datetime,
		updated_at datetime
	)`,
	`CREATE TABLE products (
		id text PRIMARY KEY,
		category_id text NOT NULL,
		name text NOT NULL,
		slug text NOT NULL UNIQUE,
		sku text NOT NULL,
		description text,
		images text,
		price_cents integer NOT NULL,
		compare_at_price_cents integer,
		cost_cents integer,
		stock integer NOT NULL DEFAULT 0,
		track_stock boolean NOT NULL DEFAULT true,
		is_active boolean NOT NULL DEFAULT true,
		is_removed boolean NOT NULL DEFAULT false,
		created_at datetime,
		updated_at datetime
	)`,
	`CREATE TABLE product_variants (
		id text PRIMARY KEY,
		product_id text NOT NULL,
		name text NOT NULL,
		sku text NOT NULL,
		price_cents integer NOT NULL,
		stock integer NOT NULL DEFAULT 0,
		is_active boolean NOT NULL DEFAULT true,
		created_at datetime,
		updated_at datetime
	)`,
	`CREATE TABLE carts (
		id text PRIMARY KEY,
		user_id text UNIQUE,
		session_id text UNIQUE,
		created_at datetime,
		updated_at datetime
	)`,
	`CREATE TABLE cart_items (
		id text PRIMARY KEY,
		cart_id text NOT NULL,
		product_id text NOT NULL,
		variant_id text,
		quantity integer NOT NULL,
		unit_price_cents integer NOT NULL,
		created_at datetime,
		updated_at datetime
	)`,
	`CREATE TABLE orders (
		id text PRIMARY KEY,
		order_number text NOT NULL UNIQUE,
		user_id text NOT NULL,
		status text NOT NULL DEFAULT 'pending',
		payment_status text NOT NULL DEFAULT 'pending',
		currency text NOT NULL DEFAULT 'USD',
		subtotal_cents integer NOT NULL,
		discount_cents integer NOT NULL DEFAULT 0,
		shipping_cents integer NOT NULL DEFAULT 0,
		total_cents integer NOT NULL,
		coupon_id text,
		coupon_code text,
		shipping_address text,
		conversation_id text,
		gateway_payment_id text,
		notes text,
		created_at datetime,
		updated_at datetime
	)`,
	`CREATE TABLE order_items (
		id text PRIMARY KEY,
		order_id text NOT NULL,
		product_id text,
		variant_id text,
		product_name text NOT NULL,
		variant_name text,
		sku text NOT NULL,
		unit_price_cents integer NOT NULL,
		quantity integer NOT NULL,
		total_cents integer NOT NULL,
		track_stock boolean NOT NULL DEFAULT true,
		created_at datetime
	)`,
	`CREATE TABLE stock_logs (
		id text PRIMARY KEY,
		product_id text NOT NULL,
		variant_id text,
		order_id text,
		actor_id text NOT NULL,
		type text NOT NULL,
		status text NOT NULL DEFAULT 'pending',
		quantity integer NOT NULL,
		previous_stock integer NOT NULL,
		new_stock integer NOT NULL,
		reason text,
		approved_by text,
		approved_at datetime,
		created_at datetime
	)`,
	`CREATE TABLE coupons (
		id text PRIMARY KEY,
		code text NOT NULL UNIQUE,
		type text NOT NULL,
		percent real,
		value_cents integer,
		max_discount_cents integer,
		min_order_cents integer NOT NULL DEFAULT 0,
		starts_at datetime,
		ends_at datetime,
		usage_limit integer,
		used_count integer NOT NULL DEFAULT 0,
		is_active boolean NOT NULL DEFAULT true,
		created_at datetime,
		updated_at datetime
	)`,
}

func intPtr(v int) *int { return &v }

func openCheckoutTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:checkout_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	for _, stmt := range checkoutTestDDL {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create test schema: %v", err)
		}
	}
	return conn
}

// cappedCouponRepo delegates to a real repository but reports the usage cap
// as already reached when usage bumps are counted, modelling a concurrent
// checkout winning the last use between validation and increment.
type cappedCouponRepo struct {
	coupons.Repository
}

func (r *cappedCouponRepo) WithTx(tx *gorm.DB) coupons.Repository {
	return &cappedCouponRepo{Repository: r.Repository.WithTx(tx)}
}

func (r *cappedCouponRepo) IncrementUsage(_ context.Context, _ uuid.UUID) (bool, error) {
	return false, nil
}

func TestExecuteRollsBackAllWritesOnLateFailure(t *testing.T) {
	conn := openCheckoutTestDB(t)
	userID := uuid.New()

	product := &models.Product{
		ID:         uuid.New(),
		CategoryID: uuid.New(),
		Name:       "Aero Frame",
		Slug:       "aero-frame",
		SKU:        "AF-01",
		PriceCents: 6000,
		Stock:      5,
		TrackStock: true,
		IsActive:   true,
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}

	userCart := &models.Cart{ID: uuid.New(), UserID: &userID}
	if err := conn.Create(userCart).Error; err != nil {
		t.Fatalf("seed cart: %v", err)
	}
	if err := conn.Create(&models.CartItem{
		ID:             uuid.New(),
		CartID:         userCart.ID,
		ProductID:      product.ID,
		Quantity:       2,
		UnitPriceCents: product.PriceCents,
	}).Error; err != nil {
		t.Fatalf("seed cart item: %v", err)
	}

	limit := 100
	coupon := &models.Coupon{
		ID:         uuid.New(),
		Code:       "SAVE5",
		Type:       enums.CouponTypeFixed,
		ValueCents: intPtr(500),
		UsageLimit: &limit,
		IsActive:   true,
	}
	if err := conn.Create(coupon).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}

	addressID := uuid.New()
	addresses := &fakeAddresses{address: &models.Address{
		ID:       addressID,
		UserID:   userID,
		FullName: "Jordan Vela",
		Line1:    "12 Forge St",
		City:     "Austin",
		Country:  "US",
	}}
	shipping := settings.Shipping{FlatFeeCents: 900, FreeThresholdCents: 50000, Currency: "USD"}

	svc, err := NewService(
		db.NewWithConn(conn),
		cart.NewRepository(conn),
		orders.NewRepository(conn),
		stock.NewRepository(conn),
		&cappedCouponRepo{Repository: coupons.NewRepository(conn)},
		catalog.NewRepository(conn),
		addresses,
		&fakeSettings{shipping: shipping},
		&fakeSequencer{},
		nil,
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.Execute(context.Background(), userID, Input{
		AddressID:  addressID,
		CouponCode: "SAVE5",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict on coupon usage, got %v", err)
	}

	// The order, its items and the stock movement were written inside the
	// transaction before the coupon bump failed; nothing may survive it.
	var count int64
	for _, table := range []string{"orders", "order_items", "stock_logs"} {
		if err := conn.Table(table).Count(&count).Error; err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if count != 0 {
			t.Fatalf("expected %s rolled back, found %d rows", table, count)
		}
	}

	var stockNow int
	if err := conn.Table("products").Where("id = ?", product.ID).Select("stock").Scan(&stockNow).Error; err != nil {
		t.Fatalf("read stock: %v", err)
	}
	if stockNow != 5 {
		t.Fatalf("expected stock back at 5, got %d", stockNow)
	}

	var usedCount int
	if err := conn.Table("coupons").Where("id = ?", coupon.ID).Select("used_count").Scan(&usedCount).Error; err != nil {
		t.Fatalf("read coupon usage: %v", err)
	}
	if usedCount != 0 {
		t.Fatalf("expected coupon usage unchanged, got %d", usedCount)
	}

	if err := conn.Table("cart_items").Where("cart_id = ?", userCart.ID).Count(&count).Error; err != nil {
		t.Fatalf("count cart items: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected the cart to survive a failed checkout, found %d items", count)
	}
}
