package settings

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/veloshop/storefront-backend/pkg/config"
	"github.com/veloshop/storefront-backend/pkg/db/models"
	pkgerrors "github.com/veloshop/storefront-backend/pkg/errors"
)

func openSettingsTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:settings_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.Setting{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return conn
}

func defaultShipping() config.ShippingConfig {
	return config.ShippingConfig{
		FreeThresholdCents: 50000,
		FlatFeeCents:       1500,
		Currency:           "USD",
	}
}

func TestShippingFallsBackToDefaults(t *testing.T) {
	conn := openSettingsTestDB(t)
	svc, err := NewService(ServiceParams{Repo: NewRepository(conn), Defaults: defaultShipping()})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	shipping, err := svc.Shipping(context.Background())
	if err != nil {
		t.Fatalf("shipping: %v", err)
	}
	if shipping.FreeThresholdCents != 50000 || shipping.FlatFeeCents != 1500 || shipping.Currency != "USD" {
		t.Fatalf("expected configured defaults, got %+v", shipping)
	}
}

func TestSetOverridesShippingPolicy(t *testing.T) {
	conn := openSettingsTestDB(t)
	svc, err := NewService(ServiceParams{Repo: NewRepository(conn), Defaults: defaultShipping()})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()

	if err := svc.Set(ctx, KeyFreeShippingThresholdCents, "75000"); err != nil {
		t.Fatalf("set threshold: %v", err)
	}
	if err := svc.Set(ctx, KeyCurrency, "eur"); err != nil {
		t.Fatalf("set currency: %v", err)
	}

	shipping, err := svc.Shipping(ctx)
	if err != nil {
		t.Fatalf("shipping: %v", err)
	}
	if shipping.FreeThresholdCents != 75000 {
		t.Fatalf("expected stored threshold, got %d", shipping.FreeThresholdCents)
	}
	if shipping.Currency != "EUR" {
		t.Fatalf("expected uppercased currency, got %q", shipping.Currency)
	}

	// Second write must invalidate the cached policy.
	if err := svc.Set(ctx, KeyShippingFlatFeeCents, "2000"); err != nil {
		t.Fatalf("set flat fee: %v", err)
	}
	shipping, err = svc.Shipping(ctx)
	if err != nil {
		t.Fatalf("shipping after update: %v", err)
	}
	if shipping.FlatFeeCents != 2000 {
		t.Fatalf("expected refreshed flat fee, got %d", shipping.FlatFeeCents)
	}
}

func TestSetRejectsMalformedValues(t *testing.T) {
	conn := openSettingsTestDB(t)
	svc, err := NewService(ServiceParams{Repo: NewRepository(conn), Defaults: defaultShipping()})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()

	err = svc.Set(ctx, KeyShippingFlatFeeCents, "not-a-number")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	err = svc.Set(ctx, KeyCurrency, "DOLLARS")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetMissingSetting(t *testing.T) {
	conn := openSettingsTestDB(t)
	svc, err := NewService(ServiceParams{Repo: NewRepository(conn), Defaults: defaultShipping()})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.Get(context.Background(), "nonexistent")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
