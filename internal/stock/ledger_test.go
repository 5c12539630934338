package stock

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veloshop/storefront-backend/pkg/db/models"
	"github.com/veloshop/storefront-backend/pkg/enums"
	pkgerrors "github.com/veloshop/storefront-backend/pkg/errors"
)

type stubStockRepo struct {
	decrementProductFn func(ctx context.Context, productID uuid.UUID, qty int) (int, bool, error)
	incrementProductFn func(ctx context.Context, productID uuid.UUID, qty int) (int, bool, error)
	decrementVariantFn func(ctx context.Context, variantID uuid.UUID, qty int) (int, bool, error)
	incrementVariantFn func(ctx context.Context, variantID uuid.UUID, qty int) (int, bool, error)
	findLogFn          func(ctx context.Context, id uuid.UUID) (*models.StockLog, error)
	updateLogFn        func(ctx context.Context, id uuid.UUID, updates map[string]any) error

	appended []*models.StockLog
}

func (s *stubStockRepo) WithTx(_ *gorm.DB) Repository { return s }

func (s *stubStockRepo) DecrementProduct(ctx context.Context, productID uuid.UUID, qty int) (int, bool, error) {
	if s.decrementProductFn != nil {
		return s.decrementProductFn(ctx, productID, qty)
	}
	return 0, true, nil
}

func (s *stubStockRepo) IncrementProduct(ctx context.Context, productID uuid.UUID, qty int) (int, bool, error) {
	if s.incrementProductFn != nil {
		return s.incrementProductFn(ctx, productID, qty)
	}
	return qty, true, nil
}

func (s *stubStockRepo) DecrementVariant(ctx context.Context, variantID uuid.UUID, qty int) (int, bool, error) {
	if s.decrementVariantFn != nil {
		return s.decrementVariantFn(ctx, variantID, qty)
	}
	return 0, true, nil
}

func (s *stubStockRepo) IncrementVariant(ctx context.Context, variantID uuid.UUID, qty int) (int, bool, error) {
	if s.incrementVariantFn != nil {
		return s.incrementVariantFn(ctx, variantID, qty)
	}
	return qty, true, nil
}

func (s *stubStockRepo) AppendLog(_ context.Context, log *models.StockLog) error {
	s.appended = append(s.appended, log)
	return nil
}

func (s *stubStockRepo) FindLogByID(ctx context.Context, id uuid.UUID) (*models.StockLog, error) {
	if s.findLogFn != nil {
		return s.findLogFn(ctx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubStockRepo) ListLogs(_ context.Context, _ *uuid.UUID) ([]models.StockLog, error) {
	return nil, nil
}

func (s *stubStockRepo) UpdateLog(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if s.updateLogFn != nil {
		return s.updateLogFn(ctx, id, updates)
	}
	return nil
}

func TestSaleOutWritesConservedLedgerRow(t *testing.T) {
	repo := &stubStockRepo{
		decrementProductFn: func(_ context.Context, _ uuid.UUID, qty int) (int, bool, error) {
			return 7 - qty, true, nil
		},
	}
	ledger := NewLedger(repo)

	params := MovementParams{
		ProductID:   uuid.New(),
		OrderID:     uuid.New(),
		ActorID:     uuid.New(),
		Quantity:    3,
		ProductName: "Aero Frame",
	}
	if err := ledger.SaleOut(context.Background(), params); err != nil {
		t.Fatalf("sale out: %v", err)
	}

	if len(repo.appended) != 1 {
		t.Fatalf("expected one ledger row, got %d", len(repo.appended))
	}
	row := repo.appended[0]
	if row.Type != enums.StockLogTypeOut {
		t.Fatalf("expected out row, got %s", row.Type)
	}
	if row.Status != enums.StockLogStatusApproved {
		t.Fatalf("sale-driven rows must be pre-approved, got %s", row.Status)
	}
	if row.NewStock != row.PreviousStock-row.Quantity {
		t.Fatalf("stock not conserved: prev=%d qty=%d new=%d", row.PreviousStock, row.Quantity, row.NewStock)
	}
	if row.PreviousStock != 7 || row.NewStock != 4 {
		t.Fatalf("unexpected stock snapshot: prev=%d new=%d", row.PreviousStock, row.NewStock)
	}
	if row.OrderID == nil || *row.OrderID != params.OrderID {
		t.Fatal("expected ledger row linked to the order")
	}
}

func TestSaleOutInsufficientStock(t *testing.T) {
	repo := &stubStockRepo{
		decrementProductFn: func(_ context.Context, _ uuid.UUID, _ int) (int, bool, error) {
			return 0, false, nil
		},
	}
	ledger := NewLedger(repo)

	err := ledger.SaleOut(context.Background(), MovementParams{
		ProductID:   uuid.New(),
		OrderID:     uuid.New(),
		ActorID:     uuid.New(),
		Quantity:    2,
		ProductName: "Aero Frame",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if len(repo.appended) != 0 {
		t.Fatal("no ledger row may be written on a failed decrement")
	}
}

func TestRestoreMissingTargetWritesNothing(t *testing.T) {
	repo := &stubStockRepo{
		incrementProductFn: func(_ context.Context, _ uuid.UUID, _ int) (int, bool, error) {
			return 0, false, nil
		},
	}
	ledger := NewLedger(repo)

	err := ledger.Restore(context.Background(), MovementParams{
		ProductID:   uuid.New(),
		OrderID:     uuid.New(),
		ActorID:     uuid.New(),
		Quantity:    2,
		ProductName: "Aero Frame",
	})
	if !errors.Is(err, ErrMissingTarget) {
		t.Fatalf("expected missing target, got %v", err)
	}
	if len(repo.appended) != 0 {
		t.Fatal("no ledger row may be written for a vanished target")
	}
}

func TestRestoreWritesInRow(t *testing.T) {
	variantID := uuid.New()
	repo := &stubStockRepo{
		incrementVariantFn: func(_ context.Context, _ uuid.UUID, qty int) (int, bool, error) {
			return 2 + qty, true, nil
		},
	}
	ledger := NewLedger(repo)

	err := ledger.Restore(context.Background(), MovementParams{
		ProductID: uuid.New(),
		VariantID: &variantID,
		OrderID:   uuid.New(),
		ActorID:   uuid.New(),
		Quantity:  4,
		Reason:    "cancellation",
	})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}

	if len(repo.appended) != 1 {
		t.Fatalf("expected one ledger row, got %d", len(repo.appended))
	}
	row := repo.appended[0]
	if row.Type != enums.StockLogTypeIn {
		t.Fatalf("expected in row, got %s", row.Type)
	}
	if row.NewStock != row.PreviousStock+row.Quantity {
		t.Fatalf("stock not conserved: prev=%d qty=%d new=%d", row.PreviousStock, row.Quantity, row.NewStock)
	}
	if row.VariantID == nil || *row.VariantID != variantID {
		t.Fatal("expected variant id on the ledger row")
	}
	if row.Reason == nil || *row.Reason != "cancellation" {
		t.Fatal("expected cancellation reason on the ledger row")
	}
}
