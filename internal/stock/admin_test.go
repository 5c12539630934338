package stock

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veloshop/storefront-backend/pkg/db/models"
	"github.com/veloshop/storefront-backend/pkg/enums"
	pkgerrors "github.com/veloshop/storefront-backend/pkg/errors"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubProductChecker struct {
	product *models.Product
	variant *models.ProductVariant
}

func (s *stubProductChecker) FindProductByID(_ context.Context, _ uuid.UUID) (*models.Product, error) {
	if s.product == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.product, nil
}

func (s *stubProductChecker) FindVariantByID(_ context.Context, _ uuid.UUID) (*models.ProductVariant, error) {
	if s.variant == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.variant, nil
}

func newAdminTestService(t *testing.T, repo Repository, products productChecker) AdminService {
	t.Helper()
	svc, err := NewAdminService(AdminServiceParams{
		DB:       stubTxRunner{},
		Repo:     repo,
		Products: products,
	})
	if err != nil {
		t.Fatalf("new admin service: %v", err)
	}
	return svc
}

func TestRequestAdjustmentCreatesPendingRow(t *testing.T) {
	repo := &stubStockRepo{}
	product := &models.Product{ID: uuid.New(), Name: "Aero Frame"}
	svc := newAdminTestService(t, repo, &stubProductChecker{product: product})

	actor := uuid.New()
	entry, err := svc.RequestAdjustment(context.Background(), actor, AdjustmentRequest{
		ProductID: product.ID,
		Delta:     -3,
		Reason:    "damaged in warehouse",
	})
	if err != nil {
		t.Fatalf("request adjustment: %v", err)
	}

	if entry.Status != enums.StockLogStatusPending {
		t.Fatalf("expected pending row, got %s", entry.Status)
	}
	if entry.Type != enums.StockLogTypeAdjustment {
		t.Fatalf("expected adjustment row, got %s", entry.Type)
	}
	if entry.Quantity != -3 {
		t.Fatalf("expected signed delta stored, got %d", entry.Quantity)
	}
	if entry.ActorID != actor {
		t.Fatal("expected requester recorded as actor")
	}
}

func TestApproveRequiresSecondActor(t *testing.T) {
	actor := uuid.New()
	pending := &models.StockLog{
		ID:        uuid.New(),
		ProductID: uuid.New(),
		ActorID:   actor,
		Type:      enums.StockLogTypeAdjustment,
		Status:    enums.StockLogStatusPending,
		Quantity:  5,
	}
	repo := &stubStockRepo{
		findLogFn: func(_ context.Context, _ uuid.UUID) (*models.StockLog, error) {
			return pending, nil
		},
	}
	svc := newAdminTestService(t, repo, &stubProductChecker{})

	_, err := svc.Approve(context.Background(), actor, pending.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden for self-approval, got %v", err)
	}
}

func TestApproveAppliesDeltaAndFinalizes(t *testing.T) {
	pending := &models.StockLog{
		ID:        uuid.New(),
		ProductID: uuid.New(),
		ActorID:   uuid.New(),
		Type:      enums.StockLogTypeAdjustment,
		Status:    enums.StockLogStatusPending,
		Quantity:  -2,
	}
	var applied map[string]any
	repo := &stubStockRepo{
		findLogFn: func(_ context.Context, _ uuid.UUID) (*models.StockLog, error) {
			copied := *pending
			return &copied, nil
		},
		decrementProductFn: func(_ context.Context, _ uuid.UUID, qty int) (int, bool, error) {
			return 10 - qty, true, nil
		},
		updateLogFn: func(_ context.Context, _ uuid.UUID, updates map[string]any) error {
			applied = updates
			return nil
		},
	}
	svc := newAdminTestService(t, repo, &stubProductChecker{})

	approver := uuid.New()
	entry, err := svc.Approve(context.Background(), approver, pending.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}

	if entry.Status != enums.StockLogStatusApproved {
		t.Fatalf("expected approved, got %s", entry.Status)
	}
	if entry.PreviousStock != 10 || entry.NewStock != 8 {
		t.Fatalf("unexpected stock snapshot: prev=%d new=%d", entry.PreviousStock, entry.NewStock)
	}
	if entry.ApprovedBy == nil || *entry.ApprovedBy != approver {
		t.Fatal("expected approver recorded")
	}
	if applied["status"] != enums.StockLogStatusApproved {
		t.Fatalf("expected persisted status update, got %v", applied["status"])
	}
}

func TestApproveInsufficientStock(t *testing.T) {
	pending := &models.StockLog{
		ID:        uuid.New(),
		ProductID: uuid.New(),
		ActorID:   uuid.New(),
		Type:      enums.StockLogTypeAdjustment,
		Status:    enums.StockLogStatusPending,
		Quantity:  -50,
	}
	repo := &stubStockRepo{
		findLogFn: func(_ context.Context, _ uuid.UUID) (*models.StockLog, error) {
			return pending, nil
		},
		decrementProductFn: func(_ context.Context, _ uuid.UUID, _ int) (int, bool, error) {
			return 0, false, nil
		},
	}
	svc := newAdminTestService(t, repo, &stubProductChecker{})

	_, err := svc.Approve(context.Background(), uuid.New(), pending.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestRejectResolvedAdjustment(t *testing.T) {
	resolved := &models.StockLog{
		ID:      uuid.New(),
		ActorID: uuid.New(),
		Type:    enums.StockLogTypeAdjustment,
		Status:  enums.StockLogStatusApproved,
	}
	repo := &stubStockRepo{
		findLogFn: func(_ context.Context, _ uuid.UUID) (*models.StockLog, error) {
			return resolved, nil
		},
	}
	svc := newAdminTestService(t, repo, &stubProductChecker{})

	_, err := svc.Reject(context.Background(), uuid.New(), resolved.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}
