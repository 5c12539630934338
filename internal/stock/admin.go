package stock

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veloshop/storefront-backend/pkg/db/models"
	"github.com/veloshop/storefront-backend/pkg/enums"
	pkgerrors "github.com/veloshop/storefront-backend/pkg/errors"
)

// AdjustmentRequest is a staff request to move inventory by hand. Delta is
// signed; the movement is not applied until a second staff member approves.
type AdjustmentRequest struct {
	ProductID uuid.UUID  `json:"product_id" validate:"required"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	Delta     int        `json:"delta" validate:"required"`
	Reason    string     `json:"reason" validate:"required,max=500"`
}

// AdminService runs the manual stock adjustment flow: request, then approval
// or rejection by a different actor. Approval applies the delta with the same
// conditional update checkout uses.
type AdminService interface {
	RequestAdjustment(ctx context.Context, actorID uuid.UUID, req AdjustmentRequest) (*models.StockLog, error)
	Approve(ctx context.Context, approverID, logID uuid.UUID) (*models.StockLog, error)
	Reject(ctx context.Context, approverID, logID uuid.UUID) (*models.StockLog, error)
	ListLogs(ctx context.Context, productID *uuid.UUID) ([]models.StockLog, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productChecker interface {
	FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindVariantByID(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error)
}

type adminService struct {
	db       txRunner
	repo     Repository
	products productChecker
}

// AdminServiceParams bundles the stock admin service dependencies.
type AdminServiceParams struct {
	DB       txRunner
	Repo     Repository
	Products productChecker
}

func NewAdminService(params AdminServiceParams) (AdminService, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stock repository required")
	}
	if params.Products == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "product lookup required")
	}
	return &adminService{db: params.DB, repo: params.Repo, products: params.Products}, nil
}

func (s *adminService) RequestAdjustment(ctx context.Context, actorID uuid.UUID, req AdjustmentRequest) (*models.StockLog, error) {
	if req.Delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must be non-zero")
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason required")
	}

	product, err := s.products.FindProductByID(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if req.VariantID != nil {
		variant, err := s.products.FindVariantByID(ctx, *req.VariantID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load variant")
		}
		if variant.ProductID != product.ID {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
		}
	}

	entry := &models.StockLog{
		ID:        uuid.New(),
		ProductID: req.ProductID,
		VariantID: req.VariantID,
		ActorID:   actorID,
		Type:      enums.StockLogTypeAdjustment,
		Status:    enums.StockLogStatusPending,
		Quantity:  req.Delta,
		Reason:    &reason,
	}
	if err := s.repo.AppendLog(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record adjustment request")
	}
	return entry, nil
}

// Approve applies a pending adjustment. The approver must not be the
// requester; negative deltas go through the conditional decrement and fail
// with a state conflict when stock has since run out.
func (s *adminService) Approve(ctx context.Context, approverID, logID uuid.UUID) (*models.StockLog, error) {
	var approved *models.StockLog
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		entry, err := repo.FindLogByID(ctx, logID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "adjustment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load adjustment")
		}
		if entry.Status != enums.StockLogStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "adjustment already resolved")
		}
		if entry.ActorID == approverID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "adjustments require a second approver")
		}

		newStock, err := applyDelta(ctx, repo, entry)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		updates := map[string]any{
			"status":         enums.StockLogStatusApproved,
			"previous_stock": newStock - entry.Quantity,
			"new_stock":      newStock,
			"approved_by":    approverID,
			"approved_at":    now,
		}
		if err := repo.UpdateLog(ctx, entry.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "finalize adjustment")
		}

		entry.Status = enums.StockLogStatusApproved
		entry.PreviousStock = newStock - entry.Quantity
		entry.NewStock = newStock
		entry.ApprovedBy = &approverID
		entry.ApprovedAt = &now
		approved = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return approved, nil
}

func (s *adminService) Reject(ctx context.Context, approverID, logID uuid.UUID) (*models.StockLog, error) {
	entry, err := s.repo.FindLogByID(ctx, logID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "adjustment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load adjustment")
	}
	if entry.Status != enums.StockLogStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "adjustment already resolved")
	}
	if entry.ActorID == approverID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "adjustments require a second approver")
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"status":      enums.StockLogStatusRejected,
		"approved_by": approverID,
		"approved_at": now,
	}
	if err := s.repo.UpdateLog(ctx, entry.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reject adjustment")
	}

	entry.Status = enums.StockLogStatusRejected
	entry.ApprovedBy = &approverID
	entry.ApprovedAt = &now
	return entry, nil
}

func (s *adminService) ListLogs(ctx context.Context, productID *uuid.UUID) ([]models.StockLog, error) {
	logs, err := s.repo.ListLogs(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list stock logs")
	}
	return logs, nil
}

func applyDelta(ctx context.Context, repo Repository, entry *models.StockLog) (int, error) {
	qty := entry.Quantity
	if qty > 0 {
		var (
			newStock int
			ok       bool
			err      error
		)
		if entry.VariantID != nil {
			newStock, ok, err = repo.IncrementVariant(ctx, *entry.VariantID, qty)
		} else {
			newStock, ok, err = repo.IncrementProduct(ctx, entry.ProductID, qty)
		}
		if err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "apply adjustment")
		}
		if !ok {
			return 0, pkgerrors.New(pkgerrors.CodeStateConflict, "adjustment target no longer exists")
		}
		return newStock, nil
	}

	var (
		newStock int
		ok       bool
		err      error
	)
	if entry.VariantID != nil {
		newStock, ok, err = repo.DecrementVariant(ctx, *entry.VariantID, -qty)
	} else {
		newStock, ok, err = repo.DecrementProduct(ctx, entry.ProductID, -qty)
	}
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "apply adjustment")
	}
	if !ok {
		return 0, pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock for adjustment")
	}
	return newStock, nil
}
