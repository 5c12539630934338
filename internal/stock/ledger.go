package stock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/veloshop/storefront-backend/pkg/db/models"
	"github.com/veloshop/storefront-backend/pkg/enums"
	pkgerrors "github.com/veloshop/storefront-backend/pkg/errors"
)

// ErrMissingTarget reports that the product or variant a movement addressed
// no longer exists. No counter moved and no ledger row was written.
var ErrMissingTarget = errors.New("stock target missing")

// Ledger is the shared write path for sale-driven stock movement. Checkout
// and cancellation call it inside their own transactions; every movement
// leaves a pre-approved ledger row.
type Ledger struct {
	repo Repository
}

func NewLedger(repo Repository) *Ledger {
	return &Ledger{repo: repo}
}

// MovementParams describes one line's worth of stock movement.
type MovementParams struct {
	ProductID   uuid.UUID
	VariantID   *uuid.UUID
	OrderID     uuid.UUID
	ActorID     uuid.UUID
	Quantity    int
	ProductName string
	Reason      string
}

// WithTx rebinds the ledger to a transaction-scoped repository.
func (l *Ledger) WithTx(repo Repository) *Ledger {
	return &Ledger{repo: repo}
}

// SaleOut decrements stock for a purchased line and appends an approved
// `out` row. Fails with a state conflict naming the product when the
// conditional decrement finds insufficient stock.
func (l *Ledger) SaleOut(ctx context.Context, params MovementParams) error {
	if params.Quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var (
		newStock int
		ok       bool
		err      error
	)
	if params.VariantID != nil {
		newStock, ok, err = l.repo.DecrementVariant(ctx, *params.VariantID, params.Quantity)
	} else {
		newStock, ok, err = l.repo.DecrementProduct(ctx, params.ProductID, params.Quantity)
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decrement stock")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock").
			WithDetails(map[string]any{"product": params.ProductName})
	}

	return l.append(ctx, params, enums.StockLogTypeOut, newStock+params.Quantity, newStock)
}

// Restore increments stock back for a cancelled line and appends an approved
// `in` row. Returns ErrMissingTarget when the product or variant is gone;
// restoring into a different counter would inflate stock that was never
// decremented.
func (l *Ledger) Restore(ctx context.Context, params MovementParams) error {
	if params.Quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var (
		newStock int
		ok       bool
		err      error
	)
	if params.VariantID != nil {
		newStock, ok, err = l.repo.IncrementVariant(ctx, *params.VariantID, params.Quantity)
	} else {
		newStock, ok, err = l.repo.IncrementProduct(ctx, params.ProductID, params.Quantity)
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "restore stock")
	}
	if !ok {
		return ErrMissingTarget
	}

	return l.append(ctx, params, enums.StockLogTypeIn, newStock-params.Quantity, newStock)
}

func (l *Ledger) append(ctx context.Context, params MovementParams, logType enums.StockLogType, previous, current int) error {
	now := time.Now().UTC()
	orderID := params.OrderID
	entry := &models.StockLog{
		ID:            uuid.New(),
		ProductID:     params.ProductID,
		VariantID:     params.VariantID,
		OrderID:       &orderID,
		ActorID:       params.ActorID,
		Type:          logType,
		Status:        enums.StockLogStatusApproved,
		Quantity:      params.Quantity,
		PreviousStock: previous,
		NewStock:      current,
		ApprovedBy:    &params.ActorID,
		ApprovedAt:    &now,
	}
	if params.Reason != "" {
		reason := params.Reason
		entry.Reason = &reason
	}
	if err := l.repo.AppendLog(ctx, entry); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append stock log")
	}
	return nil
}
