package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veloshop/storefront-backend/internal/coupons"
	"github.com/veloshop/storefront-backend/internal/stock"
	"github.com/veloshop/storefront-backend/pkg/db/models"
	"github.com/veloshop/storefront-backend/pkg/enums"
	pkgerrors "github.com/veloshop/storefront-backend/pkg/errors"
	"github.com/veloshop/storefront-backend/pkg/logger"
	"github.com/veloshop/storefront-backend/pkg/pagination"
)

// allowedTransitions is the full fulfillment state machine. Cancelled and
// refunded are terminal; everything else moves strictly forward or out.
var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:    {enums.OrderStatusProcessing, enums.OrderStatusCancelled, enums.OrderStatusRefunded},
	enums.OrderStatusProcessing: {enums.OrderStatusShipped, enums.OrderStatusCancelled, enums.OrderStatusRefunded},
	enums.OrderStatusShipped:    {enums.OrderStatusDelivered, enums.OrderStatusRefunded},
	enums.OrderStatusDelivered:  {enums.OrderStatusRefunded},
	enums.OrderStatusCancelled:  {},
	enums.OrderStatusRefunded:   {},
}

// CanTransition reports whether the state machine permits moving from one
// order status to another.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// TransitionRequest is the staff payload for moving an order through the
// fulfillment state machine.
type TransitionRequest struct {
	Status enums.OrderStatus `json:"status" validate:"required"`
	Notes  *string           `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// AdminService exposes the staff order surface: listing every order,
// reading any order, driving the status state machine, and auditing the
// transition history.
type AdminService interface {
	List(ctx context.Context, params pagination.Params) (*OrderList, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Transition(ctx context.Context, actorID, orderID uuid.UUID, req TransitionRequest) (*models.Order, error)
	History(ctx context.Context, orderID uuid.UUID) ([]models.SalesLog, error)
}

type adminService struct {
	tx      txRunner
	repo    Repository
	stock   stock.Repository
	coupons coupons.Repository
	logger  *logger.Logger
}

func NewAdminService(params ServiceParams) (AdminService, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if params.Coupons == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &adminService{
		tx:      params.DB,
		repo:    params.Repo,
		stock:   params.Stock,
		coupons: params.Coupons,
		logger:  params.Logger,
	}, nil
}

func (s *adminService) List(ctx context.Context, params pagination.Params) (*OrderList, error) {
	list, err := s.repo.ListAll(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	return list, nil
}

func (s *adminService) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	return order, nil
}

func (s *adminService) History(ctx context.Context, orderID uuid.UUID) ([]models.SalesLog, error) {
	if _, err := s.Get(ctx, orderID); err != nil {
		return nil, err
	}
	logs, err := s.repo.ListSalesLogs(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list status history")
	}
	return logs, nil
}

// Transition moves an order to a new status. Moving to cancelled runs the
// full cancellation side effects so staff cancellations restock and refund
// the same way customer cancellations do.
func (s *adminService) Transition(ctx context.Context, actorID, orderID uuid.UUID, req TransitionRequest) (*models.Order, error) {
	if !req.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order status %q", req.Status))
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
		}

		if !CanTransition(order.Status, req.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot move order from %s to %s", order.Status, req.Status)).
				WithDetails(map[string]any{"allowed": allowedTransitions[order.Status]})
		}

		if req.Status == enums.OrderStatusCancelled {
			updated, err = cancelOrder(ctx, cancelDeps{
				repo:    repo,
				stock:   s.stock.WithTx(tx),
				coupons: s.coupons.WithTx(tx),
				logger:  s.logger,
			}, order, actorID)
			return err
		}

		updates := map[string]any{"status": req.Status}
		if req.Status == enums.OrderStatusRefunded {
			updates["payment_status"] = enums.PaymentStatusRefunded
		}
		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order")
		}

		if err := repo.CreateSalesLog(ctx, &models.SalesLog{
			ID:             uuid.New(),
			OrderID:        order.ID,
			ActorID:        actorID,
			PreviousStatus: order.Status,
			NewStatus:      req.Status,
			Notes:          req.Notes,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record status change")
		}

		order.Status = req.Status
		if req.Status == enums.OrderStatusRefunded {
			order.PaymentStatus = enums.PaymentStatusRefunded
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
