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

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the customer-facing view of orders: paging through your own
// history, reading one order, and cancelling it while that is still allowed.
type Service interface {
	List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error)
	Get(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	Cancel(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
}

type service struct {
	tx      txRunner
	repo    Repository
	stock   stock.Repository
	coupons coupons.Repository
	logger  *logger.Logger
}

// ServiceParams carries the order service dependencies.
type ServiceParams struct {
	DB      txRunner
	Repo    Repository
	Stock   stock.Repository
	Coupons coupons.Repository
	Logger  *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
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
	return &service{
		tx:      params.DB,
		repo:    params.Repo,
		stock:   params.Stock,
		coupons: params.Coupons,
		logger:  params.Logger,
	}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error) {
	list, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	return list, nil
}

func (s *service) Get(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.loadOwned(ctx, s.repo, userID, orderID)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Cancel flips a pending or processing order to cancelled, returns every
// tracked line to stock, and releases the coupon usage it consumed.
func (s *service) Cancel(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	var cancelled *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := s.loadOwned(ctx, repo, userID, orderID)
		if err != nil {
			return err
		}

		updated, err := cancelOrder(ctx, cancelDeps{
			repo:    repo,
			stock:   s.stock.WithTx(tx),
			coupons: s.coupons.WithTx(tx),
			logger:  s.logger,
		}, order, userID)
		if err != nil {
			return err
		}
		cancelled = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// loadOwned hides foreign orders behind a not-found so ids cannot be probed.
func (s *service) loadOwned(ctx context.Context, repo Repository, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

type cancelDeps struct {
	repo    Repository
	stock   stock.Repository
	coupons coupons.Repository
	logger  *logger.Logger
}

// cancelOrder performs the shared cancellation side effects for both the
// owner and staff paths. The caller is responsible for running it inside a
// transaction and for authorization.
func cancelOrder(ctx context.Context, deps cancelDeps, order *models.Order, actorID uuid.UUID) (*models.Order, error) {
	if !order.Status.IsCancellable() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order in status %s cannot be cancelled", order.Status))
	}

	ledger := stock.NewLedger(deps.stock)
	for _, item := range order.Items {
		if !item.TrackStock || item.ProductID == nil {
			continue
		}
		// A line sold as a variant whose variant row is gone must not
		// restore into the parent product: that counter was never
		// decremented for this sale.
		if item.VariantName != nil && item.VariantID == nil {
			deps.logger.Warn(
				deps.logger.WithFields(ctx, map[string]any{
					"order_id": order.ID.String(),
					"product":  item.ProductName,
				}),
				"skipping stock restore for missing line",
			)
			continue
		}
		err := ledger.Restore(ctx, stock.MovementParams{
			ProductID:   *item.ProductID,
			VariantID:   item.VariantID,
			OrderID:     order.ID,
			ActorID:     actorID,
			Quantity:    item.Quantity,
			ProductName: item.ProductName,
			Reason:      "cancellation",
		})
		if errors.Is(err, stock.ErrMissingTarget) {
			deps.logger.Warn(
				deps.logger.WithFields(ctx, map[string]any{
					"order_id": order.ID.String(),
					"product":  item.ProductName,
				}),
				"skipping stock restore for missing line",
			)
			continue
		}
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "restore stock")
		}
	}

	if order.CouponID != nil {
		if err := deps.coupons.DecrementUsage(ctx, *order.CouponID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "release coupon usage")
		}
	}

	paymentStatus := enums.PaymentStatusFailed
	if order.PaymentStatus == enums.PaymentStatusPaid {
		paymentStatus = enums.PaymentStatusRefunded
	}

	updates := map[string]any{
		"status":         enums.OrderStatusCancelled,
		"payment_status": paymentStatus,
	}
	if err := deps.repo.Update(ctx, order.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order")
	}

	if err := deps.repo.CreateSalesLog(ctx, &models.SalesLog{
		ID:             uuid.New(),
		OrderID:        order.ID,
		ActorID:        actorID,
		PreviousStatus: order.Status,
		NewStatus:      enums.OrderStatusCancelled,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record status change")
	}

	order.Status = enums.OrderStatusCancelled
	order.PaymentStatus = paymentStatus
	return order, nil
}
