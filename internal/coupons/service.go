package coupons

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/veloshop/storefront-backend/pkg/db"
	"github.com/veloshop/storefront-backend/pkg/db/models"
	"github.com/veloshop/storefront-backend/pkg/enums"
	pkgerrors "github.com/veloshop/storefront-backend/pkg/errors"
)

// CouponRequest is the admin payload for creating or editing a coupon.
type CouponRequest struct {
	Code             string           `json:"code" validate:"required,max=64"`
	Type             enums.CouponType `json:"type" validate:"required"`
	Percent          *float64         `json:"percent,omitempty" validate:"omitempty,gt=0,lte=100"`
	ValueCents       *int             `json:"value_cents,omitempty" validate:"omitempty,gt=0"`
	MaxDiscountCents *int             `json:"max_discount_cents,omitempty" validate:"omitempty,gt=0"`
	MinOrderCents    int              `json:"min_order_cents" validate:"gte=0"`
	StartsAt         *time.Time       `json:"starts_at,omitempty"`
	EndsAt           *time.Time       `json:"ends_at,omitempty"`
	UsageLimit       *int             `json:"usage_limit,omitempty" validate:"omitempty,gt=0"`
	IsActive         *bool            `json:"is_active,omitempty"`
}

// Service validates coupon codes against an order subtotal and computes the
// resulting discount. The usage counter itself only moves inside the checkout
// and cancellation transactions.
type Service interface {
	Validate(ctx context.Context, code string, subtotalCents int, at time.Time) (*models.Coupon, int, error)
}

// AdminService is the staff-only coupon CRUD surface.
type AdminService interface {
	Create(ctx context.Context, req CouponRequest) (*models.Coupon, error)
	Update(ctx context.Context, id uuid.UUID, req CouponRequest) (*models.Coupon, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	List(ctx context.Context) ([]models.Coupon, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "coupon repository required")
	}
	return &service{repo: repo}, nil
}

// Validate returns the coupon and the discount in cents for the given
// subtotal. The window, active flag, usage cap, and minimum-order floor are
// all checked here; the conditional counter increment at commit time is the
// final arbiter under concurrency.
func (s *service) Validate(ctx context.Context, code string, subtotalCents int, at time.Time) (*models.Coupon, int, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "coupon code required")
	}

	coupon, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, pkgerrors.New(pkgerrors.CodeNotFound, "invalid coupon code")
		}
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load coupon")
	}

	if !coupon.IsActive {
		return nil, 0, pkgerrors.New(pkgerrors.CodeNotFound, "invalid coupon code")
	}
	if coupon.StartsAt != nil && at.Before(*coupon.StartsAt) {
		return nil, 0, pkgerrors.New(pkgerrors.CodeNotFound, "invalid coupon code")
	}
	if coupon.EndsAt != nil && at.After(*coupon.EndsAt) {
		return nil, 0, pkgerrors.New(pkgerrors.CodeNotFound, "invalid coupon code")
	}
	if coupon.UsageLimit != nil && coupon.UsedCount >= *coupon.UsageLimit {
		return nil, 0, pkgerrors.New(pkgerrors.CodeNotFound, "invalid coupon code")
	}
	if subtotalCents < coupon.MinOrderCents {
		return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "order subtotal below coupon minimum")
	}

	return coupon, Discount(coupon, subtotalCents), nil
}

// Discount computes the discount in cents for a subtotal. Percentage coupons
// are capped at MaxDiscountCents when set. Fixed coupons subtract their full
// value even past the subtotal; the possible negative total is a documented
// edge case, not clamped here.
func Discount(coupon *models.Coupon, subtotalCents int) int {
	switch coupon.Type {
	case enums.CouponTypePercentage:
		if coupon.Percent == nil {
			return 0
		}
		discount := decimal.NewFromInt(int64(subtotalCents)).
			Mul(decimal.NewFromFloat(*coupon.Percent)).
			Div(decimal.NewFromInt(100)).
			Round(0)
		cents := int(discount.IntPart())
		if coupon.MaxDiscountCents != nil && cents > *coupon.MaxDiscountCents {
			cents = *coupon.MaxDiscountCents
		}
		return cents
	case enums.CouponTypeFixed:
		if coupon.ValueCents == nil {
			return 0
		}
		return *coupon.ValueCents
	default:
		return 0
	}
}

type adminService struct {
	repo Repository
}

func NewAdminService(repo Repository) (AdminService, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "coupon repository required")
	}
	return &adminService{repo: repo}, nil
}

func (s *adminService) Create(ctx context.Context, req CouponRequest) (*models.Coupon, error) {
	coupon, err := couponFromRequest(req)
	if err != nil {
		return nil, err
	}
	coupon.ID = uuid.New()

	if err := s.repo.Create(ctx, coupon); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "coupon code already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create coupon")
	}
	return coupon, nil
}

func (s *adminService) Update(ctx context.Context, id uuid.UUID, req CouponRequest) (*models.Coupon, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	validated, err := couponFromRequest(req)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{
		"code":               validated.Code,
		"type":               validated.Type,
		"percent":            validated.Percent,
		"value_cents":        validated.ValueCents,
		"max_discount_cents": validated.MaxDiscountCents,
		"min_order_cents":    validated.MinOrderCents,
		"starts_at":          validated.StartsAt,
		"ends_at":            validated.EndsAt,
		"usage_limit":        validated.UsageLimit,
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if err := s.repo.Update(ctx, id, updates); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "coupon code already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update coupon")
	}
	return s.Get(ctx, id)
}

func (s *adminService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete coupon")
	}
	return nil
}

func (s *adminService) Get(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	coupon, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load coupon")
	}
	return coupon, nil
}

func (s *adminService) List(ctx context.Context) ([]models.Coupon, error) {
	coupons, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list coupons")
	}
	return coupons, nil
}

func couponFromRequest(req CouponRequest) (*models.Coupon, error) {
	if !req.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid coupon type")
	}
	switch req.Type {
	case enums.CouponTypePercentage:
		if req.Percent == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "percentage coupon requires percent")
		}
	case enums.CouponTypeFixed:
		if req.ValueCents == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "fixed coupon requires value_cents")
		}
	}
	if req.StartsAt != nil && req.EndsAt != nil && req.EndsAt.Before(*req.StartsAt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon window ends before it starts")
	}

	coupon := &models.Coupon{
		Code:             strings.ToUpper(strings.TrimSpace(req.Code)),
		Type:             req.Type,
		Percent:          req.Percent,
		ValueCents:       req.ValueCents,
		MaxDiscountCents: req.MaxDiscountCents,
		MinOrderCents:    req.MinOrderCents,
		StartsAt:         req.StartsAt,
		EndsAt:           req.EndsAt,
		UsageLimit:       req.UsageLimit,
		IsActive:         true,
	}
	if req.IsActive != nil {
		coupon.IsActive = *req.IsActive
	}
	return coupon, nil
}
