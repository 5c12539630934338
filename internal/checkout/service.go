package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
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
	"github.com/veloshop/storefront-backend/pkg/metrics"
	"github.com/veloshop/storefront-backend/pkg/types"
)

const orderNumberPrefix = "VS"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type catalogLoader interface {
	FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindVariantByID(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error)
}

type addressLoader interface {
	FindByID(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error)
}

type sequencer interface {
	NextDailySequence(ctx context.Context, name string, day time.Time) (int64, error)
}

// Input is the storefront checkout payload.
type Input struct {
	AddressID  uuid.UUID `json:"address_id" validate:"required"`
	CouponCode string    `json:"coupon_code,omitempty" validate:"omitempty,max=64"`
	Notes      *string   `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// Service converts a cart into an immutable order inside one transaction.
type Service interface {
	Execute(ctx context.Context, userID uuid.UUID, input Input) (*models.Order, error)
}

type service struct {
	tx         txRunner
	cartRepo   cart.Repository
	ordersRepo orders.Repository
	stockRepo  stock.Repository
	couponRepo coupons.Repository
	catalog    catalogLoader
	addresses  addressLoader
	settings   settings.Service
	sequence   sequencer
	metrics    *metrics.CheckoutMetrics
}

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	cartRepo cart.Repository,
	ordersRepo orders.Repository,
	stockRepo stock.Repository,
	couponRepo coupons.Repository,
	catalog catalogLoader,
	addresses addressLoader,
	settingsSvc settings.Service,
	sequence sequencer,
	checkoutMetrics *metrics.CheckoutMetrics,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if stockRepo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if couponRepo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog loader required")
	}
	if addresses == nil {
		return nil, fmt.Errorf("address loader required")
	}
	if settingsSvc == nil {
		return nil, fmt.Errorf("settings service required")
	}
	if sequence == nil {
		return nil, fmt.Errorf("order number sequencer required")
	}
	return &service{
		tx:         tx,
		cartRepo:   cartRepo,
		ordersRepo: ordersRepo,
		stockRepo:  stockRepo,
		couponRepo: couponRepo,
		catalog:    catalog,
		addresses:  addresses,
		settings:   settingsSvc,
		sequence:   sequence,
		metrics:    checkoutMetrics,
	}, nil
}

// pricedLine is a cart line repriced from the live catalog.
type pricedLine struct {
	item        models.CartItem
	product     *models.Product
	variant     *models.ProductVariant
	unitCents   int
	totalCents  int
	trackStock  bool
	productName string
}

func (s *service) Execute(ctx context.Context, userID uuid.UUID, input Input) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.AddressID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address id required")
	}

	address, err := s.addresses.FindByID(ctx, userID, input.AddressID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, s.fail("invalid_address", pkgerrors.New(pkgerrors.CodeNotFound, "address not found"))
		}
		return nil, s.fail("internal", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load address"))
	}

	shipping, err := s.settings.Shipping(ctx)
	if err != nil {
		return nil, s.fail("internal", err)
	}

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		ordersRepo := s.ordersRepo.WithTx(tx)
		stockRepo := s.stockRepo.WithTx(tx)
		couponRepo := s.couponRepo.WithTx(tx)
		ledger := stock.NewLedger(stockRepo)

		userCart, err := cartRepo.FindCartByUser(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return s.fail("empty_cart", pkgerrors.New(pkgerrors.CodeValidation, "cart is empty"))
			}
			return s.fail("internal", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart"))
		}
		items, err := cartRepo.ListItems(ctx, userCart.ID)
		if err != nil {
			return s.fail("internal", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart items"))
		}
		if len(items) == 0 {
			return s.fail("empty_cart", pkgerrors.New(pkgerrors.CodeValidation, "cart is empty"))
		}

		lines, subtotal, err := s.priceLines(ctx, items)
		if err != nil {
			return err
		}

		var coupon *models.Coupon
		discount := 0
		if code := strings.TrimSpace(input.CouponCode); code != "" {
			couponSvc, err := coupons.NewService(couponRepo)
			if err != nil {
				return s.fail("internal", err)
			}
			coupon, discount, err = couponSvc.Validate(ctx, code, subtotal, time.Now().UTC())
			if err != nil {
				return s.fail("invalid_coupon", err)
			}
		}

		shippingCents := shipping.FlatFeeCents
		if subtotal >= shipping.FreeThresholdCents {
			shippingCents = 0
		}

		// Fixed-type discounts are not clamped to the subtotal; the total
		// can go negative and is stored as computed.
		total := subtotal - discount + shippingCents

		orderNumber, err := s.nextOrderNumber(ctx)
		if err != nil {
			return s.fail("internal", err)
		}

		snapshot := addressSnapshot(address)
		order = &models.Order{
			ID:              uuid.New(),
			OrderNumber:     orderNumber,
			UserID:          userID,
			Status:          enums.OrderStatusPending,
			PaymentStatus:   enums.PaymentStatusPending,
			Currency:        shipping.Currency,
			SubtotalCents:   subtotal,
			DiscountCents:   discount,
			ShippingCents:   shippingCents,
			TotalCents:      total,
			ShippingAddress: &snapshot,
			Notes:           input.Notes,
		}
		if coupon != nil {
			order.CouponID = &coupon.ID
			code := coupon.Code
			order.CouponCode = &code
		}
		if err := ordersRepo.Create(ctx, order); err != nil {
			return s.fail("internal", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order"))
		}

		orderItems := make([]models.OrderItem, 0, len(lines))
		for _, line := range lines {
			orderItems = append(orderItems, buildOrderItem(order.ID, line))
		}
		if err := ordersRepo.CreateItems(ctx, orderItems); err != nil {
			return s.fail("internal", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order items"))
		}
		order.Items = orderItems

		for _, line := range lines {
			if !line.trackStock {
				continue
			}
			err := ledger.SaleOut(ctx, stock.MovementParams{
				ProductID:   line.item.ProductID,
				VariantID:   line.item.VariantID,
				OrderID:     order.ID,
				ActorID:     userID,
				Quantity:    line.item.Quantity,
				ProductName: line.productName,
			})
			if err != nil {
				return s.fail("insufficient_stock", err)
			}
		}

		if coupon != nil {
			ok, err := couponRepo.IncrementUsage(ctx, coupon.ID)
			if err != nil {
				return s.fail("internal", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "increment coupon usage"))
			}
			if !ok {
				return s.fail("invalid_coupon", pkgerrors.New(pkgerrors.CodeStateConflict, "coupon usage limit reached"))
			}
		}

		if err := cartRepo.ClearItems(ctx, userCart.ID); err != nil {
			return s.fail("internal", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart"))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncOrderPlaced("card")
	}
	return order, nil
}

// priceLines reprices every cart line from the live catalog and validates
// stock. One bad line fails the whole checkout.
func (s *service) priceLines(ctx context.Context, items []models.CartItem) ([]pricedLine, int, error) {
	lines := make([]pricedLine, 0, len(items))
	subtotal := 0

	for _, item := range items {
		product, err := s.catalog.FindProductByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, 0, s.fail("missing_product", pkgerrors.New(pkgerrors.CodeStateConflict, "product no longer available"))
			}
			return nil, 0, s.fail("internal", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product"))
		}
		if product.IsRemoved || !product.IsActive {
			return nil, 0, s.fail("missing_product", pkgerrors.New(pkgerrors.CodeStateConflict, "product no longer available").
				WithDetails(map[string]any{"product": product.Name}))
		}

		line := pricedLine{
			item:        item,
			product:     product,
			unitCents:   product.PriceCents,
			trackStock:  product.TrackStock,
			productName: product.Name,
		}
		available := product.Stock

		if item.VariantID != nil {
			variant, err := s.catalog.FindVariantByID(ctx, *item.VariantID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil, 0, s.fail("missing_product", pkgerrors.New(pkgerrors.CodeStateConflict, "variant no longer available").
						WithDetails(map[string]any{"product": product.Name}))
				}
				return nil, 0, s.fail("internal", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load variant"))
			}
			if variant.ProductID != product.ID || !variant.IsActive {
				return nil, 0, s.fail("missing_product", pkgerrors.New(pkgerrors.CodeStateConflict, "variant no longer available").
					WithDetails(map[string]any{"product": product.Name}))
			}
			line.variant = variant
			line.unitCents = variant.PriceCents
			available = variant.Stock
		}

		if line.trackStock && available < item.Quantity {
			return nil, 0, s.fail("insufficient_stock", pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock").
				WithDetails(map[string]any{"product": product.Name}))
		}

		line.totalCents = line.unitCents * item.Quantity
		subtotal += line.totalCents
		lines = append(lines, line)
	}

	return lines, subtotal, nil
}

// nextOrderNumber formats a date-coded number from a monotonic per-day
// sequence, e.g. VS-20260830-0001.
func (s *service) nextOrderNumber(ctx context.Context) (string, error) {
	now := time.Now().UTC()
	seq, err := s.sequence.NextDailySequence(ctx, "orders", now)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate order number")
	}
	return fmt.Sprintf("%s-%s-%04d", orderNumberPrefix, now.Format("20060102"), seq), nil
}

func (s *service) fail(reason string, err error) error {
	if s.metrics != nil {
		s.metrics.IncFailure(reason)
	}
	return err
}

func buildOrderItem(orderID uuid.UUID, line pricedLine) models.OrderItem {
	productID := line.item.ProductID
	item := models.OrderItem{
		ID:             uuid.New(),
		OrderID:        orderID,
		ProductID:      &productID,
		VariantID:      line.item.VariantID,
		ProductName:    line.productName,
		SKU:            line.product.SKU,
		UnitPriceCents: line.unitCents,
		Quantity:       line.item.Quantity,
		TotalCents:     line.totalCents,
		TrackStock:     line.trackStock,
	}
	if line.variant != nil {
		name := line.variant.Name
		item.VariantName = &name
		item.SKU = line.variant.SKU
	}
	return item
}

func addressSnapshot(address *models.Address) types.Address {
	return types.Address{
		FullName:   address.FullName,
		Phone:      address.Phone,
		Line1:      address.Line1,
		Line2:      address.Line2,
		City:       address.City,
		State:      address.State,
		PostalCode: address.PostalCode,
		Country:    address.Country,
	}
}
