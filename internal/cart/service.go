package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veloshop/storefront-backend/pkg/db/models"
	pkgerrors "github.com/veloshop/storefront-backend/pkg/errors"
)

// AddItemRequest is the storefront payload for adding a line.
type AddItemRequest struct {
	ProductID uuid.UUID  `json:"product_id" validate:"required"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	Quantity  int        `json:"quantity" validate:"required,gte=1"`
}

// Identity names the cart owner: an authenticated user, an anonymous
// session, or both right after login.
type Identity struct {
	UserID    *uuid.UUID
	SessionID *string
}

// Service is the cart aggregate. Resolve never returns a nil cart; when both
// identities are present, the anonymous cart's lines are sum-merged into the
// user's cart and the anonymous cart is deleted.
type Service interface {
	Resolve(ctx context.Context, identity Identity) (*models.Cart, error)
	Items(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error)
	Add(ctx context.Context, cartID uuid.UUID, req AddItemRequest) (*models.CartItem, error)
	UpdateItem(ctx context.Context, cartID, itemID uuid.UUID, quantity int) error
	RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) error
	Clear(ctx context.Context, cartID uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type catalogReader interface {
	FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindVariantByID(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error)
}

type service struct {
	db      txRunner
	repo    Repository
	catalog catalogReader
}

// ServiceParams bundles the cart service dependencies.
type ServiceParams struct {
	DB      txRunner
	Repo    Repository
	Catalog catalogReader
}

func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart repository required")
	}
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "catalog reader required")
	}
	return &service{db: params.DB, repo: params.Repo, catalog: params.Catalog}, nil
}

func (s *service) Resolve(ctx context.Context, identity Identity) (*models.Cart, error) {
	if identity.UserID == nil && identity.SessionID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart requires a user or session identity")
	}

	if identity.UserID == nil {
		return s.resolveSession(ctx, *identity.SessionID)
	}
	return s.resolveUser(ctx, identity)
}

func (s *service) resolveSession(ctx context.Context, sessionID string) (*models.Cart, error) {
	cart, err := s.repo.FindCartBySession(ctx, sessionID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load session cart")
	}

	created := &models.Cart{ID: uuid.New(), SessionID: &sessionID}
	if err := s.repo.CreateCart(ctx, created); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create session cart")
	}
	return created, nil
}

// resolveUser returns the user's cart, creating it if absent, and folds any
// anonymous cart into it through the line-level sum-merge. Merge does not
// re-check stock; the next add, update, or checkout does.
func (s *service) resolveUser(ctx context.Context, identity Identity) (*models.Cart, error) {
	var resolved *models.Cart
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		userCart, err := repo.FindCartByUser(ctx, *identity.UserID)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user cart")
			}
			userCart = &models.Cart{ID: uuid.New(), UserID: identity.UserID}
			if err := repo.CreateCart(ctx, userCart); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user cart")
			}
		}

		if identity.SessionID != nil {
			if err := s.mergeSessionCart(ctx, repo, userCart, *identity.SessionID); err != nil {
				return err
			}
		}

		merged, err := repo.FindCartByID(ctx, userCart.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload cart")
		}
		resolved = merged
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

func (s *service) mergeSessionCart(ctx context.Context, repo Repository, userCart *models.Cart, sessionID string) error {
	sessionCart, err := repo.FindCartBySession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load session cart")
	}

	items, err := repo.ListItems(ctx, sessionCart.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list session cart items")
	}

	for _, item := range items {
		existing, err := repo.FindItem(ctx, userCart.ID, item.ProductID, item.VariantID)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find cart line")
			}
			copied := &models.CartItem{
				ID:             uuid.New(),
				CartID:         userCart.ID,
				ProductID:      item.ProductID,
				VariantID:      item.VariantID,
				Quantity:       item.Quantity,
				UnitPriceCents: item.UnitPriceCents,
			}
			if err := repo.CreateItem(ctx, copied); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "copy cart line")
			}
			continue
		}

		err = repo.UpdateItem(ctx, existing.ID, map[string]any{
			"quantity": existing.Quantity + item.Quantity,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "merge cart line")
		}
	}

	if err := repo.ClearItems(ctx, sessionCart.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear session cart")
	}
	if err := repo.DeleteCart(ctx, sessionCart.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete session cart")
	}
	return nil
}

func (s *service) Items(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	items, err := s.repo.ListItems(ctx, cartID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list cart items")
	}
	return items, nil
}

func (s *service) Add(ctx context.Context, cartID uuid.UUID, req AddItemRequest) (*models.CartItem, error) {
	if req.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	product, unitPrice, available, tracked, err := s.lineStock(ctx, req.ProductID, req.VariantID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindItem(ctx, cartID, req.ProductID, req.VariantID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find cart line")
	}

	requested := req.Quantity
	if existing != nil {
		requested += existing.Quantity
	}
	if tracked && available < requested {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock").
			WithDetails(map[string]any{"product": product.Name})
	}

	if existing != nil {
		err = s.repo.UpdateItem(ctx, existing.ID, map[string]any{
			"quantity":         requested,
			"unit_price_cents": unitPrice,
		})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart line")
		}
		existing.Quantity = requested
		existing.UnitPriceCents = unitPrice
		return existing, nil
	}

	item := &models.CartItem{
		ID:             uuid.New(),
		CartID:         cartID,
		ProductID:      req.ProductID,
		VariantID:      req.VariantID,
		Quantity:       req.Quantity,
		UnitPriceCents: unitPrice,
	}
	if err := s.repo.CreateItem(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "add cart line")
	}
	return item, nil
}

func (s *service) UpdateItem(ctx context.Context, cartID, itemID uuid.UUID, quantity int) error {
	item, err := s.repo.FindItemByID(ctx, cartID, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart item")
	}

	if quantity <= 0 {
		if err := s.repo.DeleteItem(ctx, item.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove cart line")
		}
		return nil
	}

	product, _, available, tracked, err := s.lineStock(ctx, item.ProductID, item.VariantID)
	if err != nil {
		return err
	}
	if tracked && available < quantity {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock").
			WithDetails(map[string]any{"product": product.Name})
	}

	err = s.repo.UpdateItem(ctx, item.ID, map[string]any{"quantity": quantity})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart line")
	}
	return nil
}

func (s *service) RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	item, err := s.repo.FindItemByID(ctx, cartID, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart item")
	}
	if err := s.repo.DeleteItem(ctx, item.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove cart line")
	}
	return nil
}

func (s *service) Clear(ctx context.Context, cartID uuid.UUID) error {
	if err := s.repo.ClearItems(ctx, cartID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
	}
	return nil
}

// lineStock resolves the authoritative price and stock for a line: the
// variant's when present, else the product's.
func (s *service) lineStock(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (*models.Product, int, int, bool, error) {
	product, err := s.catalog.FindProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, 0, false, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, 0, 0, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if product.IsRemoved || !product.IsActive {
		return nil, 0, 0, false, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}

	if variantID == nil {
		return product, product.PriceCents, product.Stock, product.TrackStock, nil
	}

	variant, err := s.catalog.FindVariantByID(ctx, *variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, 0, false, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
		}
		return nil, 0, 0, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load variant")
	}
	if variant.ProductID != product.ID || !variant.IsActive {
		return nil, 0, 0, false, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
	}

	return product, variant.PriceCents, variant.Stock, product.TrackStock, nil
}
