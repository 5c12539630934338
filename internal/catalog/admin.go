package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/veloshop/storefront-backend/pkg/db"
	"github.com/veloshop/storefront-backend/pkg/db/models"
	pkgerrors "github.com/veloshop/storefront-backend/pkg/errors"
	"github.com/veloshop/storefront-backend/pkg/logger"
)

// AdminService covers the staff-only catalog writes. Every mutation drops the
// cached public reads so the storefront never serves stale listings.
type AdminService interface {
	CreateCategory(ctx context.Context, req CategoryRequest) (*models.Category, error)
	UpdateCategory(ctx context.Context, id uuid.UUID, req CategoryRequest) (*models.Category, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) error
	ListCategories(ctx context.Context) ([]models.Category, error)

	CreateProduct(ctx context.Context, req CreateProductRequest) (*models.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, req UpdateProductRequest) (*models.Product, error)
	RemoveProduct(ctx context.Context, id uuid.UUID) error
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListProducts(ctx context.Context, input ListProductsInput) (*ProductList, error)

	CreateVariant(ctx context.Context, productID uuid.UUID, req VariantRequest) (*models.ProductVariant, error)
	UpdateVariant(ctx context.Context, productID, variantID uuid.UUID, req VariantRequest) (*models.ProductVariant, error)
	DeleteVariant(ctx context.Context, productID, variantID uuid.UUID) error
}

type adminService struct {
	repo   *Repository
	cache  cacheStore
	logger *logger.Logger
}

// AdminServiceParams bundles the dependencies for the admin catalog service.
type AdminServiceParams struct {
	Repo   *Repository
	Cache  cacheStore
	Logger *logger.Logger
}

// NewAdminService constructs the staff-facing catalog service.
func NewAdminService(params AdminServiceParams) (AdminService, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "catalog repository required")
	}
	return &adminService{
		repo:   params.Repo,
		cache:  params.Cache,
		logger: params.Logger,
	}, nil
}

func (s *adminService) CreateCategory(ctx context.Context, req CategoryRequest) (*models.Category, error) {
	category := &models.Category{
		ID:          uuid.New(),
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		ParentID:    req.ParentID,
		ImagePath:   req.ImagePath,
		SortOrder:   req.SortOrder,
		IsActive:    true,
	}
	if req.IsActive != nil {
		category.IsActive = *req.IsActive
	}

	created, err := s.repo.CreateCategory(ctx, category)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "category slug already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create category")
	}

	invalidate(ctx, s.cache, s.logger)
	return created, nil
}

func (s *adminService) UpdateCategory(ctx context.Context, id uuid.UUID, req CategoryRequest) (*models.Category, error) {
	if _, err := s.loadCategory(ctx, id); err != nil {
		return nil, err
	}

	updates := map[string]any{
		"name":        req.Name,
		"slug":        req.Slug,
		"description": req.Description,
		"parent_id":   req.ParentID,
		"image_path":  req.ImagePath,
		"sort_order":  req.SortOrder,
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if err := s.repo.UpdateCategory(ctx, id, updates); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "category slug already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update category")
	}

	invalidate(ctx, s.cache, s.logger)
	return s.loadCategory(ctx, id)
}

func (s *adminService) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	if _, err := s.loadCategory(ctx, id); err != nil {
		return err
	}

	inUse, err := s.repo.CountProductsInCategory(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count category products")
	}
	if inUse > 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "category still has products")
	}

	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete category")
	}

	invalidate(ctx, s.cache, s.logger)
	return nil
}

func (s *adminService) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories, err := s.repo.ListCategories(ctx, false)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list categories")
	}
	return categories, nil
}

func (s *adminService) CreateProduct(ctx context.Context, req CreateProductRequest) (*models.Product, error) {
	if _, err := s.loadCategory(ctx, req.CategoryID); err != nil {
		return nil, err
	}

	product := &models.Product{
		ID:                  uuid.New(),
		CategoryID:          req.CategoryID,
		Name:                req.Name,
		Slug:                req.Slug,
		SKU:                 req.SKU,
		Description:         req.Description,
		Images:              pq.StringArray(req.Images),
		PriceCents:          req.PriceCents,
		CompareAtPriceCents: req.CompareAtPriceCents,
		CostCents:           req.CostCents,
		Stock:               req.Stock,
		TrackStock:          true,
		IsActive:            true,
	}
	if req.TrackStock != nil {
		product.TrackStock = *req.TrackStock
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "product slug already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create product")
	}

	invalidate(ctx, s.cache, s.logger)
	return created, nil
}

func (s *adminService) UpdateProduct(ctx context.Context, id uuid.UUID, req UpdateProductRequest) (*models.Product, error) {
	if _, err := s.loadProduct(ctx, id); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if req.CategoryID != nil {
		if _, err := s.loadCategory(ctx, *req.CategoryID); err != nil {
			return nil, err
		}
		updates["category_id"] = *req.CategoryID
	}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Slug != nil {
		updates["slug"] = *req.Slug
	}
	if req.SKU != nil {
		updates["sku"] = *req.SKU
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Images != nil {
		updates["images"] = pq.StringArray(req.Images)
	}
	if req.PriceCents != nil {
		updates["price_cents"] = *req.PriceCents
	}
	if req.CompareAtPriceCents != nil {
		updates["compare_at_price_cents"] = *req.CompareAtPriceCents
	}
	if req.CostCents != nil {
		updates["cost_cents"] = *req.CostCents
	}
	if req.TrackStock != nil {
		updates["track_stock"] = *req.TrackStock
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) == 0 {
		return s.loadProduct(ctx, id)
	}

	if err := s.repo.UpdateProduct(ctx, id, updates); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "product slug already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update product")
	}

	invalidate(ctx, s.cache, s.logger)
	return s.loadProduct(ctx, id)
}

func (s *adminService) RemoveProduct(ctx context.Context, id uuid.UUID) error {
	if _, err := s.loadProduct(ctx, id); err != nil {
		return err
	}
	if err := s.repo.SoftRemoveProduct(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove product")
	}
	invalidate(ctx, s.cache, s.logger)
	return nil
}

func (s *adminService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return s.loadProduct(ctx, id)
}

func (s *adminService) ListProducts(ctx context.Context, input ListProductsInput) (*ProductList, error) {
	list, err := s.repo.ListAllProducts(ctx, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}
	return list, nil
}

func (s *adminService) CreateVariant(ctx context.Context, productID uuid.UUID, req VariantRequest) (*models.ProductVariant, error) {
	if _, err := s.loadProduct(ctx, productID); err != nil {
		return nil, err
	}

	variant := &models.ProductVariant{
		ID:         uuid.New(),
		ProductID:  productID,
		Name:       req.Name,
		SKU:        req.SKU,
		PriceCents: req.PriceCents,
		Stock:      req.Stock,
		IsActive:   true,
	}
	if req.IsActive != nil {
		variant.IsActive = *req.IsActive
	}

	created, err := s.repo.CreateVariant(ctx, variant)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "variant sku already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create variant")
	}

	invalidate(ctx, s.cache, s.logger)
	return created, nil
}

func (s *adminService) UpdateVariant(ctx context.Context, productID, variantID uuid.UUID, req VariantRequest) (*models.ProductVariant, error) {
	variant, err := s.loadVariant(ctx, productID, variantID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{
		"name":        req.Name,
		"sku":         req.SKU,
		"price_cents": req.PriceCents,
		"stock":       req.Stock,
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if err := s.repo.UpdateVariant(ctx, variant.ID, updates); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "variant sku already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update variant")
	}

	invalidate(ctx, s.cache, s.logger)
	return s.loadVariant(ctx, productID, variantID)
}

func (s *adminService) DeleteVariant(ctx context.Context, productID, variantID uuid.UUID) error {
	if _, err := s.loadVariant(ctx, productID, variantID); err != nil {
		return err
	}
	if err := s.repo.DeleteVariant(ctx, productID, variantID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete variant")
	}
	invalidate(ctx, s.cache, s.logger)
	return nil
}

func (s *adminService) loadCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	category, err := s.repo.FindCategoryByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load category")
	}
	return category, nil
}

func (s *adminService) loadProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	return product, nil
}

func (s *adminService) loadVariant(ctx context.Context, productID, variantID uuid.UUID) (*models.ProductVariant, error) {
	variant, err := s.repo.FindVariantByID(ctx, variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load variant")
	}
	if variant.ProductID != productID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
	}
	return variant, nil
}
