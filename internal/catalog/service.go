package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/veloshop/storefront-backend/pkg/db/models"
	pkgerrors "github.com/veloshop/storefront-backend/pkg/errors"
	"github.com/veloshop/storefront-backend/pkg/logger"
	pkgredis "github.com/veloshop/storefront-backend/pkg/redis"
)

const cacheScope = "catalog"

// Service is the public, cached read side of the catalog.
type Service interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	ListProducts(ctx context.Context, input ListProductsInput) (*ProductList, error)
	GetProduct(ctx context.Context, slug string) (*models.Product, error)
}

type cacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	DeletePattern(ctx context.Context, pattern string) error
	CacheKey(parts ...string) string
	CachePattern(scope string) string
}

type readRepository interface {
	ListCategories(ctx context.Context, activeOnly bool) ([]models.Category, error)
	ListProducts(ctx context.Context, input ListProductsInput) (*ProductList, error)
	FindProductBySlug(ctx context.Context, slug string) (*models.Product, error)
}

type service struct {
	repo   readRepository
	cache  cacheStore
	ttl    time.Duration
	logger *logger.Logger
}

// ServiceParams bundles the dependencies for the public catalog service.
type ServiceParams struct {
	Repo     readRepository
	Cache    cacheStore
	CacheTTL time.Duration
	Logger   *logger.Logger
}

// NewService constructs the cached catalog read service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "catalog repository required")
	}
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &service{
		repo:   params.Repo,
		cache:  params.Cache,
		ttl:    ttl,
		logger: params.Logger,
	}, nil
}

func (s *service) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	key := s.cacheKey("categories")
	if s.cacheRead(ctx, key, &categories) {
		return categories, nil
	}

	categories, err := s.repo.ListCategories(ctx, true)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list categories")
	}
	s.cacheWrite(ctx, key, categories)
	return categories, nil
}

func (s *service) ListProducts(ctx context.Context, input ListProductsInput) (*ProductList, error) {
	var list ProductList
	key := s.cacheKey("products", listCacheSuffix(input))
	if s.cacheRead(ctx, key, &list) {
		return &list, nil
	}

	result, err := s.repo.ListProducts(ctx, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}
	s.cacheWrite(ctx, key, result)
	return result, nil
}

func (s *service) GetProduct(ctx context.Context, slug string) (*models.Product, error) {
	var product models.Product
	key := s.cacheKey("product", slug)
	if s.cacheRead(ctx, key, &product) {
		return &product, nil
	}

	found, err := s.repo.FindProductBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if !found.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	s.cacheWrite(ctx, key, found)
	return found, nil
}

func (s *service) cacheKey(parts ...string) string {
	if s.cache == nil {
		return ""
	}
	return s.cache.CacheKey(append([]string{cacheScope}, parts...)...)
}

// cacheRead returns true when the key existed and decoded cleanly. Cache
// failures never fail the request.
func (s *service) cacheRead(ctx context.Context, key string, out any) bool {
	if s.cache == nil || key == "" {
		return false
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsMiss(err) && s.logger != nil {
			s.logger.Warn(s.logger.WithField(ctx, "error", err.Error()), "catalog cache read failed")
		}
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		if s.logger != nil {
			s.logger.Warn(s.logger.WithField(ctx, "error", err.Error()), "catalog cache decode failed")
		}
		return false
	}
	return true
}

func (s *service) cacheWrite(ctx context.Context, key string, value any) {
	if s.cache == nil || key == "" {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, string(payload), s.ttl); err != nil && s.logger != nil {
		s.logger.Warn(s.logger.WithField(ctx, "error", err.Error()), "catalog cache write failed")
	}
}

func listCacheSuffix(input ListProductsInput) string {
	params := input.Pagination.Normalize()
	f := input.Filters
	category := ""
	if f.CategoryID != nil {
		category = f.CategoryID.String()
	} else {
		category = f.CategorySlug
	}
	min, max := -1, -1
	if f.PriceMinCents != nil {
		min = *f.PriceMinCents
	}
	if f.PriceMaxCents != nil {
		max = *f.PriceMaxCents
	}
	inStock := false
	if f.InStock != nil {
		inStock = *f.InStock
	}
	return fmt.Sprintf("c=%s;min=%d;max=%d;stock=%t;q=%s;p=%d;l=%d",
		category, min, max, inStock, f.Query, params.Page, params.Limit)
}

// invalidate drops every cached catalog read. Called by the admin write side.
func invalidate(ctx context.Context, cache cacheStore, logg *logger.Logger) {
	if cache == nil {
		return
	}
	if err := cache.DeletePattern(ctx, cache.CachePattern(cacheScope)); err != nil && logg != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "catalog cache invalidation failed")
	}
}
