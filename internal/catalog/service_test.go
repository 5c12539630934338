package catalog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/veloshop/storefront-backend/pkg/db/models"
	pkgerrors "github.com/veloshop/storefront-backend/pkg/errors"
)

type stubCatalogRepo struct {
	listCategoriesCalls int
	findBySlugCalls     int
	listProductsCalls   int

	categories []models.Category
	product    *models.Product
	list       *ProductList
}

func (s *stubCatalogRepo) ListCategories(_ context.Context, _ bool) ([]models.Category, error) {
	s.listCategoriesCalls++
	return s.categories, nil
}

func (s *stubCatalogRepo) ListProducts(_ context.Context, _ ListProductsInput) (*ProductList, error) {
	s.listProductsCalls++
	if s.list == nil {
		return &ProductList{Products: []models.Product{}}, nil
	}
	return s.list, nil
}

func (s *stubCatalogRepo) FindProductBySlug(_ context.Context, _ string) (*models.Product, error) {
	s.findBySlugCalls++
	if s.product == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.product, nil
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]string{}}
}

func (f *fakeCache) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.entries[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (f *fakeCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := value.(string); ok {
		f.entries[key] = s
	}
	return nil
}

func (f *fakeCache) DeletePattern(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = map[string]string{}
	return nil
}

func (f *fakeCache) CacheKey(parts ...string) string {
	key := "vs:cache"
	for _, part := range parts {
		key += ":" + part
	}
	return key
}

func (f *fakeCache) CachePattern(scope string) string {
	return "vs:cache:" + scope + ":*"
}

func newTestService(t *testing.T, repo *stubCatalogRepo, cache *fakeCache) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:     repo,
		Cache:    cache,
		CacheTTL: time.Minute,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestListCategoriesCachesSecondRead(t *testing.T) {
	repo := &stubCatalogRepo{categories: []models.Category{
		{ID: uuid.New(), Name: "Road Bikes", Slug: "road-bikes", IsActive: true},
	}}
	cache := newFakeCache()
	svc := newTestService(t, repo, cache)
	ctx := context.Background()

	first, err := svc.ListCategories(ctx)
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	second, err := svc.ListCategories(ctx)
	if err != nil {
		t.Fatalf("second read: %v", err)
	}

	if repo.listCategoriesCalls != 1 {
		t.Fatalf("expected one repo hit, got %d", repo.listCategoriesCalls)
	}
	if len(first) != 1 || len(second) != 1 || second[0].Slug != "road-bikes" {
		t.Fatalf("unexpected cached categories: %+v", second)
	}
}

func TestGetProductRejectsInactive(t *testing.T) {
	repo := &stubCatalogRepo{product: &models.Product{
		ID:       uuid.New(),
		Name:     "Retired Frame",
		Slug:     "retired-frame",
		IsActive: false,
	}}
	svc := newTestService(t, repo, newFakeCache())

	_, err := svc.GetProduct(context.Background(), "retired-frame")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetProductNotFound(t *testing.T) {
	svc := newTestService(t, &stubCatalogRepo{}, newFakeCache())

	_, err := svc.GetProduct(context.Background(), "missing")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListProductsCacheKeyVariesByFilter(t *testing.T) {
	repo := &stubCatalogRepo{list: &ProductList{Products: []models.Product{
		{ID: uuid.New(), Name: "Aero Frame", Slug: "aero-frame", IsActive: true},
	}}}
	cache := newFakeCache()
	svc := newTestService(t, repo, cache)
	ctx := context.Background()

	if _, err := svc.ListProducts(ctx, ListProductsInput{}); err != nil {
		t.Fatalf("unfiltered list: %v", err)
	}
	inStock := true
	if _, err := svc.ListProducts(ctx, ListProductsInput{
		Filters: ProductListFilters{InStock: &inStock},
	}); err != nil {
		t.Fatalf("filtered list: %v", err)
	}

	if repo.listProductsCalls != 2 {
		t.Fatalf("expected distinct cache keys per filter set, got %d repo hits", repo.listProductsCalls)
	}
	if len(cache.entries) != 2 {
		t.Fatalf("expected 2 cache entries, got %d", len(cache.entries))
	}
}

func TestInvalidateDropsCachedReads(t *testing.T) {
	repo := &stubCatalogRepo{categories: []models.Category{
		{ID: uuid.New(), Name: "Helmets", Slug: "helmets", IsActive: true},
	}}
	cache := newFakeCache()
	svc := newTestService(t, repo, cache)
	ctx := context.Background()

	if _, err := svc.ListCategories(ctx); err != nil {
		t.Fatalf("prime cache: %v", err)
	}

	invalidate(ctx, cache, nil)

	if _, err := svc.ListCategories(ctx); err != nil {
		t.Fatalf("read after invalidation: %v", err)
	}
	if repo.listCategoriesCalls != 2 {
		t.Fatalf("expected repo re-hit after invalidation, got %d calls", repo.listCategoriesCalls)
	}
}
