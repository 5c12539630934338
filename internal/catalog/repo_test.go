package catalog

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/veloshop/storefront-backend/pkg/db/models"
	"github.com/veloshop/storefront-backend/pkg/pagination"
)

func mustCreateTestCategory(t *testing.T, tx *gorm.DB) *models.Category {
	t.Helper()
	category := &models.Category{
		ID:       uuid.New(),
		Name:     "Road Bikes",
		Slug:     fmt.Sprintf("road-bikes-%s", uuid.NewString()),
		IsActive: true,
	}
	require.NoError(t, tx.Create(category).Error)
	return category
}

func mustCreateTestProduct(t *testing.T, tx *gorm.DB, categoryID uuid.UUID) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:         uuid.New(),
		CategoryID: categoryID,
		Name:       "Aero Frame",
		Slug:       fmt.Sprintf("aero-frame-%s", uuid.NewString()),
		SKU:        fmt.Sprintf("SKU-%s", uuid.NewString()),
		Images:     pq.StringArray{"https://cdn.example.com/aero.jpg"},
		PriceCents: 129900,
		Stock:      5,
		TrackStock: true,
		IsActive:   true,
	}
	require.NoError(t, tx.Create(product).Error)
	return product
}

func TestRepositoryProductFlow(t *testing.T) {
	conn := openTestDB(t)
	tx := conn.Begin()
	require.NoError(t, tx.Error)
	t.Cleanup(func() {
		_ = tx.Rollback()
	})

	repo := NewRepository(tx)
	ctx := context.Background()

	category := mustCreateTestCategory(t, tx)
	product := mustCreateTestProduct(t, tx, category.ID)

	fetched, err := repo.FindProductBySlug(ctx, product.Slug)
	require.NoError(t, err)
	assert.Equal(t, product.SKU, fetched.SKU)

	list, err := repo.ListProducts(ctx, ListProductsInput{
		Filters:    ProductListFilters{CategoryID: &category.ID},
		Pagination: pagination.Params{Page: 1, Limit: 10},
	})
	require.NoError(t, err)
	require.Len(t, list.Products, 1)

	require.NoError(t, repo.SoftRemoveProduct(ctx, product.ID))
	_, err = repo.FindProductBySlug(ctx, product.Slug)
	assert.Error(t, err, "removed product should be hidden from slug lookup")

	list, err = repo.ListProducts(ctx, ListProductsInput{
		Filters:    ProductListFilters{CategoryID: &category.ID},
		Pagination: pagination.Params{Page: 1, Limit: 10},
	})
	require.NoError(t, err)
	assert.Empty(t, list.Products, "removed product should be excluded from listings")

	inUse, err := repo.CountProductsInCategory(ctx, category.ID)
	require.NoError(t, err)
	assert.Zero(t, inUse, "removed products should be excluded from category count")
}

func TestRepositoryVariantScopedToProduct(t *testing.T) {
	conn := openTestDB(t)
	tx := conn.Begin()
	require.NoError(t, tx.Error)
	t.Cleanup(func() {
		_ = tx.Rollback()
	})

	repo := NewRepository(tx)
	ctx := context.Background()

	category := mustCreateTestCategory(t, tx)
	product := mustCreateTestProduct(t, tx, category.ID)
	other := mustCreateTestProduct(t, tx, category.ID)

	variant, err := repo.CreateVariant(ctx, &models.ProductVariant{
		ID:         uuid.New(),
		ProductID:  product.ID,
		Name:       "56cm",
		SKU:        fmt.Sprintf("SKU-%s", uuid.NewString()),
		PriceCents: 134900,
		Stock:      2,
		IsActive:   true,
	})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteVariant(ctx, other.ID, variant.ID))
	_, err = repo.FindVariantByID(ctx, variant.ID)
	require.NoError(t, err, "variant should survive delete scoped to another product")

	require.NoError(t, repo.DeleteVariant(ctx, product.ID, variant.ID))
	_, err = repo.FindVariantByID(ctx, variant.ID)
	assert.Error(t, err, "expected variant to be gone")
}
