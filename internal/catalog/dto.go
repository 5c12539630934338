package catalog

import (
	"github.com/google/uuid"

	"github.com/veloshop/storefront-backend/pkg/db/models"
	"github.com/veloshop/storefront-backend/pkg/pagination"
)

// ProductListFilters describe the supported filter knobs for the browse endpoint.
type ProductListFilters struct {
	CategoryID    *uuid.UUID `json:"category_id,omitempty"`
	CategorySlug  string     `json:"category_slug,omitempty"`
	PriceMinCents *int       `json:"price_min_cents,omitempty"`
	PriceMaxCents *int       `json:"price_max_cents,omitempty"`
	InStock       *bool      `json:"in_stock,omitempty"`
	Query         string     `json:"q,omitempty"`
}

// ListProductsInput captures the inputs needed to paginate/filter the catalog.
type ListProductsInput struct {
	Filters    ProductListFilters
	Pagination pagination.Params
}

// ProductList wraps the paginated products plus the page metadata.
type ProductList struct {
	Products []models.Product `json:"products"`
	Meta     pagination.Meta  `json:"meta"`
}

// VariantRequest is the admin payload for a single variant.
type VariantRequest struct {
	Name       string `json:"name" validate:"required,max=120"`
	SKU        string `json:"sku" validate:"required,max=64"`
	PriceCents int    `json:"price_cents" validate:"gte=0"`
	Stock      int    `json:"stock" validate:"gte=0"`
	IsActive   *bool  `json:"is_active,omitempty"`
}

// CreateProductRequest is the admin payload for a new listing.
type CreateProductRequest struct {
	CategoryID          uuid.UUID `json:"category_id" validate:"required"`
	Name                string    `json:"name" validate:"required,max=200"`
	Slug                string    `json:"slug" validate:"required,max=200"`
	SKU                 string    `json:"sku" validate:"required,max=64"`
	Description         *string   `json:"description,omitempty"`
	Images              []string  `json:"images,omitempty" validate:"omitempty,dive,url"`
	PriceCents          int       `json:"price_cents" validate:"gte=0"`
	CompareAtPriceCents *int      `json:"compare_at_price_cents,omitempty" validate:"omitempty,gte=0"`
	CostCents           *int      `json:"cost_cents,omitempty" validate:"omitempty,gte=0"`
	Stock               int       `json:"stock" validate:"gte=0"`
	TrackStock          *bool     `json:"track_stock,omitempty"`
	IsActive            *bool     `json:"is_active,omitempty"`
}

// UpdateProductRequest carries partial listing edits; nil fields are untouched.
type UpdateProductRequest struct {
	CategoryID          *uuid.UUID `json:"category_id,omitempty"`
	Name                *string    `json:"name,omitempty" validate:"omitempty,max=200"`
	Slug                *string    `json:"slug,omitempty" validate:"omitempty,max=200"`
	SKU                 *string    `json:"sku,omitempty" validate:"omitempty,max=64"`
	Description         *string    `json:"description,omitempty"`
	Images              []string   `json:"images,omitempty" validate:"omitempty,dive,url"`
	PriceCents          *int       `json:"price_cents,omitempty" validate:"omitempty,gte=0"`
	CompareAtPriceCents *int       `json:"compare_at_price_cents,omitempty" validate:"omitempty,gte=0"`
	CostCents           *int       `json:"cost_cents,omitempty" validate:"omitempty,gte=0"`
	TrackStock          *bool      `json:"track_stock,omitempty"`
	IsActive            *bool      `json:"is_active,omitempty"`
}

// CategoryRequest is the admin payload for creating or editing a category.
type CategoryRequest struct {
	Name        string     `json:"name" validate:"required,max=120"`
	Slug        string     `json:"slug" validate:"required,max=120"`
	Description *string    `json:"description,omitempty"`
	ParentID    *uuid.UUID `json:"parent_id,omitempty"`
	ImagePath   *string    `json:"image_path,omitempty"`
	SortOrder   int        `json:"sort_order"`
	IsActive    *bool      `json:"is_active,omitempty"`
}
