package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Product is the canonical catalog listing. Stock is meaningful only while
// TrackStock is set; variants override price and stock per line item.
type Product struct {
	ID                  uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CategoryID          uuid.UUID        `gorm:"column:category_id;type:uuid;not null;index"`
	Name                string           `gorm:"column:name;not null"`
	Slug                string           `gorm:"column:slug;not null;uniqueIndex:idx_products_slug"`
	SKU                 string           `gorm:"column:sku;not null"`
	Description         *string          `gorm:"column:description"`
	Images              pq.StringArray   `gorm:"column:images;type:text[]"`
	PriceCents          int              `gorm:"column:price_cents;not null"`
	CompareAtPriceCents *int             `gorm:"column:compare_at_price_cents"`
	CostCents           *int             `gorm:"column:cost_cents"`
	Stock               int              `gorm:"column:stock;not null;default:0"`
	TrackStock          bool             `gorm:"column:track_stock;not null;default:true"`
	IsActive            bool             `gorm:"column:is_active;not null;default:true"`
	IsRemoved           bool             `gorm:"column:is_removed;not null;default:false"`
	Category            *Category        `gorm:"foreignKey:CategoryID"`
	Variants            []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt           time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
