package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/veloshop/storefront-backend/pkg/enums"
)

// Coupon is a mutable discount code. UsedCount only moves through conditional
// updates so concurrent checkouts cannot run past the usage limit.
type Coupon struct {
	ID               uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code             string           `gorm:"column:code;not null;uniqueIndex:idx_coupons_code"`
	Type             enums.CouponType `gorm:"column:type;type:text;not null"`
	Percent          *float64         `gorm:"column:percent;type:numeric(5,2)"`
	ValueCents       *int             `gorm:"column:value_cents"`
	MaxDiscountCents *int             `gorm:"column:max_discount_cents"`
	MinOrderCents    int              `gorm:"column:min_order_cents;not null;default:0"`
	StartsAt         *time.Time       `gorm:"column:starts_at"`
	EndsAt           *time.Time       `gorm:"column:ends_at"`
	UsageLimit       *int             `gorm:"column:usage_limit"`
	UsedCount        int              `gorm:"column:used_count;not null;default:0"`
	IsActive         bool             `gorm:"column:is_active;not null;default:true"`
	CreatedAt        time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
