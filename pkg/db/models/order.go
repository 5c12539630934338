package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/veloshop/storefront-backend/pkg/enums"
	"github.com/veloshop/storefront-backend/pkg/types"
)

// Order is the immutable snapshot produced by checkout. ConversationID is
// generated per payment attempt and persisted before the gateway is called.
type Order struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber      string              `gorm:"column:order_number;not null;uniqueIndex:idx_orders_number"`
	UserID           uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	Status           enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentStatus    enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	Currency         string              `gorm:"column:currency;not null;default:'USD'"`
	SubtotalCents    int                 `gorm:"column:subtotal_cents;not null"`
	DiscountCents    int                 `gorm:"column:discount_cents;not null;default:0"`
	ShippingCents    int                 `gorm:"column:shipping_cents;not null;default:0"`
	TotalCents       int                 `gorm:"column:total_cents;not null"`
	CouponID         *uuid.UUID          `gorm:"column:coupon_id;type:uuid"`
	CouponCode       *string             `gorm:"column:coupon_code"`
	ShippingAddress  *types.Address      `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	ConversationID   *string             `gorm:"column:conversation_id;index"`
	GatewayPaymentID *string             `gorm:"column:gateway_payment_id"`
	Notes            *string             `gorm:"column:notes"`
	Items            []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
