package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/veloshop/storefront-backend/pkg/enums"
)

// SalesLog records every order status transition with the acting user.
type SalesLog struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	ActorID        uuid.UUID         `gorm:"column:actor_id;type:uuid;not null"`
	PreviousStatus enums.OrderStatus `gorm:"column:previous_status;type:text;not null"`
	NewStatus      enums.OrderStatus `gorm:"column:new_status;type:text;not null"`
	Notes          *string           `gorm:"column:notes"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
}
