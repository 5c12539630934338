package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/veloshop/storefront-backend/pkg/enums"
)

// StockLog is the append-only inventory ledger: one row per stock-affecting
// event. Approved rows are never updated again.
type StockLog struct {
	ID            uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID     uuid.UUID            `gorm:"column:product_id;type:uuid;not null;index"`
	VariantID     *uuid.UUID           `gorm:"column:variant_id;type:uuid"`
	OrderID       *uuid.UUID           `gorm:"column:order_id;type:uuid;index"`
	ActorID       uuid.UUID            `gorm:"column:actor_id;type:uuid;not null"`
	Type          enums.StockLogType   `gorm:"column:type;type:text;not null"`
	Status        enums.StockLogStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Quantity      int                  `gorm:"column:quantity;not null"`
	PreviousStock int                  `gorm:"column:previous_stock;not null"`
	NewStock      int                  `gorm:"column:new_stock;not null"`
	Reason        *string              `gorm:"column:reason"`
	ApprovedBy    *uuid.UUID           `gorm:"column:approved_by;type:uuid"`
	ApprovedAt    *time.Time           `gorm:"column:approved_at"`
	CreatedAt     time.Time            `gorm:"column:created_at;autoCreateTime"`
}
