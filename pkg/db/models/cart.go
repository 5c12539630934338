package models

import (
	"time"

	"github.com/google/uuid"
)

// Cart is owned by exactly one of user or anonymous session; the other owner
// key stays null. The row survives checkout, only its items are deleted.
type Cart struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    *uuid.UUID `gorm:"column:user_id;type:uuid;uniqueIndex:idx_carts_user"`
	SessionID *string    `gorm:"column:session_id;uniqueIndex:idx_carts_session"`
	Items     []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
