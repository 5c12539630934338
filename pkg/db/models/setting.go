package models

import "time"

// Setting is a key/value pair for store-wide configuration such as the
// free-shipping threshold.
type Setting struct {
	Key       string    `gorm:"column:key;primaryKey"`
	Value     string    `gorm:"column:value;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
