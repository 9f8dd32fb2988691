package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is the catalog entry shared across seller listings. The splitter
// bumps SoldCount inside the order-creation transaction.
type Product struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	ImageURL  *string   `gorm:"column:image_url"`
	SKU       *string   `gorm:"column:sku"`
	SoldCount int       `gorm:"column:sold_count;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
