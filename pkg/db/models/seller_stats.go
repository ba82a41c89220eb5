package models

import (
	"time"

	"github.com/google/uuid"
)

// SellerStats is the seller's public sales counter document, created on first
// sale and incremented by the settlement finalizer.
type SellerStats struct {
	SellerID     uuid.UUID `gorm:"column:seller_id;type:uuid;primaryKey"`
	SalesCount   int64     `gorm:"column:sales_count;not null;default:0"`
	RevenueCents int64     `gorm:"column:revenue_cents;not null;default:0"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
