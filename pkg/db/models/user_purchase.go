package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Killerbeez7/print-dungeon-backend/pkg/enums"
)

// UserPurchase is the buyer-scoped purchase entry backing per-user listings.
// Keyed by (buyer, model) so a re-purchase of the same model overwrites
// rather than duplicates.
type UserPurchase struct {
	BuyerID     uuid.UUID      `gorm:"column:buyer_id;type:uuid;primaryKey"`
	ModelID     uuid.UUID      `gorm:"column:model_id;type:uuid;primaryKey"`
	PriceCents  int64          `gorm:"column:price_cents;not null"`
	Currency    enums.Currency `gorm:"column:currency;type:text;not null;default:'usd'"`
	PurchasedAt time.Time      `gorm:"column:purchased_at;not null"`
}
