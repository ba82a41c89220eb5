package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Killerbeez7/print-dungeon-backend/pkg/enums"
)

// Purchase materializes a completed settlement. The unique index on
// StripeIntentID is the settlement idempotency key: creating the purchase is
// the first write of the finalization sequence, and a duplicate intent id
// makes the whole sequence converge instead of double-applying.
type Purchase struct {
	ID             uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	StripeIntentID string               `gorm:"column:stripe_intent_id;not null;uniqueIndex:idx_purchases_intent"`
	BuyerID        uuid.UUID            `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID       uuid.UUID            `gorm:"column:seller_id;type:uuid;not null;index"`
	ModelID        uuid.UUID            `gorm:"column:model_id;type:uuid;not null;index"`
	Amount         decimal.Decimal      `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency       enums.Currency       `gorm:"column:currency;type:text;not null;default:'usd'"`
	Status         enums.PurchaseStatus `gorm:"column:status;type:text;not null;default:'completed'"`
	PurchasedAt    time.Time            `gorm:"column:purchased_at;autoCreateTime"`
}
