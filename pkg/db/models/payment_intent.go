package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Killerbeez7/print-dungeon-backend/pkg/enums"
)

// PaymentIntent is the local record of a gateway payment intent. It is
// created by the intent initiator and mutated only by the settlement
// finalizer; status moves created -> completed and never back. Marking the
// intent completed is the last write of the settlement sequence, so a crash
// mid-settlement leaves it retryable.
type PaymentIntent struct {
	ID             uuid.UUID                 `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	StripeIntentID string                    `gorm:"column:stripe_intent_id;not null;uniqueIndex"`
	ModelID        uuid.UUID                 `gorm:"column:model_id;type:uuid;not null;index"`
	BuyerID        uuid.UUID                 `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID       uuid.UUID                 `gorm:"column:seller_id;type:uuid;not null;index"`
	Amount         decimal.Decimal           `gorm:"column:amount;type:numeric(12,2);not null"`
	AmountCents    int64                     `gorm:"column:amount_cents;not null"`
	Currency       enums.Currency            `gorm:"column:currency;type:text;not null;default:'usd'"`
	Status         enums.PaymentIntentStatus `gorm:"column:status;type:text;not null;default:'created'"`
	CreatedAt      time.Time                 `gorm:"column:created_at;autoCreateTime"`
	CompletedAt    *time.Time                `gorm:"column:completed_at"`
}
