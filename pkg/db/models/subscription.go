package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Killerbeez7/print-dungeon-backend/pkg/enums"
)

// Subscription records a gateway subscription opened for a user.
type Subscription struct {
	ID                   uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID               uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index"`
	StripeSubscriptionID string                   `gorm:"column:stripe_subscription_id;not null;uniqueIndex"`
	PriceID              string                   `gorm:"column:price_id;not null"`
	Status               enums.SubscriptionStatus `gorm:"column:status;type:text;not null;default:'incomplete'"`
	CreatedAt            time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
