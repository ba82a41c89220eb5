package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Killerbeez7/print-dungeon-backend/pkg/enums"
)

// PrintModel is a purchasable 3D model listing. PurchaseCount and
// RevenueCents are denormalized settlement counters incremented by the
// payments service.
type PrintModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID      uuid.UUID       `gorm:"column:seller_id;type:uuid;not null;index"`
	Name          string          `gorm:"column:name;not null"`
	Description   string          `gorm:"column:description"`
	Price         decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Currency      enums.Currency  `gorm:"column:currency;type:text;not null;default:'usd'"`
	Published     bool            `gorm:"column:published;not null;default:false"`
	PurchaseCount int64           `gorm:"column:purchase_count;not null;default:0"`
	RevenueCents  int64           `gorm:"column:revenue_cents;not null;default:0"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
