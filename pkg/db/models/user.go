package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents the canonical identity entity. ConnectAccountID is the
// forward pointer used by the identity resolver; keeping it indexed makes the
// reverse lookup (account id -> user) a single-row query instead of a scan.
type User struct {
	ID               uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email            string     `gorm:"type:text;not null;uniqueIndex"`
	DisplayName      string     `gorm:"column:display_name;not null"`
	IsSeller         bool       `gorm:"column:is_seller;not null;default:false"`
	StripeCustomerID *string    `gorm:"column:stripe_customer_id"`
	ConnectAccountID *string    `gorm:"column:connect_account_id;index"`
	LastLoginAt      *time.Time `gorm:"column:last_login_at"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
