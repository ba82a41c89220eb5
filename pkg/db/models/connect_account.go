package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/Killerbeez7/print-dungeon-backend/pkg/db/types"
)

// ConnectAccount caches the reconciled activation status of a seller's
// gateway account. Written by both the pull path and the webhook push path;
// last write wins, which is safe because both paths derive the row from the
// same pure reconciliation function.
type ConnectAccount struct {
	AccountID        string             `gorm:"column:account_id;primaryKey"`
	UserID           uuid.UUID          `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	ChargesEnabled   bool               `gorm:"column:charges_enabled;not null;default:false"`
	DetailsSubmitted bool               `gorm:"column:details_submitted;not null;default:false"`
	RequirementsDue  dbtypes.StringList `gorm:"column:requirements_due;type:text;not null;default:'[]'"`
	FullyActive      bool               `gorm:"column:fully_active;not null;default:false"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
