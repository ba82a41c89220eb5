package connect

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Killerbeez7/print-dungeon-backend/pkg/db/models"
	dbtypes "github.com/Killerbeez7/print-dungeon-backend/pkg/db/types"
)

// Repository persists reconciled connected-account snapshots.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Upsert(ctx context.Context, account *models.ConnectAccount) error
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.ConnectAccount, error)
	FindByAccountID(ctx context.Context, accountID string) (*models.ConnectAccount, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a connect repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Upsert writes the snapshot with last-write-wins semantics. Both refresh
// paths derive the row from the same reconciliation, so overwrites are safe.
func (r *repository) Upsert(ctx context.Context, account *models.ConnectAccount) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "account_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"charges_enabled",
				"details_submitted",
				"requirements_due",
				"fully_active",
				"updated_at",
			}),
		}).
		Create(account).Error
}

func (r *repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.ConnectAccount, error) {
	var account models.ConnectAccount
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) FindByAccountID(ctx context.Context, accountID string) (*models.ConnectAccount, error) {
	var account models.ConnectAccount
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// snapshotModel folds a reconciled status into the persistence shape.
func snapshotModel(userID uuid.UUID, status AccountStatus) *models.ConnectAccount {
	return &models.ConnectAccount{
		AccountID:        status.AccountID,
		UserID:           userID,
		ChargesEnabled:   status.ChargesEnabled,
		DetailsSubmitted: status.DetailsSubmitted,
		RequirementsDue:  dbtypes.StringList(status.RequirementsDue),
		FullyActive:      status.FullyActive,
	}
}
