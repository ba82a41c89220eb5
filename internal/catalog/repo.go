package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Killerbeez7/print-dungeon-backend/pkg/db/models"
)

// Repository defines persistence operations for model listings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, model *models.PrintModel) (*models.PrintModel, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.PrintModel, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.PrintModel, error)
	IncrementPurchaseStats(ctx context.Context, id uuid.UUID, amountCents int64) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, model *models.PrintModel) (*models.PrintModel, error) {
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return nil, err
	}
	return model, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PrintModel, error) {
	var model models.PrintModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &model, nil
}

func (r *repository) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.PrintModel, error) {
	var list []models.PrintModel
	err := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("created_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// IncrementPurchaseStats bumps the denormalized sale counters on a listing.
// Runs as a single UPDATE so concurrent settlements never lose increments.
func (r *repository) IncrementPurchaseStats(ctx context.Context, id uuid.UUID, amountCents int64) error {
	return r.db.WithContext(ctx).
		Model(&models.PrintModel{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"purchase_count": gorm.Expr("purchase_count + 1"),
			"revenue_cents":  gorm.Expr("revenue_cents + ?", amountCents),
		}).Error
}
