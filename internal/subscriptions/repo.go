package subscriptions

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Killerbeez7/print-dungeon-backend/pkg/db/models"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/enums"
)

// Repository persists subscription rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, sub *models.Subscription) error
	FindByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error)
	UpdateStatus(ctx context.Context, stripeSubscriptionID string, status enums.SubscriptionStatus) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a subscriptions repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *repository) FindByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error) {
	var list []models.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *repository) UpdateStatus(ctx context.Context, stripeSubscriptionID string, status enums.SubscriptionStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		UpdateColumn("status", status).Error
}
