package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Killerbeez7/print-dungeon-backend/pkg/db/models"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreatePaymentIntent(ctx context.Context, intent *models.PaymentIntent) (*models.PaymentIntent, error) {
	if err := r.db.WithContext(ctx).Create(intent).Error; err != nil {
		return nil, err
	}
	return intent, nil
}

func (r *repository) FindIntentByStripeID(ctx context.Context, stripeIntentID string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	err := r.db.WithContext(ctx).
		Where("stripe_intent_id = ?", stripeIntentID).
		First(&intent).Error
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

// MarkIntentCompleted flips the intent to its terminal status. Idempotent:
// re-marking an already completed intent is a no-op update.
func (r *repository) MarkIntentCompleted(ctx context.Context, stripeIntentID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Where("stripe_intent_id = ?", stripeIntentID).
		UpdateColumns(map[string]any{
			"status":       enums.PaymentIntentStatusCompleted,
			"completed_at": at,
		}).Error
}

// CreatePurchase inserts the settlement record. The unique index on
// stripe_intent_id makes the insert the settlement's claim: a duplicate key
// error means another attempt already settled this intent.
func (r *repository) CreatePurchase(ctx context.Context, purchase *models.Purchase) error {
	return r.db.WithContext(ctx).Create(purchase).Error
}

func (r *repository) FindPurchaseByIntentID(ctx context.Context, stripeIntentID string) (*models.Purchase, error) {
	var purchase models.Purchase
	err := r.db.WithContext(ctx).
		Where("stripe_intent_id = ?", stripeIntentID).
		First(&purchase).Error
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *repository) UpsertUserPurchase(ctx context.Context, entry *models.UserPurchase) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "buyer_id"}, {Name: "model_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"price_cents",
				"currency",
				"purchased_at",
			}),
		}).
		Create(entry).Error
}

// IncrementSellerStats bumps the seller counters, creating the row on first
// sale. The increment references the stored column so concurrent settlements
// serialize inside the database.
func (r *repository) IncrementSellerStats(ctx context.Context, sellerID uuid.UUID, amountCents int64) error {
	stats := &models.SellerStats{
		SellerID:     sellerID,
		SalesCount:   1,
		RevenueCents: amountCents,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "seller_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"sales_count":   gorm.Expr("sales_count + 1"),
				"revenue_cents": gorm.Expr("revenue_cents + ?", amountCents),
			}),
		}).
		Create(stats).Error
}

func (r *repository) ListPurchasesByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.UserPurchase, error) {
	var list []models.UserPurchase
	err := r.db.WithContext(ctx).
		Where("buyer_id = ?", buyerID).
		Order("purchased_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *repository) ListSalesBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Purchase, error) {
	var list []models.Purchase
	err := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("purchased_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}
