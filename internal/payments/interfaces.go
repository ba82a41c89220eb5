package payments

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Killerbeez7/print-dungeon-backend/pkg/db/models"
)

// Repository defines persistence operations for the settlement tables.
type Repository interface {
	CreatePaymentIntent(ctx context.Context, intent *models.PaymentIntent) (*models.PaymentIntent, error)
	FindIntentByStripeID(ctx context.Context, stripeIntentID string) (*models.PaymentIntent, error)
	MarkIntentCompleted(ctx context.Context, stripeIntentID string, at time.Time) error
	CreatePurchase(ctx context.Context, purchase *models.Purchase) error
	FindPurchaseByIntentID(ctx context.Context, stripeIntentID string) (*models.Purchase, error)
	UpsertUserPurchase(ctx context.Context, entry *models.UserPurchase) error
	IncrementSellerStats(ctx context.Context, sellerID uuid.UUID, amountCents int64) error
	ListPurchasesByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.UserPurchase, error)
	ListSalesBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Purchase, error)
}
