package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Killerbeez7/print-dungeon-backend/pkg/db/models"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/enums"
)

// CreateIntentInput carries everything needed to open a payment intent.
type CreateIntentInput struct {
	BuyerID  uuid.UUID
	ModelID  uuid.UUID
	Amount   decimal.Decimal
	Currency string
}

// CreateIntentResult is returned to the client so it can confirm the payment.
type CreateIntentResult struct {
	ClientSecret    string `json:"client_secret"`
	PaymentIntentID string `json:"payment_intent_id"`
}

// PurchaseDTO is the buyer-facing purchase entry.
type PurchaseDTO struct {
	ModelID     uuid.UUID      `json:"model_id"`
	PriceCents  int64          `json:"price_cents"`
	Currency    enums.Currency `json:"currency"`
	PurchasedAt time.Time      `json:"purchased_at"`
}

// SaleDTO is the seller-facing settlement entry.
type SaleDTO struct {
	PurchaseID  uuid.UUID       `json:"purchase_id"`
	ModelID     uuid.UUID       `json:"model_id"`
	BuyerID     uuid.UUID       `json:"buyer_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    enums.Currency  `json:"currency"`
	PurchasedAt time.Time       `json:"purchased_at"`
}

func purchaseDTOs(entries []models.UserPurchase) []PurchaseDTO {
	out := make([]PurchaseDTO, 0, len(entries))
	for _, entry := range entries {
		out = append(out, PurchaseDTO{
			ModelID:     entry.ModelID,
			PriceCents:  entry.PriceCents,
			Currency:    entry.Currency,
			PurchasedAt: entry.PurchasedAt,
		})
	}
	return out
}

func saleDTOs(purchases []models.Purchase) []SaleDTO {
	out := make([]SaleDTO, 0, len(purchases))
	for _, purchase := range purchases {
		out = append(out, SaleDTO{
			PurchaseID:  purchase.ID,
			ModelID:     purchase.ModelID,
			BuyerID:     purchase.BuyerID,
			Amount:      purchase.Amount,
			Currency:    purchase.Currency,
			PurchasedAt: purchase.PurchasedAt,
		})
	}
	return out
}
