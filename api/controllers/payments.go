package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Killerbeez7/print-dungeon-backend/api/middleware"
	"github.com/Killerbeez7/print-dungeon-backend/api/responses"
	"github.com/Killerbeez7/print-dungeon-backend/api/validators"
	"github.com/Killerbeez7/print-dungeon-backend/internal/payments"
	pkgerrors "github.com/Killerbeez7/print-dungeon-backend/pkg/errors"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/logger"
)

// PaymentsService is the surface the payment controllers depend on.
type PaymentsService interface {
	CreateIntent(ctx context.Context, input payments.CreateIntentInput) (*payments.CreateIntentResult, error)
	FinalizeSuccess(ctx context.Context, buyerID uuid.UUID, stripeIntentID string) (uuid.UUID, error)
	ListUserPurchases(ctx context.Context, buyerID uuid.UUID) ([]payments.PurchaseDTO, error)
	ListSellerSales(ctx context.Context, sellerID uuid.UUID) ([]payments.SaleDTO, error)
}

type createIntentPayload struct {
	ModelID  string `json:"model_id" validate:"required,uuid"`
	Amount   string `json:"amount" validate:"required"`
	Currency string `json:"currency" validate:"omitempty,len=3"`
}

type finalizePayload struct {
	PaymentIntentID string `json:"payment_intent_id" validate:"required"`
}

// PaymentsCreateIntent opens a payment intent for the authenticated buyer.
func PaymentsCreateIntent(svc PaymentsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		buyerID, err := requestUserID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload createIntentPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		modelID, err := uuid.Parse(payload.ModelID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid model id"))
			return
		}
		amount, err := decimal.NewFromString(payload.Amount)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount"))
			return
		}

		result, err := svc.CreateIntent(ctx, payments.CreateIntentInput{
			BuyerID:  buyerID,
			ModelID:  modelID,
			Amount:   amount,
			Currency: payload.Currency,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// PaymentsFinalizeSuccess settles a succeeded payment intent.
func PaymentsFinalizeSuccess(svc PaymentsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		buyerID, err := requestUserID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload finalizePayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		purchaseID, err := svc.FinalizeSuccess(ctx, buyerID, payload.PaymentIntentID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"success":     true,
			"purchase_id": purchaseID,
		})
	}
}

// PaymentsListPurchases returns the authenticated buyer's purchases.
func PaymentsListPurchases(svc PaymentsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		buyerID, err := requestUserID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		purchases, err := svc.ListUserPurchases(ctx, buyerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"purchases": purchases})
	}
}

// PaymentsListSales returns the authenticated seller's settlements.
func PaymentsListSales(svc PaymentsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		sellerID, err := requestUserID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		sales, err := svc.ListSellerSales(ctx, sellerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"sales": sales})
	}
}

func requestUserID(ctx context.Context) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(ctx)
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return userID, nil
}
