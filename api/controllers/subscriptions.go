package controllers

import (
	"context"
	"net/http"

	"github.com/Killerbeez7/print-dungeon-backend/api/responses"
	"github.com/Killerbeez7/print-dungeon-backend/api/validators"
	"github.com/Killerbeez7/print-dungeon-backend/internal/subscriptions"
	pkgerrors "github.com/Killerbeez7/print-dungeon-backend/pkg/errors"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/logger"
)

// SubscriptionsService is the surface the subscription controller depends on.
type SubscriptionsService interface {
	Create(ctx context.Context, input subscriptions.CreateInput) (*subscriptions.CreateResult, error)
}

type createSubscriptionPayload struct {
	PriceID         string  `json:"price_id" validate:"required"`
	PaymentMethodID *string `json:"payment_method_id" validate:"omitempty"`
}

// SubscriptionsCreate opens an incomplete subscription for the caller.
func SubscriptionsCreate(svc SubscriptionsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscriptions service unavailable"))
			return
		}

		userID, err := requestUserID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload createSubscriptionPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.Create(ctx, subscriptions.CreateInput{
			UserID:          userID,
			PriceID:         payload.PriceID,
			PaymentMethodID: payload.PaymentMethodID,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
