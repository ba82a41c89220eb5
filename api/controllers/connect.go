package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/Killerbeez7/print-dungeon-backend/api/responses"
	"github.com/Killerbeez7/print-dungeon-backend/internal/connect"
	pkgerrors "github.com/Killerbeez7/print-dungeon-backend/pkg/errors"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/logger"
)

// ConnectService is the surface the connect controllers depend on.
type ConnectService interface {
	CreateAccount(ctx context.Context, userID uuid.UUID) (string, error)
	CreateAccountLink(ctx context.Context, userID uuid.UUID) (string, error)
	CheckStatus(ctx context.Context, userID uuid.UUID) (connect.AccountStatus, error)
}

// ConnectCreateAccount opens a connected account for the authenticated user.
func ConnectCreateAccount(svc ConnectService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "connect service unavailable"))
			return
		}

		userID, err := requestUserID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		accountID, err := svc.CreateAccount(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"account_id": accountID})
	}
}

// ConnectCreateAccountLink mints a fresh onboarding URL.
func ConnectCreateAccountLink(svc ConnectService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "connect service unavailable"))
			return
		}

		userID, err := requestUserID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		url, err := svc.CreateAccountLink(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"url": url})
	}
}

// ConnectStatus refreshes and returns the account's activation status.
func ConnectStatus(svc ConnectService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "connect service unavailable"))
			return
		}

		userID, err := requestUserID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		status, err := svc.CheckStatus(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}
