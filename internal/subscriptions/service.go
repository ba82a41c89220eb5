package subscriptions

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/Killerbeez7/print-dungeon-backend/pkg/db/models"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/enums"
	pkgerrors "github.com/Killerbeez7/print-dungeon-backend/pkg/errors"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/logger"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/retry"
)

type gatewayClient interface {
	CreateCustomer(ctx context.Context, email string, metadata map[string]string) (*stripe.Customer, error)
	CreateSubscription(ctx context.Context, customerID, priceID string, paymentMethodID *string, metadata map[string]string) (*stripe.Subscription, error)
}

type userStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error
}

// CreateInput carries the data needed to open a subscription.
type CreateInput struct {
	UserID          uuid.UUID
	PriceID         string
	PaymentMethodID *string
}

// CreateResult returns the ids the client needs to confirm the subscription.
type CreateResult struct {
	SubscriptionID string `json:"subscription_id"`
	ClientSecret   string `json:"client_secret"`
}

// Service opens gateway subscriptions and records them locally.
type Service struct {
	gateway gatewayClient
	retryer *retry.Retryer
	users   userStore
	repo    Repository
	logg    *logger.Logger
}

// ServiceParams carries the dependencies for NewService.
type ServiceParams struct {
	Gateway gatewayClient
	Retryer *retry.Retryer
	Users   userStore
	Repo    Repository
	Logger  *logger.Logger
}

// NewService builds the subscriptions service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Gateway == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	if params.Retryer == nil {
		return nil, fmt.Errorf("retryer required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user store required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("subscriptions repository required")
	}
	return &Service{
		gateway: params.Gateway,
		retryer: params.Retryer,
		users:   params.Users,
		repo:    params.Repo,
		logg:    params.Logger,
	}, nil
}

// Create opens an incomplete subscription for the user's customer and stores
// the local row. The returned client secret lets the client finish setup.
func (s *Service) Create(ctx context.Context, input CreateInput) (*CreateResult, error) {
	if input.PriceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price id is required")
	}

	user, err := s.users.FindByID(ctx, input.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}

	customerID, err := s.resolveCustomer(ctx, user)
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{"internal_user_id": input.UserID.String()}
	sub, err := retry.Do(ctx, s.retryer, "create_subscription", func(ctx context.Context) (*stripe.Subscription, error) {
		return s.gateway.CreateSubscription(ctx, customerID, input.PriceID, input.PaymentMethodID, metadata)
	})
	if err != nil {
		return nil, err
	}

	status, parseErr := enums.ParseSubscriptionStatus(string(sub.Status))
	if parseErr != nil {
		status = enums.SubscriptionStatusIncomplete
	}
	record := &models.Subscription{
		UserID:               input.UserID,
		StripeSubscriptionID: sub.ID,
		PriceID:              input.PriceID,
		Status:               status,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist subscription")
	}

	result := &CreateResult{SubscriptionID: sub.ID}
	if sub.PendingSetupIntent != nil {
		result.ClientSecret = sub.PendingSetupIntent.ClientSecret
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithUserID(ctx, input.UserID.String()), fmt.Sprintf("subscription %s created", sub.ID))
	}
	return result, nil
}

func (s *Service) resolveCustomer(ctx context.Context, user *models.User) (string, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}

	cust, err := retry.Do(ctx, s.retryer, "create_customer", func(ctx context.Context) (*stripe.Customer, error) {
		return s.gateway.CreateCustomer(ctx, user.Email, map[string]string{"internal_user_id": user.ID.String()})
	})
	if err != nil {
		return "", err
	}
	if err := s.users.SetStripeCustomerID(ctx, user.ID, cust.ID); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store customer id")
	}
	return cust.ID, nil
}
