package connect

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/Killerbeez7/print-dungeon-backend/pkg/config"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/db/models"
	pkgerrors "github.com/Killerbeez7/print-dungeon-backend/pkg/errors"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/logger"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/retry"
)

type gatewayClient interface {
	CreateAccount(ctx context.Context, email string, metadata map[string]string) (*stripe.Account, error)
	GetAccount(ctx context.Context, id string) (*stripe.Account, error)
	CreateAccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error)
}

type userStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetConnectAccountID(ctx context.Context, id uuid.UUID, accountID string) error
}

// Service drives connected-account onboarding and status refresh.
type Service struct {
	gateway  gatewayClient
	retryer  *retry.Retryer
	users    userStore
	accounts Repository
	cfg      config.StripeConfig
	logg     *logger.Logger
}

// ServiceParams carries the dependencies for NewService.
type ServiceParams struct {
	Gateway  gatewayClient
	Retryer  *retry.Retryer
	Users    userStore
	Accounts Repository
	Config   config.StripeConfig
	Logger   *logger.Logger
}

// NewService builds the connect service.
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
	if params.Accounts == nil {
		return nil, fmt.Errorf("connect repository required")
	}
	return &Service{
		gateway:  params.Gateway,
		retryer:  params.Retryer,
		users:    params.Users,
		accounts: params.Accounts,
		cfg:      params.Config,
		logg:     params.Logger,
	}, nil
}

// CreateAccount opens an express account for the user and stores the forward
// pointer. Calling it again for a user who already has an account returns the
// existing id instead of minting a second one.
func (s *Service) CreateAccount(ctx context.Context, userID uuid.UUID) (string, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.ConnectAccountID != nil && *user.ConnectAccountID != "" {
		return *user.ConnectAccountID, nil
	}

	metadata := map[string]string{MetadataUserIDKey: userID.String()}
	acct, err := retry.Do(ctx, s.retryer, "create_connect_account", func(ctx context.Context) (*stripe.Account, error) {
		return s.gateway.CreateAccount(ctx, user.Email, metadata)
	})
	if err != nil {
		return "", err
	}

	if err := s.users.SetConnectAccountID(ctx, userID, acct.ID); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store connect account pointer")
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithAccountID(s.logg.WithUserID(ctx, userID.String()), acct.ID), "connect account created")
	}
	return acct.ID, nil
}

// CreateAccountLink mints a fresh onboarding URL for the user's account.
func (s *Service) CreateAccountLink(ctx context.Context, userID uuid.UUID) (string, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.ConnectAccountID == nil || *user.ConnectAccountID == "" {
		return "", pkgerrors.New(pkgerrors.CodePrecondition, "user has no connected account")
	}

	return retry.Do(ctx, s.retryer, "create_account_link", func(ctx context.Context) (string, error) {
		return s.gateway.CreateAccountLink(ctx, *user.ConnectAccountID, s.cfg.OnboardRefreshURL, s.cfg.OnboardReturnURL)
	})
}

// CheckStatus is the pull path: fetch the live account, reconcile, persist
// the snapshot, return it. A user without an account gets the zero status
// without touching the gateway.
func (s *Service) CheckStatus(ctx context.Context, userID uuid.UUID) (AccountStatus, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return AccountStatus{}, err
	}
	if user.ConnectAccountID == nil || *user.ConnectAccountID == "" {
		return AccountStatus{RequirementsDue: []string{}}, nil
	}

	acct, err := retry.Do(ctx, s.retryer, "get_connect_account", func(ctx context.Context) (*stripe.Account, error) {
		return s.gateway.GetAccount(ctx, *user.ConnectAccountID)
	})
	if err != nil {
		return AccountStatus{}, err
	}

	status := ReconcileAccountStatus(acct)
	if err := s.accounts.Upsert(ctx, snapshotModel(userID, status)); err != nil {
		return AccountStatus{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist account status")
	}
	return status, nil
}

// ApplyAccountSnapshot is the push path: reconcile a webhook account payload
// and persist it under the resolved user. Shares ReconcileAccountStatus with
// CheckStatus so both paths write identical rows.
func (s *Service) ApplyAccountSnapshot(ctx context.Context, userID uuid.UUID, acct *stripe.Account) (AccountStatus, error) {
	if acct == nil {
		return AccountStatus{}, pkgerrors.New(pkgerrors.CodeValidation, "account snapshot required")
	}

	status := ReconcileAccountStatus(acct)
	if err := s.accounts.Upsert(ctx, snapshotModel(userID, status)); err != nil {
		return AccountStatus{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist account status")
	}
	return status, nil
}

func (s *Service) loadUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	return user, nil
}
