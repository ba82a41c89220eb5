package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/Killerbeez7/print-dungeon-backend/internal/connect"
	"github.com/Killerbeez7/print-dungeon-backend/internal/subscriptions"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/enums"
	pkgerrors "github.com/Killerbeez7/print-dungeon-backend/pkg/errors"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/logger"
)

type accountResolver interface {
	ResolveAccountUser(ctx context.Context, accountID string, metadata map[string]string) (uuid.UUID, error)
}

type snapshotApplier interface {
	ApplyAccountSnapshot(ctx context.Context, userID uuid.UUID, acct *stripe.Account) (connect.AccountStatus, error)
}

type eventObserver interface {
	IncWebhookEvent(eventType, outcome string)
}

// ServiceParams carries the dependencies for NewService.
type ServiceParams struct {
	Resolver      accountResolver
	Snapshots     snapshotApplier
	Subscriptions subscriptions.Repository
	Logger        *logger.Logger
	Observer      eventObserver
}

// Service dispatches verified gateway events. Handlers are idempotent, so a
// replayed event that slips past the redis guard converges to the same state.
type Service struct {
	resolver  accountResolver
	snapshots snapshotApplier
	subs      subscriptions.Repository
	logg      *logger.Logger
	observer  eventObserver
}

// NewService builds the webhook dispatch service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Resolver == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "account resolver required")
	}
	if params.Snapshots == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "snapshot applier required")
	}
	if params.Subscriptions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscriptions repo required")
	}
	return &Service{
		resolver:  params.Resolver,
		snapshots: params.Snapshots,
		subs:      params.Subscriptions,
		logg:      params.Logger,
		observer:  params.Observer,
	}, nil
}

// HandleEvent routes a verified event to its handler. Unknown event types are
// acknowledged and ignored.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	var (
		outcome string
		err     error
	)
	switch event.Type {
	case stripe.EventTypeAccountUpdated:
		outcome, err = s.handleAccountUpdated(ctx, event)
	case stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted:
		outcome, err = s.handleSubscriptionChanged(ctx, event)
	default:
		s.observe(string(event.Type), "ignored")
		return nil
	}

	if err != nil {
		s.observe(string(event.Type), "failed")
		return err
	}
	s.observe(string(event.Type), outcome)
	return nil
}

// Handlers report a single outcome label per event so each delivery is
// counted exactly once.

func (s *Service) handleAccountUpdated(ctx context.Context, event *stripe.Event) (string, error) {
	var acct stripe.Account
	if err := json.Unmarshal(event.Data.Raw, &acct); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode account event")
	}
	if acct.ID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "account id missing from event")
	}

	userID, err := s.resolver.ResolveAccountUser(ctx, acct.ID, acct.Metadata)
	if err != nil {
		typed := pkgerrors.As(err)
		if typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			// Account belongs to nobody we know. Acknowledge so the
			// gateway stops redelivering; the log line is the alert.
			if s.logg != nil {
				s.logg.Warn(s.logg.WithAccountID(ctx, acct.ID), "account.updated for unmapped account, dropping")
			}
			return "unmapped", nil
		}
		return "", err
	}

	status, err := s.snapshots.ApplyAccountSnapshot(ctx, userID, &acct)
	if err != nil {
		return "", err
	}
	if s.logg != nil {
		s.logg.Info(
			s.logg.WithAccountID(s.logg.WithUserID(ctx, userID.String()), acct.ID),
			fmt.Sprintf("account status reconciled, fully_active=%t", status.FullyActive),
		)
	}
	return "processed", nil
}

func (s *Service) handleSubscriptionChanged(ctx context.Context, event *stripe.Event) (string, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription event")
	}
	if sub.ID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "subscription id missing from event")
	}

	status, err := enums.ParseSubscriptionStatus(string(sub.Status))
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(ctx, fmt.Sprintf("unrecognized subscription status %q, dropping", sub.Status))
		}
		return "skipped", nil
	}
	if err := s.subs.UpdateStatus(ctx, sub.ID, status); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update subscription status")
	}
	return "processed", nil
}

func (s *Service) observe(eventType, outcome string) {
	if s.observer != nil {
		s.observer.IncWebhookEvent(eventType, outcome)
	}
}
