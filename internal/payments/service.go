package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/Killerbeez7/print-dungeon-backend/pkg/db"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/db/models"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/enums"
	pkgerrors "github.com/Killerbeez7/print-dungeon-backend/pkg/errors"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/logger"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/retry"
	stripeclient "github.com/Killerbeez7/print-dungeon-backend/pkg/stripe"
)

type gatewayClient interface {
	CreateIntent(ctx context.Context, p stripeclient.IntentParams) (*stripe.PaymentIntent, error)
	GetIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
	CreateCustomer(ctx context.Context, email string, metadata map[string]string) (*stripe.Customer, error)
}

type userStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error
}

type modelStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.PrintModel, error)
	IncrementPurchaseStats(ctx context.Context, id uuid.UUID, amountCents int64) error
}

type settlementObserver interface {
	IncSettlement(outcome string)
}

// Service opens payment intents and finalizes successful payments into
// purchase, stats and counter writes.
type Service struct {
	gateway  gatewayClient
	retryer  *retry.Retryer
	users    userStore
	catalog  modelStore
	repo     Repository
	logg     *logger.Logger
	observer settlementObserver
}

// ServiceParams carries the dependencies for NewService.
type ServiceParams struct {
	Gateway  gatewayClient
	Retryer  *retry.Retryer
	Users    userStore
	Catalog  modelStore
	Repo     Repository
	Logger   *logger.Logger
	Observer settlementObserver
}

// NewService builds the payments service.
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
	if params.Catalog == nil {
		return nil, fmt.Errorf("model store required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	return &Service{
		gateway:  params.Gateway,
		retryer:  params.Retryer,
		users:    params.Users,
		catalog:  params.Catalog,
		repo:     params.Repo,
		logg:     params.Logger,
		observer: params.Observer,
	}, nil
}

var centsFactor = decimal.NewFromInt(100)

// CreateIntent validates the request, resolves or creates the buyer's gateway
// customer, opens the intent for the amount in minor units and records it
// locally with status created.
func (s *Service) CreateIntent(ctx context.Context, input CreateIntentInput) (*CreateIntentResult, error) {
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	currency, err := enums.ParseCurrency(input.Currency)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse currency")
	}

	model, err := s.catalog.FindByID(ctx, input.ModelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "model not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load model")
	}
	if !model.Published {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "model not found")
	}
	if model.SellerID == input.BuyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot purchase your own model")
	}

	customerID, err := s.resolveCustomer(ctx, input.BuyerID)
	if err != nil {
		return nil, err
	}

	amountCents := input.Amount.Mul(centsFactor).Round(0).IntPart()
	metadata := map[string]string{
		"model_id":   input.ModelID.String(),
		"buyer_id":   input.BuyerID.String(),
		"seller_id":  model.SellerID.String(),
		"model_name": model.Name,
	}

	intent, err := retry.Do(ctx, s.retryer, "create_payment_intent", func(ctx context.Context) (*stripe.PaymentIntent, error) {
		return s.gateway.CreateIntent(ctx, stripeclient.IntentParams{
			AmountCents: amountCents,
			Currency:    currency.String(),
			CustomerID:  customerID,
			Metadata:    metadata,
		})
	})
	if err != nil {
		return nil, err
	}

	record := &models.PaymentIntent{
		StripeIntentID: intent.ID,
		ModelID:        input.ModelID,
		BuyerID:        input.BuyerID,
		SellerID:       model.SellerID,
		Amount:         input.Amount,
		AmountCents:    amountCents,
		Currency:       currency,
		Status:         enums.PaymentIntentStatusCreated,
	}
	if _, err := s.repo.CreatePaymentIntent(ctx, record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist payment intent")
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithIntentID(s.logg.WithUserID(ctx, input.BuyerID.String()), intent.ID), "payment intent created")
	}
	return &CreateIntentResult{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
	}, nil
}

// FinalizeSuccess settles a succeeded payment. The gateway is re-fetched as
// the source of truth; anything but succeeded fails the precondition. The
// write sequence claims the settlement by inserting the purchase first, so a
// concurrent or repeated call converges on one purchase and one set of
// counter increments. Marking the intent completed is the last write: a crash
// anywhere earlier leaves the intent retryable.
func (s *Service) FinalizeSuccess(ctx context.Context, buyerID uuid.UUID, stripeIntentID string) (uuid.UUID, error) {
	if stripeIntentID == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required")
	}

	record, err := s.repo.FindIntentByStripeID(ctx, stripeIntentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found")
		}
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment intent")
	}
	if record.BuyerID != buyerID {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment intent belongs to another buyer")
	}

	if record.Status == enums.PaymentIntentStatusCompleted {
		existing, err := s.repo.FindPurchaseByIntentID(ctx, stripeIntentID)
		if err != nil {
			return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load settled purchase")
		}
		s.observeSettlement("duplicate")
		return existing.ID, nil
	}

	intent, err := retry.Do(ctx, s.retryer, "get_payment_intent", func(ctx context.Context) (*stripe.PaymentIntent, error) {
		return s.gateway.GetIntent(ctx, stripeIntentID)
	})
	if err != nil {
		return uuid.Nil, err
	}
	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodePrecondition, fmt.Sprintf("payment intent is %s, not succeeded", intent.Status)).
			WithDetails(map[string]string{"status": string(intent.Status)})
	}

	now := time.Now().UTC()
	purchase := &models.Purchase{
		ID:             uuid.New(),
		StripeIntentID: stripeIntentID,
		BuyerID:        record.BuyerID,
		SellerID:       record.SellerID,
		ModelID:        record.ModelID,
		Amount:         record.Amount,
		Currency:       record.Currency,
		Status:         enums.PurchaseStatusCompleted,
		PurchasedAt:    now,
	}
	if err := s.repo.CreatePurchase(ctx, purchase); err != nil {
		if db.IsUniqueViolation(err, "") {
			// Another attempt claimed this settlement. Converge on its
			// purchase and re-run the keyed upsert so a crash between the
			// purchase insert and the library write cannot strand the
			// buyer; counters stay untouched.
			existing, findErr := s.repo.FindPurchaseByIntentID(ctx, stripeIntentID)
			if findErr != nil {
				return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInternal, findErr, "load settled purchase")
			}
			if upsertErr := s.repo.UpsertUserPurchase(ctx, &models.UserPurchase{
				BuyerID:     record.BuyerID,
				ModelID:     record.ModelID,
				PriceCents:  record.AmountCents,
				Currency:    record.Currency,
				PurchasedAt: existing.PurchasedAt,
			}); upsertErr != nil {
				return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInternal, upsertErr, "record user purchase")
			}
			if markErr := s.repo.MarkIntentCompleted(ctx, stripeIntentID, now); markErr != nil {
				return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInternal, markErr, "mark intent completed")
			}
			s.observeSettlement("duplicate")
			return existing.ID, nil
		}
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create purchase")
	}

	if err := s.repo.UpsertUserPurchase(ctx, &models.UserPurchase{
		BuyerID:     record.BuyerID,
		ModelID:     record.ModelID,
		PriceCents:  record.AmountCents,
		Currency:    record.Currency,
		PurchasedAt: now,
	}); err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record user purchase")
	}
	if err := s.repo.IncrementSellerStats(ctx, record.SellerID, record.AmountCents); err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "increment seller stats")
	}
	if err := s.catalog.IncrementPurchaseStats(ctx, record.ModelID, record.AmountCents); err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "increment model stats")
	}
	if err := s.repo.MarkIntentCompleted(ctx, stripeIntentID, now); err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark intent completed")
	}

	s.observeSettlement("completed")
	if s.logg != nil {
		s.logg.Info(s.logg.WithIntentID(s.logg.WithUserID(ctx, buyerID.String()), stripeIntentID), "payment settled")
	}
	return purchase.ID, nil
}

// ListUserPurchases returns the buyer's purchase entries, newest first.
func (s *Service) ListUserPurchases(ctx context.Context, buyerID uuid.UUID) ([]PurchaseDTO, error) {
	entries, err := s.repo.ListPurchasesByBuyer(ctx, buyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list purchases")
	}
	return purchaseDTOs(entries), nil
}

// ListSellerSales returns the seller's settlement entries, newest first.
func (s *Service) ListSellerSales(ctx context.Context, sellerID uuid.UUID) ([]SaleDTO, error) {
	sales, err := s.repo.ListSalesBySeller(ctx, sellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list sales")
	}
	return saleDTOs(sales), nil
}

func (s *Service) resolveCustomer(ctx context.Context, buyerID uuid.UUID) (string, error) {
	user, err := s.users.FindByID(ctx, buyerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}

	cust, err := retry.Do(ctx, s.retryer, "create_customer", func(ctx context.Context) (*stripe.Customer, error) {
		return s.gateway.CreateCustomer(ctx, user.Email, map[string]string{"internal_user_id": buyerID.String()})
	})
	if err != nil {
		return "", err
	}
	if err := s.users.SetStripeCustomerID(ctx, buyerID, cust.ID); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store customer id")
	}
	return cust.ID, nil
}

func (s *Service) observeSettlement(outcome string) {
	if s.observer != nil {
		s.observer.IncSettlement(outcome)
	}
}
