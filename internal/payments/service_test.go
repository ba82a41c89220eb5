package payments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/Killerbeez7/print-dungeon-backend/pkg/config"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/db/models"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/enums"
	pkgerrors "github.com/Killerbeez7/print-dungeon-backend/pkg/errors"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/retry"
	stripeclient "github.com/Killerbeez7/print-dungeon-backend/pkg/stripe"
)

type stubGateway struct {
	intent        *stripe.PaymentIntent
	intentErr     error
	customer      *stripe.Customer
	customerCalls int
	lastParams    stripeclient.IntentParams
}

func (s *stubGateway) CreateIntent(ctx context.Context, p stripeclient.IntentParams) (*stripe.PaymentIntent, error) {
	s.lastParams = p
	if s.intentErr != nil {
		return nil, s.intentErr
	}
	return s.intent, nil
}

func (s *stubGateway) GetIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	if s.intentErr != nil {
		return nil, s.intentErr
	}
	return s.intent, nil
}

func (s *stubGateway) CreateCustomer(ctx context.Context, email string, metadata map[string]string) (*stripe.Customer, error) {
	s.customerCalls++
	return s.customer, nil
}

type stubUserStore struct {
	users    map[uuid.UUID]*models.User
	setCalls int
}

func (s *stubUserStore) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (s *stubUserStore) SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	s.setCalls++
	if user, ok := s.users[id]; ok {
		user.StripeCustomerID = &customerID
	}
	return nil
}

type stubModelStore struct {
	model          *models.PrintModel
	incrementCalls int
	lastAmount     int64
}

func (s *stubModelStore) FindByID(ctx context.Context, id uuid.UUID) (*models.PrintModel, error) {
	if s.model == nil || s.model.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.model, nil
}

func (s *stubModelStore) IncrementPurchaseStats(ctx context.Context, id uuid.UUID, amountCents int64) error {
	s.incrementCalls++
	s.lastAmount = amountCents
	return nil
}

type stubRepo struct {
	intents          map[string]*models.PaymentIntent
	purchases        map[string]*models.Purchase
	userPurchases    int
	sellerIncrements int
	completedAt      map[string]time.Time
	writeOrder       []string
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		intents:     map[string]*models.PaymentIntent{},
		purchases:   map[string]*models.Purchase{},
		completedAt: map[string]time.Time{},
	}
}

func (s *stubRepo) CreatePaymentIntent(ctx context.Context, intent *models.PaymentIntent) (*models.PaymentIntent, error) {
	s.intents[intent.StripeIntentID] = intent
	return intent, nil
}

func (s *stubRepo) FindIntentByStripeID(ctx context.Context, stripeIntentID string) (*models.PaymentIntent, error) {
	intent, ok := s.intents[stripeIntentID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return intent, nil
}

func (s *stubRepo) MarkIntentCompleted(ctx context.Context, stripeIntentID string, at time.Time) error {
	if intent, ok := s.intents[stripeIntentID]; ok {
		intent.Status = enums.PaymentIntentStatusCompleted
		intent.CompletedAt = &at
	}
	s.completedAt[stripeIntentID] = at
	s.writeOrder = append(s.writeOrder, "mark_completed")
	return nil
}

func (s *stubRepo) CreatePurchase(ctx context.Context, purchase *models.Purchase) error {
	if _, exists := s.purchases[purchase.StripeIntentID]; exists {
		return gorm.ErrDuplicatedKey
	}
	s.purchases[purchase.StripeIntentID] = purchase
	s.writeOrder = append(s.writeOrder, "create_purchase")
	return nil
}

func (s *stubRepo) FindPurchaseByIntentID(ctx context.Context, stripeIntentID string) (*models.Purchase, error) {
	purchase, ok := s.purchases[stripeIntentID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return purchase, nil
}

func (s *stubRepo) UpsertUserPurchase(ctx context.Context, entry *models.UserPurchase) error {
	s.userPurchases++
	s.writeOrder = append(s.writeOrder, "user_purchase")
	return nil
}

func (s *stubRepo) IncrementSellerStats(ctx context.Context, sellerID uuid.UUID, amountCents int64) error {
	s.sellerIncrements++
	s.writeOrder = append(s.writeOrder, "seller_stats")
	return nil
}

func (s *stubRepo) ListPurchasesByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.UserPurchase, error) {
	return nil, nil
}

func (s *stubRepo) ListSalesBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Purchase, error) {
	return nil, nil
}

type stubSettlementObserver struct {
	outcomes []string
}

func (s *stubSettlementObserver) IncSettlement(outcome string) {
	s.outcomes = append(s.outcomes, outcome)
}

type fixture struct {
	svc      *Service
	gateway  *stubGateway
	users    *stubUserStore
	catalog  *stubModelStore
	repo     *stubRepo
	observer *stubSettlementObserver
	buyerID  uuid.UUID
	sellerID uuid.UUID
	modelID  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	buyerID := uuid.New()
	sellerID := uuid.New()
	modelID := uuid.New()
	customerID := "cus_buyer"

	f := &fixture{
		gateway: &stubGateway{
			intent:   &stripe.PaymentIntent{ID: "pi_1", ClientSecret: "pi_1_secret", Status: stripe.PaymentIntentStatusSucceeded},
			customer: &stripe.Customer{ID: "cus_new"},
		},
		users: &stubUserStore{users: map[uuid.UUID]*models.User{
			buyerID: {ID: buyerID, Email: "buyer@example.test", StripeCustomerID: &customerID},
		}},
		catalog: &stubModelStore{model: &models.PrintModel{
			ID:        modelID,
			SellerID:  sellerID,
			Name:      "Dungeon Door",
			Price:     decimal.NewFromFloat(19.99),
			Published: true,
		}},
		repo:     newStubRepo(),
		observer: &stubSettlementObserver{},
		buyerID:  buyerID,
		sellerID: sellerID,
		modelID:  modelID,
	}

	svc, err := NewService(ServiceParams{
		Gateway:  f.gateway,
		Retryer:  retry.New(config.RetryConfig{MaxRetries: 1, BaseBackoff: time.Millisecond}, nil, nil),
		Users:    f.users,
		Catalog:  f.catalog,
		Repo:     f.repo,
		Observer: f.observer,
	})
	if err != nil {
		t.Fatalf("building service: %v", err)
	}
	f.svc = svc
	return f
}

func TestCreateIntentConvertsToMinorUnits(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.CreateIntent(context.Background(), CreateIntentInput{
		BuyerID: f.buyerID,
		ModelID: f.modelID,
		Amount:  decimal.NewFromFloat(19.99),
	})
	if err != nil {
		t.Fatalf("creating intent: %v", err)
	}
	if f.gateway.lastParams.AmountCents != 1999 {
		t.Fatalf("got %d cents, want 1999", f.gateway.lastParams.AmountCents)
	}
	if f.gateway.lastParams.Currency != "usd" {
		t.Fatalf("empty currency must default to usd, got %q", f.gateway.lastParams.Currency)
	}
	if result.ClientSecret != "pi_1_secret" || result.PaymentIntentID != "pi_1" {
		t.Fatalf("unexpected result %+v", result)
	}

	record := f.repo.intents["pi_1"]
	if record == nil {
		t.Fatal("intent not persisted")
	}
	if record.Status != enums.PaymentIntentStatusCreated {
		t.Fatalf("got status %s", record.Status)
	}
	if record.AmountCents != 1999 || record.SellerID != f.sellerID {
		t.Fatalf("record fields wrong: %+v", record)
	}
}

func TestCreateIntentMetadata(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateIntent(context.Background(), CreateIntentInput{
		BuyerID: f.buyerID,
		ModelID: f.modelID,
		Amount:  decimal.NewFromInt(5),
	})
	if err != nil {
		t.Fatalf("creating intent: %v", err)
	}

	meta := f.gateway.lastParams.Metadata
	if meta["model_id"] != f.modelID.String() || meta["buyer_id"] != f.buyerID.String() {
		t.Fatalf("metadata incomplete: %v", meta)
	}
	if meta["seller_id"] != f.sellerID.String() || meta["model_name"] != "Dungeon Door" {
		t.Fatalf("metadata incomplete: %v", meta)
	}
}

func TestCreateIntentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		input CreateIntentInput
		code  pkgerrors.Code
	}{
		{"zero amount", CreateIntentInput{BuyerID: f.buyerID, ModelID: f.modelID}, pkgerrors.CodeValidation},
		{"negative amount", CreateIntentInput{BuyerID: f.buyerID, ModelID: f.modelID, Amount: decimal.NewFromInt(-1)}, pkgerrors.CodeValidation},
		{"unknown currency", CreateIntentInput{BuyerID: f.buyerID, ModelID: f.modelID, Amount: decimal.NewFromInt(1), Currency: "xyz"}, pkgerrors.CodeValidation},
		{"unknown model", CreateIntentInput{BuyerID: f.buyerID, ModelID: uuid.New(), Amount: decimal.NewFromInt(1)}, pkgerrors.CodeNotFound},
		{"own model", CreateIntentInput{BuyerID: f.sellerID, ModelID: f.modelID, Amount: decimal.NewFromInt(1)}, pkgerrors.CodeForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateIntent(ctx, tc.input)
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != tc.code {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}
}

func TestCreateIntentUnpublishedModelHidden(t *testing.T) {
	f := newFixture(t)
	f.catalog.model.Published = false

	_, err := f.svc.CreateIntent(context.Background(), CreateIntentInput{
		BuyerID: f.buyerID,
		ModelID: f.modelID,
		Amount:  decimal.NewFromInt(1),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unpublished model must look absent, got %v", err)
	}
}

func TestCreateIntentCreatesCustomerOnce(t *testing.T) {
	f := newFixture(t)
	f.users.users[f.buyerID].StripeCustomerID = nil

	ctx := context.Background()
	input := CreateIntentInput{BuyerID: f.buyerID, ModelID: f.modelID, Amount: decimal.NewFromInt(3)}

	if _, err := f.svc.CreateIntent(ctx, input); err != nil {
		t.Fatalf("first intent: %v", err)
	}
	if f.gateway.customerCalls != 1 || f.users.setCalls != 1 {
		t.Fatal("expected customer created and stored")
	}
	if f.gateway.lastParams.CustomerID != "cus_new" {
		t.Fatalf("intent not bound to new customer: %q", f.gateway.lastParams.CustomerID)
	}

	// Stored id is reused on the next intent.
	if _, err := f.svc.CreateIntent(ctx, input); err != nil {
		t.Fatalf("second intent: %v", err)
	}
	if f.gateway.customerCalls != 1 {
		t.Fatalf("customer created again: %d calls", f.gateway.customerCalls)
	}
}

func finalizeFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	f.repo.intents["pi_1"] = &models.PaymentIntent{
		StripeIntentID: "pi_1",
		ModelID:        f.modelID,
		BuyerID:        f.buyerID,
		SellerID:       f.sellerID,
		Amount:         decimal.NewFromFloat(19.99),
		AmountCents:    1999,
		Currency:       enums.CurrencyUSD,
		Status:         enums.PaymentIntentStatusCreated,
	}
	return f
}

func TestFinalizeSuccessWriteSequence(t *testing.T) {
	f := finalizeFixture(t)

	purchaseID, err := f.svc.FinalizeSuccess(context.Background(), f.buyerID, "pi_1")
	if err != nil {
		t.Fatalf("finalizing: %v", err)
	}
	if purchaseID == uuid.Nil {
		t.Fatal("expected purchase id")
	}

	if f.repo.userPurchases != 1 || f.repo.sellerIncrements != 1 || f.catalog.incrementCalls != 1 {
		t.Fatalf("expected single increments, got %d/%d/%d",
			f.repo.userPurchases, f.repo.sellerIncrements, f.catalog.incrementCalls)
	}
	if f.catalog.lastAmount != 1999 {
		t.Fatalf("model stats amount %d", f.catalog.lastAmount)
	}

	last := f.repo.writeOrder[len(f.repo.writeOrder)-1]
	if last != "mark_completed" {
		t.Fatalf("intent completion must be the last write, order: %v", f.repo.writeOrder)
	}
	if f.repo.intents["pi_1"].Status != enums.PaymentIntentStatusCompleted {
		t.Fatal("intent not completed")
	}
	if len(f.observer.outcomes) != 1 || f.observer.outcomes[0] != "completed" {
		t.Fatalf("outcomes %v", f.observer.outcomes)
	}
}

func TestFinalizeSuccessRequiresSucceededIntent(t *testing.T) {
	f := finalizeFixture(t)
	f.gateway.intent.Status = stripe.PaymentIntentStatusRequiresPaymentMethod

	_, err := f.svc.FinalizeSuccess(context.Background(), f.buyerID, "pi_1")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodePrecondition {
		t.Fatalf("expected precondition failure, got %v", err)
	}
	if len(f.repo.purchases) != 0 || f.repo.userPurchases != 0 {
		t.Fatal("no writes allowed on non-succeeded intent")
	}
	if f.repo.intents["pi_1"].Status != enums.PaymentIntentStatusCreated {
		t.Fatal("intent must stay retryable")
	}
}

func TestFinalizeSuccessIsExactlyOnce(t *testing.T) {
	f := finalizeFixture(t)
	ctx := context.Background()

	first, err := f.svc.FinalizeSuccess(ctx, f.buyerID, "pi_1")
	if err != nil {
		t.Fatalf("first finalize: %v", err)
	}
	second, err := f.svc.FinalizeSuccess(ctx, f.buyerID, "pi_1")
	if err != nil {
		t.Fatalf("second finalize: %v", err)
	}

	if first != second {
		t.Fatalf("purchase ids diverged: %s vs %s", first, second)
	}
	if len(f.repo.purchases) != 1 {
		t.Fatalf("expected one purchase, got %d", len(f.repo.purchases))
	}
	if f.repo.sellerIncrements != 1 || f.catalog.incrementCalls != 1 {
		t.Fatal("counters incremented more than once")
	}
	if f.observer.outcomes[1] != "duplicate" {
		t.Fatalf("outcomes %v", f.observer.outcomes)
	}
}

func TestFinalizeSuccessConvergesAfterCrash(t *testing.T) {
	f := finalizeFixture(t)
	ctx := context.Background()

	// Simulate a prior attempt that crashed right after claiming the
	// purchase: the row exists but the intent is still created.
	f.repo.purchases["pi_1"] = &models.Purchase{
		ID:             uuid.New(),
		StripeIntentID: "pi_1",
		BuyerID:        f.buyerID,
	}

	purchaseID, err := f.svc.FinalizeSuccess(ctx, f.buyerID, "pi_1")
	if err != nil {
		t.Fatalf("finalizing: %v", err)
	}
	if purchaseID != f.repo.purchases["pi_1"].ID {
		t.Fatal("must converge on the claimed purchase")
	}
	if f.repo.intents["pi_1"].Status != enums.PaymentIntentStatusCompleted {
		t.Fatal("retry must complete the intent")
	}
	if f.repo.userPurchases != 1 {
		t.Fatalf("retry must write the buyer's library entry, got %d", f.repo.userPurchases)
	}
	if f.repo.sellerIncrements != 0 || f.catalog.incrementCalls != 0 {
		t.Fatal("retry must not re-increment counters")
	}
}

func TestFinalizeSuccessGuards(t *testing.T) {
	f := finalizeFixture(t)
	ctx := context.Background()

	t.Run("unknown intent", func(t *testing.T) {
		_, err := f.svc.FinalizeSuccess(ctx, f.buyerID, "pi_missing")
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("wrong buyer", func(t *testing.T) {
		_, err := f.svc.FinalizeSuccess(ctx, uuid.New(), "pi_1")
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
			t.Fatalf("expected forbidden, got %v", err)
		}
	})

	t.Run("empty intent id", func(t *testing.T) {
		_, err := f.svc.FinalizeSuccess(ctx, f.buyerID, "")
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}
