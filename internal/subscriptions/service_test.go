package subscriptions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/Killerbeez7/print-dungeon-backend/pkg/config"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/db/models"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/enums"
	pkgerrors "github.com/Killerbeez7/print-dungeon-backend/pkg/errors"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/retry"
)

type stubGateway struct {
	sub           *stripe.Subscription
	customer      *stripe.Customer
	customerCalls int
	lastPriceID   string
	lastMetadata  map[string]string
}

func (s *stubGateway) CreateCustomer(ctx context.Context, email string, metadata map[string]string) (*stripe.Customer, error) {
	s.customerCalls++
	return s.customer, nil
}

func (s *stubGateway) CreateSubscription(ctx context.Context, customerID, priceID string, paymentMethodID *string, metadata map[string]string) (*stripe.Subscription, error) {
	s.lastPriceID = priceID
	s.lastMetadata = metadata
	return s.sub, nil
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

type stubRepo struct {
	created []*models.Subscription
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) Create(ctx context.Context, sub *models.Subscription) error {
	s.created = append(s.created, sub)
	return nil
}

func (s *stubRepo) FindByStripeID(ctx context.Context, id string) (*models.Subscription, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error) {
	return nil, nil
}

func (s *stubRepo) UpdateStatus(ctx context.Context, id string, status enums.SubscriptionStatus) error {
	return nil
}

func newTestService(t *testing.T, gateway *stubGateway, users *stubUserStore, repo *stubRepo) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Gateway: gateway,
		Retryer: retry.New(config.RetryConfig{MaxRetries: 1, BaseBackoff: time.Millisecond}, nil, nil),
		Users:   users,
		Repo:    repo,
	})
	if err != nil {
		t.Fatalf("building service: %v", err)
	}
	return svc
}

func TestCreateSubscription(t *testing.T) {
	userID := uuid.New()
	customerID := "cus_1"
	gateway := &stubGateway{
		sub: &stripe.Subscription{
			ID:                 "sub_1",
			Status:             stripe.SubscriptionStatusIncomplete,
			PendingSetupIntent: &stripe.SetupIntent{ClientSecret: "seti_secret"},
		},
	}
	users := &stubUserStore{users: map[uuid.UUID]*models.User{
		userID: {ID: userID, StripeCustomerID: &customerID},
	}}
	repo := &stubRepo{}
	svc := newTestService(t, gateway, users, repo)

	result, err := svc.Create(context.Background(), CreateInput{UserID: userID, PriceID: "price_basic"})
	if err != nil {
		t.Fatalf("creating subscription: %v", err)
	}
	if result.SubscriptionID != "sub_1" || result.ClientSecret != "seti_secret" {
		t.Fatalf("unexpected result %+v", result)
	}
	if gateway.lastPriceID != "price_basic" {
		t.Fatalf("price id %q", gateway.lastPriceID)
	}
	if gateway.lastMetadata["internal_user_id"] != userID.String() {
		t.Fatalf("metadata %v", gateway.lastMetadata)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one row, got %d", len(repo.created))
	}
	if repo.created[0].Status != enums.SubscriptionStatusIncomplete {
		t.Fatalf("status %s", repo.created[0].Status)
	}
}

func TestCreateSubscriptionResolvesCustomer(t *testing.T) {
	userID := uuid.New()
	gateway := &stubGateway{
		sub:      &stripe.Subscription{ID: "sub_2", Status: stripe.SubscriptionStatusIncomplete},
		customer: &stripe.Customer{ID: "cus_new"},
	}
	users := &stubUserStore{users: map[uuid.UUID]*models.User{
		userID: {ID: userID, Email: "user@example.test"},
	}}
	svc := newTestService(t, gateway, users, &stubRepo{})

	if _, err := svc.Create(context.Background(), CreateInput{UserID: userID, PriceID: "price_basic"}); err != nil {
		t.Fatalf("creating subscription: %v", err)
	}
	if gateway.customerCalls != 1 || users.setCalls != 1 {
		t.Fatal("expected customer created and stored")
	}
}

func TestCreateSubscriptionValidation(t *testing.T) {
	svc := newTestService(t, &stubGateway{}, &stubUserStore{users: map[uuid.UUID]*models.User{}}, &stubRepo{})
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{UserID: uuid.New()})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = svc.Create(ctx, CreateInput{UserID: uuid.New(), PriceID: "price_basic"})
	typed = pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
