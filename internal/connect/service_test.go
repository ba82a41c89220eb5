package connect

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/Killerbeez7/print-dungeon-backend/pkg/config"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/db/models"
	pkgerrors "github.com/Killerbeez7/print-dungeon-backend/pkg/errors"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/retry"
)

type stubGateway struct {
	account      *stripe.Account
	accountErr   error
	linkURL      string
	linkErr      error
	getCalls     int
	createCalls  int
	linkCalls    int
	lastMetadata map[string]string
}

func (s *stubGateway) CreateAccount(ctx context.Context, email string, metadata map[string]string) (*stripe.Account, error) {
	s.createCalls++
	s.lastMetadata = metadata
	if s.accountErr != nil {
		return nil, s.accountErr
	}
	return s.account, nil
}

func (s *stubGateway) GetAccount(ctx context.Context, id string) (*stripe.Account, error) {
	s.getCalls++
	if s.accountErr != nil {
		return nil, s.accountErr
	}
	return s.account, nil
}

func (s *stubGateway) CreateAccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	s.linkCalls++
	if s.linkErr != nil {
		return "", s.linkErr
	}
	return s.linkURL, nil
}

type stubUserStore struct {
	users      map[uuid.UUID]*models.User
	setCalls   int
	lastSetID  string
	setowner   uuid.UUID
	setFailure error
}

func (s *stubUserStore) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (s *stubUserStore) SetConnectAccountID(ctx context.Context, id uuid.UUID, accountID string) error {
	s.setCalls++
	s.setowner = id
	s.lastSetID = accountID
	return s.setFailure
}

type stubAccountRepo struct {
	upserts []*models.ConnectAccount
	err     error
}

func (s *stubAccountRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubAccountRepo) Upsert(ctx context.Context, account *models.ConnectAccount) error {
	if s.err != nil {
		return s.err
	}
	s.upserts = append(s.upserts, account)
	return nil
}

func (s *stubAccountRepo) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.ConnectAccount, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubAccountRepo) FindByAccountID(ctx context.Context, accountID string) (*models.ConnectAccount, error) {
	return nil, gorm.ErrRecordNotFound
}

func newTestService(t *testing.T, gateway *stubGateway, users *stubUserStore, repo *stubAccountRepo) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Gateway:  gateway,
		Retryer:  retry.New(config.RetryConfig{MaxRetries: 1, BaseBackoff: time.Millisecond}, nil, nil),
		Users:    users,
		Accounts: repo,
		Config: config.StripeConfig{
			OnboardRefreshURL: "https://example.test/refresh",
			OnboardReturnURL:  "https://example.test/return",
		},
	})
	if err != nil {
		t.Fatalf("building service: %v", err)
	}
	return svc
}

func TestCreateAccountStampsMetadataAndPointer(t *testing.T) {
	userID := uuid.New()
	gateway := &stubGateway{account: &stripe.Account{ID: "acct_new"}}
	users := &stubUserStore{users: map[uuid.UUID]*models.User{
		userID: {ID: userID, Email: "seller@example.test"},
	}}
	svc := newTestService(t, gateway, users, &stubAccountRepo{})

	accountID, err := svc.CreateAccount(context.Background(), userID)
	if err != nil {
		t.Fatalf("creating account: %v", err)
	}
	if accountID != "acct_new" {
		t.Fatalf("got account id %q", accountID)
	}
	if gateway.lastMetadata[MetadataUserIDKey] != userID.String() {
		t.Fatalf("internal user id metadata missing: %v", gateway.lastMetadata)
	}
	if users.setCalls != 1 || users.lastSetID != "acct_new" {
		t.Fatal("forward pointer not stored")
	}
}

func TestCreateAccountIsIdempotentPerUser(t *testing.T) {
	userID := uuid.New()
	existing := "acct_existing"
	gateway := &stubGateway{account: &stripe.Account{ID: "acct_should_not_be_used"}}
	users := &stubUserStore{users: map[uuid.UUID]*models.User{
		userID: {ID: userID, ConnectAccountID: &existing},
	}}
	svc := newTestService(t, gateway, users, &stubAccountRepo{})

	accountID, err := svc.CreateAccount(context.Background(), userID)
	if err != nil {
		t.Fatalf("creating account: %v", err)
	}
	if accountID != existing {
		t.Fatalf("got %q, want existing id", accountID)
	}
	if gateway.createCalls != 0 {
		t.Fatal("must not mint a second gateway account")
	}
}

func TestCreateAccountUnknownUser(t *testing.T) {
	svc := newTestService(t, &stubGateway{}, &stubUserStore{users: map[uuid.UUID]*models.User{}}, &stubAccountRepo{})

	_, err := svc.CreateAccount(context.Background(), uuid.New())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateAccountLinkRequiresAccount(t *testing.T) {
	userID := uuid.New()
	users := &stubUserStore{users: map[uuid.UUID]*models.User{userID: {ID: userID}}}
	svc := newTestService(t, &stubGateway{}, users, &stubAccountRepo{})

	_, err := svc.CreateAccountLink(context.Background(), userID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodePrecondition {
		t.Fatalf("expected precondition failure, got %v", err)
	}
}

func TestCreateAccountLink(t *testing.T) {
	userID := uuid.New()
	accountID := "acct_onboarding"
	users := &stubUserStore{users: map[uuid.UUID]*models.User{
		userID: {ID: userID, ConnectAccountID: &accountID},
	}}
	gateway := &stubGateway{linkURL: "https://connect.stripe.test/setup"}
	svc := newTestService(t, gateway, users, &stubAccountRepo{})

	url, err := svc.CreateAccountLink(context.Background(), userID)
	if err != nil {
		t.Fatalf("creating link: %v", err)
	}
	if url != gateway.linkURL {
		t.Fatalf("got url %q", url)
	}
}

func TestCheckStatusWithoutAccountSkipsGateway(t *testing.T) {
	userID := uuid.New()
	gateway := &stubGateway{}
	users := &stubUserStore{users: map[uuid.UUID]*models.User{userID: {ID: userID}}}
	repo := &stubAccountRepo{}
	svc := newTestService(t, gateway, users, repo)

	status, err := svc.CheckStatus(context.Background(), userID)
	if err != nil {
		t.Fatalf("checking status: %v", err)
	}
	if status.FullyActive || status.AccountID != "" {
		t.Fatalf("expected zero status, got %+v", status)
	}
	if status.RequirementsDue == nil {
		t.Fatal("requirements must not be nil")
	}
	if gateway.getCalls != 0 {
		t.Fatal("no account means no gateway call")
	}
	if len(repo.upserts) != 0 {
		t.Fatal("no account means no snapshot write")
	}
}

func TestCheckStatusReconcilesAndPersists(t *testing.T) {
	userID := uuid.New()
	accountID := "acct_live"
	users := &stubUserStore{users: map[uuid.UUID]*models.User{
		userID: {ID: userID, ConnectAccountID: &accountID},
	}}
	gateway := &stubGateway{account: &stripe.Account{
		ID:               accountID,
		ChargesEnabled:   true,
		DetailsSubmitted: true,
	}}
	repo := &stubAccountRepo{}
	svc := newTestService(t, gateway, users, repo)

	status, err := svc.CheckStatus(context.Background(), userID)
	if err != nil {
		t.Fatalf("checking status: %v", err)
	}
	if !status.FullyActive {
		t.Fatalf("expected fully active, got %+v", status)
	}
	if len(repo.upserts) != 1 {
		t.Fatalf("expected one snapshot write, got %d", len(repo.upserts))
	}
	if repo.upserts[0].UserID != userID || repo.upserts[0].AccountID != accountID {
		t.Fatalf("snapshot keyed wrong: %+v", repo.upserts[0])
	}
}

func TestPullAndPushPathsAgree(t *testing.T) {
	userID := uuid.New()
	accountID := "acct_agree"
	acct := &stripe.Account{
		ID:               accountID,
		ChargesEnabled:   true,
		DetailsSubmitted: false,
		Requirements:     &stripe.AccountRequirements{CurrentlyDue: []string{"external_account"}},
	}

	users := &stubUserStore{users: map[uuid.UUID]*models.User{
		userID: {ID: userID, ConnectAccountID: &accountID},
	}}
	gateway := &stubGateway{account: acct}
	svc := newTestService(t, gateway, users, &stubAccountRepo{})

	pulled, err := svc.CheckStatus(context.Background(), userID)
	if err != nil {
		t.Fatalf("pull path: %v", err)
	}
	pushed, err := svc.ApplyAccountSnapshot(context.Background(), userID, acct)
	if err != nil {
		t.Fatalf("push path: %v", err)
	}
	if !reflect.DeepEqual(pulled, pushed) {
		t.Fatalf("paths disagree: pull %+v push %+v", pulled, pushed)
	}
}

func TestCheckStatusRetriesTransientGatewayFailures(t *testing.T) {
	userID := uuid.New()
	accountID := "acct_flaky"
	users := &stubUserStore{users: map[uuid.UUID]*models.User{
		userID: {ID: userID, ConnectAccountID: &accountID},
	}}

	gateway := &flakyGateway{failures: 1, account: &stripe.Account{ID: accountID, ChargesEnabled: true, DetailsSubmitted: true}}
	svc, err := NewService(ServiceParams{
		Gateway:  gateway,
		Retryer:  retry.New(config.RetryConfig{MaxRetries: 2, BaseBackoff: time.Millisecond}, nil, nil),
		Users:    users,
		Accounts: &stubAccountRepo{},
	})
	if err != nil {
		t.Fatalf("building service: %v", err)
	}

	status, err := svc.CheckStatus(context.Background(), userID)
	if err != nil {
		t.Fatalf("checking status: %v", err)
	}
	if !status.FullyActive {
		t.Fatalf("expected fully active after retry, got %+v", status)
	}
	if gateway.calls != 2 {
		t.Fatalf("expected 2 gateway calls, got %d", gateway.calls)
	}
}

type flakyGateway struct {
	failures int
	calls    int
	account  *stripe.Account
}

func (f *flakyGateway) CreateAccount(ctx context.Context, email string, metadata map[string]string) (*stripe.Account, error) {
	return f.account, nil
}

func (f *flakyGateway) GetAccount(ctx context.Context, id string) (*stripe.Account, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway unavailable")
	}
	return f.account, nil
}

func (f *flakyGateway) CreateAccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	return "", nil
}
