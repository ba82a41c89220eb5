package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/account"
	"github.com/stripe/stripe-go/v84/accountlink"
	"github.com/stripe/stripe-go/v84/customer"
	"github.com/stripe/stripe-go/v84/paymentintent"
	"github.com/stripe/stripe-go/v84/subscription"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/Killerbeez7/print-dungeon-backend/pkg/config"
	pkgerrors "github.com/Killerbeez7/print-dungeon-backend/pkg/errors"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// Client wraps the gateway SDK plus env-specific metadata. All outbound calls
// map SDK failures onto the shared error taxonomy so the retry wrapper can
// classify them without string sniffing.
type Client struct {
	environment   string
	signingSecret string
}

// NewClient initializes Stripe once with the configured secrets and env.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	signingSecret := strings.TrimSpace(cfg.Secret)
	if signingSecret == "" {
		return nil, errSecretRequired
	}

	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	stripe.Key = apiKey

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe client initialized (%s)", env))
	}

	return &Client{
		environment:   env,
		signingSecret: signingSecret,
	}, nil
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret returns the webhook signing secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

// IntentParams captures everything needed to open a payment intent.
type IntentParams struct {
	AmountCents int64
	Currency    string
	CustomerID  string
	Metadata    map[string]string
}

// CreateIntent opens a payment intent on the gateway.
func (c *Client) CreateIntent(ctx context.Context, p IntentParams) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(p.AmountCents),
		Currency: stripe.String(p.Currency),
	}
	params.Context = ctx
	if p.CustomerID != "" {
		params.Customer = stripe.String(p.CustomerID)
	}
	params.AutomaticPaymentMethods = &stripe.PaymentIntentAutomaticPaymentMethodsParams{
		Enabled: stripe.Bool(true),
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	intent, err := paymentintent.New(params)
	if err != nil {
		return nil, mapError(err, "create payment intent")
	}
	return intent, nil
}

// GetIntent fetches the authoritative intent state from the gateway.
func (c *Client) GetIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	intent, err := paymentintent.Get(id, params)
	if err != nil {
		return nil, mapError(err, "get payment intent")
	}
	return intent, nil
}

// CreateCustomer registers a buyer identity on the gateway.
func (c *Client) CreateCustomer(ctx context.Context, email string, metadata map[string]string) (*stripe.Customer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	if email != "" {
		params.Email = stripe.String(email)
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	cust, err := customer.New(params)
	if err != nil {
		return nil, mapError(err, "create customer")
	}
	return cust, nil
}

// CreateAccount opens an express connected account for a seller. The internal
// user id rides along as metadata so webhook identity resolution stays O(1).
func (c *Client) CreateAccount(ctx context.Context, email string, metadata map[string]string) (*stripe.Account, error) {
	params := &stripe.AccountParams{
		Type: stripe.String(string(stripe.AccountTypeExpress)),
		Capabilities: &stripe.AccountCapabilitiesParams{
			CardPayments: &stripe.AccountCapabilitiesCardPaymentsParams{Requested: stripe.Bool(true)},
			Transfers:    &stripe.AccountCapabilitiesTransfersParams{Requested: stripe.Bool(true)},
		},
	}
	params.Context = ctx
	if email != "" {
		params.Email = stripe.String(email)
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	acct, err := account.New(params)
	if err != nil {
		return nil, mapError(err, "create connect account")
	}
	return acct, nil
}

// GetAccount fetches the live connected account snapshot.
func (c *Client) GetAccount(ctx context.Context, id string) (*stripe.Account, error) {
	params := &stripe.AccountParams{}
	params.Context = ctx
	acct, err := account.GetByID(id, params)
	if err != nil {
		return nil, mapError(err, "get connect account")
	}
	return acct, nil
}

// CreateAccountLink mints a one-time onboarding URL for a connected account.
func (c *Client) CreateAccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	params := &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(refreshURL),
		ReturnURL:  stripe.String(returnURL),
		Type:       stripe.String(string(stripe.AccountLinkTypeAccountOnboarding)),
	}
	params.Context = ctx

	link, err := accountlink.New(params)
	if err != nil {
		return "", mapError(err, "create account link")
	}
	return link.URL, nil
}

// CreateSubscription opens a gateway subscription for the customer.
func (c *Client) CreateSubscription(ctx context.Context, customerID, priceID string, paymentMethodID *string, metadata map[string]string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(priceID)},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
	}
	params.Context = ctx
	if paymentMethodID != nil && *paymentMethodID != "" {
		params.DefaultPaymentMethod = stripe.String(*paymentMethodID)
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	sub, err := subscription.New(params)
	if err != nil {
		return nil, mapError(err, "create subscription")
	}
	return sub, nil
}

// VerifySignature checks the webhook signature over the raw body and parses
// the event envelope. Verification is local and deterministic.
func (c *Client) VerifySignature(payload []byte, sigHeader string) (stripe.Event, error) {
	// Accounts pinned to other gateway API versions still deliver validly
	// signed events; only the signature itself decides acceptance.
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, c.SigningSecret(), webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeSignature, err, "verify webhook signature")
	}
	return event, nil
}

// mapError folds gateway SDK failures into the shared taxonomy. Client-side
// misuse (4xx) is terminal; everything else stays retryable.
func mapError(err error, message string) error {
	if err == nil {
		return nil
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch stripeErr.HTTPStatusCode {
		case 400, 402, 422:
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, message)
		case 401:
			return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, message)
		case 403:
			return pkgerrors.Wrap(pkgerrors.CodeForbidden, err, message)
		case 404:
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, message)
		case 409:
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, message)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
	}

	// Timeouts and transport failures arrive untyped.
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}
